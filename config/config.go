package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type (
	Container struct {
		App     *App     `validate:"required"`
		API     *API     `validate:"required"`
		Cache   *Cache   `validate:"required"`
		Redis   *Redis   `validate:"required"`
		HTTP    *HTTP    `validate:"required"`
		Session *Session `validate:"required"`
		Routes  *Routes  `validate:"required"`
	}

	App struct {
		Name string
		Env  string `validate:"omitempty,oneof=local dev prod production"`
	}

	API struct {
		BaseURL string        `validate:"required,url"`
		Timeout time.Duration `validate:"gte=0"`
	}

	Cache struct {
		Shards       int           `validate:"gte=1,lte=4096"`
		Capacity     int           `validate:"gte=0"`
		TTL          time.Duration `validate:"gte=0"`
		Eviction     string        `validate:"oneof=LRU LFU FIFO lru lfu fifo"`
		Expiration   string        `validate:"oneof=entry access write"`
		RefreshAhead time.Duration `validate:"gte=0"`
		FetchTimeout time.Duration `validate:"gte=0"`
	}

	Redis struct {
		Enabled   bool
		Address   string `validate:"required_if=Enabled true"`
		Password  string
		DB        int    `validate:"gte=0"`
		Prefix    string
		WriteMode string `validate:"oneof=through back"`
		Buffer    int    `validate:"gte=1"`
	}

	HTTP struct {
		Env            string
		URL            string
		Port           string `validate:"required,numeric"`
		AllowedOrigins string
	}

	Session struct {
		File string
	}

	Routes struct {
		UserLogin  string `validate:"required,startswith=/"`
		AdminLogin string `validate:"required,startswith=/"`
	}
)

// New loads .env (when not in production), reads the environment, applies
// defaults and validates the result.
func New() (*Container, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return FromEnv()
}

// FromEnv builds the container from the process environment only.
func FromEnv() (*Container, error) {
	const op = "config.FromEnv"

	p := &parser{}

	app := &App{
		Name: getString("APP_NAME", "estate-cache"),
		Env:  getString("APP_ENV", "local"),
	}

	api := &API{
		BaseURL: os.Getenv("API_BASE_URL"),
		Timeout: p.duration("API_TIMEOUT", 30*time.Second),
	}

	cache := &Cache{
		Shards:       p.int("CACHE_SHARDS", 16),
		Capacity:     p.int("CACHE_CAPACITY", 0),
		TTL:          p.duration("CACHE_TTL", 2*time.Minute),
		Eviction:     getString("CACHE_EVICTION", "LRU"),
		Expiration:   getString("CACHE_EXPIRATION", "entry"),
		RefreshAhead: p.duration("CACHE_REFRESH_AHEAD", 0),
		FetchTimeout: p.duration("CACHE_FETCH_TIMEOUT", 0),
	}

	redis := &Redis{
		Enabled:   p.bool("REDIS_ENABLED", false),
		Address:   os.Getenv("REDIS_ADDRESS"),
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        p.int("REDIS_DB", 0),
		Prefix:    getString("REDIS_PREFIX", "estate:"),
		WriteMode: getString("REDIS_WRITE_MODE", "back"),
		Buffer:    p.int("REDIS_BUFFER", 1024),
	}

	http := &HTTP{
		Env:            app.Env,
		URL:            os.Getenv("HTTP_URL"),
		Port:           getString("HTTP_PORT", "8080"),
		AllowedOrigins: getString("ALLOWED_ORIGINS", "*"),
	}

	session := &Session{
		File: getString("SESSION_FILE", defaultSessionFile()),
	}

	routes := &Routes{
		UserLogin:  getString("USER_LOGIN_ROUTE", "/login"),
		AdminLogin: getString("ADMIN_LOGIN_ROUTE", "/admin/login"),
	}

	if p.err != nil {
		return nil, fmt.Errorf("%s: %w", op, p.err)
	}

	c := &Container{
		App:     app,
		API:     api,
		Cache:   cache,
		Redis:   redis,
		HTTP:    http,
		Session: session,
		Routes:  routes,
	}

	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// parser keeps the first conversion error so FromEnv can report it once.
type parser struct {
	err error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".estate-session.yaml"
	}
	return filepath.Join(dir, "estate", "session.yaml")
}
