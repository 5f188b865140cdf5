package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Realm is one of the two independent login realms.
type Realm string

const (
	User  Realm = "user"
	Admin Realm = "admin"
)

var ErrUnknownRealm = errors.New("session: unknown realm")

// Valid reports whether r is User or Admin.
func (r Realm) Valid() bool {
	return r == User || r == Admin
}

// CookieName is the cookie the browser frontend keeps the realm's token in.
func (r Realm) CookieName() string {
	if r == Admin {
		return "adminToken"
	}
	return "token"
}

func (r Realm) String() string { return string(r) }

// ParseRealm maps "" to User.
func ParseRealm(s string) (Realm, error) {
	switch Realm(s) {
	case "", User:
		return User, nil
	case Admin:
		return Admin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRealm, s)
}

// Store keeps one bearer token per realm.
type Store interface {
	Token(realm Realm) (string, bool)
	SetToken(realm Realm, token string) error
	Clear(realm Realm) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[Realm]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[Realm]string)}
}

func (s *MemoryStore) Token(realm Realm) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[realm]
	return tok, ok && tok != ""
}

func (s *MemoryStore) SetToken(realm Realm, token string) error {
	if !realm.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRealm, realm)
	}
	s.mu.Lock()
	s.tokens[realm] = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(realm Realm) error {
	s.mu.Lock()
	delete(s.tokens, realm)
	s.mu.Unlock()
	return nil
}

// Multi writes to every store and reads from the first one holding a token.
type Multi []Store

func (m Multi) Token(realm Realm) (string, bool) {
	for _, s := range m {
		if tok, ok := s.Token(realm); ok {
			return tok, true
		}
	}
	return "", false
}

func (m Multi) SetToken(realm Realm, token string) error {
	var errs []error
	for _, s := range m {
		if err := s.SetToken(realm, token); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Clear(realm Realm) error {
	var errs []error
	for _, s := range m {
		if err := s.Clear(realm); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Expired reports whether token is a JWT whose exp claim is at or before now.
// The signature is not checked; the backend does that. Opaque tokens and
// JWTs without exp never count as expired.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = Multi(nil)
)
