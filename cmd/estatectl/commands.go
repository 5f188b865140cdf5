package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/krisalay/estate-cache/app"
	"github.com/krisalay/estate-cache/client"
	"github.com/krisalay/estate-cache/config"
	"github.com/krisalay/estate-cache/gateway"
	"github.com/krisalay/estate-cache/logger"
	"github.com/krisalay/estate-cache/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func InitApp() *cli.Command {
	return &cli.Command{
		Name:  "estatectl",
		Usage: "Cached client and gateway for the estate marketplace API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "admin",
				Usage: "act in the admin realm",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "cache lifetime of fetched responses (0 uses CACHE_TTL)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			getCommand(),
			loginCommand(),
			logoutCommand(),
			uploadCommand(),
		},
	}
}

// setup builds the application from the environment. The caller closes it.
func setup(ctx context.Context, cmd *cli.Command) (*app.App, session.Realm, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, "", err
	}
	log := logger.New(cfg.App.Env)

	realm := session.User
	if cmd.Bool("admin") {
		realm = session.Admin
	}
	if ttl := cmd.Duration("ttl"); ttl > 0 {
		cfg.Cache.TTL = ttl
	}

	redirector := client.RedirectFunc(func(_ context.Context, realm session.Realm, route string) {
		fmt.Fprintf(os.Stderr, "%s session ended. Log in again at %s, then run: estatectl login --token <token>", realm, route)
		if realm == session.Admin {
			fmt.Fprint(os.Stderr, " --admin")
		}
		fmt.Fprintln(os.Stderr)
	})

	a, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer, redirector)
	if err != nil {
		return nil, "", err
	}
	return a, realm, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the caching gateway in front of the API",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, _, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			router, err := gateway.NewRouter(a.Config.HTTP, gateway.Deps{
				Log:      a.Log,
				Upstream: a.Gateway,
				Metrics:  a.Metrics,
				TTL:      a.Config.Cache.TTL,
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              net.JoinHostPort(a.Config.HTTP.URL, a.Config.HTTP.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.Log.Info("Gateway listening", map[string]interface{}{
					"addr":     srv.Addr,
					"upstream": a.Gateway.BaseURL(),
				})
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.Log.Info("Shutting down gateway", nil)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "fetch a path from the API and print the JSON",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "query parameter as key=value, repeatable",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("get: path is required")
			}
			query, err := parsePairs(cmd.StringSlice("query"))
			if err != nil {
				return err
			}

			a, _, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			key := "get-" + strings.TrimPrefix(path, "/") + "-" + query.Encode()
			var out json.RawMessage
			if err := a.Client.Cached(ctx, key, a.Config.Cache.TTL, path, query, &out); err != nil {
				return errors.New(client.MessageOf(err))
			}
			return printJSON(os.Stdout, out)
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "store a bearer token for the realm",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token",
				Usage:    "bearer token issued by the API",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, realm, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			token := cmd.String("token")
			if session.Expired(token, time.Now()) {
				return errors.New("login: token is already expired")
			}
			if err := a.Client.Login(realm, token); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Logged in (%s)\n", realm)
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the realm's token and drop cached responses",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, realm, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Client.Logout(realm); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Logged out (%s)\n", realm)
			return nil
		},
	}
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "post files and form fields as multipart/form-data",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "file",
				Usage:    "form-field=local/path, repeatable",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "field",
				Usage: "form field as key=value, repeatable",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("upload: path is required")
			}
			fields, err := parsePairs(cmd.StringSlice("field"))
			if err != nil {
				return err
			}
			fileSpecs, err := parsePairs(cmd.StringSlice("file"))
			if err != nil {
				return err
			}

			var files []client.File
			for field, paths := range fileSpecs {
				for _, p := range paths {
					f, err := os.Open(p)
					if err != nil {
						return err
					}
					defer f.Close()
					files = append(files, client.File{Field: field, Name: filepath.Base(p), Reader: f})
				}
			}

			a, _, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			form := make(map[string]string, len(fields))
			for k := range fields {
				form[k] = fields.Get(k)
			}

			var out json.RawMessage
			if err := a.Client.Upload(ctx, path, form, files, &out); err != nil {
				return errors.New(client.MessageOf(err))
			}
			return printJSON(os.Stdout, out)
		},
	}
}

func parsePairs(pairs []string) (url.Values, error) {
	v := url.Values{}
	for _, p := range pairs {
		k, val, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		v.Add(k, val)
	}
	return v, nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = w.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
