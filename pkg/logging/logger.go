// Package logging sets up the server and request loggers. Credentials are
// masked in every sink.
package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"occtitles/pkg/config"
)

// RequestLogger receives one line per HTTP request. It discards until Init runs.
var RequestLogger = slog.New(slog.DiscardHandler)

// Init points the default logger at the server log (and stdout) and
// RequestLogger at the request log. An empty request path sends requests to
// the server log. The returned func closes the files.
func Init(cfg *config.LogConfig) (func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	serverFile, err := openFresh(cfg.Server.Path)
	if err != nil {
		return nil, fmt.Errorf("server log: %w", err)
	}
	files = append(files, serverFile)

	level := ParseLevel(cfg.Server.Level)
	server := slog.New(tee{
		slog.NewTextHandler(serverFile, handlerOptions(level, level == slog.LevelDebug)),
		slog.NewTextHandler(os.Stdout, handlerOptions(max(level, slog.LevelInfo), false)),
	})

	requests := server.With("log", "requests")
	if cfg.Requests.Path != "" {
		reqFile, err := openFresh(cfg.Requests.Path)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("request log: %w", err)
		}
		files = append(files, reqFile)
		requests = slog.New(slog.NewTextHandler(reqFile, handlerOptions(ParseLevel(cfg.Requests.Level), false)))
	}

	slog.SetDefault(server)
	RequestLogger = requests
	return closeAll, nil
}

// ParseLevel maps a config level name onto slog. Unknown names mean INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func handlerOptions(level slog.Level, source bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, AddSource: source, ReplaceAttr: redact}
}

// openFresh moves an existing log at path to path.old and opens a new one.
func openFresh(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// secretKeys are attribute names whose values never reach a log sink.
var secretKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"key":           true,
	"authorization": true,
	"token":         true,
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, MaskSecret(a.Value.String()))
	}
	return a
}

// MaskSecret keeps the last four characters of a credential.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// tee writes each record to every handler that accepts its level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t tee) each(fn func(slog.Handler) slog.Handler) tee {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
