// Command example runs a small CalDAV server over the memory or sqlite
// backend.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/davkit/davkit/server"
	"github.com/davkit/davkit/server/storage"
	"github.com/davkit/davkit/server/storage/memory"
	"github.com/davkit/davkit/server/storage/sqlite"
	"github.com/davkit/davkit/server/vfs"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	listen := flag.String("listen", ":8080", "listen address")
	backendName := flag.String("backend", "memory", "storage backend: memory or sqlite")
	dsn := flag.String("db", "file:davkit.db", "sqlite dsn (backend=sqlite)")
	prefix := flag.String("prefix", "/dav/", "URL prefix")
	principal := flag.String("principal", "/u/root/", "principal collection path")
	password := flag.String("password", "secret", "principal password")
	logFile := flag.String("log", "", "log file (rotated); empty for stderr")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *logFile != "" {
		logger = slog.New(slog.NewTextHandler(&lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}, nil))
	}

	ctx := context.Background()

	var backend storage.Backend
	switch *backendName {
	case "memory":
		backend = memory.New()
	case "sqlite":
		store, err := sqlite.Open(ctx, *dsn)
		if err != nil {
			logger.Error("failed to open sqlite backend", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		backend = store
	default:
		logger.Error("unknown backend", "backend", *backendName)
		os.Exit(1)
	}

	fs := vfs.New(backend, logger)

	if err := bootstrapPrincipal(ctx, fs, *principal, *password); err != nil {
		logger.Error("failed to bootstrap principal", "error", err)
		os.Exit(1)
	}
	if err := fs.Valid(ctx, vfs.Config{PrincipalPath: *principal}); err != nil {
		logger.Error("store validation failed", "error", err)
		os.Exit(1)
	}

	handler := server.NewHandler(fs, server.Options{
		Prefix:    *prefix,
		Logger:    logger,
		Realm:     "davkit",
		Principal: *principal,
	})

	mux := http.NewServeMux()
	mux.Handle(*prefix, handler)

	logger.Info("starting server", "listen", *listen, "prefix", *prefix)
	if err := http.ListenAndServe(*listen, mux); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// bootstrapPrincipal materializes the principal collection and stores
// its password/salt record if not present yet.
func bootstrapPrincipal(ctx context.Context, fs *vfs.FS, path, password string) error {
	p := vfs.ParsePath(path).AsDir()
	if err := fs.MkdirAll(ctx, p); err != nil {
		return err
	}
	rec, err := fs.StoredPropertyMap(ctx, p)
	if err != nil {
		return err
	}
	if _, ok := rec.GetDAV(vfs.PropPassword); ok {
		return nil
	}
	salt := time.Now().UTC().Format(time.RFC3339Nano)
	rec.SetText(vfs.PropSalt, salt)
	rec.SetText(vfs.PropPassword, server.HashPassword(salt, password))
	return fs.WritePropertyMap(ctx, p, rec)
}
