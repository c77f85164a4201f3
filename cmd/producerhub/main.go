// Package main is the entry point for the producerhub server.
//
// producerhub stores movie metadata in a capacity-limited key/value file and
// trailer videos in a schema-versioned SQLite blob store, and exposes both
// through a JSON HTTP API meant for localhost. Configuration is read from CLI
// flags and <data-dir>/config.json.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/inshira2021/producerhub/internal/blobdb"
	"github.com/inshira2021/producerhub/internal/catalog"
	"github.com/inshira2021/producerhub/internal/config"
	"github.com/inshira2021/producerhub/internal/metastore"
	"github.com/inshira2021/producerhub/internal/playback"
	"github.com/inshira2021/producerhub/internal/producer"
	"github.com/inshira2021/producerhub/internal/quota"
	"github.com/inshira2021/producerhub/internal/server"
	"github.com/inshira2021/producerhub/internal/server/handlers"
	"github.com/inshira2021/producerhub/internal/server/ipgeo"
	"github.com/inshira2021/producerhub/internal/server/ratelimit"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "producerhub: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	printSchema := flag.Bool("print-config-schema", false, "Print the JSON schema of config.json and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	outline := flag.Bool("outline", false, "Print a YAML outline of the catalog and exit")
	geoDB := flag.String("geoip-db", "", "Path to a MaxMind MMDB file to tag access logs with the client country")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}
	if *printSchema {
		b, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}
	slog.SetDefault(newLogger(ll))

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg, err := config.Load(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", config.FileName, err)
	}

	meta, err := metastore.Open(filepath.Join(*dataDir, "metadata.jsonl"), cfg.MetadataCapacityBytes)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	if *outline {
		return catalog.New(meta).Outline().WriteYAML(os.Stdout)
	}
	blobs, err := blobdb.New(blobdb.Config{
		Dir:        *dataDir,
		Name:       cfg.BlobDBName,
		Version:    cfg.BlobDBVersion,
		QuotaBytes: cfg.BlobQuotaBytes,
		OnStateChange: func(from, to blobdb.State) {
			slog.Debug("Blob store", "from", from.String(), "to", to.String())
		},
	})
	if err != nil {
		return err
	}
	// Open once so that schema upgrades and version mismatches surface at
	// startup instead of on the first request.
	conn, err := blobs.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	if err := conn.Close(); err != nil {
		return err
	}
	handles, err := playback.NewRegistry(filepath.Join(*dataDir, "handles"))
	if err != nil {
		return err
	}
	defer func() {
		if err := handles.Close(); err != nil {
			slog.Warn("Failed to remove playback handles", "err", err)
		}
	}()
	acct := quota.New(meta, blobs, cfg.BlobQuotaBytes, *dataDir)
	svc := producer.New(catalog.New(meta), blobs, handles, acct, producer.Options{
		CascadeDelete: cfg.CascadeDelete,
		WarnPercent:   cfg.WarnPercent,
	})
	if e, err := svc.Estimate(ctx); err != nil {
		slog.WarnContext(ctx, "Storage estimate unavailable", "err", err)
	} else if e != nil {
		slog.InfoContext(ctx, "Storage", "used_mb", e.UsedMB, "quota_mb", e.QuotaMB, "percent", e.PercentUsed)
	}

	go func() {
		if err := meta.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.WarnContext(ctx, "Metadata watcher stopped", "err", err)
		}
	}()
	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	var geo *ipgeo.Checker
	if *geoDB != "" {
		if geo, err = ipgeo.Open(*geoDB); err != nil {
			return fmt.Errorf("failed to open geo database: %w", err)
		}
		defer func() { _ = geo.Close() }()
		slog.InfoContext(ctx, "IP geolocation enabled", "db", *geoDB)
	}

	buildVersion, _, _, _ := getBuildInfo()
	limits := ratelimit.NewConfig(cfg.RateLimits.WritePerMin)
	defer limits.Close()
	hcfg := &handlers.Config{
		Version:             buildVersion,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		WarnPercent:         cfg.WarnPercent,
		Geo:                 geo,
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(&handlers.Services{Producer: svc}, hcfg, limits),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "data", *dataDir, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// newLogger returns a colored logger that drops empty attributes.
func newLogger(level slog.Leveler) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Drop localhost IPs (not useful in logs).
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("producerhub %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	if exe, err = filepath.EvalSymlinks(exe); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
