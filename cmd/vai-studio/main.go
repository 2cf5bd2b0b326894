package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vango-go/vai-studio/internal/dotenv"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
	gatewayserver "github.com/vango-go/vai-studio/pkg/gateway/server"
)

type studioDeps struct {
	loadConfig   func(path string) (config.Config, error)
	newGateway   func(config.Config, *slog.Logger) *gatewayserver.Server
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultStudioDeps() studioDeps {
	return studioDeps{
		loadConfig: config.Load,
		newGateway: func(cfg config.Config, logger *slog.Logger) *gatewayserver.Server {
			return gatewayserver.New(cfg, logger)
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runStudio(ctx context.Context, cfg config.Config, logger *slog.Logger, deps studioDeps) error {
	if deps.newGateway == nil {
		return errors.New("missing newGateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}

	gw := deps.newGateway(cfg, logger)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting studio gateway",
		"addr", cfg.Addr,
		"default_provider", cfg.DefaultProvider.Kind,
		"gemini_key_configured", cfg.GeminiAPIKey != "",
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("context done, shutting down")
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	lc := gw.Lifecycle()
	lc.SetDraining(true)
	notified := lc.NotifyAll("server_draining", "the server is shutting down")

	// Shutdown does not wait for hijacked live sockets, so they are tracked
	// separately.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if !lc.Wait(shutdownCtx) {
		canceled := lc.CancelAll()
		logger.Warn("live sessions outlived the grace period", "notified", notified, "canceled", canceled)
		waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer waitCancel()
		lc.Wait(waitCtx)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("studio gateway stopped")
	return nil
}

func runMain(ctx context.Context, args []string, stderr io.Writer, deps studioDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}

	fs := flag.NewFlagSet("vai-studio", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("VAI_STUDIO_CONFIG"), "path to a YAML config file")
	envFiles := fs.String("env-file", ".env.local,.env", "comma-separated dotenv files; earlier files win")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var paths []string
	for _, p := range strings.Split(*envFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if err := dotenv.LoadFiles(paths...); err != nil {
		fmt.Fprintf(stderr, "vai-studio: %v\n", err)
		return 1
	}

	if deps.loadConfig == nil {
		fmt.Fprintln(stderr, "vai-studio: missing loadConfig dependency")
		return 1
	}
	cfg, err := deps.loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "vai-studio: load config: %v\n", err)
		return 1
	}

	if err := runStudio(ctx, cfg, newLogger(cfg, stderr), deps); err != nil {
		fmt.Fprintf(stderr, "vai-studio: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stderr, defaultStudioDeps()))
}
