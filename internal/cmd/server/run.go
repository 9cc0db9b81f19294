package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/turnstile/internal/config"
	"github.com/rzbill/turnstile/internal/metrics"
	"github.com/rzbill/turnstile/internal/runtime"
	httpserver "github.com/rzbill/turnstile/internal/server/http"
	gatesvc "github.com/rzbill/turnstile/internal/services/gates"
	"github.com/rzbill/turnstile/internal/sink"
	logpkg "github.com/rzbill/turnstile/pkg/log"
)

// Run starts the turnstile server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg cfgpkg.Config) error {
	// Layer a local signal context over the provided one so callers
	// without signal handling still shut down cleanly.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Redirect stdlib logs (e.g. Pebble) to our logger.
	logpkg.RedirectStdLog(logger)

	registry := metrics.NewRegistry()

	rt, err := runtime.Open(runtime.Options{Config: cfg, Metrics: metrics.StorageHook{}})
	if err != nil {
		return err
	}
	defer rt.Close()

	var external sink.Sink
	if cfg.Sink.NATSURL != "" {
		ns, err := sink.ConnectNATS(cfg.Sink.NATSURL, cfg.Sink.SubjectPrefix)
		if err != nil {
			return err
		}
		external = ns
		logger.Info("nats sink connected",
			logpkg.Str("url", cfg.Sink.NATSURL),
			logpkg.Str("subject_prefix", cfg.Sink.SubjectPrefix),
		)
	}

	gates := gatesvc.New(rt, gatesvc.Options{Logger: logger, Sink: external})
	defer gates.Close()

	hsrv := httpserver.New(rt, gates, httpserver.Options{Logger: logger, Registry: registry})

	logger.Info("starting turnstile server",
		logpkg.Str("http", cfg.HTTP.Addr),
		logpkg.Str("backend", cfg.Store.Backend),
		logpkg.Str("mode", cfg.DefaultMode),
	)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		return hsrv.ListenAndServe(gctx, cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		hsrv.Close()
		return nil
	})
	return g.Wait()
}
