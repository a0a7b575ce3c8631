// Package app wires the interview subsystems into a running service.
//
// New builds the ASR coordinator, transcript cleaner, skill detector,
// session manager, report archive and HTTP surface from the config. Run
// serves until its context is cancelled and Shutdown drains in order.
//
// For testing, inject doubles via functional options (WithArchive,
// WithMetrics). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/skillprobe/internal/api"
	"github.com/MrWong99/skillprobe/internal/archive"
	"github.com/MrWong99/skillprobe/internal/config"
	"github.com/MrWong99/skillprobe/internal/health"
	"github.com/MrWong99/skillprobe/internal/interview"
	"github.com/MrWong99/skillprobe/internal/live"
	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/internal/skill"
	"github.com/MrWong99/skillprobe/internal/transcript"
	"github.com/MrWong99/skillprobe/internal/transcript/llmcorrect"
	"github.com/MrWong99/skillprobe/internal/transcript/phonetic"
)

const readHeaderTimeout = 10 * time.Second

// App owns every subsystem lifetime of the interview service.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	metrics        *observe.Metrics
	metricsHandler http.Handler
	archive        interview.ReportSink
	manager        *interview.Manager
	health         *health.Handler
	server         *api.Server
	httpServer     *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithArchive injects a report sink instead of connecting to PostgreSQL.
func WithArchive(s interview.ReportSink) Option {
	return func(a *App) { a.archive = s }
}

// WithMetrics injects the metric instruments instead of using the globals.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler sets the handler served at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// New wires all subsystems together. providers usually comes from
// [BuildProviders].
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil || providers.STT == nil {
		return nil, fmt.Errorf("app: %w: llm and stt providers are required", interview.ErrConfiguration)
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// 1. Report archive
	if err := a.initArchive(ctx); err != nil {
		return nil, fmt.Errorf("app: init archive: %w", err)
	}

	// 2. Session manager and its pipeline
	if err := a.initManager(); err != nil {
		return nil, fmt.Errorf("app: init manager: %w", err)
	}

	// 3. Health probes
	checks := append([]health.Checker(nil), providers.Checks...)
	if p, ok := a.archive.(health.Pinger); ok {
		checks = append(checks, health.PingCheck("archive", p))
	}
	a.health = health.New(checks...)

	// 4. HTTP surface
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	return a, nil
}

// initArchive picks the report sink: an injected one, PostgreSQL, a JSON
// lines file, or none.
func (a *App) initArchive(ctx context.Context) error {
	if a.archive != nil {
		return nil
	}
	dsn := a.cfg.Archive.PostgresDSN
	if dsn == "" {
		if path := a.cfg.Archive.ReportFile; path != "" {
			a.archive = archive.NewFileSink(path)
			slog.Info("archiving reports to file", "path", path)
		} else {
			a.archive = archive.Discard
		}
		return nil
	}

	store, err := archive.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.archive = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	slog.Info("report archive connected")
	return nil
}

// initManager builds the transcription, cleanup and detection stages and
// the session manager on top of them.
func (a *App) initManager() error {
	sttName := a.providers.STTName
	if sttName == "" {
		sttName = "stt"
	}
	tr := a.cfg.Transcription
	coordinator := transcript.NewCoordinator(a.providers.STT,
		transcript.WithSupportedLanguages(tr.SupportedLanguages...),
		transcript.WithFallbackLanguage(tr.FallbackLanguage),
		transcript.WithTimeout(tr.Timeout),
		transcript.WithProviderName(sttName),
		transcript.WithMetrics(a.metrics),
	)

	var cleanerOpts []transcript.CleanerOption
	if a.cfg.Transcript.Phonetic {
		var popts []phonetic.Option
		if th := a.cfg.Transcript.PhoneticThreshold; th > 0 {
			popts = append(popts, phonetic.WithPhoneticThreshold(th))
		}
		if th := a.cfg.Transcript.FuzzyThreshold; th > 0 {
			popts = append(popts, phonetic.WithFuzzyThreshold(th))
		}
		cleanerOpts = append(cleanerOpts, transcript.WithPhoneticMatcher(phonetic.New(popts...)))
	}
	if a.cfg.Interview.CleanupEnabled {
		cleanerOpts = append(cleanerOpts, transcript.WithLLMCorrector(llmcorrect.New(a.providers.LLM)))
	}
	var cleaner interview.Cleaner
	if len(cleanerOpts) > 0 {
		cleanerOpts = append(cleanerOpts, transcript.WithCleanerMetrics(a.metrics))
		cleaner = transcript.NewCleaner(cleanerOpts...)
	}

	ttl := a.cfg.Interview.SessionTTL
	if ttl < 0 {
		ttl = 0
	}
	var vocabulary []string
	if a.cfg.Transcript.Phonetic {
		vocabulary = a.cfg.Transcript.PhoneticVocabulary
	}

	mgr, err := interview.NewManager(interview.ManagerConfig{
		Transcriber: coordinator,
		Detector:    skill.NewDetector(a.providers.LLM),
		Cleaner:     cleaner,
		Vocabulary:  vocabulary,
		Archive:     a.archive,
		Metrics:     a.metrics,
		SessionTTL:  ttl,
	})
	if err != nil {
		return err
	}
	a.manager = mgr
	return nil
}

// initServer builds the API handler and the http.Server around it.
func (a *App) initServer() error {
	srv, err := api.New(api.Config{
		Manager:           a.manager,
		Analyzer:          skill.NewAnalyzer(a.providers.LLM),
		Health:            a.health,
		Metrics:           a.metrics,
		MetricsHandler:    a.metricsHandler,
		GenerateQuestions: a.cfg.Interview.GenerateQuestions,
		DefaultSkills:     a.cfg.Interview.DefaultSkills,
		ExtractLimit:      a.cfg.Interview.MaxSkills,
		MaxUploadBytes:    a.cfg.Server.MaxUploadBytes,
		OriginPatterns:    a.cfg.Server.AllowedOrigins,
		Live: live.Config{
			QueueSize:      a.cfg.Live.QueueSize,
			PollInterval:   a.cfg.Live.PollInterval,
			Deadline:       a.cfg.Interview.Duration,
			SkipFinalFlush: a.cfg.Live.SkipFinalFlush,
			Segmenter:      a.cfg.Segmenter.Audio(),
			Metrics:        a.metrics,
		},
	})
	if err != nil {
		return err
	}
	a.server = srv
	a.httpServer = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return nil
}

// Handler returns the routed HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Manager returns the session manager.
func (a *App) Manager() *interview.Manager {
	return a.manager
}

// Run serves HTTP and sweeps idle sessions until ctx is cancelled, then
// shuts down. It returns nil on a clean stop.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.httpServer.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.manager.Run(gctx)
	})
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpServer.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpServer.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	slog.Info("app running", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	return g.Wait()
}

// Shutdown marks the service as draining, stops accepting requests, waits
// for in-flight ones and then runs the closers. If ctx expires first the
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers), "active_sessions", a.manager.Len())

		a.health.SetDraining()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
