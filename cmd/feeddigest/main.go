// Command feeddigest is the entrypoint for the feed digest service.
//
// Subcommands:
//
//	run    execute the digest pipeline for one owner, once or on an interval
//	login  open a visible browser window to establish a feed session
//	serve  start the HTTP API together with the background scheduler
//
// Without a subcommand, run is assumed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/feedapi"
	httpapi "github.com/tbourn/go-feed-digest/internal/http"
	"github.com/tbourn/go-feed-digest/internal/observability"
	"github.com/tbourn/go-feed-digest/internal/repo"
	"github.com/tbourn/go-feed-digest/internal/scrape"
	"github.com/tbourn/go-feed-digest/internal/services"
	"github.com/tbourn/go-feed-digest/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// defaultOwner matches the HTTP layer's header fallback so CLI runs and
// header-less API calls operate on the same tenant.
const defaultOwner = "demo-user"

// @title       Feed Digest API
// @version     1.0
// @description HTTP API for the feed digest service. Stores feed posts per user and generates LLM-written newsletter briefings on demand or on a schedule.
// @BasePath    /api/v1
func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = cmdRun(args)
	case "login":
		err = cmdLogin(args)
	case "serve":
		err = cmdServe(args)
	case "help":
		printHelp()
	default:
		printHelp()
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage: feeddigest [command] [options]")
	fmt.Println("Commands:")
	fmt.Println("  run     Execute the digest pipeline once, or repeatedly with --every (default)")
	fmt.Println("  login   Open a visible browser to sign in and save the feed session")
	fmt.Println("  serve   Start the HTTP API and the background digest scheduler")
	fmt.Println("Run 'feeddigest <command> -h' for command options.")
}

// newLogger applies the configured global level and builds the root logger.
func newLogger(cfg config.Config) zerolog.Logger {
	sysutil.SetLogLevel(cfg.LogLevel)
	return sysutil.NewLogger(os.Stderr, cfg.LogPretty)
}

// resolveOwner picks the tenant a CLI command operates on: the --owner flag,
// then $DIGEST_OWNER, then the shared demo default.
func resolveOwner(flagVal string) string {
	return sysutil.FirstNonEmpty(flagVal, os.Getenv("DIGEST_OWNER"), defaultOwner)
}

// openDB opens the SQLite database, attaches the GORM tracing plugin when
// OTel is enabled, and applies migrations.
func openDB(cfg config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("gorm tracing plugin: %w", err)
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug().Str("path", cfg.DBPath).Msg("database ready")
	return db, nil
}

// newPipeline wires the full digest pipeline from configuration.
func newPipeline(cfg config.Config, db *gorm.DB, prompts *services.Prompts, log zerolog.Logger) *services.PipelineService {
	scraper := scrape.NewScraper(&scrape.SessionStore{Root: cfg.Scraper.ProfilesDir}, cfg.Scraper, log)
	return services.NewPipelineService(db,
		scraper,
		feedapi.NewClient(cfg.FeedAPI, nil),
		services.NewSummaryService(nil, cfg.LLM, prompts),
		services.NewDeliveryService(nil, cfg.Delivery),
		log.With().Str("component", "pipeline").Logger(),
	)
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id to run for (default $DIGEST_OWNER, then \"demo-user\")")
	every := fs.String("every", "", "repeat interval, e.g. 30m, 6h, 1d (empty runs once)")
	_ = fs.Parse(args)

	cfg := config.MustLoad()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	prompts, err := services.LoadPrompts(cfg.LLM.PromptsPath)
	if err != nil {
		return err
	}
	pipeline := newPipeline(cfg, db, prompts, log)
	ownerID := resolveOwner(*owner)

	if *every == "" {
		out, err := pipeline.Run(ctx, ownerID)
		if err != nil {
			return err
		}
		logOutcome(log, out)
		return nil
	}

	interval, err := services.ParseInterval(*every)
	if err != nil {
		return err
	}
	log.Info().Str("owner_id", ownerID).Dur("interval", interval).Msg("running on interval")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		out, err := pipeline.Run(ctx, ownerID)
		if err != nil {
			log.Error().Err(err).Msg("pipeline run failed")
		} else {
			logOutcome(log, out)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func logOutcome(log zerolog.Logger, out *services.PipelineOutcome) {
	ev := log.Info().
		Str("run_id", out.RunID).
		Str("status", out.Status).
		Int("records_found", out.RecordsFound).
		Int("records_new", out.RecordsNew)
	if out.Briefing != nil {
		ev = ev.Str("briefing_id", out.Briefing.ID)
	}
	ev.Msg("pipeline finished")
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id whose browser profile to sign in (default $DIGEST_OWNER, then \"demo-user\")")
	_ = fs.Parse(args)

	cfg := config.MustLoad()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ownerID := resolveOwner(*owner)
	scraper := scrape.NewScraper(&scrape.SessionStore{Root: cfg.Scraper.ProfilesDir}, cfg.Scraper, log)
	if err := scraper.Login(ctx, ownerID); err != nil {
		return err
	}
	log.Info().Str("owner_id", ownerID).Msg("session saved")
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg := config.MustLoad()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(flushCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	prompts, err := services.LoadPrompts(cfg.LLM.PromptsPath)
	if err != nil {
		return err
	}
	pipeline := newPipeline(cfg, db, prompts, log)

	hub := services.NewRunEventHub()
	pipeline.Events = hub

	sched := services.NewScheduler(db, cfg.Scheduler, pipeline,
		log.With().Str("component", "scheduler").Logger())
	if cfg.Scheduler.Enabled {
		go sched.Run(ctx)
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Deps{
		Prompts: prompts,
		Trigger: sched,
		Events:  hub,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("base_path", cfg.APIBasePath).
			Bool("scheduler", cfg.Scheduler.Enabled).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
