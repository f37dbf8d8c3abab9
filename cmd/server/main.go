package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kiliankoe/cavetalk/internal/api"
	"github.com/kiliankoe/cavetalk/internal/config"
	"github.com/kiliankoe/cavetalk/internal/content"
	"github.com/kiliankoe/cavetalk/internal/game"
	"github.com/kiliankoe/cavetalk/internal/room"
	"github.com/kiliankoe/cavetalk/internal/store"
	"github.com/kiliankoe/cavetalk/internal/timer"
	"github.com/kiliankoe/cavetalk/internal/ws"
	staticserver "github.com/kiliankoe/cavetalk/static"
)

const (
	version         = "v0.3.0-dev"
	reapInterval    = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	v := config.New()
	cmd := &cobra.Command{
		Use:           "cavetalk",
		Short:         "Real-time team word-guessing party game server.",
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cobra.CheckErr(config.BindFlags(v, cmd.Flags()))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("cavetalk {{.Version}}\n")
	return cmd
}

func setupLogging(level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)
}

// requestLogger logs HTTP requests, skipping the socket.io polling noise.
func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/socket.io") {
		return
	}
	log.Info().Str("method", c.Request.Method).Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
}

// openStore picks the room repository. Anything but memory persists through a
// write-behind queue and hands back the rooms saved by the last run.
func openStore(ctx context.Context, cfg config.Config) (room.Repository, *store.Persisting, store.Backend, error) {
	mem := room.NewMemoryRepository()
	var (
		backend store.Backend
		err     error
	)
	switch cfg.Store {
	case config.StoreMongo:
		backend, err = store.NewMongoBackend(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StoreRedis:
		backend, err = store.NewRedisBackend(ctx, cfg.RedisURL)
	default:
		return mem, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	p := store.NewPersisting(mem, backend, 0)
	return p, p, backend, nil
}

func run(ctx context.Context, cfg config.Config) error {
	setupLogging(cfg.LogLevel)

	packs, err := content.NewRepository()
	if err != nil {
		return fmt.Errorf("load base pack: %w", err)
	}
	if cfg.PacksDir != "" {
		n, err := packs.LoadDir(cfg.PacksDir)
		if err != nil {
			return fmt.Errorf("load packs: %w", err)
		}
		log.Info().Int("packs", n).Str("dir", cfg.PacksDir).Msg("loaded content packs")
	}

	connectCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	repo, persisting, backend, err := openStore(connectCtx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if persisting != nil {
		// the writer must be draining before restored rooms are saved back
		g.Go(func() error {
			persisting.Run()
			return nil
		})
	}

	timers := timer.New()
	rooms := room.NewManager(repo, packs,
		room.WithReleaser(timers),
		room.WithIdleTimeout(cfg.SessionTimeout),
		room.WithDefaults(game.Config{
			TurnDurationSeconds: cfg.TurnDurationSeconds,
			RoundsPerTeam:       cfg.RoundsPerTeam,
		}),
	)

	if persisting != nil {
		loadCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		snaps, err := persisting.Load(loadCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("could not restore rooms, starting empty")
		} else {
			log.Info().Int("rooms", rooms.Restore(snaps)).Str("store", cfg.Store).Msg("restored rooms")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger)

	api.New(rooms, packs, cfg.PublicURL).Register(r)
	io := ws.New(rooms, timers, cfg).Mount(r)

	// Serve frontend (if embedded build is present) for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		rooms.RunReaper(ctx, reapInterval)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if cerr := io.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("socket.io close")
		}
		timers.StopAll()
		if persisting != nil {
			if cerr := persisting.Close(shutdownCtx); cerr != nil {
				log.Warn().Err(cerr).Msg("pending writes lost")
			}
			if cerr := backend.Close(shutdownCtx); cerr != nil {
				log.Warn().Err(cerr).Msg("store close")
			}
		}
		return err
	})
	return g.Wait()
}
