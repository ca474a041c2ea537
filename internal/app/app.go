package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sharetube/watchsync/internal/controller"
	"github.com/sharetube/watchsync/internal/repository/connection/inmemory"
	roomRepo "github.com/sharetube/watchsync/internal/repository/room"
	roomRedis "github.com/sharetube/watchsync/internal/repository/room/redis"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/favicon"
	"github.com/sharetube/watchsync/pkg/logger"
	"github.com/sharetube/watchsync/pkg/redisclient"
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/workerpool"
	"github.com/sharetube/watchsync/pkg/ytvideodata"
)

const shutdownTimeout = 30 * time.Second

type AppConfig struct {
	Host             string        `json:"host"`
	Port             int           `json:"port" validate:"gte=0,lte=65535"`
	LogLevel         string        `json:"log_level" validate:"required"`
	LogBackend       string        `json:"log_backend" validate:"oneof=std zap"`
	SyncTolerance    float64       `json:"sync_tolerance" validate:"gt=0"`
	SyncTimeout      time.Duration `json:"sync_timeout" validate:"gt=0"`
	PauseIgnore      time.Duration `json:"pause_ignore" validate:"gte=0"`
	SkipIgnore       time.Duration `json:"skip_ignore" validate:"gte=0"`
	RoomCloseTimeout time.Duration `json:"room_close_timeout" validate:"gte=0"`
	StatsSkipRoomId  string        `json:"stats_skip_room"`
	Keepalive        time.Duration `json:"keepalive" validate:"gt=0"`
	IdleTimeout      time.Duration `json:"idle_timeout" validate:"gtfield=Keepalive"`
	ResolveTimeout   time.Duration `json:"resolve_timeout" validate:"gt=0"`
	ResolveWorkers   int           `json:"resolve_workers" validate:"gt=0"`
	ResolveBacklog   int           `json:"resolve_backlog" validate:"gt=0"`
	FaviconTimeout   time.Duration `json:"favicon_timeout" validate:"gt=0"`
	YtDlpPath        string        `json:"ytdlp_path" validate:"required"`
	RedisHost        string        `json:"redis_host"`
	RedisPort        int           `json:"redis_port" validate:"gte=0,lte=65535"`
	RedisPassword    string        `json:"-"`
	StatsTTL         time.Duration `json:"stats_ttl" validate:"gt=0"`
}

var validate = validator.NewValidator()

func (cfg *AppConfig) Validate() error {
	if errs, ok := validate.Validate(cfg); !ok {
		return fmt.Errorf("invalid config: %v", errs)
	}

	return nil
}

type statsRepo interface {
	SaveStats(context.Context, *roomRepo.Stats) error
	GetTotals(context.Context) (roomRepo.Totals, error)
}

// Run serves until ctx is cancelled or the process receives a termination signal.
func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.LogLevel,
		Backend: logger.Backend(cfg.LogBackend),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(log)

	// statistics are optional
	var stats statsRepo
	if cfg.RedisHost != "" {
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()

		stats = roomRedis.NewRepo(rc, cfg.StatsTTL)
	} else {
		log.WarnContext(ctx, "redis host is not set, room statistics are disabled")
	}

	pool := workerpool.New(cfg.ResolveWorkers, cfg.ResolveBacklog)
	defer pool.Close()

	roomService := room.NewService(
		inmemory.NewRepo[room.Conn](),
		stats,
		ytvideodata.NewResolver(&ytvideodata.Config{
			HTTPClient: &http.Client{Timeout: cfg.ResolveTimeout},
			YtDlpPath:  cfg.YtDlpPath,
			Timeout:    cfg.ResolveTimeout,
		}),
		favicon.NewResolver(&http.Client{}, cfg.FaviconTimeout, log),
		pool,
		log,
		&room.Config{
			SyncTolerance:    cfg.SyncTolerance,
			SyncTimeout:      cfg.SyncTimeout,
			PauseIgnore:      cfg.PauseIgnore,
			SkipIgnore:       cfg.SkipIgnore,
			RoomCloseTimeout: cfg.RoomCloseTimeout,
			StatsSkipRoomId:  cfg.StatsSkipRoomId,
		},
	)
	controller := controller.NewController(roomService, stats, log, &controller.Config{
		Keepalive:   cfg.Keepalive,
		IdleTimeout: cfg.IdleTimeout,
	})
	server := &http.Server{Addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(context.WithoutCancel(ctx))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
		case <-ctx.Done():
		case <-serverCtx.Done():
			return
		}

		shutdownCtx, cancel := context.WithTimeout(serverCtx, shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(serverCtx, "graceful shutdown failed, forcing close", "error", err)
			server.Close()
		}
		serverStopCtx()
	}()

	log.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		serverStopCtx()
		return err
	}

	<-serverCtx.Done()
	log.InfoContext(serverCtx, "server stopped")

	return nil
}
