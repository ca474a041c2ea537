package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchsync/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

// bind registers the flag and lets viper resolve it from flag, env or default.
func (v configVar[T]) bind(flags *pflag.FlagSet) {
	switch d := any(v.defaultValue).(type) {
	case string:
		flags.String(v.flagKey, d, v.usage)
	case int:
		flags.Int(v.flagKey, d, v.usage)
	case float64:
		flags.Float64(v.flagKey, d, v.usage)
	case time.Duration:
		flags.Duration(v.flagKey, d, v.usage)
	default:
		panic(fmt.Sprintf("unsupported config type %T", d))
	}

	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	logBackend = configVar[string]{
		envKey:       "SERVER_LOG_BACKEND",
		flagKey:      "log-backend",
		defaultValue: "std",
		usage:        "Logging backend: std or zap",
	}
	syncTolerance = configVar[float64]{
		envKey:       "SYNC_TOLERANCE",
		flagKey:      "sync-tolerance",
		defaultValue: 1.5,
		usage:        "Seconds two positions may differ and still count as in sync",
	}
	syncTimeout = configVar[time.Duration]{
		envKey:       "SYNC_TIMEOUT",
		flagKey:      "sync-timeout",
		defaultValue: 10 * time.Second,
		usage:        "Time clients get to report readiness before they are disconnected",
	}
	pauseIgnore = configVar[time.Duration]{
		envKey:       "SYNC_PAUSE_IGNORE",
		flagKey:      "pause-ignore",
		defaultValue: 2 * time.Second,
		usage:        "Window after a server pause in which client pauses are ignored",
	}
	skipIgnore = configVar[time.Duration]{
		envKey:       "SYNC_SKIP_IGNORE",
		flagKey:      "skip-ignore",
		defaultValue: 2 * time.Second,
		usage:        "Window after an advance in which skips are ignored",
	}
	roomCloseTimeout = configVar[time.Duration]{
		envKey:       "ROOM_CLOSE_TIMEOUT",
		flagKey:      "room-close-timeout",
		defaultValue: 15 * time.Second,
		usage:        "Grace period before an empty room is closed",
	}
	statsSkipRoom = configVar[string]{
		envKey:       "ROOM_STATS_SKIP_ID",
		flagKey:      "stats-skip-room",
		defaultValue: "test",
		usage:        "Room id whose statistics are never recorded",
	}
	keepalive = configVar[time.Duration]{
		envKey:       "WS_KEEPALIVE",
		flagKey:      "keepalive",
		defaultValue: 20 * time.Second,
		usage:        "Websocket ping interval",
	}
	idleTimeout = configVar[time.Duration]{
		envKey:       "WS_IDLE_TIMEOUT",
		flagKey:      "idle-timeout",
		defaultValue: 30 * time.Second,
		usage:        "Websocket idle timeout",
	}
	resolveTimeout = configVar[time.Duration]{
		envKey:       "RESOLVE_TIMEOUT",
		flagKey:      "resolve-timeout",
		defaultValue: 15 * time.Second,
		usage:        "Video lookup timeout",
	}
	resolveWorkers = configVar[int]{
		envKey:       "RESOLVE_WORKERS",
		flagKey:      "resolve-workers",
		defaultValue: 8,
		usage:        "Concurrent video lookups",
	}
	resolveBacklog = configVar[int]{
		envKey:       "RESOLVE_BACKLOG",
		flagKey:      "resolve-backlog",
		defaultValue: 64,
		usage:        "Pending video lookups before new ones are rejected",
	}
	faviconTimeout = configVar[time.Duration]{
		envKey:       "FAVICON_TIMEOUT",
		flagKey:      "favicon-timeout",
		defaultValue: 5 * time.Second,
		usage:        "Favicon lookup timeout",
	}
	ytDlpPath = configVar[string]{
		envKey:       "YTDLP_PATH",
		flagKey:      "ytdlp-path",
		defaultValue: "yt-dlp",
		usage:        "Path of the yt-dlp executable",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "",
		usage:        "Redis host, statistics are disabled when empty",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
	statsTTL = configVar[time.Duration]{
		envKey:       "ROOM_STATS_TTL",
		flagKey:      "stats-ttl",
		defaultValue: 14 * 24 * time.Hour,
		usage:        "Retention of per-room statistics",
	}
)

var rootCmd = &cobra.Command{
	Use:          "watchsync",
	Short:        "Watch-together room synchronization server",
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	flags := rootCmd.Flags()
	host.bind(flags)
	port.bind(flags)
	logLevel.bind(flags)
	logBackend.bind(flags)
	syncTolerance.bind(flags)
	syncTimeout.bind(flags)
	pauseIgnore.bind(flags)
	skipIgnore.bind(flags)
	roomCloseTimeout.bind(flags)
	statsSkipRoom.bind(flags)
	keepalive.bind(flags)
	idleTimeout.bind(flags)
	resolveTimeout.bind(flags)
	resolveWorkers.bind(flags)
	resolveBacklog.bind(flags)
	faviconTimeout.bind(flags)
	ytDlpPath.bind(flags)
	redisHost.bind(flags)
	redisPort.bind(flags)
	redisPassword.bind(flags)
	statsTTL.bind(flags)
}

func loadAppConfig(cmd *cobra.Command) (*app.AppConfig, error) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	return &app.AppConfig{
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		LogBackend:       viper.GetString(logBackend.flagKey),
		SyncTolerance:    viper.GetFloat64(syncTolerance.flagKey),
		SyncTimeout:      viper.GetDuration(syncTimeout.flagKey),
		PauseIgnore:      viper.GetDuration(pauseIgnore.flagKey),
		SkipIgnore:       viper.GetDuration(skipIgnore.flagKey),
		RoomCloseTimeout: viper.GetDuration(roomCloseTimeout.flagKey),
		StatsSkipRoomId:  viper.GetString(statsSkipRoom.flagKey),
		Keepalive:        viper.GetDuration(keepalive.flagKey),
		IdleTimeout:      viper.GetDuration(idleTimeout.flagKey),
		ResolveTimeout:   viper.GetDuration(resolveTimeout.flagKey),
		ResolveWorkers:   viper.GetInt(resolveWorkers.flagKey),
		ResolveBacklog:   viper.GetInt(resolveBacklog.flagKey),
		FaviconTimeout:   viper.GetDuration(faviconTimeout.flagKey),
		YtDlpPath:        viper.GetString(ytDlpPath.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
		StatsTTL:         viper.GetDuration(statsTTL.flagKey),
	}, nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	appConfig, err := loadAppConfig(cmd)
	if err != nil {
		return err
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	return app.Run(cmd.Context(), appConfig)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
