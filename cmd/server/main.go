// Command server starts the VidTube API HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"vidtube/internal/api"
	"vidtube/internal/auth"
	"vidtube/internal/media"
	"vidtube/internal/observability/logging"
	"vidtube/internal/server"
	"vidtube/internal/serverutil"
	"vidtube/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresConnectTimeout := flag.Duration("postgres-connect-timeout", 0, "timeout when establishing Postgres connections")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	accessSecret := flag.String("access-token-secret", "", "HMAC secret for access tokens")
	refreshSecret := flag.String("refresh-token-secret", "", "HMAC secret for refresh tokens")
	accessTTL := flag.Duration("access-token-ttl", 0, "access token lifetime")
	refreshTTL := flag.Duration("refresh-token-ttl", 0, "refresh token lifetime")
	tokenPurgeInterval := flag.Duration("token-purge-interval", 0, "interval between expired refresh token sweeps")
	s3Bucket := flag.String("s3-bucket", "", "object storage bucket for media uploads")
	s3Region := flag.String("s3-region", "", "object storage region")
	s3Endpoint := flag.String("s3-endpoint", "", "object storage endpoint (e.g. http://127.0.0.1:9000)")
	s3PublicBaseURL := flag.String("s3-public-base-url", "", "public base URL for uploaded assets")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	envFile := flag.String("env-file", "", "path to an optional .env file")
	flag.Parse()

	loadEnvFile(*envFile)

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("VIDTUBE_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("VIDTUBE_LOG_FORMAT")),
	})

	tokens, err := auth.NewManager(auth.Config{
		AccessSecret:    []byte(firstNonEmpty(*accessSecret, os.Getenv("VIDTUBE_ACCESS_TOKEN_SECRET"))),
		RefreshSecret:   []byte(firstNonEmpty(*refreshSecret, os.Getenv("VIDTUBE_REFRESH_TOKEN_SECRET"))),
		AccessTokenTTL:  resolveDuration(*accessTTL, "VIDTUBE_ACCESS_TOKEN_TTL", 0),
		RefreshTokenTTL: resolveDuration(*refreshTTL, "VIDTUBE_REFRESH_TOKEN_TTL", 0),
		Issuer:          "vidtube",
	})
	if err != nil {
		logger.Error("failed to configure token manager", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, storeSettings{
		Driver:          firstNonEmpty(*storageDriver, os.Getenv("VIDTUBE_STORAGE_DRIVER")),
		DataPath:        *dataPath,
		PostgresDSN:     resolvePostgresDSN(*postgresDSN),
		MaxConns:        resolveInt(*postgresMaxConns, "VIDTUBE_POSTGRES_MAX_CONNS"),
		MinConns:        resolveInt(*postgresMinConns, "VIDTUBE_POSTGRES_MIN_CONNS"),
		MaxConnLifetime: resolveDuration(*postgresMaxConnLifetime, "VIDTUBE_POSTGRES_MAX_CONN_LIFETIME", 0),
		MaxConnIdleTime: resolveDuration(*postgresMaxConnIdle, "VIDTUBE_POSTGRES_MAX_CONN_IDLE", 0),
		HealthInterval:  resolveDuration(*postgresHealthInterval, "VIDTUBE_POSTGRES_HEALTH_INTERVAL", 0),
		ConnectTimeout:  resolveDuration(*postgresConnectTimeout, "VIDTUBE_POSTGRES_CONNECT_TIMEOUT", 0),
		AppName:         firstNonEmpty(*postgresAppName, os.Getenv("VIDTUBE_POSTGRES_APP_NAME")),
	})
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	var uploader media.Uploader = media.Disabled{}
	bucket := firstNonEmpty(*s3Bucket, os.Getenv("VIDTUBE_S3_BUCKET"))
	if bucket != "" {
		s3Uploader, err := media.NewS3Uploader(ctx, media.S3Config{
			Bucket:        bucket,
			Region:        firstNonEmpty(*s3Region, os.Getenv("VIDTUBE_S3_REGION")),
			Endpoint:      firstNonEmpty(*s3Endpoint, os.Getenv("VIDTUBE_S3_ENDPOINT")),
			PublicBaseURL: firstNonEmpty(*s3PublicBaseURL, os.Getenv("VIDTUBE_S3_PUBLIC_BASE_URL")),
		}, nil)
		if err != nil {
			logger.Error("failed to configure media uploads", "error", err)
			os.Exit(1)
		}
		uploader = s3Uploader
	} else {
		logger.Warn("media uploads disabled: no object storage bucket configured")
	}

	handler := api.NewHandler(store, tokens, uploader, logging.WithComponent(logger, "api"))

	listenAddr := firstNonEmpty(*addr, os.Getenv("VIDTUBE_ADDR"))
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("VIDTUBE_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("VIDTUBE_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     resolveFloat(*globalRPS, "VIDTUBE_RATE_GLOBAL_RPS"),
			GlobalBurst:   resolveInt(*globalBurst, "VIDTUBE_RATE_GLOBAL_BURST"),
			LoginLimit:    resolveInt(*loginLimit, "VIDTUBE_RATE_LOGIN_LIMIT"),
			LoginWindow:   resolveDuration(*loginWindow, "VIDTUBE_RATE_LOGIN_WINDOW", time.Minute),
			RedisAddr:     firstNonEmpty(*redisAddr, os.Getenv("VIDTUBE_RATE_REDIS_ADDR")),
			RedisPassword: firstNonEmpty(*redisPassword, os.Getenv("VIDTUBE_RATE_REDIS_PASSWORD")),
			RedisTimeout:  resolveDuration(*redisTimeout, "VIDTUBE_RATE_REDIS_TIMEOUT", 2*time.Second),
		},
		Logger: logging.WithComponent(logger, "http"),
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	purgeInterval := resolveDuration(*tokenPurgeInterval, "VIDTUBE_TOKEN_PURGE_INTERVAL", 15*time.Minute)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("VidTube API listening", "addr", listenAddr)
		return serverutil.Run(groupCtx, serverutil.Config{
			Server: srv.HTTPServer(),
			TLS: serverutil.TLSConfig{
				CertFile: firstNonEmpty(*tlsCert, os.Getenv("VIDTUBE_TLS_CERT")),
				KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("VIDTUBE_TLS_KEY")),
			},
		})
	})
	group.Go(func() error {
		runTokenPurger(groupCtx, logging.WithComponent(logger, "token-purger"), store, purgeInterval)
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "error", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}

	logger.Info("server stopped")
}

type storeSettings struct {
	Driver          string
	DataPath        string
	PostgresDSN     string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	HealthInterval  time.Duration
	ConnectTimeout  time.Duration
	AppName         string
}

func openStore(ctx context.Context, settings storeSettings) (storage.Repository, error) {
	driver, err := resolveStorageDriver(settings.Driver, settings.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if driver == "json" {
		return storage.NewStorage(resolveDataPath(settings.DataPath, os.Getenv("VIDTUBE_DATA")))
	}
	if settings.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres storage selected without DSN")
	}
	return storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:                 settings.PostgresDSN,
		MaxConnections:      int32(settings.MaxConns),
		MinConnections:      int32(settings.MinConns),
		MaxConnLifetime:     settings.MaxConnLifetime,
		MaxConnIdleTime:     settings.MaxConnIdleTime,
		HealthCheckInterval: settings.HealthInterval,
		ConnectTimeout:      settings.ConnectTimeout,
		ApplicationName:     settings.AppName,
	})
}

func resolveStorageDriver(value, postgresDSN string) (string, error) {
	driver := strings.ToLower(strings.TrimSpace(value))
	switch driver {
	case "json", "postgres":
		return driver, nil
	case "":
		if strings.TrimSpace(postgresDSN) != "" {
			return "postgres", nil
		}
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func resolveDataPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(envValue); env != "" {
		return env
	}
	return "data/store.json"
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("VIDTUBE_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

// loadEnvFile loads a .env file when one exists. A missing default file is
// not an error.
func loadEnvFile(path string) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "load env file %s: %v\n", path, err)
			os.Exit(1)
		}
		return
	}
	_ = godotenv.Load()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	return fallback
}
