package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/vidcatalog/internal/config"
	"github.com/totegamma/vidcatalog/internal/infra/database"
	"github.com/totegamma/vidcatalog/internal/infra/repository"
	"github.com/totegamma/vidcatalog/internal/infra/storage"
	"github.com/totegamma/vidcatalog/internal/infra/tracing"
	"github.com/totegamma/vidcatalog/internal/logger"
	"github.com/totegamma/vidcatalog/internal/present/rest"
	authmw "github.com/totegamma/vidcatalog/internal/present/rest/middleware"
	"github.com/totegamma/vidcatalog/internal/service"
	"github.com/totegamma/vidcatalog/internal/usecase"
)

const serviceName = "vidcatalog"

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	configPath := os.Getenv(config.EnvConfigPath)
	if configPath == "" {
		configPath = "config.yaml"
	}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Video catalog service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "path to the yaml config")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "token [owner-id]",
		Short: "Print a bearer token for an owner (development only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printToken(cmd, configPath, args[0])
		},
	})

	return root
}

func printToken(cmd *cobra.Command, configPath, rawOwner string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	owner, err := uuid.Parse(rawOwner)
	if err != nil {
		return errors.Wrap(err, "owner id")
	}
	token, err := service.NewAuthService(conf.Auth.JWTSecret, conf.Auth.Issuer, conf.Auth.TokenTTL).IssueToken(owner)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func serve(configPath string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	log, err := logger.New(conf.Server.LogMode)
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := tracing.Setup(ctx, serviceName, version, conf.Server.TraceEndpoint)
		if err != nil {
			log.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Warn("tracer shutdown failed", "error", err)
				}
			}()
		}
	}

	db, err := database.Open(conf.Server.DBDriver, conf.Server.DSN())
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	if err := database.Migrate(db); err != nil {
		return errors.Wrap(err, "migrate database")
	}

	var events usecase.EventPublisher
	var subscriber rest.Subscriber
	if conf.Server.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		signalService := service.NewSignalService(rdb)
		events = signalService
		subscriber = signalService
	} else {
		log.Info("redis not configured, catalog events disabled")
	}

	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	backend, err := newBackend(ctx, conf.Storage)
	if err != nil {
		return errors.Wrap(err, "init object storage")
	}
	store := storage.NewAssetStore(backend, storage.NewFFProbe(conf.Media.FFProbePath), conf.Storage.PublicBaseURL, log)

	videoRepository := repository.NewVideoRepository(db)
	ownerRepository := repository.NewOwnerRepository(db, mc, log)
	videoUsecase := usecase.NewVideoUsecase(videoRepository, ownerRepository, store, events, log)

	authService := service.NewAuthService(conf.Auth.JWTSecret, conf.Auth.Issuer, conf.Auth.TokenTTL)
	authMiddleware := authmw.NewAuthMiddleware(authService)

	handler := rest.NewHandler(
		videoUsecase,
		subscriber,
		authMiddleware,
		rest.UploadConfig{TempDir: conf.Server.TempDir, MaxBytes: conf.Server.MaxUploadBytes},
		log,
	)

	e := echo.New()
	e.HideBanner = true
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	// multipart framing on top of the file itself
	e.Use(middleware.BodyLimit(strconv.FormatInt(conf.Server.MaxUploadBytes+1<<20, 10)))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(conf.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()
	log.Info("catalog started", "addr", conf.Server.ListenAddr, "storage", conf.Storage.Backend, "db", conf.Server.DBDriver)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newBackend(ctx context.Context, conf config.Storage) (storage.Backend, error) {
	switch conf.Backend {
	case "minio":
		return storage.NewMinioBackend(conf.MinioEndpoint, conf.MinioAccessKey, conf.MinioSecretKey, conf.Bucket, conf.MinioSecure)
	case "s3":
		return storage.NewS3Backend(ctx, conf.Bucket, conf.S3Region)
	case "gcs":
		return storage.NewGCSBackend(ctx, conf.Bucket, conf.GCSCredentialsFile)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Backend)
	}
}
