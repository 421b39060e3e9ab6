package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/enrichman/httpgrace"

	route "github.com/bassista/go_scrapbook/internal/api/route"
	appctx "github.com/bassista/go_scrapbook/internal/app"
	"github.com/bassista/go_scrapbook/internal/config"
	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/repository"
	"github.com/bassista/go_scrapbook/internal/speech"
	"github.com/bassista/go_scrapbook/internal/store"
)

func main() {
	confDir := flag.String("config", "./config", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*confDir)
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	logLevel := logger.SetLevel(cfg.Misc.LogLevel)
	logger.WithComponent("main").Debugf("log level set to: %s", logLevel.String())
	if cfg.Misc.LogFile != "" {
		closer := logger.EnableFileOutput(cfg.Misc.LogFile)
		defer closer.Close()
	}
	logger.WithComponent("main").Infof("App will run on port: %d (store backend: %s)", cfg.Server.Port, cfg.Store.Backend)

	repo, err := repository.NewRepositoryFromConfig(cfg.Store)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init repository: %v", err)
	}

	st := store.New(repo, store.WithNamespace(cfg.Store.Namespace))

	gen, err := speech.NewGeneratorFromConfig(cfg.Speech)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init speech generator: %v", err)
	}

	app, err := appctx.New(cfg, repo, st, gen)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer app.Shutdown()

	if err := app.StartWatchers(); err != nil {
		logger.WithComponent("main").Fatalf("cannot start watchers: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := route.SetupRoutes(app, logger.Logger)
	srv := createGraceHttpServer(app.BaseCtx, "scrapbook", app.Config.Server, r)

	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Error(err)
	}
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
	return srv
}
