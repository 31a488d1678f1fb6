package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/TamirHazut/ERP/internal/auth"
	"github.com/TamirHazut/ERP/internal/config"
	"github.com/TamirHazut/ERP/internal/grpcapi"
	"github.com/TamirHazut/ERP/internal/httpapi"
	"github.com/TamirHazut/ERP/internal/obs"
	"github.com/TamirHazut/ERP/internal/seed"
	"github.com/TamirHazut/ERP/internal/store/mongodb"
	"github.com/TamirHazut/ERP/internal/tokenindex"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongoClient, err := mongodb.Connect(startCtx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongodb")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()

	store := mongodb.New(mongoClient.Database(cfg.MongoDB))
	if err := store.EnsureIndexes(startCtx); err != nil {
		log.Fatal().Err(err).Msg("ensure mongodb indexes")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(startCtx).Err(); err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()
	index := tokenindex.New(rdb)

	tokens, err := auth.NewService(store, index, []byte(cfg.JWTSecret),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build token service")
	}
	rbac, err := auth.NewRBACService(store)
	if err != nil {
		log.Fatal().Err(err).Msg("build rbac service")
	}

	if err := seed.Bootstrap(startCtx, store, rbac, seed.Options{
		TenantName: cfg.BootstrapTenant,
		Username:   cfg.BootstrapUser,
		Password:   cfg.BootstrapPassword,
	}); err != nil {
		log.Fatal().Err(err).Msg("bootstrap")
	}

	api := httpapi.New(tokens, rbac, httpapi.ReadyProbe{Mongo: mongoClient, Redis: rdb}, version)

	handler := api.Handler()
	handler = httpapi.RateLimit(handler, 50, 25)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.CORS(handler)
	handler = httpapi.Logging(handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcapi.Register(grpcServer, grpcapi.NewServer(tokens))

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("version", version).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http listen")
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("grpc listen")
		}
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc server starting")
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatal().Err(err).Msg("grpc serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	log.Info().Msg("stopped")
}
