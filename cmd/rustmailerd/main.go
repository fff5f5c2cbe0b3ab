// Command rustmailerd is RustMailer's daemon entry point: it wires the
// embedded SQLite stores, the durable task scheduler, every connection
// pool/executor, the event channel and hook dispatcher, the mail-send
// builder pipeline, access control, and the REST/gRPC/metrics servers,
// then serves until SIGINT/SIGTERM. Grounded on the teacher's
// cmd/server/server.go wiring, generalized from one email service to
// RustMailer's full component graph.
package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/sparklive/rustmailer/internal/accesscontrol"
	"github.com/sparklive/rustmailer/internal/api"
	"github.com/sparklive/rustmailer/internal/compose"
	"github.com/sparklive/rustmailer/internal/config"
	"github.com/sparklive/rustmailer/internal/diskcache"
	"github.com/sparklive/rustmailer/internal/events"
	"github.com/sparklive/rustmailer/internal/hooks"
	"github.com/sparklive/rustmailer/internal/idgen"
	"github.com/sparklive/rustmailer/internal/rpccompress"
	"github.com/sparklive/rustmailer/internal/scheduler"
	"github.com/sparklive/rustmailer/internal/secretcrypt"
	"github.com/sparklive/rustmailer/internal/smtptask"
	"github.com/sparklive/rustmailer/internal/store"
	"github.com/sparklive/rustmailer/internal/transport"
	"github.com/sparklive/rustmailer/internal/transport/gmail"
	"github.com/sparklive/rustmailer/internal/transport/imap"
	"github.com/sparklive/rustmailer/internal/transport/nats"
	"github.com/sparklive/rustmailer/internal/transport/smtp"
)

func main() {
	fs := pflag.NewFlagSet("rustmailerd", pflag.ExitOnError)
	config.BindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.EnableAccessToken && cfg.RootToken == "" {
		cfg.RootToken = idgen.NewAccessToken()
		logger.Warn("no root_token configured; generated one for this boot only", zap.String("root_token", cfg.RootToken))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fatal startup error", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	metaDB, err := store.Open(cfg.RootDir+"/meta.db", store.NamespaceMeta, logger)
	if err != nil {
		return fmt.Errorf("open meta store: %w", err)
	}
	defer metaDB.Close()
	taskDB, err := store.Open(cfg.RootDir+"/tasks.db", store.NamespaceTasks, logger)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer taskDB.Close()
	attachDB, err := store.Open(cfg.RootDir+"/attachments.db", store.NamespaceAttachments, logger)
	if err != nil {
		return fmt.Errorf("open attachment store: %w", err)
	}
	defer attachDB.Close()

	meta := store.NewMetaStore(metaDB)
	tasks := store.NewTaskStore(taskDB)
	blobs := store.NewAttachmentStore(attachDB)

	enc := secretcrypt.New(cfg.EncryptPassword)
	secrets := transport.NewSecretResolver(meta, enc)

	imapPool := imap.NewPool(secrets, meta)
	smtpPool := smtp.NewPool(secrets)
	gmailExec := gmail.NewExecutor(secrets)
	natsPub := nats.NewPublisher(secrets)

	execResolver := transport.NewExecutorResolver(meta, smtpPool, gmailExec)

	cache, err := diskcache.New(cfg.RootDir + "/cache")
	if err != nil {
		return fmt.Errorf("open disk cache: %w", err)
	}

	registry := scheduler.NewRegistry()
	sched := scheduler.New(tasks, registry, time.Duration(cfg.CleanupIntervalHours)*time.Hour, logger)
	sched.SetConcurrency(smtptask.Queue, cfg.SchedulerConcurrency)
	sched.SetConcurrency(hooks.Queue, cfg.SchedulerConcurrency)

	hookSink := hooks.NewSink(sched, meta, natsPub)
	ch := events.NewChannel(meta, hookSink, logger)

	smtptask.RegisterDecoder(registry, cache, meta, execResolver, imapPool, ch, cfg.PublicURL)
	hooks.RegisterDecoder(registry, meta, natsPub, &http.Client{Timeout: 30 * time.Second})

	sendSink := smtptask.NewSink(sched, cache, meta, execResolver, imapPool, ch, cfg.PublicURL)
	templates := transport.NewTemplateStore(meta)
	builder := compose.NewBuilder(meta, cache, blobs, sendSink, templates, imapPool, cfg.TrackingBaseURL, cfg.EnableTracking, logger)

	signingKey := sha256.Sum256([]byte(cfg.EncryptPassword + "::rustmailer-token-envelope"))
	gate := accesscontrol.NewGate(meta, cfg.RootToken, cfg.EnableAccessToken, signingKey[:])

	server := api.NewServer(meta, blobs, builder, gate, ch, secrets, cfg.EnableTracking, cfg.PublicURL, cfg.OAuth2CallbackSuccessURL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	go ch.Run(ctx)

	var wg sync.WaitGroup

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      server.Engine(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: config.DefaultMaxRequestTimeout,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting http server", zap.Int("port", cfg.HTTPPort))
		var serveErr error
		if cfg.EnableHTTPS {
			serveErr = httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			serveErr = httpServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(serveErr))
		}
	}()

	if cfg.GRPCCompression == rpccompress.Name {
		rpccompress.Register()
	}

	healthSrv := health.NewServer()
	var grpcServer *grpc.Server
	if cfg.EnableGRPC {
		grpcServer = grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      time.Hour,
			MaxConnectionAgeGrace: time.Minute,
			Time:                  time.Minute,
			Timeout:               20 * time.Second,
		}))
		grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
		healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

		wg.Add(1)
		go func() {
			defer wg.Done()
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
			if err != nil {
				logger.Error("failed to listen for grpc", zap.Error(err))
				return
			}
			logger.Info("starting grpc server", zap.Int("port", cfg.GRPCPort))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	if healthSrv != nil {
		healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	sched.Shutdown()
	cancel()

	waitCh := make(chan struct{})
	go func() { wg.Wait(); close(waitCh) }()
	select {
	case <-waitCh:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown deadline exceeded")
	}

	logger.Info("graceful shutdown complete")
	return nil
}
