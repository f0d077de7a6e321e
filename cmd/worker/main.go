package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/classifier"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/config"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/email"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/ffmpeg"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/gocv"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/httpapi"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/metrics"
	miniostorage "github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/minio"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/postgres"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/rabbitmq"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/tesseract"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/infra/tracing"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/scan"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/usecase"
	"github.com/BayesicGaming/MKWTTSpeedruns/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const serviceName = "mkwtt-scan-worker"

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting " + serviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, serviceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		UploadBucket:   cfg.MinIOUploadBucket,
		EvidenceBucket: cfg.MinIOEvidenceBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	progressPub := rabbitmq.NewProgressPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Scan pipeline
	recognizer := tesseract.NewRecognizer()
	defer recognizer.Close()

	frameClassifier := classifier.New(recognizer, port.OCROptions{
		Mode:     port.PageSegSingleLine,
		Language: cfg.OCRLanguage,
	}, log)

	scanCfg := scan.DefaultConfig()
	scanCfg.StepIdle = cfg.ScanStepIdleSec
	scanCfg.StepAfterHit = cfg.ScanStepAfterHitSec
	fatalOnErr(scanCfg.Validate(), "validate scan config")
	driver := scan.NewDriver(frameClassifier, scanCfg, log)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	opener := newVideoOpener(cfg, log)
	zipper := ffmpeg.NewZipCreator()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	uc := usecase.NewScanVideoUseCase(
		repo, storage, opener, driver, zipper,
		statusPub, progressPub, dlqPub, notifier,
		log,
		usecase.ScanVideoConfig{
			TempDir:       cfg.TempDir,
			MaxRetries:    cfg.MaxRetries,
			ProgressEvery: cfg.ScanProgressEvery,
			KeepEvidence:  cfg.ScanKeepEvidence,
		},
	)

	// Metrics server, also serving stored results
	results := httpapi.NewResultsHandler(repo, log)
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log, results.Mount)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:           cfg.RabbitMQURL,
		Queue:         cfg.RabbitMQScanQueue,
		Exchange:      cfg.RabbitMQExchange,
		DLQ:           cfg.RabbitMQDLQ,
		StatusQueue:   cfg.RabbitMQStatusQueue,
		ProgressQueue: cfg.RabbitMQProgressQueue,
		Prefetch:      cfg.RabbitMQPrefetch,
		WorkerCount:   cfg.WorkerCount,
		BaseDelayMs:   cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info(serviceName+" started, consuming messages",
		zap.String("decoder", cfg.ScanDecoder),
		zap.Int("workers", cfg.WorkerCount),
	)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info(serviceName + " stopped")
}

func newVideoOpener(cfg *config.Config, log *zap.Logger) port.VideoOpener {
	if cfg.ScanDecoder == config.DecoderFFmpeg {
		return ffmpeg.NewFrameExtractor(cfg.FFmpegPath, cfg.FFprobePath, log)
	}
	return gocv.NewVideoOpener(log)
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
