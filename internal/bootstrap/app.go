package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	appsvc "pothole-detect/internal/app"
	"pothole-detect/internal/cache"
	"pothole-detect/internal/config"
	"pothole-detect/internal/logger"
	rabbitmqClient "pothole-detect/internal/platform/rabbitmq"
	redisClient "pothole-detect/internal/platform/redis"
	"pothole-detect/internal/storage"
	"pothole-detect/internal/vision"
)

type App struct {
	Config     *config.Config
	Classifier *vision.Classifier
	Scratch    *storage.ScratchStore
	Redis      *redis.Client
	MQConn     *amqp.Connection
	Detector   *appsvc.DetectService

	StartedAt time.Time
}

// New loads the model and opens every enabled dependency. Any failure is
// fatal for the caller: the service never starts in a degraded mode.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger.Init(cfg.App.Env, cfg.Log.Level)

	a := &App{Config: cfg}
	if err := a.open(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.StartedAt = time.Now()
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	cfg := a.Config

	modelPath, err := cfg.ResolvePath(cfg.Vision.ModelPath)
	if err != nil {
		return err
	}
	logger.Info("loading model", "path", modelPath)
	classifier, err := vision.NewClassifier(modelPath, cfg.Vision.ONNXSharedLibPath)
	if err != nil {
		return fmt.Errorf("load model failed: %w", err)
	}
	a.Classifier = classifier

	uploadDir, err := cfg.ResolvePath(cfg.Upload.Dir)
	if err != nil {
		return err
	}
	scratch, err := storage.NewScratchStore(uploadDir)
	if err != nil {
		return err
	}
	a.Scratch = scratch
	logger.Info("upload folder ready", "path", uploadDir)

	var resultCache appsvc.ResultCache
	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.Redis = redisCli
		resultCache = cache.NewDetectionCache(redisCli, time.Duration(cfg.Redis.ResultTTLSeconds)*time.Second)
		logger.Info("detection cache enabled", "addr", cfg.Redis.Addr)
	}

	var publisher appsvc.EventPublisher
	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.DetectionQueue)
		if err != nil {
			return err
		}
		a.MQConn = mqConn
		publisher = rabbitmqClient.NewDetectionPublisher(mqConn, cfg.RabbitMQ.DetectionQueue)
		logger.Info("detection events enabled", "queue", cfg.RabbitMQ.DetectionQueue)
	}

	a.Detector = appsvc.NewDetectService(scratch, classifier, resultCache, publisher)
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Classifier != nil {
		a.Classifier.Close()
	}
	return closeErr
}
