package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/grubline/fulfillment_service/internal/config"
	outboxRepository "github.com/grubline/fulfillment_service/internal/repository/outbox"
	"github.com/grubline/fulfillment_service/internal/services/outbox/send"
	"github.com/grubline/fulfillment_service/pkg/brokers/kafka/producer"
	"github.com/grubline/fulfillment_service/pkg/databases/postgres"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

func main() {
	cfg := config.InitConfig()

	log := logger.NewSlogLogger(logger.SlogEnvironment(cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPostgresDB(ctx, log, postgresDSN(&cfg.Postgres))
	if err != nil {
		panic(fmt.Sprintf("failed to connect to db: %v", err))
	}

	syncProducer, err := producer.NewSyncProducer(cfg.Kafka.BrokerList)
	if err != nil {
		panic(fmt.Sprintf("failed to create producer: %v", err))
	}

	outboxRepo := outboxRepository.New(log, db.GetDB())

	sendSvc := send.New(log, cfg.Kafka, syncProducer, outboxRepo, outboxRepo)

	scheduler := cron.New(cron.WithSeconds())
	if _, err = scheduler.AddFunc("*/2 * * * * *", func() {
		if sendErr := sendSvc.Send(ctx); sendErr != nil {
			log.Error("outbox relay", logger.String("error", sendErr.Error()))
		}
	}); err != nil {
		panic(fmt.Sprintf("failed to schedule relay: %v", err))
	}

	scheduler.Start()
	log.Info("outbox relay started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	<-scheduler.Stop().Done()
	cancel()

	if err = syncProducer.Close(); err != nil {
		log.Error("outbox relay", logger.String("close producer error", err.Error()))
	}
	if err = db.Close(); err != nil {
		log.Error("outbox relay", logger.String("close db error", err.Error()))
	}

	log.Info("outbox relay stopped")
}

func postgresDSN(psqlCfg *config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		psqlCfg.Host, psqlCfg.Port, psqlCfg.User, psqlCfg.DbName, psqlCfg.Pwd, psqlCfg.SslMode)
}
