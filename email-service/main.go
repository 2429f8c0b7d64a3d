package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"storefront/email-service/handlers"
	"storefront/email-service/internal/jobs"
	"storefront/email-service/internal/mailer"
	"storefront/email-service/internal/stores/kafka"
	"storefront/pkg/config"
	"storefront/pkg/events"
	"storefront/pkg/hmacauth"
	"storefront/pkg/metrics"
	"storefront/pkg/middleware"
	"storefront/pkg/server"
)

func main() {
	server.SetupLogger()
	if err := startApp(); err != nil {
		slog.Error("email service stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	config.LoadDotEnv()
	internal, err := config.LoadInternal(config.Email)
	if err != nil {
		return err
	}
	mailCfg, err := config.LoadMail()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender, err := newSender(mailCfg)
	if err != nil {
		return err
	}
	processor := jobs.NewProcessor(sender, events.New(config.Email, nil))

	// Job queue: Kafka when brokers are configured, in-process otherwise
	var queue jobs.Queue
	kafkaCfg := config.LoadKafka(kafka.TopicOrderEmails, kafka.ConsumerGroup)
	if len(kafkaCfg.Brokers) > 0 {
		conf, err := kafka.NewConf(kafkaCfg.Brokers, kafkaCfg.Group, kafkaCfg.Topic)
		if err != nil {
			return err
		}
		defer conf.Close()
		kq := jobs.NewKafkaQueue(conf, conf.Topic(), processor)
		go func() {
			if err := conf.ConsumeMessages(ctx, kq.HandleMessage); err != nil {
				slog.Error("kafka consumer stopped", slog.String("error", err.Error()))
			}
		}()
		queue = kq
	} else {
		workers, err := strconv.Atoi(config.Getenv("MAIL_QUEUE_WORKERS", "2"))
		if err != nil {
			return fmt.Errorf("invalid MAIL_QUEUE_WORKERS: %w", err)
		}
		mq := jobs.NewMemoryQueue(processor, 100, workers, 5*time.Second)
		mq.Start(ctx)
		defer func() {
			cancel()
			mq.Wait()
		}()
		queue = mq
	}

	m, err := middleware.NewMid(
		hmacauth.NewVerifier(internal.AllowedServiceIDs, internal.Secret, internal.TimestampTolerance),
		middleware.WithMaxBodyBytes(internal.MaxBodyBytes),
	)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sm := metrics.NewServerMetrics(config.Email, reg)

	h := handlers.NewHandler(queue, events.New(config.Email, nil))
	api := handlers.API(h, m, sm, reg)

	err = server.Run(ctx, config.Getenv("HTTP_ADDR", ":8003"), api)
	cancel()
	return err
}

func newSender(cfg config.Mail) (mailer.Sender, error) {
	switch cfg.Mailer {
	case "smtp":
		return mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	case "log":
		return mailer.LogSender{}, nil
	default:
		return nil, fmt.Errorf("unsupported MAIL_MAILER %q", cfg.Mailer)
	}
}
