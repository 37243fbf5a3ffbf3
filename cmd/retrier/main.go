package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/voxtour/ticket-gateway/internal/config"
	gateway "github.com/voxtour/ticket-gateway/internal/gateways"
	"github.com/voxtour/ticket-gateway/internal/processor"
	"github.com/voxtour/ticket-gateway/internal/queue"
	"github.com/voxtour/ticket-gateway/internal/repository"
	"github.com/voxtour/ticket-gateway/internal/services"
	"github.com/voxtour/ticket-gateway/internal/storage"
	"github.com/voxtour/ticket-gateway/pkg/logger"
	"github.com/voxtour/ticket-gateway/pkg/pg"
	"github.com/voxtour/ticket-gateway/pkg/prom"
	"github.com/voxtour/ticket-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	messagingClient, err := gateway.NewMessagingClient(gateway.MessagingConfig{
		BaseURL:      config.Get().MessagingBaseUrl,
		AccountSID:   config.Get().MessagingAccountSID,
		AuthToken:    config.Get().MessagingAuthToken,
		FromPhone:    config.Get().MessagingFromPhone,
		FromWhatsApp: config.Get().MessagingFromWhatsApp,
		CallbackURL:  config.Get().MessagingCallbackUrl,
		Timeout:      config.Get().MessagingTimeout,
	})
	if err != nil {
		logger.Error("failed to create messaging client", "error", err)
		return
	}

	emailClient, err := gateway.NewEmailClient(gateway.EmailConfig{
		BaseURL:   config.Get().EmailBaseUrl,
		APIKey:    config.Get().EmailAPIKey,
		FromEmail: config.Get().EmailFromAddr,
		FromName:  config.Get().EmailFromName,
		Timeout:   config.Get().EmailTimeout,
	})
	if err != nil {
		logger.Error("failed to create email client", "error", err)
		return
	}

	store := storage.NewLocalStore(
		config.Get().StorageRoot,
		config.Get().StoragePublicBaseUrl,
		config.Get().StorageUrlSecret,
	)

	bookingRepo := repository.NewBookingRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	senders := []services.ChannelSender{
		services.NewWhatsAppSender(messagingClient, messageRepo, store),
		services.NewSMSSender(messagingClient, messageRepo, store),
		services.NewEmailSender(emailClient, messageRepo, store),
	}
	retryService := services.NewRetryService(messageRepo, bookingRepo, attachmentRepo, senders)
	retryService.BatchDelay = config.Get().RetryBatchDelay

	// The scheduler produces onto the same stream the consumers read from.
	producerQueue, err := queue.NewJobQueue(redisAdap, queue.Config{
		Name:          config.Get().QueueName,
		ConsumerGroup: config.Get().QueueConsumerGroup,
		MaxLen:        config.Get().QueueMaxLen,
		EnableDLQ:     config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed to create producer queue", "error", err)
		return
	}

	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyService := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	service, err := processor.NewRetrierService(redisAdap)
	if err != nil {
		logger.Error("failed to create the retrier", "error", err)
		return
	}
	service.RegisterProcessor(processor.NewTicketRetryProcessor(retryService, idempotencyService))
	service.RegisterScheduler(processor.NewRetryScheduler(messageRepo, producerQueue, config.Get().RetryBatchLimit))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start the retrier", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
