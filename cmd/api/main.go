package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/voxtour/ticket-gateway/internal/capability"
	"github.com/voxtour/ticket-gateway/internal/config"
	gateway "github.com/voxtour/ticket-gateway/internal/gateways"
	"github.com/voxtour/ticket-gateway/internal/handlers"
	"github.com/voxtour/ticket-gateway/internal/repository"
	"github.com/voxtour/ticket-gateway/internal/services"
	"github.com/voxtour/ticket-gateway/internal/storage"
	"github.com/voxtour/ticket-gateway/internal/templates"
	xhttp "github.com/voxtour/ticket-gateway/pkg/http"
	"github.com/voxtour/ticket-gateway/pkg/logger"
	"github.com/voxtour/ticket-gateway/pkg/pg"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 15))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	lookupClient, err := gateway.NewLookupClient(gateway.LookupConfig{
		BaseURL:    config.Get().LookupBaseUrl,
		AccountSID: config.Get().MessagingAccountSID,
		AuthToken:  config.Get().MessagingAuthToken,
		Timeout:    config.Get().LookupTimeout,
	})
	if err != nil {
		logger.Error("failed to create lookup client", "error", err)
		return
	}

	probePolicy := capability.FailOpen
	if config.Get().LookupFailClosed {
		probePolicy = capability.FailClosed
	}
	prober := capability.NewProber(lookupClient, probePolicy)

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

	resolver := templates.NewResolver()
	templates.RegisterDefaults(resolver)
	smsText := templates.DefaultNotificationText()

	locker := services.NewRedisDispatchLocker(redisAdap)

	// services
	dispatchService := services.NewDispatchService(bookingRepo, attachmentRepo, senders, prober, resolver, smsText, locker)
	retryService := services.NewRetryService(messageRepo, bookingRepo, attachmentRepo, senders)
	retryService.BatchDelay = config.Get().RetryBatchDelay
	callbackService := services.NewCallbackService(messageRepo, config.Get().MessagingAuthToken)
	healthService := services.NewHealthService()

	// v1 handlers
	dispatchHandler := handlers.NewDispatchHandler(dispatchService)
	messageHandler := handlers.NewMessageHandler(messageRepo, retryService)
	callbackHandler := handlers.NewCallbackHandler(callbackService, config.Get().MessagingCallbackUrl)
	filesHandler := handlers.NewFilesHandler(store)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterDispatchRoutes(g, dispatchHandler)
	handlers.RegisterMessageRoutes(g, messageHandler)
	handlers.RegisterCallbackRoutes(g, callbackHandler)
	handlers.RegisterFileRoutes(g, filesHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
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
