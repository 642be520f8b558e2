package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"GapWatchAPI/internal/config"
	"GapWatchAPI/internal/database"
	"GapWatchAPI/internal/handler"
	"GapWatchAPI/internal/ingest"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/mqtt"
	"GapWatchAPI/internal/repository"
	"GapWatchAPI/internal/server"
	"GapWatchAPI/internal/service"
	"GapWatchAPI/internal/sink"
	"GapWatchAPI/internal/statestore"
	"GapWatchAPI/internal/websocket"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger since main logger isn't ready
		panic("Failed to load configuration: " + err.Error())
	}

	// 2. Initialize Logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Mode:        cfg.Logging.Mode,
		LogFilePath: cfg.Logging.FilePath,
		UseColors:   cfg.Logging.UseColors,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: %v", err)
	}

	cfg.Print()
	log.Info("Starting GapWatch API Server")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Database Connection
	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Info("Database connected successfully")

	// 4. State store and repositories
	store, err := statestore.Open(ctx, cfg, db.DB)
	if err != nil {
		log.Fatal("Failed to open %s state store: %v", cfg.State.Backend, err)
	}
	defer store.Close()

	log.Info("Using %s state store", cfg.State.Backend)

	monitorRepo := repository.NewMonitorRepository(db.DB)
	alertRepo := repository.NewAlertRepository(db.DB)

	// 5. WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	// 6. Brokers and sources
	router := ingest.NewRouter(log, cfg.Scheduler.Timeout)
	var sinks []sink.Sink

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
			MQTT:   &cfg.MQTT,
			Logger: log,
		})
		if err != nil {
			log.Fatal("Failed to create MQTT client: %v", err)
		}
		defer func(mqttClient *mqtt.Client) {
			err := mqttClient.Disconnect()
			if err != nil {
				log.Error("Failed to disconnect MQTT: %v", err)
			}
		}(mqttClient)

		if err := mqttClient.Connect(); err != nil {
			log.Fatal("Failed to connect to MQTT broker: %v", err)
		}

		router.Register(ingest.NewMQTTSource(mqttClient))
		if cfg.Alerts.MQTTTopicPrefix != "" {
			mqttSink := sink.NewMQTTSink(mqttClient, cfg.Alerts.MQTTTopicPrefix)
			router.Exclude(models.SourceMQTT, mqttSink.Owns)
			sinks = append(sinks, mqttSink)
		}
	}

	if cfg.NATS.URL != "" {
		nc, err := ingest.ConnectNATS(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS: %v", err)
		}
		defer nc.Close()

		router.Register(ingest.NewNATSSource(nc, log))
		if cfg.Alerts.NATSSubject != "" {
			natsSink := sink.NewNATSSink(nc, cfg.Alerts.NATSSubject)
			router.Exclude(models.SourceNATS, natsSink.Owns)
			sinks = append(sinks, natsSink)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSource, err := ingest.NewKafkaSource(cfg.Kafka, log)
		if err != nil {
			log.Fatal("Failed to create Kafka source: %v", err)
		}
		router.Register(kafkaSource)
	}

	// 7. Initialize Services
	alertService := service.NewAlertService(alertRepo, hub, sinks, log)
	monitorService := service.NewMonitorService(monitorRepo, store, alertService, log)
	router.SetReceiver(monitorService)
	monitorService.SetRouter(router)

	if err := service.NewSeedService(monitorService, log).ApplyFile(ctx, cfg.Alerts.MonitorsFile); err != nil {
		log.Fatal("Failed to seed monitors from %s: %v", cfg.Alerts.MonitorsFile, err)
	}

	if err := monitorService.SyncBindings(ctx); err != nil {
		log.Error("Some source bindings failed: %v", err)
	}

	scheduler := service.NewScheduler(monitorService, alertService, cfg.Scheduler, cfg.Alerts.Retention, log)
	scheduler.Start()

	// 8. Initialize Handlers
	monitorHandler := handler.NewMonitorHandler(monitorService, log)
	ingestHandler := handler.NewIngestHandler(monitorService, cfg.Server.MaxBodyBytes, log)
	alertHandler := handler.NewAlertHandler(alertService, log)
	reportHandler := handler.NewReportHandler(monitorService, alertService, log)
	healthHandler := handler.NewHealthHandler(handler.HealthChecks{
		Database: db.Health,
		State:    store.Ping,
		Sources:  router.Health,
	}, log)

	// 9. Start HTTP Server
	srv := server.New(cfg, log)
	srv.RegisterHandlers(monitorHandler, ingestHandler, alertHandler, reportHandler, healthHandler, hub)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Server failed: %v", err)
		}
	}()

	log.Info("API server ready on http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error: %v", err)
	}

	scheduler.Shutdown()

	if err := router.Close(); err != nil {
		log.Error("Failed to close sources: %v", err)
	}

	stop()
	log.Info("Shutdown complete")
}
