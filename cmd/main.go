package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Kunal6688/PestDetect/docs"
	"github.com/Kunal6688/PestDetect/internal/actuator"
	"github.com/Kunal6688/PestDetect/internal/broadcast"
	"github.com/Kunal6688/PestDetect/internal/config"
	"github.com/Kunal6688/PestDetect/internal/detector"
	"github.com/Kunal6688/PestDetect/internal/handlers"
	"github.com/Kunal6688/PestDetect/internal/hardware"
	"github.com/Kunal6688/PestDetect/internal/history"
	"github.com/Kunal6688/PestDetect/internal/imagestore"
	"github.com/Kunal6688/PestDetect/internal/logger"
	"github.com/Kunal6688/PestDetect/internal/orchestrator"
	"github.com/Kunal6688/PestDetect/internal/policy"
	"github.com/Kunal6688/PestDetect/internal/poller"
	"github.com/Kunal6688/PestDetect/internal/repository"
	"github.com/Kunal6688/PestDetect/internal/repository/db"
	"github.com/Kunal6688/PestDetect/internal/server"
	"github.com/Kunal6688/PestDetect/internal/service"

	"github.com/samber/lo"
)

const (
	configDir       = "configs"
	shutdownTimeout = 10 * time.Second
	connectTimeout  = 10 * time.Second
)

// @title        PestDetect API
// @version      1.0
// @description  Pest detection, sensor monitoring and relay control.
// @BasePath     /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(configDir)
	if err != nil {
		logger.New(logger.InfoLevel, logger.FormatConsole).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "path", cfg.DB.Path, "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(sqlDB)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// archive sinks and the event bus
	sinks, closeSinks := openSinks(ctx, cfg.Archive, repos, log)
	defer closeSinks()
	archiver := service.NewArchiver(cfg.Archive.QueueSize, sinks, log)
	bus := broadcast.New(cfg.Broadcast.SubscriberBuffer, log)
	events := broadcast.Tee{bus, archiver}

	// devices
	hw, closeHW, err := openHardware(cfg, log)
	if err != nil {
		log.Fatalw("failed to init hardware", "driver", cfg.Hardware.Driver, "err", err)
	}
	defer closeHW()

	ctrl := actuator.NewController(hw, relaySpecs(cfg.Actuators.Relays), cfg.Actuators.CommandTimeout, log)
	store := history.NewStore(cfg.History.MaxEvents, cfg.History.RecentWindow)
	journal := history.NewJournal(store, events)
	sensors := poller.New(hw, sensorSpecs(cfg.Sensors.Items), cfg.Sensors.Timeout, journal, log)

	// detection pipeline
	engine, err := openDetector(cfg.Detection)
	if err != nil {
		log.Fatalw("failed to init detector", "driver", cfg.Detection.Driver, "err", err)
	}
	images, err := openImageStore(ctx, cfg.Images)
	if err != nil {
		log.Fatalw("failed to init image store", "driver", cfg.Images.Driver, "err", err)
	}
	orch := orchestrator.New(orchestrator.Deps{
		Engine:    engine,
		Images:    images,
		Policy:    policy.NewEvaluator(cfg.Rules),
		Actuators: ctrl,
		Events:    journal,
		Timeout:   cfg.Detection.Timeout,
		Log:       log,
	})
	ctrl.SetObserver(orch.RecordActuatorChange)

	// wire dependencies
	services := service.NewService(service.Deps{
		Repos:     repos,
		Detection: orch,
		Relays:    ctrl,
		History:   store,
		Sensors:   sensors,
		Pipeline:  orch,
		Bus:       bus,
		Archive:   archiver,
		Auth:      service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
	})
	apiHandler := handlers.NewHandler(services, log, cfg.Auth.Enabled)

	// the archive outlives ctx so shutdown relay releases are still written
	archiveCtx, stopArchive := context.WithCancel(context.Background())
	defer stopArchive()

	// background loops
	go archiver.Run(archiveCtx)
	go sensors.Run(ctx, cfg.Sensors.PollInterval)
	go ctrl.Run(ctx, cfg.Actuators.SweepInterval)
	if cfg.Detection.AutoInterval > 0 {
		go orch.RunAutoDetection(ctx, cfg.Detection.AutoInterval, cfg.Detection.AutoImageRef)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("server_started", "port", cfg.Port, "auth", cfg.Auth.Enabled,
		"hardware", cfg.Hardware.Driver, "detection", cfg.Detection.Driver,
		"sinks", lo.Map(sinks, func(s service.EventSink, _ int) string { return s.Name() }))

	// graceful shutdown
	waitForShutdown(cancel, stopArchive, srv, ctrl, bus, archiver, log)
}

// openSinks always includes SQLite; Redis, Kafka and ClickHouse are optional
// and skipped with an error log when unreachable.
func openSinks(ctx context.Context, cfg config.ArchiveConfig, repos *repository.Repository, log *logger.Logger) ([]service.EventSink, func()) {
	sinks := []service.EventSink{service.NewSQLiteSink(repos.EventRepo, repos.RelayStateRepo)}
	var closers []func() error

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if cfg.Redis.Enabled {
		client, err := repository.DialRedis(dialCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Errorw("archive_sink_unavailable", "sink", "redis", "err", err)
		} else {
			m := repository.NewRedisMirror(client, cfg.Redis.Stream, cfg.Redis.MaxLen)
			sinks = append(sinks, m)
			closers = append(closers, m.Close)
		}
	}
	if cfg.Kafka.Enabled {
		p, err := repository.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Errorw("archive_sink_unavailable", "sink", "kafka", "err", err)
		} else {
			sinks = append(sinks, p)
			closers = append(closers, p.Close)
		}
	}
	if cfg.ClickHouse.Enabled {
		ch, err := repository.NewClickHouseTelemetry(dialCtx, cfg.ClickHouse.Addr, cfg.ClickHouse.Database,
			cfg.ClickHouse.Username, cfg.ClickHouse.Password)
		if err != nil {
			log.Errorw("archive_sink_unavailable", "sink", "clickhouse", "err", err)
		} else {
			sinks = append(sinks, ch)
			closers = append(closers, ch.Close)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Errorw("archive_sink_close_failed", "err", err)
			}
		}
	}
}

func openHardware(cfg *config.Config, log *logger.Logger) (hardware.Hardware, func(), error) {
	switch cfg.Hardware.Driver {
	case config.DriverMQTT:
		m := cfg.Hardware.MQTT
		hw, err := hardware.NewMQTT(hardware.MQTTOptions{
			Broker:      m.Broker,
			ClientID:    m.ClientID,
			Username:    m.Username,
			Password:    m.Password,
			TopicPrefix: m.TopicPrefix,
			StaleAfter:  m.StaleAfter,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return hw, hw.Close, nil
	case config.DriverSimulated:
		sensorTypes := lo.SliceToMap(cfg.Sensors.Items, func(s config.SensorConfig) (string, string) {
			return s.Name, s.Type
		})
		relayIDs := lo.Map(cfg.Actuators.Relays, func(r config.RelayConfig, _ int) string { return r.ID })
		sim := hardware.NewSimulated(sensorTypes, relayIDs)
		for _, name := range cfg.Hardware.FailingSensors {
			sim.SetSensorFailure(name, true)
		}
		return sim, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown hardware driver %q", cfg.Hardware.Driver)
	}
}

func openDetector(cfg config.DetectionConfig) (detector.Engine, error) {
	switch cfg.Driver {
	case config.DriverHTTP:
		return detector.NewHTTPEngine(cfg.Endpoint, cfg.Timeout, cfg.RetryCount)
	case config.DriverSimulated:
		return detector.NewSimulated(detector.DefaultClasses, cfg.FailureRate), nil
	default:
		return nil, fmt.Errorf("unknown detection driver %q", cfg.Driver)
	}
}

func openImageStore(ctx context.Context, cfg config.ImagesConfig) (imagestore.Store, error) {
	switch cfg.Driver {
	case config.DriverMinio:
		dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return imagestore.NewMinio(dialCtx, imagestore.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
	case config.DriverFS:
		return imagestore.NewFS(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown image store driver %q", cfg.Driver)
	}
}

func sensorSpecs(items []config.SensorConfig) []poller.SensorSpec {
	return lo.Map(items, func(s config.SensorConfig, _ int) poller.SensorSpec {
		return poller.SensorSpec{Name: s.Name, Type: s.Type, Unit: s.Unit}
	})
}

func relaySpecs(relays []config.RelayConfig) []actuator.RelaySpec {
	return lo.Map(relays, func(r config.RelayConfig, _ int) actuator.RelaySpec {
		return actuator.RelaySpec{ID: r.ID, Cooldown: r.Cooldown, AutoRelease: r.AutoRelease}
	})
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops loops, switches
// every relay off, drains HTTP and flushes the archive.
func waitForShutdown(cancel, stopArchive context.CancelFunc, srv *server.Server, ctrl *actuator.Controller,
	bus *broadcast.Broadcaster, archiver *service.Archiver, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := ctrl.ReleaseAll(ctx); err != nil {
		log.Errorw("release_all_on_shutdown_failed", "err", err)
	}

	// ends websocket streams so Shutdown does not wait on them
	bus.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	stopArchive()
	select {
	case <-archiver.Done():
	case <-ctx.Done():
		log.Errorw("archive_flush_timeout", "stats", archiver.Stats())
	}
}

