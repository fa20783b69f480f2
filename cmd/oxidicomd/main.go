// Command oxidicomd runs the DICOM Storage Service Class Provider: it
// accepts associations, receives and stores instances, and publishes
// reception progress and series-registration tasks. Grounded on the
// teacher connector's cmd/server/main.go for its overall shape (load
// config, init logger, connect optional backends, start an HTTP
// server, wait for a signal, shut down gracefully) with the DICOMweb
// server swapped for the DICOM listener this connector actually
// implements.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/otcheredev/oxidicom-go/internal/adminapi"
	"github.com/otcheredev/oxidicom-go/internal/audit"
	"github.com/otcheredev/oxidicom-go/internal/config"
	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/otcheredev/oxidicom-go/internal/listener"
	"github.com/otcheredev/oxidicom-go/internal/messenger"
	"github.com/otcheredev/oxidicom-go/internal/progress"
	"github.com/otcheredev/oxidicom-go/internal/registration"
	"github.com/otcheredev/oxidicom-go/internal/scp"
	"github.com/otcheredev/oxidicom-go/internal/seriestracker"
	"github.com/otcheredev/oxidicom-go/internal/statuscache"
	"github.com/otcheredev/oxidicom-go/internal/storage"
	"github.com/otcheredev/oxidicom-go/internal/syncer"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/otcheredev/oxidicom-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("starting oxidicom dicom scp")

	auditDB := connectAuditDB(cfg.Database)
	recorder := audit.NewRecorder(auditDB)

	statusStore := statuscache.NewStore(connectStatusCache(cfg))

	amqpChannel, amqpConn := connectAMQP(cfg.AMQP)
	if amqpConn != nil {
		defer amqpConn.Close()
	}
	if amqpChannel != nil {
		defer amqpChannel.Close()
	}

	natsConn := connectNATS(cfg.NATS)
	if natsConn != nil {
		defer natsConn.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline := startPipeline(cfg, recorder, statusStore, amqpChannel, natsConn)

	l := listener.New(listener.Config{
		Address: fmt.Sprintf(":%d", cfg.Listener.Port),
		Workers: cfg.Listener.Workers,
	}, pipeline.scpHandler)

	admin := adminapi.New(cfg.Admin, cfg.CORS, cfg.Metrics.Enabled, adminapi.Deps{
		AuditDB: auditDB,
		Status:  statusStore,
	})

	errs := make(chan error, 2)
	admin.Start(errs)
	go func() {
		if err := l.Run(ctx); err != nil {
			errs <- fmt.Errorf("dicom listener: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errs:
		log.Error().Err(err).Msg("fatal error, shutting down")
	}

	cancel()
	pipeline.close()

	if err := admin.Shutdown(30 * time.Second); err != nil {
		log.Error().Err(err).Msg("admin server forced to shutdown")
	}

	log.Info().Msg("oxidicom stopped")
}

// pipelineHandles holds the SCP handler and the AssociationEvent channel
// that feeds the pipeline. close closes that channel, which ends the
// series tracker's loop; the tracker does not close its own output, so
// the stages after it are neither closed nor drained by close.
type pipelineHandles struct {
	scpHandler *scp.Handler
	events     chan domain.AssociationEvent
}

func (p *pipelineHandles) close() {
	close(p.events)
}

func startPipeline(cfg *config.Config, recorder *audit.Recorder, statusStore *statuscache.Store, amqpChannel *amqp091.Channel, natsConn *nats.Conn) *pipelineHandles {
	events := make(chan domain.AssociationEvent, 256)

	storagePool := storage.NewPool(cfg.Storage.FilesRoot, cfg.Storage.Workers)
	trackerOut := make(chan seriestracker.Message, 64)
	tracker := seriestracker.New(storagePool, trackerOut, recorder)
	go tracker.Run(events)

	syncerOut := make(chan syncer.Envelope[domain.InstanceResult, domain.DicomInfo], 64)
	go syncer.Run[domain.PendingInstance, domain.InstanceResult, domain.DicomInfo](trackerOut, syncerOut)

	progressOut := make(chan progress.PublishParams, 64)
	registrationOut := make(chan registration.Params, 64)
	msgr := messenger.New(progressOut, registrationOut, statusStore, recorder)
	go msgr.Run(syncerOut)

	publisher := progress.NewPublisher(natsConn, cfg.NATS.RootSubject, cfg.NATS.ProgressInterval, cfg.DevSleep)
	go publisher.Run(progressOut)

	regPublisher := registration.NewPublisher(amqpChannel, cfg.AMQP.Queue)
	go regPublisher.Run(registrationOut)

	handler := scp.NewHandler(scp.Config{
		AET:              cfg.SCP.AET,
		Strict:           cfg.SCP.Strict,
		UncompressedOnly: cfg.SCP.UncompressedOnly,
		Promiscuous:      cfg.SCP.Promiscuous,
		MaxPDULength:     cfg.SCP.MaxPDULength,
	}, events, nil)

	return &pipelineHandles{scpHandler: handler, events: events}
}

func connectAuditDB(cfg config.DatabaseConfig) *gorm.DB {
	if cfg.Host == "" {
		log.Info().Msg("audit database not configured, audit trail disabled")
		return nil
	}
	db, err := audit.Connect(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to audit database, audit trail disabled")
		return nil
	}
	return db
}

func connectStatusCache(cfg *config.Config) statuscache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		c, err := statuscache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to redis, falling back to memory status cache")
			return statuscache.NewMemoryCache()
		}
		return c
	}
	return statuscache.NewMemoryCache()
}

func connectAMQP(cfg config.AMQPConfig) (*amqp091.Channel, *amqp091.Connection) {
	if cfg.Address == "" {
		log.Info().Msg("amqp_address not configured, registration tasks disabled")
		return nil, nil
	}
	conn, err := amqp091.Dial(cfg.Address)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to amqp broker, registration tasks disabled")
		return nil, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Warn().Err(err).Msg("failed to open amqp channel, registration tasks disabled")
		conn.Close()
		return nil, nil
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		log.Warn().Err(err).Str("queue", cfg.Queue).Msg("failed to declare amqp queue, registration tasks disabled")
		ch.Close()
		conn.Close()
		return nil, nil
	}
	return ch, conn
}

func connectNATS(cfg config.NATSConfig) *nats.Conn {
	if cfg.Address == "" {
		log.Info().Msg("nats_address not configured, progress notifications disabled")
		return nil
	}
	nc, err := nats.Connect(cfg.Address)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to nats, progress notifications disabled")
		return nil
	}
	return nc
}
