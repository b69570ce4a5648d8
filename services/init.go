package services

import (
	"github.com/mailfold/mailfold/config"
	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/repository"
	"github.com/mailfold/mailfold/services/events"
	"github.com/mailfold/mailfold/services/imap"
	"github.com/mailfold/mailfold/services/sink"
	syncservice "github.com/mailfold/mailfold/services/sync"
)

type Services struct {
	Publisher   *events.RabbitMQPublisher
	MessageSink interfaces.MessageSink
	SyncEngine  interfaces.SyncEngine
}

// InitServices wires the sink and the sync engine. With no RabbitMQ URL
// configured, messages go to the log sink.
func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	services := &Services{}

	if cfg.AppConfig.RabbitMQURL != "" {
		publisherConfig := &events.PublisherConfig{
			MessageTTL:          events.DefaultMessageTTL,
			MaxRetries:          events.DefaultMaxRetries,
			PublishTimeout:      events.DefaultPublishTimeout,
			ReconnectBackoff:    events.DefaultReconnectBackoff,
			MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
		}

		publisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, publisherConfig)
		if err != nil {
			return nil, err
		}
		services.Publisher = publisher
		services.MessageSink = events.NewEventSink(publisher)
		log.Info("Publishing received messages to RabbitMQ")
	} else {
		services.MessageSink = sink.NewLogSink(log)
		log.Info("No RabbitMQ URL configured, logging received messages")
	}

	services.SyncEngine = syncservice.NewEngine(
		cfg.EngineConfig,
		imap.NewSessionFactory(log),
		services.MessageSink,
		repos.SyncCheckpointRepository,
		log,
	)

	return services, nil
}
