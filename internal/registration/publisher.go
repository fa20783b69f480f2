package registration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Params is one finished series ready to register, carrying the total
// instance count the messenger tallied for it.
type Params struct {
	Info   domain.DicomInfo
	Ndicom uint32
}

// Publisher sends one celery task per finished series to the configured
// AMQP queue. A nil *amqp091.Channel makes it a no-op sink.
type Publisher struct {
	ch    *amqp091.Channel
	queue string
}

// NewPublisher constructs a Publisher bound to an already-declared queue
// on ch. ch may be nil.
func NewPublisher(ch *amqp091.Channel, queue string) *Publisher {
	return &Publisher{ch: ch, queue: queue}
}

// Run consumes in until it is closed, publishing a register_pacs_series
// task for each Params received.
func (p *Publisher) Run(in <-chan Params) {
	for params := range in {
		if err := p.publish(params); err != nil {
			log.Error().Err(err).
				Str("pacs_name", params.Info.PacsName).
				Str("series_instance_uid", params.Info.SeriesInstanceUID).
				Msg("failed to publish registration task")
			continue
		}
		log.Info().
			Str("pacs_name", params.Info.PacsName).
			Str("series_instance_uid", params.Info.SeriesInstanceUID).
			Str("celery_task_name", TaskName).
			Msg("published registration task")
	}
}

func (p *Publisher) publish(params Params) error {
	taskID := uuid.NewString()
	task, err := BuildTask(taskID, params.Info, params.Ndicom)
	if err != nil {
		return err
	}
	if p.ch == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp091.Publishing{
		ContentType:     "application/json",
		ContentEncoding: "utf-8",
		CorrelationId:   taskID,
		MessageId:       taskID,
		Headers:         amqp091.Table(task.Headers),
		Body:            task.Body,
		DeliveryMode:    amqp091.Persistent,
		Timestamp:       time.Now(),
	})
}
