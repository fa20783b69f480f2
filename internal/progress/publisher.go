package progress

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Priority controls whether a notification can be dropped under load.
type Priority int

const (
	// PriorityOptional notifications may be skipped by the rate limiter.
	PriorityOptional Priority = iota
	// PriorityRequired notifications always publish.
	PriorityRequired
	// PriorityLast notifications always publish and clear the subject's
	// rate-limit state first, guaranteeing the very next notification for
	// that subject (on a new series) is never skipped.
	PriorityLast
)

// PublishParams pairs a Message with the priority it should publish at.
type PublishParams struct {
	Message  Message
	Priority Priority
}

// Publisher delivers LONK messages to NATS, dropping Optional messages
// the Limiter decides to skip. A nil *nats.Conn makes the Publisher a
// no-op sink, matching spec.md's optional progress bus: nats_address
// unset means no progress notifications, not a startup failure.
type Publisher struct {
	nc          *nats.Conn
	rootSubject string
	limiter     *Limiter
	devSleep    time.Duration
}

// NewPublisher constructs a Publisher. nc may be nil.
func NewPublisher(nc *nats.Conn, rootSubject string, progressInterval, devSleep time.Duration) *Publisher {
	return &Publisher{
		nc:          nc,
		rootSubject: rootSubject,
		limiter:     NewLimiter(progressInterval),
		devSleep:    devSleep,
	}
}

// Run consumes in until it is closed, publishing each message according
// to its priority.
func (p *Publisher) Run(in <-chan PublishParams) {
	for params := range in {
		p.publish(params)
		if p.devSleep > 0 {
			log.Info().Dur("dev_sleep", p.devSleep).Msg("dev_sleep is set, throttling progress publisher - unset in production")
			time.Sleep(p.devSleep)
		}
	}
}

func (p *Publisher) publish(params PublishParams) {
	subject := SubjectOf(p.rootSubject, params.Message.Series)

	if params.Priority == PriorityLast {
		p.limiter.Forget(subject)
	}

	if params.Priority != PriorityOptional {
		if err := p.send(subject, params.Message); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("failed to publish lonk message")
		}
		return
	}

	err := p.limiter.Lock(subject, func() error { return p.send(subject, params.Message) })
	switch err {
	case nil:
		return
	case ErrTooSoon, ErrBusy:
		log.Trace().Str("subject", subject).Err(err).Msg("progress notification skipped")
	default:
		log.Error().Err(err).Str("subject", subject).Msg("failed to publish lonk message")
	}
}

func (p *Publisher) send(subject string, m Message) error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Publish(subject, Encode(m))
}
