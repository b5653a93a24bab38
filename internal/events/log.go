package events

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// LogPublisher writes audit events to the log. It stands in for a broker when
// none is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "audit").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, routingKey string, body []byte) error {
	evt := p.logger.Info().Str("routing_key", routingKey)
	if json.Valid(body) {
		evt = evt.RawJSON("event", body)
	} else {
		evt = evt.Bytes("event", body)
	}
	evt.Msg("Audit event")
	return nil
}
