package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizarena/internal/protocol"
)

// RelayConfig holds NATS relay settings.
type RelayConfig struct {
	URL           string
	SubjectPrefix string
	ReconnectWait time.Duration
}

// DefaultRelayConfig returns default NATS relay configuration.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "quiz.events",
		ReconnectWait: 2 * time.Second,
	}
}

// Relay mirrors every room broadcast onto NATS so external observers
// (projector views, dashboards) can follow a game without holding a player
// connection. Gameplay never depends on it: publish failures are logged and
// dropped.
type Relay struct {
	nc     *nats.Conn
	prefix string
}

// NewRelay connects to NATS.
func NewRelay(config RelayConfig) (*Relay, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", config.URL).
		Str("subject_prefix", config.SubjectPrefix).
		Msg("game event relay connected")

	return &Relay{nc: nc, prefix: config.SubjectPrefix}, nil
}

// Publish mirrors one broadcast envelope to quiz.events.<code>.<type>.
func (r *Relay) Publish(gameCode string, env *protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal relay event")
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", r.prefix, gameCode, env.Type)
	if err := r.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to publish relay event")
	}
}

// Close drains and closes the NATS connection.
func (r *Relay) Close() {
	if err := r.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
	}
}
