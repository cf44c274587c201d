// Package events publishes a match.created event for every committed pair.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/matchmaking"
	"github.com/spigell/matchmaker/internal/models"
)

const (
	TypeMatchCreated = "match.created"
	source           = "matchmaker"
)

type MatchCreated struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	MatchID   string    `json:"match_id"`
	Users     [2]string `json:"users"`
	Rating    int       `json:"compatibility_rating"`
	Themes    []string  `json:"highlighted_themes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
	newID  func() string
	logger *zap.Logger
}

var _ matchmaking.Publisher = (*Producer)(nil)

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newProducer(writer, topic, logger)
}

func newProducer(writer messageWriter, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{writer: writer, topic: topic, newID: uuid.NewString, logger: logger}
}

// Publish writes one message per edge in a single batch. Messages are keyed by the
// canonical match id so both users' events for a pair land on the same partition.
func (p *Producer) Publish(ctx context.Context, runID string, edges []matchmaking.Edge, createdAt time.Time) error {
	if len(edges) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(edges))
	for _, e := range edges {
		event := MatchCreated{
			ID:        p.newID(),
			Type:      TypeMatchCreated,
			RunID:     runID,
			MatchID:   models.CanonicalMatchID(e.Subject, e.Candidate),
			Users:     [2]string{e.Subject, e.Candidate},
			Rating:    e.Result.CompatibilityRating,
			Themes:    e.Result.HighlightedThemes,
			CreatedAt: createdAt,
		}

		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(event.MatchID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(TypeMatchCreated)},
				{Key: "source", Value: []byte(source)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("write %d events to %s: %w", len(messages), p.topic, err)
	}

	p.logger.Info("match events published",
		zap.String("topic", p.topic),
		zap.String("run_id", runID),
		zap.Int("events", len(messages)),
	)

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
