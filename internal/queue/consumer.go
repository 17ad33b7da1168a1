package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event. A returned error rejects the
// delivery without requeue.
type Handler func(ctx context.Context, ev Event) error

// Decode parses a broker message body into an Event.
func Decode(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, errors.New("event without type")
	}
	return ev, nil
}

// ConsumeRabbit consumes the durable queue until ctx is cancelled,
// reconnecting with exponential backoff (capped at 30s) when the broker
// drops the connection.
func ConsumeRabbit(ctx context.Context, url, queue string, h Handler, log zerolog.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queue, h, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("consumer: loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, h Handler, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := dispatch(ctx, d.Body, h); err != nil {
				log.Error().Err(err).Msg("consumer: handle message failed")
				_ = d.Nack(false, false) // no requeue, avoids tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// ConsumeKafka reads the topic as part of groupID until ctx is cancelled.
func ConsumeKafka(ctx context.Context, broker, topic, groupID string, h Handler, log zerolog.Logger) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer r.Close()

	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("consumer: kafka read failed")
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		if err := dispatch(ctx, msg.Value, h); err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("consumer: handle message failed")
		}
	}
}

func dispatch(ctx context.Context, body []byte, h Handler) error {
	ev, err := Decode(body)
	if err != nil {
		return err
	}
	return h(ctx, ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// LogHandler writes one structured line per event. It backs the notify
// command.
func LogHandler(log zerolog.Logger) Handler {
	return func(_ context.Context, ev Event) error {
		e := log.Info().Str("event_id", ev.ID).Str("type", ev.Type).Time("occurred_at", ev.OccurredAt)
		switch ev.Type {
		case TypeUserRegistered:
			var p UserRegistered
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return err
			}
			e = e.Str("user_id", p.UserID).Str("email", p.Email).Str("role", p.Role)
		case TypeMessageCreated:
			var p MessageCreated
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return err
			}
			e = e.Str("message_id", p.MessageID).Str("email", p.Email).Str("subject", p.Subject)
		case TypeProductDeleted:
			var p ProductDeleted
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return err
			}
			e = e.Str("product_id", p.ProductID).Strs("images_pending", p.ImagesPending)
		default:
			e = e.RawJSON("payload", ev.Payload)
		}
		e.Msg("event received")
		return nil
	}
}
