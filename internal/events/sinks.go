package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/email"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
)

// LogSink writes every event at info level.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Handle(ctx context.Context, env Envelope) error {
	logger.From(ctx).Info("domain event",
		logger.EventKind(string(env.Kind)),
		logger.Any("payload", env.Payload),
	)
	return nil
}

// RedisSink publishes the JSON envelope on a pub/sub channel.
type RedisSink struct {
	Client  *redis.Client
	Channel string
}

func (s RedisSink) Name() string { return "redis" }

func (s RedisSink) Handle(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.Client.Publish(ctx, s.Channel, b).Err()
}

// MailSink sends the welcome email on UserRegistered and ignores other kinds.
type MailSink struct {
	Sender  email.Sender
	AppName string
}

func (s MailSink) Name() string { return "mail" }

func (s MailSink) Handle(ctx context.Context, env Envelope) error {
	reg, ok := env.Payload.(UserRegistered)
	if !ok || reg.Email == "" {
		return nil
	}
	provider := config.DisplayNames[reg.Provider]
	if provider == "" {
		provider = reg.Provider
	}
	subject, html, text, err := email.RenderWelcome(email.WelcomeVars{
		AppName:  s.AppName,
		Email:    reg.Email,
		Provider: provider,
	})
	if err != nil {
		return err
	}
	return s.Sender.Send(ctx, reg.Email, subject, html, text)
}

// MetricsSink counts emitted events by kind.
type MetricsSink struct{ Metrics Observer }

func (MetricsSink) Name() string { return "metrics" }

func (s MetricsSink) Handle(_ context.Context, env Envelope) error {
	s.Metrics.ObserveEvent(string(env.Kind), "emitted")
	return nil
}
