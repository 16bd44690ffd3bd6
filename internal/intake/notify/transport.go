package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	awsclient "lead-intake/internal/common/aws"
	"lead-intake/internal/common/config"
	commonhttp "lead-intake/internal/common/http"
	"lead-intake/internal/common/logger"
)

// WebhookTransport posts the message text to the ops channel.
type WebhookTransport struct {
	client   *commonhttp.Client
	envelope bool
}

func NewWebhookTransport(url string, timeout time.Duration, envelope bool, opts ...commonhttp.Option) *WebhookTransport {
	return &WebhookTransport{
		client:   commonhttp.NewClient(url, timeout, opts...),
		envelope: envelope,
	}
}

func (w *WebhookTransport) Send(ctx context.Context, msg Message) error {
	if w.envelope {
		return w.client.DoJSON(ctx, http.MethodPost, "", map[string]string{"text": msg.Text}, nil)
	}
	return w.client.PostText(ctx, "", msg.Text)
}

type SNSTransport struct {
	client   *awsclient.SNSClient
	topicARN string
}

func NewSNSTransport(client *awsclient.SNSClient, topicARN string) *SNSTransport {
	return &SNSTransport{client: client, topicARN: topicARN}
}

func (s *SNSTransport) Send(ctx context.Context, msg Message) error {
	_, err := s.client.PublishText(ctx, s.topicARN, msg.Subject, msg.Text)
	return err
}

type SESTransport struct {
	client *awsclient.SESClient
	from   string
	to     []string
}

func NewSESTransport(client *awsclient.SESClient, from string, to []string) *SESTransport {
	return &SESTransport{client: client, from: from, to: to}
}

func (s *SESTransport) Send(ctx context.Context, msg Message) error {
	_, err := s.client.SendText(ctx, s.from, s.to, msg.Subject, msg.Text)
	return err
}

// LogTransport writes messages to the log. It is used when no channel is
// configured.
type LogTransport struct {
	logger logger.Logger
}

func NewLogTransport(log logger.Logger) *LogTransport {
	return &LogTransport{logger: log}
}

func (l *LogTransport) Send(_ context.Context, msg Message) error {
	l.logger.Info("notification", map[string]interface{}{
		"kind":    string(msg.Kind),
		"subject": msg.Subject,
		"text":    msg.Text,
	})
	return nil
}

// Multi fans a message out to every transport and joins their errors.
type Multi []Transport

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewTransport builds the transports enabled in cfg. With none enabled the
// result logs messages instead.
func NewTransport(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (Transport, error) {
	var multi Multi

	if cfg.Webhook.Enabled {
		if cfg.Webhook.URL == "" {
			return nil, fmt.Errorf("notifications.webhook.url is required")
		}
		multi = append(multi, NewWebhookTransport(
			cfg.Webhook.URL,
			config.GetDuration(cfg.Webhook.Timeout),
			cfg.Webhook.Envelope,
		))
	}

	if cfg.AWS.SES.Enabled || cfg.AWS.SNS.Enabled {
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		if cfg.AWS.SNS.Enabled {
			multi = append(multi, NewSNSTransport(awsclient.NewSNSClient(awsCfg), cfg.AWS.SNS.TopicARN))
		}
		if cfg.AWS.SES.Enabled {
			multi = append(multi, NewSESTransport(awsclient.NewSESClient(awsCfg), cfg.AWS.SES.FromEmail, cfg.AWS.SES.To))
		}
	}

	switch len(multi) {
	case 0:
		return NewLogTransport(log), nil
	case 1:
		return multi[0], nil
	}
	return multi, nil
}
