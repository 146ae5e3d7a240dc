// Package notifier sends operator notifications to a chat webhook.
package notifier

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/threadwalk/internal/config"
	"github.com/ibeckermayer/threadwalk/internal/notifier/providers"
)

// Sender delivers one webhook payload
type Sender interface {
	Send(ctx context.Context, url string, payload providers.Payload) (*providers.Response, error)
}

// Notifier formats messages and sends them to the configured webhook
type Notifier struct {
	sender  Sender
	url     string
	comment string
	mention string
	limiter *rate.Limiter
	log     *logrus.Entry
}

// Option adjusts a single Notify call
type Option func(*sendOptions)

type sendOptions struct {
	mention bool
	webhook string
}

// WithMention prefixes the message with the configured mention
func WithMention() Option {
	return func(o *sendOptions) { o.mention = true }
}

// WithWebhook sends to url instead of the configured webhook. An empty url
// is ignored.
func WithWebhook(url string) Option {
	return func(o *sendOptions) { o.webhook = url }
}

// New creates a notifier. perMinute <= 0 disables pacing.
func New(sender Sender, cfg config.NotifyConfig, log *logrus.Entry) *Notifier {
	limit := rate.Inf
	if cfg.PerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.PerMinute))
	}
	return &Notifier{
		sender:  sender,
		url:     cfg.WebhookURL,
		comment: cfg.Comment,
		mention: cfg.Mention,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.WithField("component", "notifier"),
	}
}

// NewFromConfig creates a notifier posting through the Discord sender
func NewFromConfig(cfg config.NotifyConfig, log *logrus.Entry) *Notifier {
	return New(providers.NewDiscordSender(30*time.Second), cfg, log)
}

// Content builds the message body text
func (n *Notifier) Content(message string, mention bool) string {
	prefix := ""
	if mention && n.mention != "" {
		prefix = n.mention + " "
	}
	return prefix + message + "\n" + n.comment
}

// Notify sends message. Without any webhook URL it logs a warning and
// returns (nil, nil). A non-2xx answer is logged and still returned; a
// transport failure is logged and returned as the error.
func (n *Notifier) Notify(ctx context.Context, message string, opts ...Option) (*providers.Response, error) {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	url := o.webhook
	if url == "" {
		url = n.url
	}
	if url == "" {
		n.log.Warn("Webhook URL not configured, notification skipped")
		return nil, nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := n.sender.Send(ctx, url, providers.Payload{Content: n.Content(message, o.mention)})
	if err != nil {
		n.log.WithError(err).Error("Notification failed")
		return nil, err
	}

	if !resp.OK() {
		n.log.WithFields(logrus.Fields{"status": resp.Status, "body": resp.Body}).Error("Webhook rejected notification")
		return resp, nil
	}

	n.log.WithField("status", resp.StatusCode).Info("Notification sent")
	return resp, nil
}
