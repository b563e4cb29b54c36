// Package notify delivers workflow event notifications over an admin
// configured webhook and SMTP. Delivery is best effort: failures are
// logged and never surface to the caller.
package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"intakeflow/api/internal/email"
	"intakeflow/api/internal/store"
	"intakeflow/api/internal/workflow"
)

// SettingWebhookURL is the app_settings key holding the outbound webhook.
const SettingWebhookURL = "webhook_url"

// SettingsSource resolves admin settings at dispatch time so webhook
// changes take effect without a restart.
type SettingsSource interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

type recordPayload struct {
	ID          string     `json:"id"`
	ClientName  string     `json:"clientName"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"createdBy"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
}

type actorPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type webhookPayload struct {
	Event     string        `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	Record    recordPayload `json:"record"`
	Actor     *actorPayload `json:"actor,omitempty"`
	Comments  string        `json:"comments,omitempty"`
}

// EventInput describes one workflow transition to announce.
type EventInput struct {
	Event    workflow.Event
	Record   store.Record
	Actor    store.User
	Comments string
	EmailTo  []string
}

type Notifier struct {
	http     *resty.Client
	settings SettingsSource
	mailer   *email.Service
	timeout  time.Duration
	logger   *zap.Logger
}

func New(settings SettingsSource, mailer *email.Service, timeout time.Duration, logger *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Content-Type", "application/json")

	return &Notifier{
		http:     client,
		settings: settings,
		mailer:   mailer,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch sends the webhook and email for one event. Callers run it in
// a goroutine; it uses its own context so a finished HTTP request does
// not cancel delivery.
func (n *Notifier) Dispatch(input EventInput) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout+5*time.Second)
	defer cancel()

	n.sendWebhook(ctx, input)
	n.sendEmail(input)
}

func (n *Notifier) sendWebhook(ctx context.Context, input EventInput) {
	url, err := n.settings.GetSetting(ctx, SettingWebhookURL)
	if err != nil {
		n.logger.Warn("webhook url lookup failed", zap.Error(err))
		return
	}
	if url == "" {
		return
	}

	rec := input.Record
	payload := webhookPayload{
		Event:     string(input.Event),
		Timestamp: time.Now().UTC(),
		Record: recordPayload{
			ID:          rec.ID,
			ClientName:  rec.ClientName,
			Status:      string(rec.Status),
			CreatedBy:   rec.CreatedBy,
			SubmittedAt: rec.SubmittedAt,
			ReviewedAt:  rec.ReviewedAt,
		},
		Comments: input.Comments,
	}
	if input.Actor.ID != "" {
		payload.Actor = &actorPayload{
			ID:   input.Actor.ID,
			Name: input.Actor.DisplayName,
			Role: input.Actor.Role,
		}
	}

	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event", string(input.Event)),
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		n.logger.Warn("webhook rejected",
			zap.String("event", string(input.Event)),
			zap.String("record_id", rec.ID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return
	}

	n.logger.Info("webhook delivered",
		zap.String("event", string(input.Event)),
		zap.String("record_id", rec.ID),
	)
}

func (n *Notifier) sendEmail(input EventInput) {
	if n.mailer == nil || !n.mailer.IsConfigured() || len(input.EmailTo) == 0 {
		return
	}

	err := n.mailer.SendReviewNotice(
		input.EmailTo,
		input.Record.ClientName,
		workflow.Label(input.Record.Status),
		input.Actor.DisplayName,
		input.Comments,
		"",
	)
	if err != nil {
		n.logger.Warn("notification email failed",
			zap.String("event", string(input.Event)),
			zap.String("record_id", input.Record.ID),
			zap.Error(err),
		)
	}
}
