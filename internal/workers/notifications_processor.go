// internal/workers/notifications_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/ammerola/beadledger/internal/adapters/queue"
	"github.com/ammerola/beadledger/internal/core/ports"
	"github.com/ammerola/beadledger/internal/pkg/config"
)

// Mailer sends a plain text email
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPMailer returns nil when no SMTP host is configured
func NewSMTPMailer(cfg config.NotifyConfig) *SMTPMailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPMailer{
		addr: cfg.SMTPHost + ":" + strconv.Itoa(cfg.SMTPPort),
		auth: auth,
		from: cfg.From,
	}
}

// Send delivers one message. net/smtp has no context support; ctx is only checked up front.
func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, strings.Join(to, ", "), subject, body,
	))
	if err := smtp.SendMail(m.addr, m.auth, m.from, to, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NotificationProcessor handles stock depletion notices
type NotificationProcessor struct {
	mailer Mailer
	to     []string
	logger *slog.Logger
}

// NewNotificationProcessor creates a new notification processor. A nil mailer only logs.
func NewNotificationProcessor(mailer Mailer, to []string, logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		mailer: mailer,
		to:     to,
		logger: logger.With(slog.String("processor", "notification")),
	}
}

// ProcessStockDepleted handles sku:depleted
func (p *NotificationProcessor) ProcessStockDepleted(ctx context.Context, t *asynq.Task) error {
	event, err := queue.ParseSKUDepleted(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	p.logger.WarnContext(ctx, "sku out of stock",
		slog.String("sku_id", event.SKUID.String()),
		slog.String("sku_code", event.SKUCode),
		slog.String("action", event.Action))

	if p.mailer == nil || len(p.to) == 0 {
		return nil
	}

	subject, body := depletionMessage(event)
	if err := p.mailer.Send(ctx, p.to, subject, body); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "depletion notice sent",
		slog.String("sku_code", event.SKUCode),
		slog.Int("recipients", len(p.to)))
	return nil
}

func depletionMessage(e ports.StockDepletedEvent) (string, string) {
	subject := fmt.Sprintf("[beadledger] %s is out of stock", e.SKUCode)
	body := fmt.Sprintf("%s (%s) reached zero available units after a %s on %s.\r\n",
		e.SKUName, e.SKUCode, strings.ToLower(e.Action), e.OccurredAt.Format("2006-01-02 15:04 MST"))
	return subject, body
}
