// Package services – DeliveryService
//
// This file implements DeliveryService, which pushes a finished briefing
// through the tenant's enabled channels: SMTP email (go-mail) and the
// Telegram Bot API. Channel failures never cross the boundary as errors;
// they are collected into a DeliveryResult the pipeline records on the
// briefing row, so a generated-but-undelivered briefing remains a successful
// pipeline outcome.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wneessen/go-mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/observability"
	"github.com/tbourn/go-feed-digest/internal/repo"
)

const (
	telegramAPIBase = "https://api.telegram.org"

	// telegramMaxLen is the Bot API message size limit in characters.
	telegramMaxLen = 4096
)

// DeliveryResult reports what happened on each channel for one briefing.
type DeliveryResult struct {
	// Email and Telegram are true when the respective channel accepted the
	// briefing.
	Email    bool
	Telegram bool

	// Err carries the "; "-joined channel failures, nil when every
	// attempted channel succeeded.
	Err *string
}

// DeliveryService sends briefings over the configured outbound channels.
type DeliveryService struct {
	// Cfg carries the process-wide transport credentials (SMTP account,
	// Telegram bot token). Per-tenant addressing comes from the settings
	// passed to Deliver.
	Cfg config.DeliveryConfig

	// Client is the HTTP client used for Telegram calls.
	Client *http.Client

	// sendEmail is the SMTP seam; tests replace it to avoid a live server.
	sendEmail func(ctx context.Context, to, subject, text, htmlBody string) error

	// telegramBase overrides the Bot API origin in tests.
	telegramBase string
}

// NewDeliveryService builds a DeliveryService. A nil client gets a private
// one with a conservative timeout.
func NewDeliveryService(client *http.Client, cfg config.DeliveryConfig) *DeliveryService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &DeliveryService{Cfg: cfg, Client: client}
	s.sendEmail = s.smtpSend
	return s
}

// Deliver pushes the briefing through every channel the tenant has enabled
// and addressed. Channels are independent: one failing does not stop the
// other. stats feeds the Telegram header line ("N posts from M authors").
func (s *DeliveryService) Deliver(ctx context.Context, b *domain.Briefing, set *domain.UserSettings, stats repo.Engagement) DeliveryResult {
	tr := otel.Tracer("services/DeliveryService")
	ctx, span := tr.Start(ctx, "Deliver",
		trace.WithAttributes(
			attribute.String("briefing.id", b.ID),
			attribute.Bool("channel.email", set.EmailEnabled),
			attribute.Bool("channel.telegram", set.TelegramEnabled),
		),
	)
	defer span.End()

	var (
		res  DeliveryResult
		errs []string
	)

	if set.EmailEnabled && set.Email != "" {
		send := s.sendEmail
		if send == nil {
			send = s.smtpSend
		}
		if err := send(ctx, set.Email, b.Title, b.Content, emailHTML(b)); err != nil {
			errs = append(errs, "Email: "+err.Error())
		} else {
			res.Email = true
		}
		observability.RecordDelivery("email", res.Email)
	}

	if set.TelegramEnabled && set.TelegramChatID != "" {
		if err := s.sendTelegram(ctx, set.TelegramChatID, telegramMessage(b, stats)); err != nil {
			errs = append(errs, "Telegram: "+err.Error())
		} else {
			res.Telegram = true
		}
		observability.RecordDelivery("telegram", res.Telegram)
	}

	if len(errs) > 0 {
		joined := strings.Join(errs, "; ")
		res.Err = &joined
	}
	return res
}

// smtpSend delivers one email through the configured SMTP account. The
// message carries a plain-text body with an HTML alternative.
func (s *DeliveryService) smtpSend(ctx context.Context, to, subject, text, htmlBody string) error {
	if s.Cfg.SMTPHost == "" {
		return fmt.Errorf("smtp not configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(s.Cfg.SMTPFrom); err != nil {
		return fmt.Errorf("invalid sender %q: %w", s.Cfg.SMTPFrom, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	opts := []mail.Option{
		mail.WithPort(s.Cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.Cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Cfg.SMTPUsername),
			mail.WithPassword(s.Cfg.SMTPPassword),
		)
	}
	client, err := mail.NewClient(s.Cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// sendTelegram posts one Markdown message via the Bot API.
func (s *DeliveryService) sendTelegram(ctx context.Context, chatID, text string) error {
	if s.Cfg.TelegramBotToken == "" {
		return fmt.Errorf("telegram bot token not configured")
	}
	base := s.telegramBase
	if base == "" {
		base = telegramAPIBase
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, s.Cfg.TelegramBotToken)

	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// telegramMessage prepends the digest header and enforces the Bot API size
// limit. Truncation keeps the head of the briefing; the tail is replaced by
// a marker so readers know the email copy is complete.
func telegramMessage(b *domain.Briefing, stats repo.Engagement) string {
	var sb strings.Builder
	sb.WriteString("📰 *")
	sb.WriteString(b.Title)
	sb.WriteString("*\n")
	if stats.Posts > 0 {
		fmt.Fprintf(&sb, "_%d posts from %d authors_\n", stats.Posts, stats.Authors)
	}
	sb.WriteString(strings.Repeat("─", 20))
	sb.WriteString("\n\n")
	sb.WriteString(b.Content)

	msg := sb.String()
	if utf8.RuneCountInString(msg) > telegramMaxLen {
		runes := []rune(msg)
		msg = string(runes[:telegramMaxLen-100]) + "\n\n... (truncated)"
	}
	return msg
}

// emailHTML wraps the Markdown content in a minimal HTML shell. The content
// is escaped and shown pre-wrapped rather than rendered; briefings are
// written in light Markdown that reads fine as text.
func emailHTML(b *domain.Briefing) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;background:#f6f8fa;font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;background:#ffffff;border-radius:8px;padding:32px;">
<h1 style="font-size:20px;margin-top:0;">%s</h1>
<div style="white-space:pre-wrap;font-size:14px;line-height:1.6;color:#24292f;">%s</div>
<p style="color:#57606a;font-size:12px;margin-bottom:0;">%d posts summarized · %s</p>
</div>
</body>
</html>`,
		html.EscapeString(b.Title),
		html.EscapeString(b.Content),
		b.RecordCount,
		b.CreatedAt.UTC().Format("January 2, 2006"),
	)
}
