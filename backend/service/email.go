package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"mime"
	"os"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/AnTengye/cvintake/backend/model"
	"github.com/AnTengye/cvintake/backend/pkg/logger"
)

// Dispatch result statuses
const (
	EmailStatusSent  = "sent"
	EmailStatusError = "error"
)

// EmailSender delivers a single HTML message
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// GmailSender sends mail through the Gmail API as the configured From address
type GmailSender struct {
	svc  *gmail.Service
	from string
}

var _ EmailSender = (*GmailSender)(nil)

// NewGmailSender builds a Gmail client. Without explicit options it uses the
// service account in cfg.CredentialsFile with domain-wide delegation to cfg.From.
func NewGmailSender(ctx context.Context, cfg *config.EmailConfig, opts ...option.ClientOption) (*GmailSender, error) {
	if len(opts) == 0 {
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read gmail credentials: %w", err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(b, gmail.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("parse gmail credentials: %w", err)
		}
		jwtCfg.Subject = cfg.From
		opts = append(opts, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailSender{svc: svc, from: cfg.From}, nil
}

func (s *GmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	raw, err := buildMIMEMessage(s.from, to, subject, htmlBody)
	if err != nil {
		return err
	}
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}

	if _, err := s.svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	return nil
}

// errHeaderLineBreak rejects header values that would start a new header line
var errHeaderLineBreak = errors.New("email header contains a line break")

func buildMIMEMessage(from, to, subject, htmlBody string) (string, error) {
	for _, v := range []string{from, to, subject} {
		if strings.ContainsAny(v, "\r\n") {
			return "", errHeaderLineBreak
		}
	}

	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.String(), nil
}

var (
	namePolicy = bluemonday.StrictPolicy()
	bodyPolicy = bluemonday.UGCPolicy()
)

// RenderFollowUp renders the "CV under review" message for an applicant
func RenderFollowUp(name, cvURL string) string {
	safeName := strings.TrimSpace(namePolicy.Sanitize(name))
	if safeName == "" {
		safeName = "Applicant"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Dear %s,</p>", safeName)
	b.WriteString("<p>Thank you for submitting your application. We wanted to let you know that your CV is currently under review by our team.</p>")
	if cvURL != "" {
		fmt.Fprintf(&b, `<p>You can view the CV you submitted <a href="%s">here</a>.</p>`, html.EscapeString(cvURL))
	}
	b.WriteString("<p>We appreciate your interest in joining our company and will be in touch soon with updates on your application status.</p>")
	b.WriteString("<p>If you have any questions in the meantime, please don't hesitate to contact us.</p>")
	b.WriteString("<p>Best regards,<br>The Recruitment Team</p>")

	return bodyPolicy.Sanitize(b.String())
}

// EmailResult reports the outcome for one scheduled e-mail
type EmailResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	To     string `json:"to"`
	Error  string `json:"error,omitempty"`
}

// EmailDispatcher sends scheduled follow-ups once they are due
type EmailDispatcher struct {
	queue      EmailQueue
	sender     EmailSender
	limiter    *rate.Limiter
	subject    string
	batchLimit int
	now        func() time.Time
}

func NewEmailDispatcher(queue EmailQueue, sender EmailSender, cfg *config.EmailConfig) *EmailDispatcher {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &EmailDispatcher{
		queue:      queue,
		sender:     sender,
		limiter:    rate.NewLimiter(limit, burst),
		subject:    cfg.Subject,
		batchLimit: cfg.BatchLimit,
		now:        time.Now,
	}
}

// DispatchDue sends every due e-mail up to the batch limit. A failed send is
// recorded on the queue entry and reported in the results; it does not stop
// the batch. The returned error is only for queue or context failures.
func (d *EmailDispatcher) DispatchDue(ctx context.Context) ([]EmailResult, error) {
	due, err := d.queue.Due(ctx, d.now(), d.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("load due emails: %w", err)
	}
	if len(due) == 0 {
		logger.Info(ctx, "no emails to send")
		return nil, nil
	}

	logger.Info(ctx, "dispatching scheduled emails", "count", len(due))

	results := make([]EmailResult, 0, len(due))
	for _, e := range due {
		if err := d.limiter.Wait(ctx); err != nil {
			return results, err
		}
		results = append(results, d.dispatchOne(ctx, e))
	}
	return results, nil
}

func (d *EmailDispatcher) dispatchOne(ctx context.Context, e *model.ScheduledEmail) EmailResult {
	ctx = logger.WithApplicationID(ctx, e.ApplicationID)
	result := EmailResult{ID: e.ID, To: e.To}

	if d.sender == nil {
		result.Status = EmailStatusError
		result.Error = "email sending is not configured"
		d.markFailed(ctx, e.ID, result.Error)
		return result
	}

	err := d.sender.Send(ctx, e.To, d.subject, RenderFollowUp(e.Name, e.CVURL))
	if err != nil {
		logger.Error(ctx, "failed to send follow-up email", "email_id", e.ID, "error", err)
		result.Status = EmailStatusError
		result.Error = err.Error()
		d.markFailed(ctx, e.ID, result.Error)
		return result
	}

	if err := d.queue.MarkSent(ctx, e.ID, d.now().UTC()); err != nil {
		logger.Warn(ctx, "email sent but could not be marked", "email_id", e.ID, "error", err)
	}
	logger.Info(ctx, "follow-up email sent", "email_id", e.ID)
	result.Status = EmailStatusSent
	return result
}

func (d *EmailDispatcher) markFailed(ctx context.Context, id, msg string) {
	if err := d.queue.MarkFailed(ctx, id, msg); err != nil {
		logger.Warn(ctx, "failed to record email failure", "email_id", id, "error", err)
	}
}
