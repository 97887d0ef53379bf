// Package mailer delivers workflow intents to people. SMTPNotifier sends mail
// through go-mail; LogNotifier only records the intent and is used when no
// SMTP host is configured.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	mail "github.com/go-mail/mail/v2"

	"github.com/heartmarshall/journal-backend/internal/config"
	"github.com/heartmarshall/journal-backend/internal/domain"
)

// Recipient is the resolved addressee of an intent.
type Recipient struct {
	Email string
	Name  string
}

// sender is satisfied by *mail.Dialer.
type sender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPNotifier sends one plain-text mail per intent.
type SMTPNotifier struct {
	dialer sender
	from   string
	office string
	log    *slog.Logger
}

// NewSMTPNotifier creates an SMTPNotifier from mail settings. STARTTLS is
// mandatory.
func NewSMTPNotifier(log *slog.Logger, cfg config.MailConfig) *SMTPNotifier {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return newSMTPNotifier(log, d, cfg.From, cfg.OfficeEmail)
}

func newSMTPNotifier(log *slog.Logger, d sender, from, office string) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: d,
		from:   from,
		office: office,
		log:    log.With("notifier", "smtp"),
	}
}

// Notify mails the intent to rcpt, or to the editorial office when the
// intent has no personal recipient.
func (n *SMTPNotifier) Notify(ctx context.Context, in domain.Intent, rcpt *Recipient) error {
	to := n.office
	if rcpt != nil && rcpt.Email != "" {
		to = rcpt.Email
	}
	if to == "" {
		return fmt.Errorf("notify %s: no recipient address", in.Kind)
	}

	subject, body := Render(in, rcpt)

	m := mail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("notify %s: send mail: %w", in.Kind, err)
	}

	n.log.DebugContext(ctx, "intent mailed",
		slog.String("kind", in.Kind.String()),
		slog.String("manuscript_id", in.ManuscriptID.String()),
		slog.String("to", to),
	)
	return nil
}

// LogNotifier writes each intent to the log instead of delivering it.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("notifier", "log")}
}

// Notify logs the intent. It never fails.
func (n *LogNotifier) Notify(ctx context.Context, in domain.Intent, rcpt *Recipient) error {
	attrs := []any{
		slog.String("kind", in.Kind.String()),
		slog.String("event", in.Event),
		slog.String("manuscript_id", in.ManuscriptID.String()),
	}
	if rcpt != nil {
		attrs = append(attrs, slog.String("to", rcpt.Email))
	}
	n.log.InfoContext(ctx, "intent dispatched", attrs...)
	return nil
}

var subjects = map[domain.IntentKind]string{
	domain.IntentNotifyAuthor:          "Update on your manuscript",
	domain.IntentNotifyEditor:          "Manuscript requires editorial attention",
	domain.IntentNotifyAssignee:        "Manuscript assigned to you",
	domain.IntentNotifyReviewer:        "Review invitation",
	domain.IntentReleaseDecisionLetter: "Decision on your manuscript",
	domain.IntentRequestPayment:        "Article processing charge",
	domain.IntentProofReady:            "Proofs ready for your review",
	domain.IntentPublishArticle:        "Your article has been published",
	domain.IntentTaskOverdue:           "Internal task overdue",
}

// Render builds the subject and plain-text body for an intent.
func Render(in domain.Intent, rcpt *Recipient) (subject, body string) {
	subject, ok := subjects[in.Kind]
	if !ok {
		subject = "Editorial workflow notification"
	}

	var b strings.Builder
	if rcpt != nil && rcpt.Name != "" {
		fmt.Fprintf(&b, "Dear %s,\n\n", rcpt.Name)
	} else {
		b.WriteString("Hello,\n\n")
	}
	fmt.Fprintf(&b, "Manuscript: %s\nEvent: %s\n", in.ManuscriptID, in.Event)

	keys := make([]string, 0, len(in.Data))
	for k := range in.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, in.Data[k])
	}
	b.WriteString("\nEditorial Office\n")
	return subject, b.String()
}
