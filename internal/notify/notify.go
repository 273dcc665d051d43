package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"recruitment/internal/metrics"
	"recruitment/internal/queue"
)

// Job is one outbound mail, serialized onto the queue.
type Job struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier delivers a message to a destination. Best-effort: no retries.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// QueueNotifier publishes mail jobs for the worker to deliver. Keeps SMTP
// off the request path.
type QueueNotifier struct {
	q queue.Queue
}

// NewQueueNotifier creates a queue-backed notifier.
func NewQueueNotifier(q queue.Queue) *QueueNotifier {
	return &QueueNotifier{q: q}
}

// Send enqueues the mail job.
func (n *QueueNotifier) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(Job{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	if err := n.q.Publish(ctx, payload); err != nil {
		return err
	}
	metrics.MailsEnqueued.Inc()
	return nil
}

// SMTPSender delivers HTML mail over SMTP. With skip set it only logs,
// which is the dev default.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	skip bool
}

// NewSMTPSender creates a sender. user/pass may be empty when skip is set.
func NewSMTPSender(addr, from, user, pass string, skip bool) *SMTPSender {
	var auth smtp.Auth
	if user != "" {
		host := addr
		if idx := strings.LastIndex(addr, ":"); idx >= 0 {
			host = addr[:idx]
		}
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPSender{addr: addr, from: from, auth: auth, skip: skip}
}

// Send delivers one message.
func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	if s.skip {
		log.Printf("mail skipped (MAIL_SKIP): to=%s subject=%q", to, subject)
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n"+
		"MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n",
		s.from, to, subject, body)
	return smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg))
}
