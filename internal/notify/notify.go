package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Outcome describes how a job ended
type Outcome struct {
	Success bool
	Matches int
	Err     error
}

// Message renders the subject and body sent for an outcome
func Message(jobID string, outcome Outcome) (subject, body string) {
	if outcome.Success {
		return "Your Results are Ready!",
			"Your results have been processed and are ready to be downloaded. " +
				"Request them with your user id and this job id: " + jobID
	}
	return "Error With Job!", "Error processing job with id: " + jobID + " please try submitting again."
}

// LogNotifier only logs; used when no mail server is configured
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, address, jobID string, outcome Outcome) error {
	subject, _ := Message(jobID, outcome)
	log.Info().
		Str("to", address).
		Str("jobId", jobID).
		Bool("success", outcome.Success).
		Str("subject", subject).
		Msg("Notification (not sent, SMTP disabled)")
	return nil
}

// SMTPNotifier delivers notifications over implicit TLS (SMTPS)
type SMTPNotifier struct {
	host     string
	port     int
	from     string
	password string
	timeout  time.Duration
}

func NewSMTPNotifier(host string, port int, from, password string) *SMTPNotifier {
	return &SMTPNotifier{
		host:     host,
		port:     port,
		from:     from,
		password: password,
		timeout:  30 * time.Second,
	}
}

// Notify sends one message. An empty address is a no-op.
func (n *SMTPNotifier) Notify(ctx context.Context, address, jobID string, outcome Outcome) error {
	if address == "" {
		return nil
	}

	subject, body := Message(jobID, outcome)
	msg := buildMessage(n.from, address, subject, body)

	addr := net.JoinHostPort(n.host, strconv.Itoa(n.port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: n.timeout},
		Config:    &tls.Config{ServerName: n.host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, n.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if n.password != "" {
		if err := client.Auth(smtp.PlainAuth("", n.from, n.password, n.host)); err != nil {
			return fmt.Errorf("failed to authenticate with SMTP server: %w", err)
		}
	}
	if err := client.Mail(n.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(address); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	log.Info().Str("to", address).Str("jobId", jobID).Msg("Notification sent")
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body + "\r\n")
	return []byte(b.String())
}
