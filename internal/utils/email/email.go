package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// sendTimeout bounds a delivery when the caller's context has no earlier deadline
const sendTimeout = 30 * time.Second

// sendFunc delivers a prepared message; replaced in tests
type sendFunc func(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
	now    func() time.Time
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send:   deliver,
		now:    time.Now,
	}
}

// buildSweepReport prepares the report message for a duplicate sweep
func (s *Sender) buildSweepReport(result models.DedupResult) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.ReportEmail}
	if result.Failed > 0 {
		e.Subject = "Duplicate Card Sweep Finished With Errors"
	} else {
		e.Subject = "Duplicate Card Sweep Report"
	}

	body := fmt.Sprintf(
		"A duplicate card sweep finished at %s.\n\n"+
			"Removed: %d\n"+
			"Failed:  %d\n\n"+
			"%s\n",
		s.now().Format("2006-01-02 15:04:05"), result.Removed, result.Failed, result.Message,
	)
	if result.Failed > 0 {
		body += "\nThe remaining duplicates are kept and will be retried by the next sweep.\n"
	}
	body += "\nCard Organizer"
	e.Text = []byte(body)
	return e
}

// SendSweepReport emails the outcome of a duplicate sweep to the operator
func (s *Sender) SendSweepReport(ctx context.Context, result models.DedupResult) error {
	e := s.buildSweepReport(result)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(ctx, e, addr, auth); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		s.logger.Errorf("Failed to send sweep report to %s: %v", s.cfg.ReportEmail, err)
		return fmt.Errorf("failed to send sweep report: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.ReportEmail, e.Subject)
	return nil
}

// deliver sends e over SMTP like email.Send but gives up when ctx ends.
// The connection deadline covers a server that accepts and never answers.
func deliver(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid smtp address %q: %w", addr, err)
	}
	msg, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}
	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if len(e.To) == 0 {
		return errors.New("no recipients")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set smtp deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("failed to start tls: %w", err)
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	for _, to := range e.To {
		rcpt, err := mail.ParseAddress(to)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", to, err)
		}
		if err := c.Rcpt(rcpt.Address); err != nil {
			return fmt.Errorf("smtp RCPT TO failed: %w", err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return c.Quit()
}
