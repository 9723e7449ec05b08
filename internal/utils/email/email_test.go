package email

import (
	"context"
	"errors"
	"io"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/models"
)

func newTestSender(send sendFunc, username string) *Sender {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{
		SMTPHost:     "smtp.example",
		SMTPPort:     "2525",
		SMTPUsername: username,
		SMTPPassword: "secret",
		SenderEmail:  "cards@example",
		ReportEmail:  "ops@example",
	}
	s := NewSender(cfg, logger)
	s.send = send
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return s
}

func TestSendSweepReport(t *testing.T) {
	var sent *email.Email
	var gotAddr string
	var gotAuth smtp.Auth
	s := newTestSender(func(_ context.Context, e *email.Email, addr string, auth smtp.Auth) error {
		sent, gotAddr, gotAuth = e, addr, auth
		return nil
	}, "user")

	err := s.SendSweepReport(context.Background(), models.DedupResult{Message: "Removed 3 duplicate card(s)", Removed: 3})
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "smtp.example:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"ops@example"}, sent.To)
	assert.Equal(t, "cards@example", sent.From)
	assert.Equal(t, "Duplicate Card Sweep Report", sent.Subject)
	assert.Contains(t, string(sent.Text), "2026-03-01 09:30:00")
	assert.Contains(t, string(sent.Text), "Removed: 3")
	assert.NotContains(t, string(sent.Text), "retried")
}

func TestSendSweepReportWithFailures(t *testing.T) {
	var sent *email.Email
	var gotAuth smtp.Auth
	s := newTestSender(func(_ context.Context, e *email.Email, addr string, auth smtp.Auth) error {
		sent, gotAuth = e, auth
		return nil
	}, "")

	require.NoError(t, s.SendSweepReport(context.Background(), models.DedupResult{Removed: 1, Failed: 2}))
	assert.Nil(t, gotAuth, "no auth without a username")
	assert.Equal(t, "Duplicate Card Sweep Finished With Errors", sent.Subject)
	assert.Contains(t, string(sent.Text), "Failed:  2")
	assert.Contains(t, string(sent.Text), "retried by the next sweep")
}

func TestSendSweepReportError(t *testing.T) {
	s := newTestSender(func(context.Context, *email.Email, string, smtp.Auth) error {
		return errors.New("connection refused")
	}, "user")

	err := s.SendSweepReport(context.Background(), models.DedupResult{Removed: 1})
	assert.ErrorContains(t, err, "failed to send sweep report")
}

func TestSendSweepReportPassesDeadline(t *testing.T) {
	var hasDeadline bool
	s := newTestSender(func(ctx context.Context, _ *email.Email, _ string, _ smtp.Auth) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}, "")

	require.NoError(t, s.SendSweepReport(context.Background(), models.DedupResult{Removed: 1}))
	assert.True(t, hasDeadline, "delivery is always bounded")
}

// silentSMTP accepts connections and never sends a greeting
func silentSMTP(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		<-done
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestSendSweepReportGivesUpOnSilentServer(t *testing.T) {
	host, port, err := net.SplitHostPort(silentSMTP(t))
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewSender(&config.Config{
		SMTPHost:    host,
		SMTPPort:    port,
		SenderEmail: "cards@example.com",
		ReportEmail: "ops@example.com",
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = s.SendSweepReport(ctx, models.DedupResult{Removed: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
