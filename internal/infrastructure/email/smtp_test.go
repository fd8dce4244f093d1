package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/modernapi/identity-system/internal/core/domain"
)

type fakeServer struct {
	failures int
	calls    int
	addr     string
	from     string
	to       []string
	msg      string
}

func (f *fakeServer) send(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("421 service not available")
	}
	f.addr, f.from, f.to, f.msg = addr, from, to, string(msg)
	return nil
}

func newTestNotifier(server *fakeServer) *SMTPNotifier {
	n := NewSMTPNotifier(Config{
		Host:     "smtp.example.com",
		Port:     587,
		UserName: "mailer",
		Password: "secret",
		From:     "no-reply@example.com",
	}, zerolog.Nop())
	n.send = server.send
	n.backoff = time.Millisecond
	return n
}

var confirmation = domain.EmailMessage{
	To:      "john.doe@example.com",
	Subject: "Confirm Email",
	Body:    "<h1>abc123</h1>",
}

func TestSMTPNotifier_Send(t *testing.T) {
	server := &fakeServer{}
	n := newTestNotifier(server)

	require.NoError(t, n.Send(context.Background(), confirmation))

	require.Equal(t, 1, server.calls)
	require.Equal(t, "smtp.example.com:587", server.addr)
	require.Equal(t, "no-reply@example.com", server.from)
	require.Equal(t, []string{"john.doe@example.com"}, server.to)

	headers, body, found := strings.Cut(server.msg, "\r\n\r\n")
	require.True(t, found)
	require.Contains(t, headers, "Subject: Confirm Email")
	require.Contains(t, headers, "To: john.doe@example.com")
	require.Contains(t, headers, `Content-Type: text/html; charset="UTF-8"`)
	require.Equal(t, "<h1>abc123</h1>", body)
}

func TestSMTPNotifier_RetriesTransientFailures(t *testing.T) {
	server := &fakeServer{failures: 2}
	n := newTestNotifier(server)

	require.NoError(t, n.Send(context.Background(), confirmation))
	require.Equal(t, 3, server.calls)
}

func TestSMTPNotifier_GivesUp(t *testing.T) {
	server := &fakeServer{failures: 10}
	n := newTestNotifier(server)

	err := n.Send(context.Background(), confirmation)
	require.Error(t, err)
	require.Contains(t, err.Error(), "421 service not available")
	require.Equal(t, defaultAttempts, server.calls)
}

func TestSMTPNotifier_NoAuthWithoutUserName(t *testing.T) {
	n := NewSMTPNotifier(Config{Host: "localhost", Port: 25}, zerolog.Nop())
	require.Nil(t, n.auth)
}

func TestLogNotifier_Send(t *testing.T) {
	require.NoError(t, NewLogNotifier(zerolog.Nop()).Send(context.Background(), confirmation))
}
