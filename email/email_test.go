package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	tlsErr   error
	authErr  error
	mailErr  error
	rcptErr  error
	closeErr error

	tlsServerName string
	from          string
	rcpts         []string
	data          bytes.Buffer
	quit          bool
	closed        bool
}

type fakeData struct {
	s *fakeSession
}

func (d fakeData) Write(p []byte) (int, error) { return d.s.data.Write(p) }
func (d fakeData) Close() error                { return d.s.closeErr }

func (s *fakeSession) StartTLS(cfg *tls.Config) error {
	s.tlsServerName = cfg.ServerName
	return s.tlsErr
}

func (s *fakeSession) Auth(smtp.Auth) error { return s.authErr }

func (s *fakeSession) Mail(from string) error {
	s.from = from
	return s.mailErr
}

func (s *fakeSession) Rcpt(to string) error {
	s.rcpts = append(s.rcpts, to)
	return s.rcptErr
}

func (s *fakeSession) Data() (io.WriteCloser, error) { return fakeData{s: s}, nil }

func (s *fakeSession) Quit() error {
	s.quit = true
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func newTestSender(user, pass string, sess *fakeSession, dials *int) *Sender {
	return NewSender(func(o *Options) {
		o.Username = user
		o.Password = pass
		o.dial = func(_ context.Context, addr string) (session, error) {
			*dials++
			if addr != "smtp.gmail.com:587" {
				return nil, errors.New("unexpected address " + addr)
			}
			return sess, nil
		}
	})
}

func TestSend_MissingCredentialsNeverDials(t *testing.T) {
	for _, tc := range []struct{ user, pass string }{
		{"", "secret"},
		{"me@gmail.com", ""},
		{"", ""},
	} {
		dials := 0
		s := newTestSender(tc.user, tc.pass, &fakeSession{}, &dials)

		err := s.Send(context.Background(), Message{To: "a@example.com", Subject: "hi", Body: "x"})
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.Equal(t, "Email sending failed: Gmail credentials not configured.",
			s.Report(context.Background(), "a@example.com", "hi", "x", ""))
		assert.Zero(t, dials)
	}
}

func TestSend_Success(t *testing.T) {
	dials := 0
	sess := &fakeSession{}
	s := newTestSender("me@gmail.com", "app-password", sess, &dials)

	report := s.Report(context.Background(), "friend@example.com", "Hello", "See you soon.", "boss@example.com")
	assert.Equal(t, "Email sent successfully to friend@example.com", report)

	assert.Equal(t, 1, dials)
	assert.Equal(t, "smtp.gmail.com", sess.tlsServerName)
	assert.Equal(t, "me@gmail.com", sess.from)
	assert.ElementsMatch(t, []string{"friend@example.com", "boss@example.com"}, sess.rcpts)
	assert.True(t, sess.quit)
	assert.True(t, sess.closed)

	raw := sess.data.String()
	assert.Contains(t, raw, "Subject: Hello")
	assert.Contains(t, raw, "<friend@example.com>")
	assert.Contains(t, raw, "Cc: <boss@example.com>")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "See you soon.")
}

func TestSend_WithoutCC(t *testing.T) {
	dials := 0
	sess := &fakeSession{}
	s := newTestSender("me@gmail.com", "pw", sess, &dials)

	require.NoError(t, s.Send(context.Background(), Message{To: "friend@example.com", Subject: "s", Body: "b"}))
	assert.Equal(t, []string{"friend@example.com"}, sess.rcpts)
	assert.False(t, strings.Contains(sess.data.String(), "Cc:"))
}

func TestSend_FailureClasses(t *testing.T) {
	tests := []struct {
		name   string
		sess   *fakeSession
		check  func(t *testing.T, err error)
		report string
	}{
		{
			name: "auth",
			sess: &fakeSession{authErr: &textproto.Error{Code: 535, Msg: "5.7.8 Username and Password not accepted"}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAuthentication)
			},
			report: "Email sending failed: Authentication error. Please check your Gmail credentials.",
		},
		{
			name: "protocol",
			sess: &fakeSession{rcptErr: &textproto.Error{Code: 550, Msg: "5.1.1 No such user"}},
			check: func(t *testing.T, err error) {
				var pe *ProtocolError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, "rcpt", pe.Step)
				assert.Equal(t, 550, pe.Code)
			},
			report: "Email sending failed: SMTP error - 550 5.1.1 No such user",
		},
		{
			name: "generic",
			sess: &fakeSession{tlsErr: errors.New("tls: handshake failure")},
			check: func(t *testing.T, err error) {
				assert.NotErrorIs(t, err, ErrAuthentication)
				var pe *ProtocolError
				assert.False(t, errors.As(err, &pe))
			},
			report: "An error occurred while sending email: smtp starttls: tls: handshake failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dials := 0
			s := newTestSender("me@gmail.com", "pw", tt.sess, &dials)

			tt.check(t, s.Send(context.Background(), Message{To: "a@example.com", Subject: "s", Body: "b"}))
			assert.Equal(t, tt.report, s.Report(context.Background(), "a@example.com", "s", "b", ""))
		})
	}
}

func TestSend_DialError(t *testing.T) {
	s := NewSender(func(o *Options) {
		o.Username = "me@gmail.com"
		o.Password = "pw"
		o.dial = func(context.Context, string) (session, error) {
			return nil, errors.New("connection refused")
		}
	})

	report := s.Report(context.Background(), "a@example.com", "s", "b", "")
	assert.Equal(t, "An error occurred while sending email: connect smtp.gmail.com:587: connection refused", report)
}

func TestSend_InvalidAddress(t *testing.T) {
	dials := 0
	s := newTestSender("me@gmail.com", "pw", &fakeSession{}, &dials)

	err := s.Send(context.Background(), Message{To: "not an address", Subject: "s", Body: "b"})
	assert.Error(t, err)
	assert.Zero(t, dials)
}

func TestNewSender_TimeoutFallsBackToDefault(t *testing.T) {
	s := NewSender(func(o *Options) { o.Timeout = 0 })
	assert.Equal(t, DefaultTimeout, s.opts.Timeout)

	s = NewSender(func(o *Options) { o.Timeout = 5 * time.Second })
	assert.Equal(t, 5*time.Second, s.opts.Timeout)
}
