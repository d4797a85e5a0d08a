package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/hupe1980/toolmesh/logging"
	"github.com/wneessen/go-mail"
)

// Gmail submission endpoint and the bound on one SMTP session.
const (
	DefaultHost    = "smtp.gmail.com"
	DefaultPort    = 587
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrMissingCredentials is returned before any network activity when the
	// username or password is empty.
	ErrMissingCredentials = errors.New("email credentials not configured")

	// ErrAuthentication wraps any failure of the SMTP AUTH step.
	ErrAuthentication = errors.New("smtp authentication failed")
)

// ProtocolError is an SMTP error reply received outside the AUTH step.
type ProtocolError struct {
	Step string
	Code int
	Msg  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("smtp %s: %d %s", e.Step, e.Code, e.Msg)
}

// Detail is the server reply without the failing step.
func (e *ProtocolError) Detail() string {
	return fmt.Sprintf("%d %s", e.Code, e.Msg)
}

// Message is a plain-text email. CC is optional.
type Message struct {
	To      string
	Subject string
	Body    string
	CC      string
}

// session is the subset of *smtp.Client a send needs.
type session interface {
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type dialFunc func(ctx context.Context, addr string) (session, error)

// Options configure a Sender.
type Options struct {
	Username string
	Password string
	Host     string
	Port     int
	Timeout  time.Duration
	Logger   logging.Logger

	dial dialFunc
}

// Sender delivers Messages over SMTP with STARTTLS and PLAIN auth.
type Sender struct {
	opts Options
}

// NewSender creates a Sender. Credentials are checked on every Send, not here.
func NewSender(optFns ...func(o *Options)) *Sender {
	opts := Options{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.dial == nil {
		opts.dial = dialSMTP(opts.Host, opts.Timeout)
	}

	return &Sender{opts: opts}
}

// Configured reports whether both credentials are present.
func (s *Sender) Configured() bool {
	return s.opts.Username != "" && s.opts.Password != ""
}

// Send delivers msg. Failures of the AUTH step match ErrAuthentication, other
// SMTP replies are *ProtocolError, everything else is returned wrapped.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return ErrMissingCredentials
	}

	raw, recipients, err := s.build(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))

	sess, err := s.opts.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer sess.Close() // nolint: errcheck

	if err := sess.StartTLS(&tls.Config{ServerName: s.opts.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return classify("starttls", err)
	}

	if err := sess.Auth(smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Host)); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	if err := sess.Mail(s.opts.Username); err != nil {
		return classify("mail", err)
	}

	for _, rcpt := range recipients {
		if err := sess.Rcpt(rcpt); err != nil {
			return classify("rcpt", err)
		}
	}

	w, err := sess.Data()
	if err != nil {
		return classify("data", err)
	}

	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message: %w", err)
	}

	if err := w.Close(); err != nil {
		return classify("data", err)
	}

	if err := sess.Quit(); err != nil {
		return classify("quit", err)
	}

	return nil
}

// Report is the string form of Send handed to agents. It never fails.
func (s *Sender) Report(ctx context.Context, to, subject, body, cc string) string {
	err := s.Send(ctx, Message{To: to, Subject: subject, Body: body, CC: cc})
	if err == nil {
		s.opts.Logger.Info("email.send.success", "to", to, "cc", cc)
		return fmt.Sprintf("Email sent successfully to %s", to)
	}

	s.opts.Logger.Error("email.send.error", "to", to, "error", err.Error())

	var protoErr *ProtocolError

	switch {
	case errors.Is(err, ErrMissingCredentials):
		return "Email sending failed: Gmail credentials not configured."
	case errors.Is(err, ErrAuthentication):
		return "Email sending failed: Authentication error. Please check your Gmail credentials."
	case errors.As(err, &protoErr):
		return fmt.Sprintf("Email sending failed: SMTP error - %s", protoErr.Detail())
	default:
		return fmt.Sprintf("An error occurred while sending email: %v", err)
	}
}

// build renders msg as RFC 5322 bytes and returns the envelope recipients.
func (s *Sender) build(msg Message) ([]byte, []string, error) {
	m := mail.NewMsg()

	if err := m.From(s.opts.Username); err != nil {
		return nil, nil, fmt.Errorf("invalid sender address: %w", err)
	}

	if err := m.To(msg.To); err != nil {
		return nil, nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	if msg.CC != "" {
		if err := m.Cc(msg.CC); err != nil {
			return nil, nil, fmt.Errorf("invalid cc address: %w", err)
		}
	}

	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	recipients, err := m.GetRecipients()
	if err != nil {
		return nil, nil, fmt.Errorf("collect recipients: %w", err)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("render message: %w", err)
	}

	return buf.Bytes(), recipients, nil
}

func classify(step string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &ProtocolError{Step: step, Code: tpErr.Code, Msg: tpErr.Msg}
	}

	return fmt.Errorf("smtp %s: %w", step, err)
}

func dialSMTP(host string, timeout time.Duration) dialFunc {
	return func(ctx context.Context, addr string) (session, error) {
		d := net.Dialer{Timeout: timeout}

		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}

		deadline := time.Now().Add(timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}

		_ = conn.SetDeadline(deadline)

		c, err := smtp.NewClient(conn, host)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}

		return c, nil
	}
}
