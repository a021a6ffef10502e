package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/config"
)

// mailSender is the part of *mail.Client used to deliver messages.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Email sends alerts over SMTP.
type Email struct {
	cfg    config.Email
	sender mailSender
}

// NewEmail builds an SMTP alert channel. Missing credentials are reported at
// delivery time, so a misconfigured channel fails each alert instead of the process.
func NewEmail(cfg config.Email) (*Email, error) {
	e := &Email{cfg: cfg}
	if !e.configured() {
		return e, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Sender),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	e.sender = client
	return e, nil
}

func (e *Email) configured() bool {
	return e.cfg.Host != "" && e.cfg.Sender != "" && e.cfg.Password != "" && e.cfg.Recipient != ""
}

func (e *Email) Notify(ctx context.Context, a Alert) error {
	if !e.configured() || e.sender == nil {
		return fmt.Errorf("%w: email credentials not configured", ErrDeliveryFailed)
	}

	msg, err := e.message(a)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if err := e.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: smtp send: %w", ErrDeliveryFailed, err)
	}
	return nil
}

func (e *Email) message(a Alert) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(e.cfg.Sender); err != nil {
		return nil, fmt.Errorf("sender %q: %w", e.cfg.Sender, err)
	}
	if err := msg.To(e.cfg.Recipient); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", e.cfg.Recipient, err)
	}
	msg.Subject(Subject(a))
	msg.SetBodyString(mail.TypeTextPlain, Message(a))
	return msg, nil
}
