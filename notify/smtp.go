package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SMTPDispatcher delivers notifications over SMTP.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPDispatcher creates a dispatcher for the given relay.
func NewSMTPDispatcher(cfg SMTPConfig, logger *slog.Logger) *SMTPDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPDispatcher{cfg: cfg, logger: logger}
}

// Dispatch renders and sends the event to its recipients. Transport errors
// are wrapped in ErrDispatchFailed; the caller records them as warnings.
func (d *SMTPDispatcher) Dispatch(ctx context.Context, ev Event) error {
	if len(ev.Recipients) == 0 {
		return fmt.Errorf("%w: no recipients configured", ErrDispatchFailed)
	}

	subject, body, err := Render(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(d.cfg.From); err != nil {
		return fmt.Errorf("%w: invalid sender %q: %v", ErrDispatchFailed, d.cfg.From, err)
	}
	if err := msg.To(ev.Recipients...); err != nil {
		return fmt.Errorf("%w: invalid recipients: %v", ErrDispatchFailed, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(d.cfg.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if d.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(d.cfg.Username),
			mail.WithPassword(d.cfg.Password),
		)
	}
	client, err := mail.NewClient(d.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	d.logger.Info("notification sent", "outcome", string(ev.Outcome), "recipients", len(ev.Recipients))
	return nil
}
