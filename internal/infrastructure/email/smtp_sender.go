package email

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

type SMTPSender struct {
	lg zerolog.Logger

	host     string
	port     int
	user     string
	pass     string
	from     string
	insecure bool

	timeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Insecure bool
}

func NewSMTPSender(cfg SMTPConfig, lg zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		lg:       lg.With().Str("component", "smtp_sender").Logger(),
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.Username,
		pass:     cfg.Password,
		from:     cfg.From,
		insecure: cfg.Insecure,
		timeout:  cfg.Timeout,
	}
}

func (s *SMTPSender) SendOrderConfirmation(ctx context.Context, toEmail, orderID string) error {
	subject := "Confirmación de pedido"
	text := fmt.Sprintf("Hemos recibido tu pedido %s. Te avisaremos cuando avance.\n", orderID)
	htmlBody := renderBasicHTML(
		"Pedido recibido",
		fmt.Sprintf("Tu pedido %s fue registrado correctamente.", orderID),
	)
	return s.send(ctx, toEmail, subject, text, htmlBody)
}

func (s *SMTPSender) SendQuotationConfirmation(ctx context.Context, toEmail, quotationID string) error {
	subject := "Confirmación de cotización"
	text := fmt.Sprintf("Tu cotización %s fue registrada. Pronto un técnico la revisará.\n", quotationID)
	htmlBody := renderBasicHTML(
		"Cotización registrada",
		fmt.Sprintf("Tu cotización %s fue registrada correctamente.", quotationID),
	)
	return s.send(ctx, toEmail, subject, text, htmlBody)
}

func (s *SMTPSender) SendTechnicianAssigned(ctx context.Context, toEmail, quotationID, technicianID string) error {
	subject := "Técnico asignado a tu cotización"
	text := fmt.Sprintf("Se asignó un técnico a la cotización %s.\nTécnico: %s\n", quotationID, technicianID)
	return s.send(ctx, toEmail, subject, text, "")
}

func (s *SMTPSender) SendApprovalNeeded(ctx context.Context, toEmail, quotationID, proposedStatus string) error {
	subject := "Cambio de estado pendiente de aprobación"
	text := fmt.Sprintf("La cotización %s tiene un cambio de estado propuesto a %s que requiere revisión de oficina.\n", quotationID, proposedStatus)
	return s.send(ctx, toEmail, subject, text, "")
}

func (s *SMTPSender) SendWelcome(ctx context.Context, toEmail, name string) error {
	subject := "Bienvenido a Industria"
	text := fmt.Sprintf("Hola %s,\n\nTu cuenta fue creada correctamente.\n", name)
	htmlBody := renderBasicHTML(
		"Bienvenido",
		fmt.Sprintf("Hola %s, tu cuenta fue creada correctamente.", name),
	)
	return s.send(ctx, toEmail, subject, text, htmlBody)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return PermanentError{msg: "invalid from address: " + err.Error()}
	}
	if err := m.To(to); err != nil {
		return PermanentError{msg: "invalid to address: " + err.Error()}
	}
	m.Subject(subject)

	m.SetBodyString(mail.TypeTextPlain, textBody)
	if htmlBody != "" {
		m.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}

	tlsPolicy := mail.TLSMandatory
	if s.insecure {
		tlsPolicy = mail.TLSOpportunistic
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.user != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(s.user), mail.WithPassword(s.pass))
	}

	c, err := mail.NewClient(s.host, opts...)
	if err != nil {
		return PermanentError{msg: "smtp client init failed: " + err.Error()}
	}

	s.lg.Info().Str("host", s.host).Int("port", s.port).Str("to", to).Str("subject", subject).Msg("attempting smtp send")
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.lg.Error().Err(err).Str("to", to).Msg("smtp send failed")

		msg := err.Error()
		if containsAny(msg, "535", "5.7.8", "authentication", "Username and Password not accepted") {
			return PermanentError{msg: "smtp auth failed: " + msg}
		}
		return TemporaryError{msg: "smtp transient failure: " + msg}
	}

	s.lg.Info().Str("to", to).Msg("smtp send ok")
	return nil
}

func renderBasicHTML(title, intro string) string {
	escTitle := html.EscapeString(title)
	escIntro := html.EscapeString(intro)

	// simple inline HTML (works in Gmail)
	return `<!doctype html>
<html>
  <body style="font-family:Arial,Helvetica,sans-serif; line-height:1.4;">
    <h2>` + escTitle + `</h2>
    <p>` + escIntro + `</p>
    <p style="color:#555; font-size:12px;">Industria — no respondas a este correo.</p>
  </body>
</html>`
}

func containsAny(s string, subs ...string) bool {
	for _, x := range subs {
		if x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}

// TemporaryError marks a retriable failure (network timeout, SMTP 4xx).
type TemporaryError struct{ msg string }

func (e TemporaryError) Error() string   { return e.msg }
func (e TemporaryError) Temporary() bool { return true }
func (e TemporaryError) Permanent() bool { return false }

// PermanentError marks a non-retriable failure (bad address, hard bounce).
// The notify consumer must not burn retries on these.
type PermanentError struct{ msg string }

func (e PermanentError) Error() string   { return e.msg }
func (e PermanentError) Permanent() bool { return true }
func (e PermanentError) Temporary() bool { return false }
