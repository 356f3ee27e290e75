package email

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBasicHTML(t *testing.T) {
	out := renderBasicHTML("Pedido & Cotización", "intro <b>text</b>")

	assert.Contains(t, out, "Pedido &amp; Cotización")
	assert.Contains(t, out, "intro &lt;b&gt;text&lt;/b&gt;")
}

func TestContainsAny(t *testing.T) {
	msg := "535 Authentication Failed"

	assert.True(t, containsAny(msg, "535", "auth"))
	assert.False(t, containsAny(msg, "404", "missing"))
	assert.False(t, containsAny(msg, ""))
}

func TestSMTPSender_Config(t *testing.T) {
	cfg := SMTPConfig{
		Host:     "smtp.industria.example",
		Port:     587,
		Username: "user",
		Password: "password",
		From:     "noreply@industria.example",
		Timeout:  5 * time.Second,
	}

	sender := NewSMTPSender(cfg, zerolog.Nop())

	assert.Equal(t, "smtp.industria.example", sender.host)
	assert.Equal(t, 587, sender.port)
	assert.Equal(t, 5*time.Second, sender.timeout)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, TemporaryError{msg: "timeout"}.Temporary())
	assert.False(t, TemporaryError{msg: "timeout"}.Permanent())
	assert.True(t, PermanentError{msg: "bad address"}.Permanent())
	assert.False(t, PermanentError{msg: "bad address"}.Temporary())
}

func TestFakeSender_RecordsSends(t *testing.T) {
	s := NewFakeSender(zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.SendQuotationConfirmation(ctx, "cliente@example.com", "cot_1"))
	require.NoError(t, s.SendTechnicianAssigned(ctx, "cliente@example.com", "cot_1", "tec_9"))

	sent := s.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "quotation_confirmation", sent[0].Kind)
	assert.Equal(t, "cot_1", sent[0].Ref)
	assert.Equal(t, "technician_assigned", sent[1].Kind)
}
