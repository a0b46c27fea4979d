package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	to, subject, body string
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return nil
}

func TestRenderAppealReadyEscapes(t *testing.T) {
	body, err := RenderAppealReady(context.Background(), AppealReady{
		ClaimNumber: "CLM-<1>",
		PayerName:   "Acme & Sons",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "CLM-&lt;1&gt;")
	assert.Contains(t, body, "Acme &amp; Sons")
	assert.NotContains(t, body, "<a href")
}

func TestSendAppealReady(t *testing.T) {
	s := &recordingSender{}
	err := SendAppealReady(context.Background(), s, "biller@example.com", AppealReady{
		ClaimNumber: "CLM-1",
		DocumentURL: "https://example.com/doc",
	})
	require.NoError(t, err)
	assert.Equal(t, "biller@example.com", s.to)
	assert.Equal(t, "Your appeal letter for claim CLM-1 is ready", s.subject)
	assert.Contains(t, s.body, `href="https://example.com/doc"`)
}

func TestSMTPMailerSend(t *testing.T) {
	var gotAddr, gotFrom string
	var gotMsg []byte
	m := NewSMTPMailer(Config{Host: "mail.local", Port: "2525", Sender: "noreply@appealpro.test"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotMsg = addr, from, msg
		assert.Nil(t, a)
		assert.Equal(t, []string{"x@example.com"}, to)
		return nil
	}

	require.NoError(t, m.Send("x@example.com", "Hi", "<p>body</p>"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "noreply@appealpro.test", gotFrom)
	assert.Contains(t, string(gotMsg), "Subject: Hi\r\n")
	assert.Contains(t, string(gotMsg), "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>body</p>")
}

func TestSMTPMailerErrors(t *testing.T) {
	assert.ErrorIs(t, NewSMTPMailer(Config{}).Send("x@example.com", "Hi", ""), ErrNotConfigured)

	m := NewSMTPMailer(Config{Host: "mail.local", Port: "25"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("boom") }
	assert.Error(t, m.Send("x@example.com", "Hi", ""))
	assert.Error(t, m.Send("x@example.com\r\nBcc: y@example.com", "Hi", ""))
}
