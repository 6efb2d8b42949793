package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleMessage = "From: Boss <boss@customer.example.com>\r\n" +
	"To: tasks@agents.example.com, colleague@customer.example.com\r\n" +
	"Cc: watcher@customer.example.com\r\n" +
	"Subject: Follow up on the contract\r\n" +
	"Message-ID: <abc123@customer.example.com>\r\n" +
	"In-Reply-To: <xyz789@agents.example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please create a task for the contract review.\r\n"

func TestParseMessageSimple(t *testing.T) {
	email, err := ParseMessage([]byte(simpleMessage), "boss@customer.example.com", []string{
		"tasks@agents.example.com",
		"colleague@customer.example.com",
		"watcher@customer.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "boss@customer.example.com", email.From)
	assert.Equal(t, []string{"tasks@agents.example.com", "colleague@customer.example.com"}, email.To)
	assert.Equal(t, []string{"watcher@customer.example.com"}, email.Cc)
	assert.Empty(t, email.Bcc)
	assert.Equal(t, "Follow up on the contract", email.Subject)
	assert.Equal(t, "abc123@customer.example.com", email.MessageID)
	assert.Equal(t, "xyz789@agents.example.com", email.InReplyTo)
	assert.Contains(t, email.Body, "create a task for the contract review")
	assert.NotEmpty(t, email.Headers["Subject"])
	assert.False(t, email.ReceivedAt.IsZero())
}

func TestParseMessageBlindCopies(t *testing.T) {
	// An envelope recipient that is in neither To nor Cc is a blind copy.
	email, err := ParseMessage([]byte(simpleMessage), "boss@customer.example.com", []string{
		"tasks@agents.example.com",
		"digest+acme@agents.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"digest+acme@agents.example.com"}, email.Bcc)
}

func TestParseMessageMultipart(t *testing.T) {
	raw := "From: sender@customer.example.com\r\n" +
		"To: tasks@agents.example.com\r\n" +
		"Subject: Mixed content\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=frontier\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain text body here.\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>HTML body here.</p>\r\n" +
		"--frontier--\r\n"

	email, err := ParseMessage([]byte(raw), "sender@customer.example.com", []string{"tasks@agents.example.com"})
	require.NoError(t, err)

	assert.Contains(t, email.Body, "Plain text body here.")
	assert.NotContains(t, email.Body, "<p>")
}

func TestParseMessageEnvelopeFallbacks(t *testing.T) {
	raw := "Subject: No address headers\r\n" +
		"\r\n" +
		"body\r\n"

	email, err := ParseMessage([]byte(raw), "envelope@customer.example.com", []string{"tasks@agents.example.com"})
	require.NoError(t, err)

	// Without a From header the envelope sender stands in.
	assert.Equal(t, "envelope@customer.example.com", email.From)
	assert.Empty(t, email.To)
	assert.Equal(t, []string{"tasks@agents.example.com"}, email.Bcc)
}

func TestParseMessageGarbage(t *testing.T) {
	_, err := ParseMessage([]byte(strings.Repeat("\x00", 16)), "", nil)
	assert.Error(t, err)
}
