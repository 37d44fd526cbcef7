package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageNamesJob(t *testing.T) {
	subject, body := Message("job-42", Outcome{Success: true, Matches: 3})
	assert.Equal(t, "Your Results are Ready!", subject)
	assert.Contains(t, body, "job-42")

	subject, body = Message("job-42", Outcome{Err: errors.New("boom")})
	assert.Equal(t, "Error With Job!", subject)
	assert.Contains(t, body, "job-42")
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("hook@example.com", "prof@example.com", "Subj", "Body"))

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	assert.True(t, ok)
	assert.Contains(t, head, "From: hook@example.com")
	assert.Contains(t, head, "To: prof@example.com")
	assert.Contains(t, head, "Subject: Subj")
	assert.Equal(t, "Body\r\n", body)
}

func TestEmptyAddressIsNoop(t *testing.T) {
	n := NewSMTPNotifier("smtp.invalid", 465, "hook@example.com", "")
	assert.NoError(t, n.Notify(context.Background(), "", "job", Outcome{Success: true}))
}

func TestLogNotifierNeverFails(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), "prof@example.com", "job", Outcome{}))
}
