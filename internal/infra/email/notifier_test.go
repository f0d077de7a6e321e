package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifyFailure(t *testing.T) {
	n := NewSMTPNotifier("mail.local", 2525, "bot@mkwtt.local", zap.NewNop())

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	require.NoError(t, n.NotifyFailure(context.Background(), port.FailureNotice{
		UserEmail: "racer@example.com",
		JobID:     "job-1",
		VideoKey:  "u/run.mp4",
		Reason:    "invalid video input",
		Attempts:  3,
	}))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"racer@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Time trial scan failed [Job job-1]")
	assert.Contains(t, string(gotMsg), "Video: u/run.mp4")
	assert.Contains(t, string(gotMsg), "Attempts: 3")
}

func TestNotifyFailureSendError(t *testing.T) {
	n := NewSMTPNotifier("mail.local", 2525, "bot@mkwtt.local", zap.NewNop())
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }

	err := n.NotifyFailure(context.Background(), port.FailureNotice{UserEmail: "racer@example.com", JobID: "job-1"})
	assert.Error(t, err)
}

func TestFailureMessageOmitsSingleAttempt(t *testing.T) {
	msg := failureMessage("bot@mkwtt.local", port.FailureNotice{UserEmail: "a@b.c", JobID: "j", Attempts: 1})
	assert.NotContains(t, msg, "Attempts:")
	assert.Contains(t, msg, "To: a@b.c\r\n")
}
