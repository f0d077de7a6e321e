package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"go.uber.org/zap"
)

// SMTPNotifier tells a user their recording could not be scanned.
type SMTPNotifier struct {
	addr   string
	from   string
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		logger: logger,
		send:   smtp.SendMail,
	}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, notice port.FailureNotice) error {
	msg := failureMessage(n.from, notice)

	if err := n.send(n.addr, nil, n.from, []string{notice.UserEmail}, []byte(msg)); err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", notice.UserEmail),
			zap.String("job_id", notice.JobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", notice.UserEmail),
		zap.String("job_id", notice.JobID),
	)
	return nil
}

func failureMessage(from string, notice port.FailureNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\n", from, notice.UserEmail)
	fmt.Fprintf(&b, "Subject: Time trial scan failed [Job %s]\r\n\r\n", notice.JobID)
	b.WriteString("Hello,\r\n\r\n")
	b.WriteString("We could not extract time trial results from your recording.\r\n\r\n")
	fmt.Fprintf(&b, "Job ID: %s\r\nVideo: %s\r\nError: %s\r\n", notice.JobID, notice.VideoKey, notice.Reason)
	if notice.Attempts > 1 {
		fmt.Fprintf(&b, "Attempts: %d\r\n", notice.Attempts)
	}
	b.WriteString("\r\n")
	b.WriteString("Check that the upload is a 16:9 capture of the results screens and try again.\r\n\r\n")
	b.WriteString("-- MKWTT Speedruns")
	return b.String()
}
