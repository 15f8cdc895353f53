// Package mail delivers account emails.
package mail

import (
	"context"
	"net/url"
	"strings"

	"github.com/nkiryanov/habitus/internal/logger"
)

const (
	confirmEmailPath  = "/confirm-email"
	resetPasswordPath = "/reset-password"
)

// Mailer that writes messages to the log instead of sending them
// Links carry secret tokens so they are logged on debug level only
type LogMailer struct {
	logger  logger.Logger
	baseURL string
}

func NewLogMailer(l logger.Logger, baseURL string) *LogMailer {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	return &LogMailer{logger: l, baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *LogMailer) SendEmailConfirmation(_ context.Context, to string, token string) error {
	m.send("email confirmation", to, m.link(confirmEmailPath, token))
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to string, token string) error {
	m.send("password reset", to, m.link(resetPasswordPath, token))
	return nil
}

func (m *LogMailer) send(subject string, to string, link string) {
	m.logger.Info("mail sent", "subject", subject, "to", to)
	m.logger.Debug("mail link", "subject", subject, "to", to, "link", link)
}

func (m *LogMailer) link(path string, token string) string {
	return m.baseURL + path + "?" + url.Values{"token": {token}}.Encode()
}
