package iam

import (
	"context"
	"log/slog"
)

// Mailer delivers password-reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes reset links to the log instead of sending mail. It is the
// default for local and test deployments.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "password reset link issued", "email", email, "link", link)
	return nil
}
