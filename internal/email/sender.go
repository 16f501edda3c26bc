package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para envio de correos de autenticación.
type Sender interface {
	SendPasswordResetLink(ctx context.Context, toEmail, token string) error
	SendMagicLink(ctx context.Context, toEmail, token string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendPasswordResetLink(_ context.Context, _, _ string) error {
	return s.err()
}

func (s *disabledSender) SendMagicLink(_ context.Context, _, _ string) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
