package ports

import (
	"context"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// Notifier delivers an email. Callers may ignore its failure.
type Notifier interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// TokenIssuer turns an authenticated claim set into a signed bearer token.
type TokenIssuer interface {
	Issue(subject string, claims []domain.Claim) (string, error)
}
