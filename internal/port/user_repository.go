package port

import "context"

type UserRepository interface {
	// GetEmail resolves a user's email for gateway initialization
	GetEmail(ctx context.Context, userID string) (string, error)
}
