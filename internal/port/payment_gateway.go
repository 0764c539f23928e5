package port

import "context"

type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	CallbackURL string
}

type InitializeResponse struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyResponse struct {
	Reference string
	Status    string // provider-side: "success", "failed", "abandoned", ...
	Amount    int64
	PaidAt    string
	Channel   string
}

type PaymentGateway interface {
	// Initialize starts a provider transaction and returns the redirect URL
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)

	// Verify fetches the provider-side status for a reference
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)

	// ValidateSignature checks the webhook HMAC over the exact raw body bytes
	ValidateSignature(rawBody []byte, signature string) bool
}
