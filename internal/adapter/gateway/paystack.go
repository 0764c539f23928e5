package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

// PaystackAdapter talks to a Paystack-style payment provider: initialize
// a transaction, verify one by reference, and authenticate webhooks with
// HMAC-SHA512 over the raw request body.
type PaystackAdapter struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewPaystackAdapter(baseURL, secret string, timeout time.Duration) *PaystackAdapter {
	return &PaystackAdapter{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		PaidAt    string `json:"paid_at"`
		Channel   string `json:"channel"`
	} `json:"data"`
}

func (a *PaystackAdapter) Initialize(ctx context.Context, req port.InitializeRequest) (*port.InitializeResponse, error) {
	body, err := json.Marshal(initializeRequest{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("encode initialize request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initialize request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &domain.GatewayError{Op: "initialize", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	var out initializeResponse
	if err := decodeGatewayResponse(resp, "initialize", &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, &domain.GatewayError{Op: "initialize", Retryable: false,
			Err: fmt.Errorf("provider rejected: %s", out.Message)}
	}

	return &port.InitializeResponse{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

func (a *PaystackAdapter) Verify(ctx context.Context, reference string) (*port.VerifyResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.secret)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &domain.GatewayError{Op: "verify", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	var out verifyResponse
	if err := decodeGatewayResponse(resp, "verify", &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, &domain.GatewayError{Op: "verify", Retryable: false,
			Err: fmt.Errorf("provider rejected: %s", out.Message)}
	}

	return &port.VerifyResponse{
		Reference: out.Data.Reference,
		Status:    out.Data.Status,
		Amount:    out.Data.Amount,
		PaidAt:    out.Data.PaidAt,
		Channel:   out.Data.Channel,
	}, nil
}

// ValidateSignature compares the provider's hex HMAC-SHA512 of the exact
// raw body bytes. Re-serialized JSON must never be used here: it can
// differ byte-for-byte from what the provider signed.
func (a *PaystackAdapter) ValidateSignature(rawBody []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(a.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func decodeGatewayResponse(resp *http.Response, op string, v any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.GatewayError{Op: op, Retryable: true, Err: err}
	}
	if resp.StatusCode >= 500 {
		return &domain.GatewayError{Op: op, Retryable: true,
			Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &domain.GatewayError{Op: op, Retryable: false,
			Err: fmt.Errorf("provider returned %d: %s", resp.StatusCode, body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &domain.GatewayError{Op: op, Retryable: false,
			Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
