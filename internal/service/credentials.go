package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CredentialVerifier checks an email/password pair. Password storage and
// hashing live behind it.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (bool, error)
}

var errCredentialCheckUnconfigured = errors.New("credential check endpoint not configured")

// HTTPCredentialVerifier posts credentials to the external check endpoint.
// 200 with {"valid": true} accepts, 401/403 or {"valid": false} rejects, and
// anything else is an error.
type HTTPCredentialVerifier struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPCredentialVerifier(endpoint string, timeout time.Duration) *HTTPCredentialVerifier {
	return &HTTPCredentialVerifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type credentialCheckRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialCheckResponse struct {
	Valid bool `json:"valid"`
}

func (v *HTTPCredentialVerifier) Verify(ctx context.Context, email, password string) (bool, error) {
	if v.endpoint == "" {
		return false, errCredentialCheckUnconfigured
	}

	body, err := json.Marshal(credentialCheckRequest{Email: email, Password: password})
	if err != nil {
		return false, fmt.Errorf("marshal credential check: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create credential check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("credential check request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("credential check returned status %d: %s", resp.StatusCode, snippet)
	}

	var result credentialCheckResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&result); err != nil {
		return false, fmt.Errorf("decode credential check: %w", err)
	}
	return result.Valid, nil
}
