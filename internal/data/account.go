package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// linkVerifier checks link codes against the KhmerCoders account API
type linkVerifier struct {
	baseURL string
	client  *http.Client
}

type linkResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

// NewAccountVerifier creates a verifier calling GET {baseURL}/{code}
func NewAccountVerifier(baseURL string, timeout time.Duration) repo.AccountVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &linkVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Verify returns the linked account id, domain.ErrLinkRejected when the
// service refuses the code, or a transport error.
func (v *linkVerifier) Verify(ctx context.Context, code string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/"+url.PathEscape(code), nil)
	if err != nil {
		return "", fmt.Errorf("build link request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("link request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read link response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("link API request failed with status: %d", resp.StatusCode)
	}

	var result linkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode link response: %w", err)
	}
	if !result.Success || result.UserID == "" {
		return "", domain.ErrLinkRejected
	}
	return result.UserID, nil
}
