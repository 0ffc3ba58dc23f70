package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soundprediction/lexigraph/pkg/types"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPTransport posts requests to remote workers at {baseURL}/a2a/{domainID}.
// Domains without a configured peer fall back to the optional local transport.
type HTTPTransport struct {
	peers      map[string]string
	fallback   Transport
	httpClient *http.Client
}

// NewHTTPTransport creates a transport for peers, a map of domain id to base URL.
func NewHTTPTransport(peers map[string]string, timeout time.Duration, fallback Transport) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	cleaned := make(map[string]string, len(peers))
	for id, base := range peers {
		cleaned[id] = strings.TrimRight(base, "/")
	}
	return &HTTPTransport{
		peers:      cleaned,
		fallback:   fallback,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, domainID string, req types.A2ARequest) (types.A2AResponse, error) {
	base, ok := t.peers[domainID]
	if !ok {
		if t.fallback != nil {
			return t.fallback.Send(ctx, domainID, req)
		}
		return types.A2AResponse{}, fmt.Errorf("%w: %s", ErrUnknownDomain, domainID)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return types.A2AResponse{}, fmt.Errorf("failed to marshal a2a request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/a2a/"+url.PathEscape(domainID), bytes.NewReader(body))
	if err != nil {
		return types.A2AResponse{}, fmt.Errorf("failed to create a2a request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return types.A2AResponse{}, types.Wrap(types.KindTimeout, "a2a.http", ctx.Err())
		}
		return types.A2AResponse{}, fmt.Errorf("a2a request to %s failed: %w", domainID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.A2AResponse{}, fmt.Errorf("failed to read a2a response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiError)
		return types.A2AResponse{}, fmt.Errorf("a2a peer %s error (status %d): %s", domainID, resp.StatusCode, apiError.Error)
	}

	var out types.A2AResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return types.A2AResponse{}, fmt.Errorf("failed to decode a2a response: %w", err)
	}
	return out, nil
}
