// Package pyth is the client for Pyth's Hermes price service, which serves
// the signed price update payloads the on-chain oracle verifies.
package pyth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/parzival1821/CredBook/internal/domain"
)

// ETHUSDFeedID is the Pyth price feed id for ETH/USD.
const ETHUSDFeedID = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"

// HermesClient fetches price update payloads from a Hermes endpoint.
type HermesClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHermesClient creates a client for baseURL, e.g.
// "https://hermes.pyth.network". requestsPerMinute bounds outbound calls;
// zero or less disables the limit.
func NewHermesClient(baseURL string, requestsPerMinute int) *HermesClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
	}
	return &HermesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: limiter,
	}
}

// LatestUpdates returns the decoded update payloads for the given feeds,
// ready to pass to the oracle's updatePrice.
func (h *HermesClient) LatestUpdates(ctx context.Context, feedIDs ...string) ([][]byte, error) {
	if len(feedIDs) == 0 {
		return nil, fmt.Errorf("pyth/hermes: at least one feed id required")
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pyth/hermes: rate limit: %w", err)
	}

	params := url.Values{}
	for _, id := range feedIDs {
		params.Add("ids[]", id)
	}
	body, err := h.doGet(ctx, "/api/latest_vaas?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("pyth/hermes: latest vaas: %w", err)
	}

	var encoded []string
	if err := json.Unmarshal(body, &encoded); err != nil {
		return nil, fmt.Errorf("pyth/hermes: decode latest vaas: %w", err)
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("pyth/hermes: no updates returned for %s", strings.Join(feedIDs, ","))
	}

	updates := make([][]byte, 0, len(encoded))
	for i, e := range encoded {
		raw, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			return nil, fmt.Errorf("pyth/hermes: decode update %d: %w", i, err)
		}
		updates = append(updates, raw)
	}
	return updates, nil
}

func (h *HermesClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrNetworkUnavailable, resp.StatusCode, truncate(body))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body))
	}
	return body, nil
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

var _ domain.PriceFeed = (*HermesClient)(nil)
