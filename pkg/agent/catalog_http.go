package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/emberchat/callkit/internal/httpc"
)

// HTTPCatalog fetches characters from the companion backend's REST API.
type HTTPCatalog struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPCatalog creates a catalog client for the given API base URL.
// The key is sent as a bearer token when non-empty.
func NewHTTPCatalog(baseURL, apiKey string) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpc.Client,
	}
}

// Character implements Catalog.
func (c *HTTPCatalog) Character(ctx context.Context, id string) (*Character, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/characters/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrCharacterNotFound
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get character failed (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var character Character
	if err := json.NewDecoder(resp.Body).Decode(&character); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &character, nil
}

var _ Catalog = (*HTTPCatalog)(nil)
