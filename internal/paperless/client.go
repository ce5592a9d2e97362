// Package paperless is a minimal client for the paperless-ngx REST API.
package paperless

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/paperlink/internal/models"
)

const maxMetadataBytes = 1 << 20

// Client fetches document metadata from a paperless-ngx server. The base
// URL is passed per call so configuration changes take effect immediately.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose requests are bounded by timeout.
// A zero timeout means no limit.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// MetadataURL returns {apiURL}/documents/{id}/metadata/.
func MetadataURL(apiURL, id string) string {
	return strings.TrimRight(apiURL, "/") + "/documents/" + id + "/metadata/"
}

// PreviewURL returns {apiURL}/documents/{id}/preview/.
func PreviewURL(apiURL, id string) string {
	return strings.TrimRight(apiURL, "/") + "/documents/" + id + "/preview/"
}

// FetchMetadata issues a single GET to the metadata endpoint. Non-2xx
// responses and bodies without media_filename are errors. No retry.
func (c *Client) FetchMetadata(ctx context.Context, apiURL, id string) (models.DocumentMetadata, error) {
	url := MetadataURL(apiURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("paperless: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("paperless: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.DocumentMetadata{}, fmt.Errorf("paperless: GET %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("paperless: reading response body: %w", err)
	}

	var meta models.DocumentMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("paperless: parsing metadata JSON: %w", err)
	}
	if meta.MediaFilename == "" {
		return models.DocumentMetadata{}, fmt.Errorf("paperless: metadata for document %s has no media_filename", id)
	}
	return meta, nil
}
