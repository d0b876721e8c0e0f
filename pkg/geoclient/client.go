/**
 * @description
 * Client for resolving an IP address to a coarse location string.
 */
package geoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	Local   = "Local"
	Unknown = "Unknown"
)

// Client looks up IP locations against an ip-api compatible JSON endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a geolocation client. An empty baseURL disables lookups.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
}

type lookupResponse struct {
	Status     string `json:"status"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
}

// Locate returns "City, Region, Country" for a public IP, Local for private or
// loopback addresses and Unknown when the lookup fails.
func (c *Client) Locate(ctx context.Context, ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Unknown
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() || parsed.IsUnspecified() {
		return Local
	}
	if c == nil || c.baseURL == "" {
		return Unknown
	}

	location, err := c.lookup(ctx, parsed.String())
	if err != nil || location == "" {
		return Unknown
	}
	return location
}

func (c *Client) lookup(ctx context.Context, ip string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("geolocation service returned error status %d", resp.StatusCode)
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode geolocation response: %w", err)
	}
	if payload.Status != "" && payload.Status != "success" {
		return "", fmt.Errorf("geolocation lookup status %q", payload.Status)
	}

	var parts []string
	for _, p := range []string{payload.City, payload.RegionName, payload.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", "), nil
}
