// Package feed fetches raw snapshot payloads from the upstream vNAS data
// feed, extracting only the authoritative updated_at on the ingestor's
// critical path (§4.1, §9).
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kengreim/vnas-stats/internal/vatsim"
)

// Kind categorizes a fetch failure per §4.1 / §7's error disposition table.
type Kind int

const (
	KindNetwork Kind = iota
	KindHTTPStatus
	KindMalformedJSON
	KindMissingUpdatedAt
)

// Error wraps a fetch failure with its Kind for the ingestor to log and
// bookkeep without inspecting error strings.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("feed: unexpected http status %d", e.StatusCode)
	case KindMalformedJSON:
		return fmt.Sprintf("feed: malformed json: %v", e.Err)
	case KindMissingUpdatedAt:
		return "feed: missing updatedAt field"
	default:
		return fmt.Sprintf("feed: network error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Client fetches raw snapshot payloads over HTTPS.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient builds a feed Client with a bounded request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot pulls one raw JSON document from the upstream feed and
// extracts its authoritative updated_at, keeping the rest as opaque bytes.
// No retry policy is applied here — the ingestor loop drives pacing (§4.1).
func (c *Client) FetchSnapshot(ctx context.Context) (raw []byte, updatedAt time.Time, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, time.Time{}, &Error{Kind: KindNetwork, Err: err}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, time.Time{}, &Error{Kind: KindNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, time.Time{}, &Error{Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, &Error{Kind: KindNetwork, Err: err}
	}

	var stamped vatsim.UpdatedAtOnly
	if err := json.Unmarshal(body, &stamped); err != nil {
		return nil, time.Time{}, &Error{Kind: KindMalformedJSON, Err: err}
	}
	if stamped.UpdatedAt.IsZero() {
		return nil, time.Time{}, &Error{Kind: KindMissingUpdatedAt}
	}

	return body, stamped.UpdatedAt, nil
}
