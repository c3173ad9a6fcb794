package sidechannel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier dispatches recognized transcripts to the secondary lookup service.
// It is strictly best-effort: callers fire it in a goroutine after a turn
// completes and ignore failures.
type Notifier struct {
	HTTPClient *http.Client
	URL        string
}

type lookupRequest struct {
	Query string `json:"query"`
}

type lookupResponse struct {
	Answers []string `json:"answers"`
}

func NewNotifier(url string) *Notifier {
	return &Notifier{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		URL:        url,
	}
}

// Notify posts the transcript and returns the service's answer strings.
func (n *Notifier) Notify(ctx context.Context, transcript string) ([]string, error) {
	if n.URL == "" {
		return nil, fmt.Errorf("sidechannel: url missing")
	}
	body, _ := json.Marshal(lookupRequest{Query: transcript})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sidechannel: round trip: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sidechannel: status=%d body=%s", resp.StatusCode, string(b))
	}
	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("sidechannel: decode: %w", err)
	}
	return lr.Answers, nil
}
