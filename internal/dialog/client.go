package dialog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/dubya-devlab/voiceturn/internal/turn"
)

// Response metadata headers. Both values are percent-encoded by the backend
// so arbitrary text survives HTTP header transport.
const (
	TranscriptHeader = "X-Transcript"
	ReplyTextHeader  = "X-Reply-Text"
)

// ErrRateLimited signals an HTTP 429 from the dialogue backend. It is
// surfaced to the user distinctly from generic request failures.
var ErrRateLimited = errors.New("dialog: rate limited")

// RequestError is any non-rate-limit backend failure: a non-2xx status or a
// 200 with missing transcript/reply/audio.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("dialog: request failed (status=%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("dialog: request failed (status=%d)", e.Status)
}

// Input is one pending user utterance: either typed text or one captured
// audio segment (WAV bytes), never both.
type Input struct {
	Text     string
	AudioWAV []byte
}

func TextInput(text string) Input { return Input{Text: text} }
func AudioInput(wav []byte) Input { return Input{AudioWAV: wav} }
func (in Input) IsAudio() bool    { return len(in.AudioWAV) > 0 }

// Exchange is one resolved round trip. Audio is the streamed reply rendering;
// the caller owns it and must close it (playback does this).
type Exchange struct {
	Transcript string
	Reply      string
	Latency    time.Duration
	Audio      io.ReadCloser
	AudioType  string
}

// Client talks to the dialogue backend over multipart HTTP.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string

	// now is injectable for latency tests.
	now func() time.Time
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		// No overall timeout: the response body is a long-lived audio stream.
		HTTPClient: &http.Client{},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		now:        time.Now,
	}
}

// Exchange submits one input plus the prior history and resolves the round
// trip. Latency covers dispatch to response-header arrival only.
func (c *Client) Exchange(ctx context.Context, history []turn.Turn, input Input) (*Exchange, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("dialog: backend url missing")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, t := range history {
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("dialog: marshal history turn: %w", err)
		}
		if err := w.WriteField("history", string(b)); err != nil {
			return nil, err
		}
	}
	if input.IsAudio() {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="audio"; filename="utterance.wav"`)
		hdr.Set("Content-Type", "audio/wav")
		part, err := w.CreatePart(hdr)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(input.AudioWAV); err != nil {
			return nil, err
		}
	} else {
		if err := w.WriteField("text", input.Text); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/converse", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	start := c.now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dialog: round trip: %w", err)
	}
	latency := c.now().Sub(start)

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, &RequestError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	transcript, terr := url.QueryUnescape(resp.Header.Get(TranscriptHeader))
	reply, rerr := url.QueryUnescape(resp.Header.Get(ReplyTextHeader))
	if terr != nil || rerr != nil || transcript == "" || reply == "" {
		resp.Body.Close()
		return nil, &RequestError{Status: resp.StatusCode, Message: "missing transcript or reply metadata"}
	}
	if resp.ContentLength == 0 {
		resp.Body.Close()
		return nil, &RequestError{Status: resp.StatusCode, Message: "missing reply audio"}
	}

	return &Exchange{
		Transcript: transcript,
		Reply:      reply,
		Latency:    latency,
		Audio:      resp.Body,
		AudioType:  resp.Header.Get("Content-Type"),
	}, nil
}
