package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oshokin/temperature-monitor/internal/version"
)

// DefaultPushoverEndpoint is the Pushover message API.
const DefaultPushoverEndpoint = "https://api.pushover.net/1/messages.json"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 << 10

var (
	// errPushoverCredentials is returned when the user key or token is missing.
	errPushoverCredentials = errors.New("pushover user key and api token must be provided")
	// errPushoverRejected is returned when the API answers with a failure.
	errPushoverRejected = errors.New("pushover rejected the message")
)

// Pushover delivers messages through the Pushover HTTP API.
type Pushover struct {
	// userKey identifies the recipient.
	userKey string
	// apiToken identifies the application.
	apiToken string
	// endpoint is the message API URL.
	endpoint string
	// client performs the requests.
	client *http.Client
}

// PushoverOption configures a Pushover transport.
type PushoverOption func(*Pushover)

// WithPushoverEndpoint points the transport at another URL.
func WithPushoverEndpoint(endpoint string) PushoverOption {
	return func(p *Pushover) {
		if endpoint != "" {
			p.endpoint = endpoint
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) PushoverOption {
	return func(p *Pushover) {
		if client != nil {
			p.client = client
		}
	}
}

// NewPushover creates the transport.
func NewPushover(userKey, apiToken string, opts ...PushoverOption) (*Pushover, error) {
	if userKey == "" || apiToken == "" {
		return nil, errPushoverCredentials
	}

	p := &Pushover{
		userKey:  userKey,
		apiToken: apiToken,
		endpoint: DefaultPushoverEndpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Name implements Transport.
func (p *Pushover) Name() string {
	return "pushover"
}

// pushoverResponse is the relevant part of the API reply.
type pushoverResponse struct {
	Status int      `json:"status"`
	Errors []string `json:"errors"`
}

// Deliver posts the message form.
func (p *Pushover) Deliver(ctx context.Context, title, body string) error {
	form := url.Values{
		"token":   {p.apiToken},
		"user":    {p.userKey},
		"title":   {title},
		"message": {body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	var reply pushoverResponse
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&reply); err != nil {
		return fmt.Errorf("%w: HTTP %d with undecodable body", errPushoverRejected, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK || reply.Status != 1 {
		return fmt.Errorf("%w: HTTP %d: %s", errPushoverRejected, resp.StatusCode, strings.Join(reply.Errors, "; "))
	}

	return nil
}
