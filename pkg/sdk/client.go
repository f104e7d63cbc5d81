// Package sdk is the Go client for the estate API. Client implements the
// authority's gateway and store interfaces over HTTP and keeps the current
// session in a CredentialStore.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/benbjohnson/clock"
	"golang.org/x/oauth2"

	"github.com/terraconstructs/estate/internal/authority"
	"github.com/terraconstructs/estate/pkg/api"
)

// Client talks to the estate API.
type Client struct {
	baseURL string
	http    *http.Client
	authed  *http.Client
	store   CredentialStore
	clock   clock.Clock
	events  *eventHub
}

var (
	_ authority.Gateway           = (*Client)(nil)
	_ authority.RoleStore         = (*Client)(nil)
	_ authority.ProfileStore      = (*Client)(nil)
	_ authority.VerificationStore = (*Client)(nil)
)

// ClientOptions configures SDK client construction.
type ClientOptions struct {
	HTTPClient *http.Client
	Store      CredentialStore
	Clock      clock.Clock
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithCredentialStore sets where the session is persisted. The default
// keeps it in memory.
func WithCredentialStore(store CredentialStore) ClientOption {
	return func(opts *ClientOptions) {
		opts.Store = store
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(clk clock.Clock) ClientOption {
	return func(opts *ClientOptions) {
		opts.Clock = clk
	}
}

// storeTokenSource reads the bearer token from the credential store on
// every request so sign-in and sign-out take effect immediately.
type storeTokenSource struct {
	store CredentialStore
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	creds, err := s.store.LoadCredentials()
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
		Expiry:      creds.ExpiresAt,
	}, nil
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, optFns ...ClientOption) *Client {
	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Store == nil {
		opts.Store = &MemoryCredentialStore{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	authed := &http.Client{
		Transport: &oauth2.Transport{
			Source: storeTokenSource{store: opts.Store},
			Base:   opts.HTTPClient.Transport,
		},
		Timeout: opts.HTTPClient.Timeout,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    opts.HTTPClient,
		authed:  authed,
		store:   opts.Store,
		clock:   opts.Clock,
		events:  newEventHub(),
	}
}

// Close stops event delivery.
func (c *Client) Close() {
	c.events.stop()
}

// StatusError describes a non-2xx API response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// statusKind maps an API error to the authority's error taxonomy.
func statusKind(se *StatusError) authority.Kind {
	if se.Code == api.CodeInvalidCredential {
		return authority.KindCredential
	}
	switch {
	case se.StatusCode == http.StatusBadRequest:
		return authority.KindValidation
	case se.StatusCode == http.StatusUnauthorized,
		se.StatusCode == http.StatusForbidden,
		se.StatusCode == http.StatusUnprocessableEntity:
		return authority.KindCredential
	case se.StatusCode == http.StatusNotFound:
		return authority.KindNotFound
	case se.StatusCode >= 500:
		return authority.KindNetwork
	default:
		return authority.KindUnexpected
	}
}

func decodeError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	var body api.Error
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		se.Code = body.Code
		se.Message = body.Error
	}
	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}
	return &authority.Error{Kind: statusKind(se), Cause: se}
}

// do sends a JSON request. A non-empty token is sent as the bearer
// credential; otherwise hc decides how to authenticate.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return authority.Unexpected("encode request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return authority.Unexpected("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, ErrNoCredentials) {
			return authority.Credential("not signed in", err)
		}
		return authority.Network(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return authority.Unexpected("decode response", err)
	}
	return nil
}
