// File: internal/lookup/client.go
//
// Package lookup implements the two read-only collaborator lookups the widget
// depends on: the allowed dependent options for an owner, and the roles already
// assigned to that owner. Both are keyed by owner_id; an empty owner id
// short-circuits without any network traffic.
package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/peltrault/formsync/internal/config"
	"github.com/peltrault/formsync/internal/netclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxErrorBodyBytes bounds how much of an error body we read looking for detail.
const maxErrorBodyBytes = 16 << 10

// Option is one allowed dependent option as served by the backend.
type Option struct {
	UUID        string `json:"uuid"`
	Name        string `json:"nom"`
	Number      string `json:"numero_processus"`
	Description string `json:"description"`
}

// allowedEnvelope mirrors the allowed-options payload. The "processus" key is
// the backend's wire contract; absence or an empty array means no options.
type allowedEnvelope struct {
	Processus []Option `json:"processus"`
}

// assignedEnvelope mirrors the assigned-roles payload.
type assignedEnvelope struct {
	Roles []struct {
		RoleUUID string `json:"role_uuid"`
	} `json:"roles"`
}

// errorEnvelope is the optional detail a 500 may carry.
type errorEnvelope struct {
	Error string `json:"error"`
}

// Client issues the collaborator lookups. Safe for concurrent use.
type Client struct {
	httpc      *http.Client
	allowedURL string
	rolesURL   string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New builds a Client from endpoint configuration.
func New(cfg config.EndpointsConfig, logger *zap.Logger) *Client {
	nc := netclient.NewDefaultClientConfig()
	nc.RequestTimeout = cfg.RequestTimeout
	nc.IgnoreTLSErrors = cfg.IgnoreTLSErrors
	nc.Logger = logger

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpc:      netclient.NewClient(nc),
		allowedURL: cfg.AllowedOptions,
		rolesURL:   cfg.AssignedRoles,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.Named("lookup"),
	}
}

// AllowedOptions fetches the set of dependent options valid for the owner.
// Failures come back as *TransportError or ErrMalformedResponse; the caller
// decides how to degrade. An empty ownerID returns nil with no network call.
func (c *Client) AllowedOptions(ctx context.Context, ownerID string) ([]Option, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, nil
	}

	body, err := c.get(ctx, c.allowedURL, ownerID)
	if err != nil {
		return nil, err
	}

	var envelope allowedEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return envelope.Processus, nil
}

// AssignedRoles fetches the role identifiers already associated with the
// owner. This enrichment is cosmetic; callers log failures and move on.
func (c *Client) AssignedRoles(ctx context.Context, ownerID string) ([]string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, nil
	}

	body, err := c.get(ctx, c.rolesURL, ownerID)
	if err != nil {
		return nil, err
	}

	var envelope assignedEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	ids := make([]string, 0, len(envelope.Roles))
	for _, r := range envelope.Roles {
		if r.RoleUUID != "" {
			ids = append(ids, r.RoleUUID)
		}
	}
	return ids, nil
}

// get performs one rate-limited GET with owner_id attached, returning the raw
// body on 2xx and a *TransportError otherwise.
func (c *Client) get(ctx context.Context, endpoint, ownerID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Err: err}
	}

	reqURL, err := withOwnerID(endpoint, ownerID)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.transportFailure(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return body, nil
}

// transportFailure builds the error for a non-2xx response. A 500 may carry
// {"error": string}; any parse failure there is swallowed and the generic
// message applies.
func (c *Client) transportFailure(resp *http.Response) *TransportError {
	te := &TransportError{StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusInternalServerError {
		return te
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return te
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		te.Detail = envelope.Error
	}
	return te
}

// withOwnerID appends owner_id to the endpoint's query string.
func withOwnerID(endpoint, ownerID string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("owner_id", ownerID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
