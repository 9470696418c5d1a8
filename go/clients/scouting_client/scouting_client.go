package scouting_client

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/scoutsync/go/clients"
	"github.com/mcdev12/scoutsync/go/internal/metrics"
)

// ErrNoClaimUpdate is reported when a claim patch names neither a scouter nor a phase.
var ErrNoClaimUpdate = errors.New("claim update requires a scouter or a phase")

// IdentityStore persists the session token and display name obtained at login.
// The client reads it on every request so a logout is never masked by a cached token.
type IdentityStore interface {
	Token() string
	Name() string
	Save(token, name string) error
	Clear() error
}

// ScoutingClient is the single choke point for requests to the scouting backend.
// Every public method collapses transport and decoding failures into false, nil
// or an empty collection; none of them return Go errors.
type ScoutingClient struct {
	*clients.BaseClient
	identity    IdentityStore
	pingTimeout time.Duration
	metrics     metrics.Collector
}

// Option configures a ScoutingClient.
type Option func(*ScoutingClient)

// WithPingTimeout bounds the reachability probe.
func WithPingTimeout(d time.Duration) Option {
	return func(c *ScoutingClient) {
		c.pingTimeout = d
	}
}

// WithMetrics records mutation outcomes on m.
func WithMetrics(m metrics.Collector) Option {
	return func(c *ScoutingClient) {
		c.metrics = metrics.OrNoOp(m)
	}
}

// WithRequestTimeout bounds every other request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *ScoutingClient) {
		c.SetTimeout(d)
	}
}

func NewScoutingClient(baseURL string, identity IdentityStore, opts ...Option) *ScoutingClient {
	client := &ScoutingClient{
		BaseClient:  clients.NewBaseClient(baseURL),
		identity:    identity,
		pingTimeout: DefaultPingTimeout,
		metrics:     metrics.NoOp{},
	}

	client.SetHeader(ContentTypeHeader, JSONContentType)
	client.AddHeaderProvider(client.authHeaders)

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (c *ScoutingClient) authHeaders() map[string]string {
	if c.identity == nil {
		return nil
	}
	token := c.identity.Token()
	if token == "" {
		return nil
	}
	return map[string]string{IdentityHeader: token}
}

// ScouterName returns the display name stored at login, or "".
func (c *ScoutingClient) ScouterName() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.Name()
}

// Fetch issues an authenticated GET against a backend-relative endpoint.
// It is the transport used by the live-update poller.
func (c *ScoutingClient) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	return c.Get(ctx, endpoint)
}
