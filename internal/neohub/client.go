package neohub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config holds hub connection settings.
type Config struct {
	// Host is the hub address.
	Host string

	// Port is the hub port (4242 for legacy TCP, 4243 for WebSocket).
	Port int

	// UseWebSocket selects the token-authenticated WebSocket transport.
	// Legacy plaintext TCP is used otherwise.
	UseWebSocket bool

	// Token is the API token for the WebSocket transport.
	Token string

	// ConnectTimeout bounds each dial attempt. Default: 10 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout bounds each request/response exchange when the
	// caller's context carries no deadline. Default: 30 seconds.
	RequestTimeout time.Duration
}

// Client is a request/response client for the hub's JSON command protocol.
//
// The connection is established lazily on the first request and redialled
// transparently after transport errors. All methods are safe for concurrent
// use; requests are serialised because the hub answers one command at a time.
type Client struct {
	cfg       Config
	transport transport
	logger    Logger
}

// New creates a hub client. No connection is made until the first request.
func New(cfg Config) *Client {
	var tr transport
	if cfg.UseWebSocket {
		tr = newWSTransport(cfg.Host, cfg.Port, cfg.Token, cfg.ConnectTimeout)
	} else {
		tr = newTCPTransport(cfg.Host, cfg.Port, cfg.ConnectTimeout)
	}
	return &Client{cfg: cfg, transport: tr, logger: noopLogger{}}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Close tears down the hub connection.
func (c *Client) Close() error {
	return c.transport.close()
}

// send issues one command and returns the raw response payload.
// The command is a single-key map, e.g. {"GET_ALL_DATA": 0}.
func (c *Client) send(ctx context.Context, command map[string]any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		timeout := c.cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	encoded, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}

	c.logger.Debug("hub request", "command", string(encoded))
	payload, err := c.transport.request(ctx, encoded)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// sendChecked issues a command and verifies the hub acknowledged it.
// Set-style commands answer {"result": "..."} on success and
// {"error": "..."} on rejection.
func (c *Client) sendChecked(ctx context.Context, command map[string]any) error {
	payload, err := c.send(ctx, command)
	if err != nil {
		return err
	}

	var result struct {
		Error  string `json:"error"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if result.Error != "" {
		return fmt.Errorf("%w: %s", ErrCommandRejected, result.Error)
	}
	return nil
}

// GetAllLiveData fetches the complete hub state in one round trip:
// devices, system settings, live flags and all profile tables.
func (c *Client) GetAllLiveData(ctx context.Context) (*Snapshot, error) {
	payload, err := c.send(ctx, map[string]any{"GET_ALL_DATA": 0})
	if err != nil {
		return nil, err
	}

	snap, warnings, err := decodeAllData(payload)
	for _, w := range warnings {
		c.logger.Warn("live data decode", "detail", w)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// GetSystem fetches system settings alone. Used as the narrower fallback
// when a live-data response arrives without its system block.
func (c *Client) GetSystem(ctx context.Context) (*SystemSettings, error) {
	payload, err := c.send(ctx, map[string]any{"GET_SYSTEM": 0})
	if err != nil {
		return nil, err
	}
	return decodeSystem(payload)
}

// SendRaw issues an arbitrary command and returns the raw response.
// Escape hatch for hub operations without a structured verb.
func (c *Client) SendRaw(ctx context.Context, command map[string]any) (json.RawMessage, error) {
	return c.send(ctx, command)
}
