package neohub

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport timeouts and framing constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a dial.
	defaultConnectTimeout = 10 * time.Second

	// defaultRequestTimeout bounds a single request/response exchange.
	defaultRequestTimeout = 30 * time.Second

	// frameTerminator ends a legacy TCP frame.
	frameTerminator = 0x00

	// maxFrameSize caps a single response frame (1MB). A full live-data
	// dump for a large installation is well under this.
	maxFrameSize = 1 << 20
)

// transport is a request/response connection to the hub. Implementations
// serialise concurrent requests internally; the hub answers one command at
// a time.
type transport interface {
	request(ctx context.Context, command []byte) ([]byte, error)
	close() error
}

// classifyNetErr folds transport errors into the package taxonomy.
func classifyNetErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrRequestTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrHubUnreachable, err)
}

// tcpTransport speaks the legacy plaintext protocol: one JSON document per
// frame, terminated by a zero byte. No authentication.
type tcpTransport struct {
	addr           string
	connectTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

func newTCPTransport(host string, port int, connectTimeout time.Duration) *tcpTransport {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	return &tcpTransport{
		addr:           net.JoinHostPort(host, strconv.Itoa(port)),
		connectTimeout: connectTimeout,
	}
}

func (t *tcpTransport) request(ctx context.Context, command []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	if t.conn == nil {
		conn, err := (&net.Dialer{Timeout: t.connectTimeout}).DialContext(ctx, "tcp", t.addr)
		if err != nil {
			return nil, classifyNetErr(err)
		}
		t.conn = conn
		t.reader = bufio.NewReader(conn)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetDeadline(deadline); err != nil {
			t.drop()
			return nil, classifyNetErr(err)
		}
	}

	// Frame: JSON document, zero terminator, carriage return.
	frame := append(append([]byte{}, command...), frameTerminator, '\r')
	if _, err := t.conn.Write(frame); err != nil {
		t.drop()
		return nil, classifyNetErr(err)
	}

	payload, err := t.readFrame()
	if err != nil {
		t.drop()
		if errors.Is(err, ErrMalformedResponse) {
			return nil, err
		}
		return nil, classifyNetErr(err)
	}
	return payload, nil
}

// readFrame reads up to the zero terminator. The size cap is enforced
// chunk by chunk, so an oversized or unterminated frame is rejected
// without buffering the whole thing first.
func (t *tcpTransport) readFrame() ([]byte, error) {
	var payload []byte
	for {
		chunk, err := t.reader.ReadSlice(frameTerminator)
		payload = append(payload, chunk...)
		if len(payload) > maxFrameSize {
			return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedResponse, maxFrameSize)
		}
		switch {
		case err == nil:
			return payload[:len(payload)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			// No terminator yet; keep reading.
		default:
			return nil, err
		}
	}
}

// drop discards a broken connection so the next request redials.
func (t *tcpTransport) drop() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
		t.reader = nil
	}
}

func (t *tcpTransport) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}

// wsEnvelope is the outer message of the token-authenticated WebSocket
// protocol newer hubs speak.
type wsEnvelope struct {
	MessageType string `json:"message_type"`
	Message     string `json:"message"`
}

// wsCommandQueue is the serialised inner message carrying the token and
// one command.
type wsCommandQueue struct {
	Token    string      `json:"token"`
	Commands []wsCommand `json:"COMMANDS"`
}

type wsCommand struct {
	Command   string `json:"COMMAND"`
	CommandID int    `json:"COMMANDID"`
}

// wsResponse is the hub's reply envelope.
type wsResponse struct {
	MessageType string `json:"message_type"`
	CommandID   int    `json:"command_id"`
	Response    string `json:"response"`
}

// wsTransport speaks the WebSocket protocol with API-token authentication.
type wsTransport struct {
	url            string
	token          string
	connectTimeout time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	commandID int
	closed    bool
}

func newWSTransport(host string, port int, token string, connectTimeout time.Duration) *wsTransport {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	return &wsTransport{
		url:            fmt.Sprintf("wss://%s", net.JoinHostPort(host, strconv.Itoa(port))),
		token:          token,
		connectTimeout: connectTimeout,
	}
}

func (t *wsTransport) request(ctx context.Context, command []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	if t.conn == nil {
		dialer := websocket.Dialer{HandshakeTimeout: t.connectTimeout}
		conn, _, err := dialer.DialContext(ctx, t.url, nil)
		if err != nil {
			return nil, classifyNetErr(err)
		}
		t.conn = conn
	}

	t.commandID++
	id := t.commandID

	queue, err := json.Marshal(wsCommandQueue{
		Token:    t.token,
		Commands: []wsCommand{{Command: string(command), CommandID: id}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding command queue: %w", err)
	}
	envelope, err := json.Marshal(wsEnvelope{
		MessageType: "hm_get_command_queue",
		Message:     string(queue),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
		t.conn.SetReadDeadline(deadline)
	}

	if err := t.conn.WriteMessage(websocket.TextMessage, envelope); err != nil {
		t.drop()
		return nil, classifyNetErr(err)
	}

	// Read until the reply for this command id arrives. The hub may
	// interleave unsolicited notifications.
	for {
		_, payload, err := t.conn.ReadMessage()
		if err != nil {
			t.drop()
			return nil, classifyNetErr(err)
		}

		var resp wsResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if resp.MessageType != "hm_set_command_response" || resp.CommandID != id {
			continue
		}
		return []byte(resp.Response), nil
	}
}

func (t *wsTransport) drop() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

func (t *wsTransport) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
