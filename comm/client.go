package comm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var (
	ErrClosed             = errors.New("comm: connection closed")
	ErrUnexpectedResponse = errors.New("comm: unexpected response code")
)

// Client is the receiver side of the control channel. Every exchange is a
// request followed by exactly one response; a transport failure is fatal for
// the whole frame and surfaces as a wrapped ErrClosed.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *log.Logger
}

// Dial connects to the control server at a ws:// or wss:// URL.
func Dial(url string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("comm: dialing %s: %w", url, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{conn: conn, logger: logger.WithPrefix("comm")}, nil
}

// Request sends one message and waits for the peer's response. The payload
// may be nil. The raw response data is returned for the caller to decode
// once the code has been checked.
func (c *Client) Request(code Code, payload any) (Code, json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0, nil, ErrClosed
	}

	msg := Message{Code: code}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("comm: encoding %v payload: %w", code, err)
		}
		msg.Data = data
	}
	c.logger.Debug("sending message", "code", code)
	if err := c.conn.WriteJSON(msg); err != nil {
		return 0, nil, fmt.Errorf("comm: sending %v: %w", code, errors.Join(ErrClosed, err))
	}

	var resp Message
	if err := c.conn.ReadJSON(&resp); err != nil {
		return 0, nil, fmt.Errorf("comm: awaiting response to %v: %w", code, errors.Join(ErrClosed, err))
	}
	c.logger.Debug("received message", "code", resp.Code)
	return resp.Code, resp.Data, nil
}

// Expect performs a request and decodes the response payload into out,
// failing when the response code differs from want. A nil out discards the
// payload.
func (c *Client) Expect(code Code, payload any, want Code, out any) error {
	got, data, err := c.Request(code, payload)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: sent %v, got %v, want %v", ErrUnexpectedResponse, code, got, want)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("comm: decoding %v payload: %w", got, err)
		}
	}
	return nil
}

// Close announces the disconnection and tears the websocket down. Safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	// Best effort: the peer may already be gone.
	_ = c.conn.WriteJSON(Message{Code: Disconnection})
	err := c.conn.Close()
	c.conn = nil
	return err
}
