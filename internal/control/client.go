package control

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
)

// Client is the caller side of the control socket, used by timecordctl and
// by editor integrations.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the daemon's control socket. path is the unix socket
// location; on Windows the fixed pipe name is used instead.
func Dial(path string) (*Client, error) {
	conn, err := DialSocket(path)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Do sends one command and waits for its response frame.
func (c *Client) Do(req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}
	frame, err := EncodeFrame(OpCommand, payload)
	if err != nil {
		return Response{}, err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return Response{}, fmt.Errorf("sending command: %w", err)
	}

	for {
		opcode, body, err := DecodeFrame(c.conn)
		if err != nil {
			return Response{}, fmt.Errorf("reading response: %w", err)
		}
		// Event frames can interleave once watch mode is on; commands only
		// complete on a response frame.
		if opcode != OpResponse {
			continue
		}
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return Response{}, fmt.Errorf("decoding response: %w", err)
		}
		return resp, nil
	}
}

// Watch subscribes to status events and calls fn for each one. fn returning
// false ends the watch. Blocks until the stream ends.
func (c *Client) Watch(fn func(StatusPayload) bool) error {
	if _, err := c.Do(Request{Command: CmdWatch}); err != nil {
		return err
	}
	for {
		opcode, body, err := DecodeFrame(c.conn)
		if err != nil {
			return fmt.Errorf("reading event: %w", err)
		}
		if opcode != OpEvent {
			continue
		}
		var p StatusPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("decoding event: %w", err)
		}
		if !fn(p) {
			return nil
		}
	}
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if frame, err := EncodeFrame(OpClose, nil); err == nil {
		_, _ = c.conn.Write(frame)
	}
	return c.conn.Close()
}
