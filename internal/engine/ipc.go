package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	apperrors "wavebridge/internal/errors"
)

// requestTimeout bounds every IPC exchange so a stuck engine cannot
// stall the caller.
const requestTimeout = 2 * time.Second

// ipcRequest is the JSON line sent to the engine's IPC socket.
type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is any JSON line received from the engine: either a command
// response (request_id set) or an asynchronous event notification.
type ipcMessage struct {
	RequestID int64  `json:"request_id"`
	Error     string `json:"error"`
	Data      any    `json:"data"`
	Event     string `json:"event"`
	Reason    string `json:"reason"`
}

// ipcConn is one live connection to the engine's IPC socket. Requests
// are matched to responses by request_id; event lines are handed to the
// onEvent callback from the read loop.
type ipcConn struct {
	conn    net.Conn
	onEvent func(ipcMessage)

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan ipcMessage

	closed    chan struct{}
	closeOnce sync.Once
}

// dialIPC connects to the engine socket, waiting for it to appear after
// process launch.
func dialIPC(socketPath string, onEvent func(ipcMessage)) (*ipcConn, error) {
	var conn net.Conn
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: IPC socket did not appear: %v", apperrors.ErrEngineUnavailable, err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	c := &ipcConn{
		conn:    conn,
		onEvent: onEvent,
		pending: make(map[int64]chan ipcMessage),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *ipcConn) readLoop() {
	defer c.close()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Event != "" {
			if c.onEvent != nil {
				c.onEvent(msg)
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		if ok {
			delete(c.pending, msg.RequestID)
		}
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// command sends one command and waits for its response.
func (c *ipcConn) command(ctx context.Context, cmd ...any) (any, error) {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil, apperrors.ErrEngineUnavailable
	default:
	}

	c.nextID++
	id := c.nextID
	ch := make(chan ipcMessage, 1)
	c.pending[id] = ch

	payload, err := json.Marshal(ipcRequest{Command: cmd, RequestID: id})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}
	_, err = c.conn.Write(append(payload, '\n'))
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: write: %v", apperrors.ErrEngineUnavailable, err)
	}
	c.mu.Unlock()

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("engine error: %s", msg.Error)
		}
		return msg.Data, nil
	case <-timer.C:
		c.drop(id)
		return nil, fmt.Errorf("%w: command timed out", apperrors.ErrEngineUnavailable)
	case <-ctx.Done():
		c.drop(id)
		return nil, ctx.Err()
	case <-c.closed:
		return nil, apperrors.ErrEngineUnavailable
	}
}

func (c *ipcConn) drop(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *ipcConn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
