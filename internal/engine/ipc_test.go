package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wavebridge/internal/core"
	apperrors "wavebridge/internal/errors"
)

// fakeEngine is a Unix-socket server speaking the engine's line-based
// JSON protocol. The handler returns the response for each request; a
// nil response means the request is swallowed.
type fakeEngine struct {
	socketPath string
	listener   net.Listener

	mu      sync.Mutex
	handler func(req ipcRequest) *ipcMessage
	conn    net.Conn
}

func newFakeEngine(t *testing.T, handler func(req ipcRequest) *ipcMessage) *fakeEngine {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "engine.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	f := &fakeEngine{socketPath: socketPath, listener: listener, handler: handler}
	t.Cleanup(func() { _ = listener.Close() })

	go f.serve()
	return f
}

func (f *fakeEngine) serve() {
	conn, err := f.listener.Accept()
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req ipcRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		f.mu.Lock()
		handler := f.handler
		f.mu.Unlock()

		resp := handler(req)
		if resp == nil {
			continue
		}
		resp.RequestID = req.RequestID
		payload, _ := json.Marshal(resp)
		_, _ = conn.Write(append(payload, '\n'))
	}
}

func (f *fakeEngine) send(t *testing.T, msg ipcMessage) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn != nil {
			payload, _ := json.Marshal(msg)
			if _, err := conn.Write(append(payload, '\n')); err != nil {
				t.Fatalf("send event: %v", err)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no client connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIPCCommandRoundTrip(t *testing.T) {
	fake := newFakeEngine(t, func(req ipcRequest) *ipcMessage {
		if len(req.Command) == 2 && req.Command[0] == "get_property" && req.Command[1] == "pause" {
			return &ipcMessage{Error: "success", Data: true}
		}
		return &ipcMessage{Error: "success"}
	})

	conn, err := dialIPC(fake.socketPath, nil)
	if err != nil {
		t.Fatalf("dialIPC: %v", err)
	}
	defer conn.close()

	data, err := conn.command(context.Background(), "get_property", "pause")
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if paused, ok := data.(bool); !ok || !paused {
		t.Errorf("data = %v, want true", data)
	}
}

func TestIPCCommandError(t *testing.T) {
	fake := newFakeEngine(t, func(req ipcRequest) *ipcMessage {
		return &ipcMessage{Error: "property not found"}
	})

	conn, err := dialIPC(fake.socketPath, nil)
	if err != nil {
		t.Fatalf("dialIPC: %v", err)
	}
	defer conn.close()

	if _, err := conn.command(context.Background(), "get_property", "bogus"); err == nil {
		t.Error("expected error for failed command")
	}
}

func TestIPCEventDispatch(t *testing.T) {
	events := make(chan ipcMessage, 1)
	fake := newFakeEngine(t, func(req ipcRequest) *ipcMessage {
		return &ipcMessage{Error: "success"}
	})

	conn, err := dialIPC(fake.socketPath, func(msg ipcMessage) {
		events <- msg
	})
	if err != nil {
		t.Fatalf("dialIPC: %v", err)
	}
	defer conn.close()

	// A command forces the fake to accept the connection first.
	if _, err := conn.command(context.Background(), "get_property", "pause"); err != nil {
		t.Fatalf("command: %v", err)
	}

	fake.send(t, ipcMessage{Event: "end-file", Reason: "eof"})

	select {
	case msg := <-events:
		if msg.Event != "end-file" || msg.Reason != "eof" {
			t.Errorf("event = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("event not dispatched")
	}
}

func TestIPCContextCancel(t *testing.T) {
	fake := newFakeEngine(t, func(req ipcRequest) *ipcMessage {
		return nil // never respond
	})

	conn, err := dialIPC(fake.socketPath, nil)
	if err != nil {
		t.Fatalf("dialIPC: %v", err)
	}
	defer conn.close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := conn.command(ctx, "get_property", "pause"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline, got %v", err)
	}
}

func TestIPCClosedConn(t *testing.T) {
	fake := newFakeEngine(t, func(req ipcRequest) *ipcMessage {
		return &ipcMessage{Error: "success"}
	})

	conn, err := dialIPC(fake.socketPath, nil)
	if err != nil {
		t.Fatalf("dialIPC: %v", err)
	}
	conn.close()

	if _, err := conn.command(context.Background(), "stop"); !errors.Is(err, apperrors.ErrEngineUnavailable) {
		t.Errorf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestEmitDropsOldestWhenFull(t *testing.T) {
	m := &MPV{ticks: make(chan core.EngineTick, 2)}

	m.emit(core.EngineTick{PositionMs: 1})
	m.emit(core.EngineTick{PositionMs: 2})
	m.emit(core.EngineTick{PositionMs: 3})

	first := <-m.ticks
	second := <-m.ticks
	if first.PositionMs != 2 || second.PositionMs != 3 {
		t.Errorf("ticks = %d, %d; want 2, 3 (oldest dropped)", first.PositionMs, second.PositionMs)
	}
}

func TestEmitKeepsOneShotFlagsAcrossDrops(t *testing.T) {
	m := &MPV{ticks: make(chan core.EngineTick, 2)}

	m.emit(core.EngineTick{PositionMs: 1, EndOfStream: true})
	m.emit(core.EngineTick{PositionMs: 2})
	m.emit(core.EngineTick{PositionMs: 3})
	m.emit(core.EngineTick{PositionMs: 4, Unavailable: true})
	m.emit(core.EngineTick{PositionMs: 5})

	var sawEOF, sawUnavailable bool
	for len(m.ticks) > 0 {
		tick := <-m.ticks
		sawEOF = sawEOF || tick.EndOfStream
		sawUnavailable = sawUnavailable || tick.Unavailable
	}
	if !sawEOF {
		t.Error("end-of-stream flag lost when the buffer overflowed")
	}
	if !sawUnavailable {
		t.Error("unavailable flag lost when the buffer overflowed")
	}
}
