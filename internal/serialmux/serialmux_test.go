package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSerialMux(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NotNil(t, mux)
	assert.Same(t, port, mux.port)
	assert.NotNil(t, mux.subscribers)
}

func TestSerialMux_SubscribeUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()
	require.NotEmpty(t, id1)
	require.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2)
	assert.Len(t, mux.subscribers, 2)

	mux.Unsubscribe(id1)
	_, open := <-ch1
	assert.False(t, open, "unsubscribed channel should be closed")
	assert.Len(t, mux.subscribers, 1)

	// unknown and repeated IDs are ignored
	mux.Unsubscribe(id1)
	mux.Unsubscribe("nope")
	assert.Len(t, mux.subscribers, 1)

	mux.Unsubscribe(id2)
	_, open = <-ch2
	assert.False(t, open)
}

func TestSerialMux_SendCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
	}{
		{name: "adds newline", command: "B?", want: "B?\n"},
		{name: "keeps existing newline", command: "Z\n", want: "Z\n"},
		{name: "bank write", command: "L1:01001000", want: "L1:01001000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := NewTestableSerialPort()
			mux := NewSerialMux(port)
			require.NoError(t, mux.SendCommand(tt.command))
			assert.Equal(t, tt.want, string(port.GetWrittenData()))
		})
	}
}

func TestSerialMux_SendCommandWriteError(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = errors.New("cable unplugged")
	mux := NewSerialMux(port)

	err := mux.SendCommand("V?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cable unplugged")
}

func TestSerialMux_MonitorBroadcastsLines(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	_, ch1 := mux.subscribe(4)
	_, ch2 := mux.subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("D1:42.5\nK:1\n"))

	for _, ch := range []chan string{ch1, ch2} {
		assert.Equal(t, "D1:42.5", receive(t, ch))
		assert.Equal(t, "K:1", receive(t, ch))
	}

	require.NoError(t, mux.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
}

func TestSerialMux_MonitorContextCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	_ = mux.Close()
}

func TestSerialMux_MonitorReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("framing error")
	mux := NewSerialMux(port)

	err := mux.Monitor(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "framing error")
}

// controller answers the subset of the firmware protocol used below.
func controller(command string) []string {
	switch {
	case command == "V?":
		return []string{"V:tunnel-io 1.2.0"}
	case command == "B?":
		// an unsolicited line ahead of the reply must be skipped
		return []string{"D2:12.0", "K:0"}
	case strings.HasPrefix(command, "L9"):
		return []string{"ERR unknown bank"}
	case command == "SILENT":
		return nil
	default:
		return []string{"OK"}
	}
}

func startMonitor(t *testing.T, mux *SerialMux[*TestableSerialPort]) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = mux.Monitor(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = mux.Close()
	})
}

func TestSerialMux_Query(t *testing.T) {
	port := NewResponderPort(controller)
	mux := NewSerialMux(port)
	startMonitor(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	line, err := mux.Query(ctx, "V?", func(l string) bool { return strings.HasPrefix(l, "V:") })
	require.NoError(t, err)
	assert.Equal(t, "V:tunnel-io 1.2.0", line)

	line, err = mux.Query(ctx, "B?", func(l string) bool { return strings.HasPrefix(l, "K:") })
	require.NoError(t, err)
	assert.Equal(t, "K:0", line)

	line, err = mux.Query(ctx, "Z", func(l string) bool { return l == "OK" })
	require.NoError(t, err)
	assert.Equal(t, "OK", line)

	assert.Equal(t, []string{"V?", "B?", "Z"}, port.WrittenCommands())
	assert.Empty(t, mux.subscribers, "Query must unsubscribe")
}

func TestSerialMux_QueryDeviceError(t *testing.T) {
	mux := NewSerialMux(NewResponderPort(controller))
	startMonitor(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := mux.Query(ctx, "L9:00000000", func(l string) bool { return l == "OK" })
	require.ErrorIs(t, err, ErrDeviceError)
	assert.Contains(t, err.Error(), "unknown bank")
}

func TestSerialMux_QueryTimeout(t *testing.T) {
	mux := NewSerialMux(NewResponderPort(controller))
	startMonitor(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := mux.Query(ctx, "SILENT", func(l string) bool { return l == "OK" })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerialMux_QueryDiscardsLateReply(t *testing.T) {
	tests := []struct {
		name    string
		replies [][]string
		want    []string
	}{
		{
			name:    "late reply ahead of the fresh one",
			replies: [][]string{nil, {"D1:99.0", "D1:5.0"}, {"D1:6.0"}},
			want:    []string{"", "D1:5.0", "D1:6.0"},
		},
		{
			name:    "request never answered",
			replies: [][]string{nil, {"D1:5.0"}, {"D1:6.0"}},
			want:    []string{"", "", "D1:6.0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			mux := NewSerialMux(NewResponderPort(func(command string) []string {
				if command != "P1" || calls >= len(tt.replies) {
					return nil
				}
				calls++
				return tt.replies[calls-1]
			}))
			startMonitor(t, mux)

			var got []string
			for range tt.want {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				line, err := mux.Query(ctx, "P1", func(l string) bool { return strings.HasPrefix(l, "D1:") })
				cancel()
				if err != nil {
					require.ErrorIs(t, err, context.DeadlineExceeded)
				}
				got = append(got, line)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerialMux_QueryLateMarkIsPerCommand(t *testing.T) {
	mux := NewSerialMux(NewResponderPort(controller))
	startMonitor(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	_, err := mux.Query(ctx, "SILENT", func(l string) bool { return l == "OK" })
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := mux.Query(ctx, "Z", func(l string) bool { return l == "OK" })
	require.NoError(t, err)
	assert.Equal(t, "OK", line)
}

func TestSerialMux_QueryWriteError(t *testing.T) {
	port := NewResponderPort(controller)
	port.WriteError = errors.New("port gone")
	mux := NewSerialMux(port)
	startMonitor(t, mux)

	_, err := mux.Query(context.Background(), "V?", func(string) bool { return true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port gone")
}

func TestSerialMux_QueryClosed(t *testing.T) {
	port := NewResponderPort(func(string) []string { return nil })
	mux := NewSerialMux(port)

	errCh := make(chan error, 1)
	go func() {
		_, err := mux.Query(context.Background(), "V?", func(string) bool { return true })
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		mux.subscriberMu.Lock()
		defer mux.subscriberMu.Unlock()
		return len(mux.subscribers) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, mux.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Query did not return after Close")
	}
}

func TestSerialMux_CloseClosesSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, open := <-ch
	assert.False(t, open)
	assert.True(t, port.Closed)
}

func TestSerialMux_CloseError(t *testing.T) {
	port := NewTestableSerialPort()
	port.CloseError = errors.New("busy")
	mux := NewSerialMux(port)

	assert.EqualError(t, mux.Close(), "busy")
}

func TestTestableSerialPort_RespondHandlesSplitWrites(t *testing.T) {
	var seen []string
	port := NewResponderPort(func(cmd string) []string {
		seen = append(seen, cmd)
		return []string{"OK"}
	})

	_, err := port.Write([]byte("T30"))
	require.NoError(t, err)
	assert.Empty(t, seen)
	_, err = port.Write([]byte("00:1000\nZ\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"T3000:1000", "Z"}, seen)

	buf := make([]byte, 64)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "OK\nOK\n", string(buf[:n]))
}

func receive(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "channel closed")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}
