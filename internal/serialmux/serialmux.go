// Serialmux provides an abstraction over a serial port with the ability for
// multiple clients to subscribe to lines from the serial port and send
// commands to a single serial port device.
//
// The tunnel's I/O controller speaks a newline-delimited request/reply
// protocol, so on top of the broadcast mux there is Query, which sends one
// command and waits for the first reply line that matches.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	ErrWriteFailed = errors.New("failed to write to serial port")
	// ErrDeviceError wraps an "ERR <reason>" reply from the controller.
	ErrDeviceError = errors.New("device reported error")
	// ErrClosed is returned by Query when the mux is closed mid-request.
	ErrClosed = errors.New("serial mux closed")
)

// querySubscriberBuffer keeps a reply from being dropped when it arrives
// before Query reaches its receive.
const querySubscriberBuffer = 16

// SerialPorter is the subset of go.bug.st/serial.Port the mux needs.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialMux is a generic serial port multiplexer that allows multiple clients to
// subscribe to lines from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	queryMu      sync.Mutex
	// late marks commands whose last Query gave up before a reply came.
	// Guarded by queryMu.
	late      map[string]bool
	closing   bool
	closingMu sync.Mutex
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving lines from the serial
	// port. The channel ID is used to identify the unique channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the serial port.
	SendCommand(string) error
	// Query sends a command and returns the first reply line accepted by
	// match. Monitor must be running for replies to arrive.
	Query(ctx context.Context, command string, match func(string) bool) (string, error)
	// Monitor reads lines from the serial port and sends them to the
	// appropriate channels.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
		late:        make(map[string]bool),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	return s.subscribe(0)
}

func (s *SerialMux[T]) subscribe(buffer int) (string, chan string) {
	id := randomID()
	ch := make(chan string, buffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand sends a command to the serial port.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n" // ensure command ends with a newline
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Query sends command and waits for a reply. Lines rejected by match are
// skipped; a line starting with "ERR" ends the wait with ErrDeviceError.
// Only one Query is outstanding at a time, since the controller answers
// requests in order and replies carry no correlation ID.
//
// When a Query for a command gives up before its reply arrives, the next
// Query for the same command discards the first matching line, which is the
// late reply to the earlier request. If that Query also gives up the mark is
// dropped, so a request the controller never answered costs at most one
// further reply.
func (s *SerialMux[T]) Query(ctx context.Context, command string, match func(string) bool) (string, error) {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()

	id, ch := s.subscribe(querySubscriberBuffer)
	defer s.Unsubscribe(id)

	if err := s.SendCommand(command); err != nil {
		return "", fmt.Errorf("send %q: %w", command, err)
	}

	skip := s.late[command]
	delete(s.late, command)
	for {
		select {
		case <-ctx.Done():
			if !skip {
				s.late[command] = true
			}
			return "", fmt.Errorf("waiting for reply to %q: %w", command, ctx.Err())
		case line, ok := <-ch:
			if !ok {
				return "", ErrClosed
			}
			line = strings.TrimSpace(line)
			if reason, isErr := strings.CutPrefix(line, "ERR"); isErr {
				return "", fmt.Errorf("%w: %q: %s", ErrDeviceError, command, strings.TrimSpace(reason))
			}
			if !match(line) {
				continue
			}
			if skip {
				skip = false
				continue
			}
			return line, nil
		}
	}
}

// Monitor monitors the serial port for lines and sends them to subscribers
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so the outer loop can
	// still observe context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					// if the channel is full/blocking skip so as not to block the outer loop
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}
