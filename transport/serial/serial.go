// Package serial implements the bench/HIL transport: a single physical
// RS232 link, framed with a magic+length+Fletcher-16 checksum envelope,
// carrying this project's own packet format. It exists so a drone or
// base agent can be wired to real hardware over a bench link during
// integration testing, with the same Transport contract a simulated
// radio satisfies.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/skyflock/swarmcore/core/codec"
	"github.com/skyflock/swarmcore/transport"
	"go.bug.st/serial"
)

var _ transport.Transport = (*Transport)(nil)

const (
	// DefaultBaudRate is the default baud rate for the bench link.
	DefaultBaudRate = 115200

	readBufSize = 1024
)

// Config holds the configuration for a serial transport.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to DefaultBaudRate.
	BaudRate int
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Transport over a single serial link. A
// bench link has exactly one peer on the other end of the wire, so
// SendUnicast and SendBroadcast both simply write the framed envelope;
// "dst" is advisory only and RegisterPeer is a no-op.
type Transport struct {
	cfg Config
	log *slog.Logger

	mu        sync.RWMutex
	port      serial.Port
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
	rx        transport.RxCallback
}

// New creates a new serial transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{
		cfg: cfg,
		log: cfg.Logger.WithGroup("serial"),
	}
}

// Start opens the serial port and begins reading frames.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Port == "" {
		return errors.New("serial port is required")
	}

	mode := &serial.Mode{BaudRate: t.cfg.BaudRate}
	port, err := serial.Open(t.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}

	t.mu.Lock()
	t.port = port
	t.connected = true
	t.done = make(chan struct{})
	t.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.readLoop(readCtx)

	t.log.Info("connected to serial port", "port", t.cfg.Port, "baud", t.cfg.BaudRate)
	return nil
}

// Stop closes the serial port and stops the read loop.
func (t *Transport) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Lock()
	t.connected = false
	port := t.port
	t.port = nil
	done := t.done
	t.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}
	if done != nil {
		<-done
	}
	return err
}

// IsConnected reports whether the serial port is open.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SetRxCallback installs the handler invoked once per received datagram.
func (t *Transport) SetRxCallback(cb transport.RxCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx = cb
}

// RegisterPeer is a no-op: a bench link has exactly one peer, fixed by
// the wire it's plugged into.
func (t *Transport) RegisterPeer(id uint8, address uint32) {}

// SendUnicast frames bytes and writes them to the link. dst is advisory
// only; there is exactly one peer on the other end of a bench link.
func (t *Transport) SendUnicast(dst uint8, bytes []byte) {
	t.write(bytes)
}

// SendBroadcast frames bytes and writes them to the link.
func (t *Transport) SendBroadcast(bytes []byte) {
	t.write(bytes)
}

func (t *Transport) write(data []byte) {
	t.mu.RLock()
	port := t.port
	connected := t.connected
	t.mu.RUnlock()

	if !connected || port == nil {
		t.log.Debug("dropping write: link not connected")
		return
	}

	frame, err := codec.EncodeRS232Frame(data)
	if err != nil {
		t.log.Error("encoding frame", "error", err)
		return
	}
	if _, err := port.Write(frame); err != nil {
		t.log.Error("writing to serial port", "error", err)
	}
}

// readLoop continuously reads from the serial port and assembles frames.
func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.done)

	buf := make([]byte, readBufSize)
	var assemblyBuf []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				t.handleDisconnect(err)
				return
			}
			t.log.Error("serial read error", "error", err)
			t.handleDisconnect(err)
			return
		}
		if n == 0 {
			continue
		}

		assemblyBuf = append(assemblyBuf, buf[:n]...)
		assemblyBuf = t.processFrames(assemblyBuf)
	}
}

// processFrames extracts complete frames from the buffer and delivers
// each payload to the installed receive callback. Returns any remaining
// bytes that don't yet form a complete frame.
func (t *Transport) processFrames(data []byte) []byte {
	for len(data) >= codec.MinFrameSize {
		frame, remaining, err := codec.DecodeRS232Frame(data)
		if err != nil {
			if errors.Is(err, codec.ErrIncompleteFrame) {
				return data
			}
			if idx := findMagic(data[1:]); idx >= 0 {
				data = data[1+idx:]
				continue
			}
			return nil
		}

		data = remaining

		t.mu.RLock()
		cb := t.rx
		t.mu.RUnlock()
		if cb != nil {
			cb(frame.Payload)
		}
	}
	return data
}

func findMagic(data []byte) int {
	magic := [2]byte{byte(uint16(codec.BridgePacketMagic) >> 8), byte(codec.BridgePacketMagic & 0xFF)}
	for i := 0; i+1 < len(data); i++ {
		if data[i] == magic[0] && data[i+1] == magic[1] {
			return i
		}
	}
	return -1
}

func (t *Transport) handleDisconnect(err error) {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	if err != nil {
		t.log.Error("serial disconnected", "error", err)
	}
}
