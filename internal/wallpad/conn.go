package wallpad

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for bus communication.
const (
	// defaultSendSpacing is the pause after each transmitted frame. The bus
	// is half-duplex and the wallpad needs quiet time between frames; sending
	// faster than this produces dropped or corrupted commands.
	defaultSendSpacing = 1 * time.Second

	// defaultReconnectDelay is the fixed delay between reconnection attempts.
	defaultReconnectDelay = 30 * time.Second

	// defaultMaxReconnectAttempts bounds consecutive reconnection attempts
	// before the connection is declared permanently down.
	defaultMaxReconnectAttempts = 5

	// readChunkSize is the per-read buffer for the receive loop. Frames are
	// 21 bytes; the gateway may coalesce several into one TCP segment.
	readChunkSize = 256

	// reconnectPollInterval is how often a goroutine waiting on another
	// goroutine's in-flight reconnection re-checks the connection state.
	reconnectPollInterval = 100 * time.Millisecond
)

// Config holds connection configuration for the wallpad bus.
type Config struct {
	// Connection is the bus connection URL.
	// Supported formats:
	//   - "tcp://192.168.0.10:8899" (EW11 TCP-to-RS485 gateway)
	//   - "serial:///dev/ttyUSB0?baud=9600" (direct RS485 adapter)
	Connection string

	// Transport overrides Connection with a pre-built transport when set.
	Transport Transport

	// SendSpacing is the pause after each transmitted frame.
	// Default: 1 second.
	SendSpacing time.Duration

	// ReconnectDelay is the fixed delay between reconnection attempts.
	// Default: 30 seconds.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts bounds consecutive reconnection attempts before
	// the connection is declared permanently down. Default: 5.
	MaxReconnectAttempts int

	// Logger receives connection lifecycle and frame errors. Optional.
	Logger Logger
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Stats holds operational statistics for a bus connection.
type Stats struct {
	FramesTx        uint64
	FramesRx        uint64
	DecodeErrors    uint64 // Frames rejected by structural validation
	ChecksumErrors  uint64 // Frames processed despite a checksum mismatch
	ReconnectsTotal uint64
	PendingSends    int
	Connected       bool
	Reconnecting    bool
}

// Bus is the connection surface controllers depend on. It allows mocking
// the connection in tests.
type Bus interface {
	Send(frame []byte) error
	SetOnFrame(callback func(Frame))
	IsConnected() bool
	Stats() Stats
	Close() error
}

// Ensure Conn implements Bus.
var _ Bus = (*Conn)(nil)

// Conn manages the byte stream to the wallpad bus: one receive loop that
// reassembles and dispatches frames, and one send loop that drains the
// outbound queue with mandatory spacing between frames.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The frame callback is invoked from the receive loop goroutine, one
//     frame at a time, in bus order.
//
// Auto-Reconnection:
//   - When the connection is lost, the Conn redials with a fixed delay
//     between attempts, up to MaxReconnectAttempts consecutive failures.
//   - After exhaustion the connection is permanently down: the OnDown
//     callback fires and both loops exit. A new Conn is required.
type Conn struct {
	cfg       Config
	transport Transport

	// Connection state
	connMu    sync.RWMutex
	stream    io.ReadWriteCloser
	connected bool

	// Reconnection state
	reconnecting   atomic.Bool
	failed         atomic.Bool // permanent failure, reconnects exhausted
	reconnectCount atomic.Int32

	// Outbound queue, drained by the send loop
	queue *sendQueue

	// Frame handler callback
	onFrame    func(Frame)
	callbackMu sync.RWMutex

	// Permanent failure callback
	onDown func(error)

	// Shutdown coordination
	done *closeOnce
	wg   sync.WaitGroup

	// Statistics
	framesTx        atomic.Uint64
	framesRx        atomic.Uint64
	decodeErrors    atomic.Uint64
	checksumErrors  atomic.Uint64
	reconnectsTotal atomic.Uint64
}

// Connect establishes the bus connection and starts the receive and send
// loops. The context bounds the initial dial only; a failed initial dial is
// fatal and does not enter the reconnection path.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.SendSpacing == 0 {
		cfg.SendSpacing = defaultSendSpacing
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	transport := cfg.Transport
	if transport == nil {
		var err error
		transport, err = ParseTransport(cfg.Connection)
		if err != nil {
			return nil, err
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	stream, err := transport.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Conn{
		cfg:       cfg,
		transport: transport,
		stream:    stream,
		connected: true,
		queue:     newSendQueue(),
		done:      newCloseOnce(),
	}

	c.wg.Add(2)
	go c.receiveLoop()
	go c.sendLoop()

	c.cfg.Logger.Info("wallpad bus connected", "endpoint", transport.String())
	return c, nil
}

// Send queues an encoded frame for transmission. Frames are sent in FIFO
// order with SendSpacing between them. Send never blocks: it queues even
// while a reconnection is in progress, and returns ErrNotConnected only
// after Close or permanent failure.
func (c *Conn) Send(frame []byte) error {
	if c.isClosed() {
		return ErrNotConnected
	}
	c.queue.push(frame)
	return nil
}

// SetOnFrame registers the callback invoked for every decoded inbound frame.
// The callback runs on the receive loop goroutine; it must not block on bus
// operations.
func (c *Conn) SetOnFrame(callback func(Frame)) {
	c.callbackMu.Lock()
	c.onFrame = callback
	c.callbackMu.Unlock()
}

// SetOnDown registers the callback invoked once when reconnection attempts
// are exhausted and the connection goes permanently down.
func (c *Conn) SetOnDown(callback func(error)) {
	c.callbackMu.Lock()
	c.onDown = callback
	c.callbackMu.Unlock()
}

// IsConnected reports whether the stream is currently up.
func (c *Conn) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Stats returns a snapshot of operational statistics.
func (c *Conn) Stats() Stats {
	return Stats{
		FramesTx:        c.framesTx.Load(),
		FramesRx:        c.framesRx.Load(),
		DecodeErrors:    c.decodeErrors.Load(),
		ChecksumErrors:  c.checksumErrors.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		PendingSends:    c.queue.len(),
		Connected:       c.IsConnected(),
		Reconnecting:    c.reconnecting.Load(),
	}
}

// Close shuts the connection down. Queued frames are dropped, both loops
// exit, and the stream is closed. Close is idempotent.
func (c *Conn) Close() error {
	c.done.Close()
	c.queue.close()

	c.connMu.Lock()
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	c.connected = false
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

func (c *Conn) currentStream() io.ReadWriteCloser {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if !c.connected {
		return nil
	}
	return c.stream
}

// receiveLoop reads from the stream, reassembles frames across fragmented
// and coalesced reads, and dispatches each decoded frame to the callback.
// On connection loss it drives reconnection.
func (c *Conn) receiveLoop() {
	defer c.wg.Done()

	// buf accumulates unconsumed stream bytes across reads; it is reset on
	// reconnect because the new stream starts at an arbitrary frame boundary.
	buf := make([]byte, 0, 4*FrameLength)
	chunk := make([]byte, readChunkSize)

	for {
		if c.isClosed() {
			return
		}

		stream := c.currentStream()
		if stream == nil {
			if !c.reconnect() {
				return
			}
			buf = buf[:0]
			continue
		}

		n, err := stream.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = c.extractFrames(buf)
		}
		if err != nil {
			if c.isClosed() {
				return
			}
			c.handleDisconnect(err)
			if !c.reconnect() {
				return
			}
			buf = buf[:0]
		}
	}
}

// extractFrames consumes complete frames from the front of buf and returns
// the unconsumed remainder. Bytes before a header are noise and discarded;
// a header without the footer 21 bytes later is a torn frame, skipped by
// advancing past the header and rescanning.
func (c *Conn) extractFrames(buf []byte) []byte {
	for {
		start := findHeader(buf)
		if start < 0 {
			// No header. Keep the last byte in case it is the first half
			// of a header split across reads.
			if len(buf) > 1 {
				buf = buf[len(buf)-1:]
			}
			return buf
		}
		if start > 0 {
			c.cfg.Logger.Debug("discarding noise before frame header", "bytes", start)
			buf = buf[start:]
		}
		if len(buf) < FrameLength {
			return buf
		}
		if !hasFooter(buf) {
			c.cfg.Logger.Warn("frame candidate without footer, resynchronising")
			c.decodeErrors.Add(1)
			buf = buf[2:]
			continue
		}
		c.dispatchFrame(buf[:FrameLength])
		buf = buf[FrameLength:]
	}
}

// dispatchFrame decodes one wire frame and hands it to the callback.
func (c *Conn) dispatchFrame(data []byte) {
	frame, err := Decode(data)
	if err != nil {
		c.cfg.Logger.Warn("dropping undecodable frame", "error", err)
		c.decodeErrors.Add(1)
		return
	}

	c.framesRx.Add(1)
	if !frame.ChecksumOK {
		// Observed on real installations for otherwise valid frames;
		// processed anyway, but counted and logged.
		c.cfg.Logger.Warn("checksum mismatch", "frame", frame.String())
		c.checksumErrors.Add(1)
	}

	c.callbackMu.RLock()
	callback := c.onFrame
	c.callbackMu.RUnlock()
	if callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Error("frame callback panic", "panic", fmt.Sprintf("%v", r))
		}
	}()
	callback(frame)
}

// sendLoop drains the outbound queue one frame at a time, pausing
// SendSpacing after each write so consecutive commands never collide on the
// half-duplex bus. A frame that fails to write is retried on the next
// stream rather than dropped.
func (c *Conn) sendLoop() {
	defer c.wg.Done()

	for {
		frame, ok := c.queue.pop()
		if !ok {
			return
		}

		for {
			stream := c.currentStream()
			if stream == nil {
				if !c.waitConnected() {
					return
				}
				continue
			}
			if _, err := stream.Write(frame); err != nil {
				if c.isClosed() {
					return
				}
				c.cfg.Logger.Error("frame write failed", "error", err)
				c.handleDisconnect(err)
				if !c.waitConnected() {
					return
				}
				continue
			}
			c.framesTx.Add(1)
			break
		}

		select {
		case <-c.done.Done():
			return
		case <-time.After(c.cfg.SendSpacing):
		}
	}
}

// waitConnected blocks until the receive loop has re-established the
// connection. Returns false on shutdown or permanent failure.
func (c *Conn) waitConnected() bool {
	for {
		if c.isClosed() || c.failed.Load() {
			return false
		}
		if c.IsConnected() {
			return true
		}
		select {
		case <-c.done.Done():
			return false
		case <-time.After(reconnectPollInterval):
		}
	}
}

// handleDisconnect tears down the current stream after a read or write
// error so the receive loop enters the reconnection path.
func (c *Conn) handleDisconnect(err error) {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	c.connMu.Unlock()

	if wasConnected {
		c.cfg.Logger.Warn("wallpad bus connection lost", "error", err)
	}
}

// reconnect attempts to re-establish the connection with a fixed delay
// between attempts, bounded by MaxReconnectAttempts. Returns true on
// success, false on shutdown or exhaustion.
func (c *Conn) reconnect() bool {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return c.waitConnected()
	}
	defer c.reconnecting.Store(false)

	for {
		if c.isClosed() {
			return false
		}

		attempt := c.reconnectCount.Add(1)
		if int(attempt) > c.cfg.MaxReconnectAttempts {
			c.declareDown()
			return false
		}

		c.cfg.Logger.Info("attempting reconnection",
			"attempt", attempt,
			"max_attempts", c.cfg.MaxReconnectAttempts,
			"endpoint", c.transport.String())

		ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
		stream, err := c.transport.Dial(ctx)
		cancel()
		if err != nil {
			c.cfg.Logger.Error("reconnect dial failed", "attempt", attempt, "error", err)
			select {
			case <-c.done.Done():
				return false
			case <-time.After(c.cfg.ReconnectDelay):
			}
			continue
		}

		c.connMu.Lock()
		c.stream = stream
		c.connected = true
		c.connMu.Unlock()

		c.reconnectCount.Store(0)
		c.reconnectsTotal.Add(1)
		c.cfg.Logger.Info("reconnection successful",
			"total_reconnects", c.reconnectsTotal.Load())
		return true
	}
}

// declareDown marks the connection permanently failed after reconnection
// exhaustion and fires the OnDown callback.
func (c *Conn) declareDown() {
	c.failed.Store(true)
	c.cfg.Logger.Error("reconnection attempts exhausted, bus permanently down",
		"attempts", c.cfg.MaxReconnectAttempts)

	c.callbackMu.RLock()
	callback := c.onDown
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(ErrReconnectExhausted)
	}

	c.done.Close()
	c.queue.close()
}

// nopLogger discards all log output.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
