// Package transport owns the byte-exact framing contract (§4.1) for
// talking to an ELM327-class adapter over a serial or TCP link: write the
// command terminated by CR, read until the prompt byte or the deadline,
// and serialise every caller onto a single link.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Errors returned by SendAndRead.
var (
	ErrOpenFailed = errors.New("transport: failed to open link")
	ErrBusy       = errors.New("transport: link is busy")
	ErrTimeout    = errors.New("transport: timed out waiting for prompt")
	ErrIOClosed   = errors.New("transport: link closed")
)

var errReadTimeout = errors.New("transport: read tick timeout")

const (
	promptByte   = '>'
	pollInterval = 50 * time.Millisecond
)

// Link is the byte stream a Transport drives: a serial port or a TCP
// socket, both of which already satisfy io.ReadWriteCloser.
type Link interface {
	io.ReadWriteCloser
}

// Config selects and parameterises the underlying Link.
type Config struct {
	Type    string // "serial" or "tcp"
	Address string // COM port / device path, or host:port
	Baud    int    // serial only; ignored for tcp
}

// Transport serialises SendAndRead calls onto a single Link. Exactly one
// caller may be inside SendAndRead at a time; anyone else is told Busy
// immediately rather than queued, matching §4.1's contention rule and the
// single-tenant invariant the Kernel relies on in §4.7.
type Transport struct {
	link Link
	sem  chan struct{} // 1-buffered: held while a call is in flight
}

// New opens a Link per cfg and wraps it in a Transport.
func New(cfg Config) (*Transport, error) {
	link, err := Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return Wrap(link), nil
}

// Wrap adapts an already-open Link, e.g. one built by a test harness or
// the in-process adapter simulator under testing/simulator.
func Wrap(link Link) *Transport {
	t := &Transport{link: link, sem: make(chan struct{}, 1)}
	t.sem <- struct{}{}
	return t
}

// SendAndRead writes text+CR to the link and reads until the prompt byte
// appears or timeout elapses, whichever comes first. The returned string
// includes the terminating '>' for downstream validation; callers strip
// it via the protocol package. On timeout, any residual bytes are drained
// before ErrTimeout is returned.
func (t *Transport) SendAndRead(text string, timeout time.Duration) (string, error) {
	select {
	case <-t.sem:
	default:
		return "", ErrBusy
	}
	defer func() { t.sem <- struct{}{} }()

	if _, err := t.link.Write([]byte(text + "\r")); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIOClosed, err)
	}

	deadline := time.Now().Add(timeout)
	var buf bytes.Buffer
	readBuf := make([]byte, 256)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.drainLocked()
			return "", ErrTimeout
		}

		n, err := t.readTick(readBuf, remaining)
		if n > 0 {
			buf.Write(readBuf[:n])
			if bytes.IndexByte(buf.Bytes(), promptByte) >= 0 {
				return buf.String(), nil
			}
		}
		if err != nil && !errors.Is(err, errReadTimeout) {
			return "", fmt.Errorf("%w: %v", ErrIOClosed, err)
		}
	}
}

// Close releases the underlying Link.
func (t *Transport) Close() error {
	return t.link.Close()
}

// readTick performs one bounded read: at most pollInterval (or the
// remaining budget, if smaller). A link that supports deadlines (e.g. a
// TCP connection) gets one set per tick; a link that doesn't (tarm's
// serial.Port bakes its own ReadTimeout in at Open time) just returns
// zero bytes once its internal timeout fires, which reads as a tick too.
func (t *Transport) readTick(buf []byte, remaining time.Duration) (int, error) {
	wait := pollInterval
	if remaining < wait {
		wait = remaining
	}
	if dl, ok := t.link.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = dl.SetReadDeadline(time.Now().Add(wait))
	}

	n, err := t.link.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return n, errReadTimeout
		}
		return n, err
	}
	if n == 0 {
		return 0, errReadTimeout
	}
	return n, nil
}

// drainLocked reads and discards whatever is left in the input buffer
// after a timeout, matching the source's rubbish = readAll() cleanup. It
// must only be called while the caller already holds the semaphore.
func (t *Transport) drainLocked() {
	buf := make([]byte, 256)
	for {
		n, err := t.readTick(buf, pollInterval)
		if n == 0 || err != nil {
			return
		}
	}
}
