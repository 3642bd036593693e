package sensor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"automon/internal/protocol"
)

// Transport is the minimal surface CapabilityMap needs to query PID
// support; both *transport.Transport and *session.Session satisfy it.
type Transport interface {
	SendAndRead(text string, timeout time.Duration) (string, error)
}

// Query issues `0100` (and `0120` if bit 32 of the `0100` bitmap is
// set) and marks each sensor in catalog Supported iff its
// parameter byte's position bit is set in the resulting capability
// bitmap (§4.3).
func Query(tr Transport, timeout time.Duration, catalog []*Sensor) error {
	bitmap, err := queryBitmap(tr, timeout, "0100")
	if err != nil {
		return fmt.Errorf("sensor: capability query 0100: %w", err)
	}

	if len(bitmap) >= 32 && bitmap[31] == '1' {
		more, err := queryBitmap(tr, timeout, "0120")
		if err != nil {
			return fmt.Errorf("sensor: capability query 0120: %w", err)
		}
		bitmap += more
	}

	for _, s := range catalog {
		pos, err := pidPosition(s.PID)
		if err != nil {
			return err
		}
		s.SetSupported(pos >= 1 && pos <= len(bitmap) && bitmap[pos-1] == '1')
	}
	return nil
}

// queryBitmap sends a PID-support command and returns its 32-bit MSB-first
// binary capability string.
func queryBitmap(tr Transport, timeout time.Duration, cmd string) (string, error) {
	resp, err := tr.SendAndRead(cmd, timeout)
	if err != nil {
		return "", err
	}
	bytes, err := protocol.Bytes(resp)
	if err != nil {
		return "", err
	}
	data := protocol.SkipEcho(bytes)
	if len(data) < 4 {
		return "", fmt.Errorf("sensor: capability response too short: %d bytes", len(data))
	}
	var sb strings.Builder
	for _, b := range data[:4] {
		sb.WriteString(protocol.ByteToBinary8(b))
	}
	return sb.String(), nil
}

// pidPosition extracts a PID's parameter byte as an integer bit
// position, e.g. "010C" -> 0x0C -> 12.
func pidPosition(pid string) (int, error) {
	if len(pid) != 4 {
		return 0, fmt.Errorf("sensor: malformed PID %q", pid)
	}
	v, err := strconv.ParseInt(pid[2:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("sensor: malformed PID %q: %w", pid, err)
	}
	return int(v), nil
}
