// Package dtc implements the diagnostic trouble code subsystem (§4.6):
// MIL/count status via mode 01 PID 01, multi-ECU multi-frame enumeration
// via mode 03, code reset via mode 04, and code-dictionary resolution.
package dtc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"automon/internal/protocol"
)

// Transport is the minimal surface DTCService needs; *session.Session
// satisfies it.
type Transport interface {
	SendAndRead(text string, timeout time.Duration) (string, error)
}

// DTC is a resolved diagnostic trouble code.
type DTC struct {
	Code     string
	Meaning  string
	Solution string
}

// Dictionary maps a 5-character code to its English meaning, loaded
// once from a tab-separated text source
// (§6: "code<TAB>english-meaning"; lines not matching are skipped).
type Dictionary map[string]string

// LoadDictionary reads a tab-separated "code\tmeaning" dictionary. Lines
// that don't split into exactly two tab-separated fields are skipped.
func LoadDictionary(r io.Reader) (Dictionary, error) {
	dict := Dictionary{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		code := strings.TrimSpace(parts[0])
		meaning := strings.TrimSpace(parts[1])
		if code == "" || meaning == "" {
			continue
		}
		dict[code] = meaning
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dtc: reading dictionary: %w", err)
	}
	return dict, nil
}

// nibblePrefix maps a code's first nibble to its two-character prefix
// (§4.6).
var nibblePrefix = map[int]string{
	0x0: "P0", 0x1: "P1", 0x2: "P2", 0x3: "P3",
	0x4: "C0", 0x5: "C1", 0x6: "C2", 0x7: "C3",
	0x8: "B0", 0x9: "B1", 0xA: "B2", 0xB: "B3",
	0xC: "U0", 0xD: "U1", 0xE: "U2", 0xF: "U3",
}

// DecodeCode turns a 4-hex-char encoded code (e.g. "0133") into its
// 5-character canonical form (e.g. "P0133").
func DecodeCode(encoded string) (string, error) {
	if len(encoded) != 4 {
		return "", fmt.Errorf("dtc: malformed encoded code %q", encoded)
	}
	first, err := strconv.ParseInt(encoded[0:1], 16, 8)
	if err != nil {
		return "", fmt.Errorf("dtc: malformed encoded code %q: %w", encoded, err)
	}
	prefix, ok := nibblePrefix[int(first)]
	if !ok {
		return "", fmt.Errorf("dtc: no prefix for nibble %x", first)
	}
	return prefix + encoded[1:], nil
}

// Status is the result of the mode 01 PID 01 query: MIL flag and stored
// code count.
type Status struct {
	MILOn bool
	Count int
}

// Service owns a Transport-capable session and a code dictionary, and
// implements the mode 01/03/04 operations of §4.6.
type Service struct {
	tr   Transport
	dict Dictionary
}

const (
	statusTimeout = 5 * time.Second
	enumTimeout   = 5 * time.Second
	resetTimeout  = 5 * time.Second
)

// New constructs a Service. dict may be nil, in which case Codes
// reports "unknown" as the meaning of every code.
func New(tr Transport, dict Dictionary) *Service {
	if dict == nil {
		dict = Dictionary{}
	}
	return &Service{tr: tr, dict: dict}
}

// Status issues 0101 and returns the MIL flag and stored code count
// (§4.6: bit 7 of byte A is MIL, bits 0-6 are the count).
func (s *Service) Status() (Status, error) {
	resp, err := s.tr.SendAndRead("0101", statusTimeout)
	if err != nil {
		return Status{}, fmt.Errorf("dtc: status query: %w", err)
	}
	bytes, err := protocol.Bytes(resp)
	if err != nil {
		return Status{}, fmt.Errorf("dtc: status query: %w", err)
	}
	data := protocol.SkipEcho(bytes)
	if len(data) < 1 {
		return Status{}, fmt.Errorf("dtc: status response too short")
	}
	a := data[0]
	return Status{
		MILOn: a&0x80 != 0,
		Count: a & 0x7F,
	}, nil
}

// Codes enumerates stored DTCs via mode 03, with headers enabled for the
// duration of the call (§4.6: ATH1 before, ATH0 after), across however
// many ECUs respond, deduplicated, and resolved against the dictionary.
func (s *Service) Codes() ([]DTC, error) {
	status, err := s.Status()
	if err != nil {
		return nil, err
	}

	if _, err := s.tr.SendAndRead("ATH1", statusTimeout); err != nil {
		return nil, fmt.Errorf("dtc: enable headers: %w", err)
	}
	defer s.tr.SendAndRead("ATH0", statusTimeout)

	resp, err := s.tr.SendAndRead("03", enumTimeout)
	if err != nil {
		return nil, fmt.Errorf("dtc: mode 03: %w", err)
	}

	encoded, err := parseMultiFrame(resp, status.Count)
	if err != nil {
		return nil, fmt.Errorf("dtc: mode 03: %w", err)
	}

	seen := map[string]bool{}
	var codes []DTC
	for _, enc := range encoded {
		code, err := DecodeCode(enc)
		if err != nil {
			return nil, fmt.Errorf("dtc: mode 03: %w", err)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		meaning, ok := s.dict[code]
		if !ok {
			meaning = "unknown"
		}
		codes = append(codes, DTC{Code: code, Meaning: meaning})
	}
	return codes, nil
}

// Reset clears stored codes and the MIL via mode 04. Allowed only when
// the current stored count is greater than zero (§4.6).
func (s *Service) Reset() error {
	status, err := s.Status()
	if err != nil {
		return err
	}
	if status.Count == 0 {
		return fmt.Errorf("dtc: reset: no stored codes")
	}
	if _, err := s.tr.SendAndRead("04", resetTimeout); err != nil {
		return fmt.Errorf("dtc: reset: %w", err)
	}
	return nil
}

// parseMultiFrame implements the §4.6 mode-03 parse: strip whitespace/CR
// and the prompt, take the first 8 characters as the ECU-header
// delimiter, split on it, and within each resulting line read 4-hex-char
// tuples until the running total across all lines reaches count.
func parseMultiFrame(raw string, count int) ([]string, error) {
	clean := protocol.Clean(raw)
	clean, err := protocol.StripPrompt(clean)
	if err != nil {
		return nil, err
	}
	if len(clean) < 8 {
		return nil, fmt.Errorf("response too short for a header delimiter")
	}
	delimiter := clean[:8]
	pieces := strings.Split(clean, delimiter)

	var codes []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		// Drop the trailing checksum byte (2 hex chars).
		line := piece
		if len(line) >= 2 {
			line = line[:len(line)-2]
		}
		for i := 0; i+4 <= len(line) && len(codes) < count; i += 4 {
			codes = append(codes, line[i:i+4])
		}
		if len(codes) >= count {
			break
		}
	}
	return codes, nil
}
