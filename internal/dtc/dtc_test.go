package dtc

import (
	"strings"
	"testing"
	"time"
)

type scriptedTransport struct {
	responses []string
	i         int
	sent      []string
}

func (s *scriptedTransport) SendAndRead(text string, timeout time.Duration) (string, error) {
	s.sent = append(s.sent, text)
	if s.i >= len(s.responses) {
		return "", nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

func TestStatusDecodesMILAndCount(t *testing.T) {
	tr := &scriptedTransport{responses: []string{"41 01 83 07 FF 00 >"}}
	svc := New(tr, nil)

	status, err := svc.Status()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.MILOn {
		t.Fatalf("expected MIL on")
	}
	if status.Count != 3 {
		t.Fatalf("expected count 3, got %d", status.Count)
	}
}

func TestDecodeCodeTable(t *testing.T) {
	cases := map[string]string{
		"0133": "P0133",
		"1133": "P1133",
		"4087": "C0087",
		"C012": "U0012",
		"F199": "U3199",
	}
	for enc, want := range cases {
		got, err := DecodeCode(enc)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", enc, err)
		}
		if got != want {
			t.Errorf("DecodeCode(%q) = %q, want %q", enc, got, want)
		}
	}
}

func TestCodesEnumeratesAndDeduplicates(t *testing.T) {
	// Two ECUs, headers enabled, each reporting the same encoded code
	// "0133" followed by a one-byte checksum; status count is 1.
	header := "48494A4B"
	line := header + "0133AA"
	tr := &scriptedTransport{responses: []string{
		"41 01 81 07 FF 00 >", // status: MIL on, count=1
		"OK>",                 // ATH1
		line + line + ">",     // mode 03 response, two identical ECU lines
	}}

	codes, err := svc(tr).Codes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 1 {
		t.Fatalf("expected 1 deduplicated code, got %d: %v", len(codes), codes)
	}
	if codes[0].Code != "P0133" {
		t.Fatalf("got %q, want P0133", codes[0].Code)
	}
	if !strings.Contains(strings.Join(tr.sent, ","), "ATH1") {
		t.Fatalf("expected ATH1 to have been sent")
	}
}

func svc(tr Transport) *Service {
	return New(tr, Dictionary{})
}

func TestResetRequiresStoredCodes(t *testing.T) {
	tr := &scriptedTransport{responses: []string{"41 01 00 00 00 00 >"}}
	if err := svc(tr).Reset(); err == nil {
		t.Fatalf("expected error resetting with zero stored codes")
	}
}

func TestLoadDictionarySkipsMalformedLines(t *testing.T) {
	input := "P0133\tO2 Sensor Circuit Slow Response\nmalformed line\nP0171\tSystem Too Lean\n\n"
	dict, err := LoadDictionary(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dict) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(dict))
	}
	if dict["P0133"] != "O2 Sensor Circuit Slow Response" {
		t.Fatalf("unexpected meaning: %q", dict["P0133"])
	}
}
