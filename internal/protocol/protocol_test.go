package protocol

import (
	"errors"
	"testing"
)

func TestBytesEngineRPM(t *testing.T) {
	bytes, err := Bytes("41 0C 1A F8 >")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{0x41, 0x0C, 0x1A, 0xF8}
	if len(bytes) != len(want) {
		t.Fatalf("got %v, want %v", bytes, want)
	}
	for i := range want {
		if bytes[i] != want[i] {
			t.Fatalf("got %v, want %v", bytes, want)
		}
	}
}

func TestBytesSkipEcho(t *testing.T) {
	bytes, err := Bytes("41 0C 1A F8 >")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := SkipEcho(bytes)
	if len(data) != 2 || data[0] != 0x1A || data[1] != 0xF8 {
		t.Fatalf("unexpected skip-echo result: %v", data)
	}
}

func TestBytesNoPrompt(t *testing.T) {
	if _, err := Bytes("41 0C 1A F8"); !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("expected ErrNoPrompt, got %v", err)
	}
}

func TestBytesOddNibbles(t *testing.T) {
	if _, err := Bytes("41 0 >"); !errors.Is(err, ErrOddNibbles) {
		t.Fatalf("expected ErrOddNibbles, got %v", err)
	}
}

func TestCheckSpecialResponses(t *testing.T) {
	cases := map[string]error{
		"NODATA>":         ErrNoData,
		"?>":               ErrNoData,
		"BUSERROR>":        ErrBusError,
		"UNABLETOCONNECT>": ErrUnableToConnect,
	}
	for in, want := range cases {
		if _, err := Bytes(in); !errors.Is(err, want) {
			t.Errorf("Bytes(%q) = %v, want %v", in, err, want)
		}
	}
}

func TestByteToBinary8(t *testing.T) {
	if got := ByteToBinary8(0xBE); got != "10111110" {
		t.Fatalf("got %q", got)
	}
	if got := ByteToBinary8(0x01); got != "00000001" {
		t.Fatalf("got %q", got)
	}
}
