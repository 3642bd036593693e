package simulator

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// version is the ELM327 chip identity string ATZ and ATI report.
const version = "ELM327 v1.5"

// reverseNibblePrefix inverts internal/dtc's nibblePrefix so the
// simulator can encode a canonical code ("P0133") back into the
// 4-hex-char form mode 03 carries on the wire ("0133").
var reverseNibblePrefix = map[string]string{
	"P0": "0", "P1": "1", "P2": "2", "P3": "3",
	"C0": "4", "C1": "5", "C2": "6", "C3": "7",
	"B0": "8", "B1": "9", "B2": "A", "B3": "B",
	"U0": "C", "U1": "D", "U2": "E", "U3": "F",
}

func encodeCode(code string) (string, error) {
	if len(code) != 5 {
		return "", fmt.Errorf("simulator: malformed DTC %q", code)
	}
	nibble, ok := reverseNibblePrefix[code[:2]]
	if !ok {
		return "", fmt.Errorf("simulator: unknown DTC prefix %q", code[:2])
	}
	return nibble + code[2:], nil
}

// Adapter drives the ELM327 wire protocol (§4.1) against one ECU: read
// a CR-terminated command, reply with the hex payload (or special
// string) terminated by the `>` prompt.
type Adapter struct {
	ecu         *ECU
	headersOn   bool
	mode03Delim string
}

// NewAdapter returns an Adapter fronting ecu.
func NewAdapter(ecu *ECU) *Adapter {
	return &Adapter{ecu: ecu, mode03Delim: "48454144"}
}

// Serve reads commands from conn until it errors or closes, replying
// to each with the adapter's response plus the `>` prompt.
func (a *Adapter) Serve(conn io.ReadWriteCloser) error {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\r')
		if err != nil {
			return err
		}
		cmd := strings.TrimSpace(line)
		if cmd == "" {
			continue
		}
		resp := a.handle(cmd)
		if _, err := conn.Write([]byte(resp + "\r>")); err != nil {
			return err
		}
	}
}

func (a *Adapter) handle(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasPrefix(upper, "AT") {
		return a.handleAT(upper)
	}
	fields := strings.Fields(upper)
	if len(fields) == 0 {
		return ""
	}
	return a.handleOBD(strings.ReplaceAll(fields[0], " ", ""))
}

func (a *Adapter) handleAT(cmd string) string {
	switch cmd {
	case "ATZ":
		return version
	case "ATI":
		return version
	case "ATDP":
		return a.ecu.ProtocolName
	case "ATRV":
		return a.ecu.Voltage
	case "ATH1":
		a.headersOn = true
		return "OK"
	case "ATH0":
		a.headersOn = false
		return "OK"
	default: // ATE0, ATAT2, and anything else not modelled: ack
		return "OK"
	}
}

func (a *Adapter) handleOBD(cmd string) string {
	if len(cmd) < 2 {
		return "?"
	}
	mode := cmd[:2]
	switch mode {
	case "01":
		return a.handleMode01(cmd)
	case "03":
		return a.handleMode03()
	case "04":
		a.ecu.ClearDTCs()
		return "44"
	case "09":
		if cmd == "0902" {
			return a.handleVIN()
		}
		return "NO DATA"
	default:
		return "NO DATA"
	}
}

func (a *Adapter) handleMode01(cmd string) string {
	if len(cmd) < 4 {
		return "?"
	}
	pid := cmd[2:4]
	values, supported, milOn, dtcs := a.ecu.snapshot()

	switch pid {
	case "00":
		return toHex(prepend(0x41, 0x00, capabilityBitmap(supported, 0)...))
	case "20":
		return toHex(prepend(0x41, 0x20, capabilityBitmap(supported, 32)...))
	case "01":
		count := len(dtcs)
		if count > 0x7F {
			count = 0x7F
		}
		statusByte := count
		if milOn {
			statusByte |= 0x80
		}
		return toHex(prepend(0x41, 0x01, statusByte, 0x07, 0xFF, 0x00))
	case "1C":
		return toHex(prepend(0x41, 0x1C, 1)) // OBD-II (CARB)
	}

	full := "01" + pid
	if !supported[full] {
		return "NO DATA"
	}
	bytes, err := encodePID(full, values[full])
	if err != nil {
		return "NO DATA"
	}
	return toHex(prepend(0x41, mustParseHexByte(pid), bytes...))
}

func (a *Adapter) handleMode03() string {
	_, _, _, dtcs := a.ecu.snapshot()
	var line strings.Builder
	for _, code := range dtcs {
		enc, err := encodeCode(code)
		if err != nil {
			continue
		}
		line.WriteString(enc)
	}
	line.WriteString("00") // checksum byte, unread by the decoder
	return a.mode03Delim + line.String()
}

func (a *Adapter) handleVIN() string {
	vin := a.ecu.VIN
	var data []int
	data = append(data, 0x49, 0x02) // mode+pid echo, dropped by SkipEcho
	for line := 0; line < 6; line++ {
		data = append(data, line)
		for i := 0; i < 3; i++ {
			idx := line*3 + i
			if idx < len(vin) {
				data = append(data, int(vin[idx]))
			} else {
				data = append(data, 0)
			}
		}
	}
	return toHex(data)
}

func capabilityBitmap(supported map[string]bool, base int) []int {
	bits := make([]int, 32)
	for pid, ok := range supported {
		if !ok || len(pid) != 4 {
			continue
		}
		v, err := strconv.ParseInt(pid[2:], 16, 32)
		if err != nil {
			continue
		}
		pos := int(v) - base
		if base == 0 && int(v) > 32 {
			bits[31] = 1 // bit 32: PIDs beyond 0x20 are supported, query 0120
			continue
		}
		if pos < 1 || pos > 32 {
			continue
		}
		bits[pos-1] = 1
	}
	out := make([]int, 4)
	for i := 0; i < 4; i++ {
		b := 0
		for j := 0; j < 8; j++ {
			b = b<<1 | bits[i*8+j]
		}
		out[i] = b
	}
	return out
}

func prepend(first, second int, rest ...int) []int {
	out := make([]int, 0, 2+len(rest))
	out = append(out, first, second)
	out = append(out, rest...)
	return out
}

func toHex(bytes []int) string {
	var b strings.Builder
	for _, v := range bytes {
		fmt.Fprintf(&b, "%02X", v&0xFF)
	}
	return b.String()
}

func mustParseHexByte(s string) int {
	v, _ := strconv.ParseInt(s, 16, 32)
	return int(v)
}
