package transport

import "github.com/tarm/serial"

// openSerial opens a serial port per §4.1 (38400 8N1). tarm/serial bakes
// its read timeout into the port config rather than exposing a per-call
// deadline, so we give it a short fixed ReadTimeout; readTick's outer
// wall-clock loop supplies the actual SendAndRead deadline by repeatedly
// calling Read and checking elapsed time, mirroring the source's
// busy-poll-with-short-timeout-chunks pattern without literally sleeping.
func openSerial(address string, baud int) (Link, error) {
	if baud == 0 {
		baud = 38400
	}
	cfg := &serial.Config{
		Name:        address,
		Baud:        baud,
		ReadTimeout: pollInterval,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return port, nil
}
