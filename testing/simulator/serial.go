package simulator

import (
	"log"

	"github.com/tarm/serial"
)

// ServeSerial opens portName at baud and serves the ELM327 protocol
// against ecu until the port errors or closes. Intended for driving a
// real serial-backed integration test via a loopback pseudo-tty.
func ServeSerial(portName string, baud int, ecu *ECU) error {
	port, err := serial.OpenPort(&serial.Config{Name: portName, Baud: baud})
	if err != nil {
		return err
	}
	log.Printf("simulator: serving on %s", portName)
	return NewAdapter(ecu).Serve(port)
}
