package transport

import "fmt"

// Open dispatches cfg.Type to the concrete Link implementation: a serial
// port for "serial", a TCP socket for "tcp".
func Open(cfg Config) (Link, error) {
	switch cfg.Type {
	case "serial":
		return openSerial(cfg.Address, cfg.Baud)
	case "tcp":
		return openTCP(cfg.Address)
	default:
		return nil, fmt.Errorf("transport: unknown link type %q", cfg.Type)
	}
}
