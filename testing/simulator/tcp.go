package simulator

import (
	"log"
	"net"
)

// StartTCPServer listens on addr and serves the ELM327 protocol over
// every accepted connection against a shared ECU, for use as the
// "testing.useTestTCP" transport target (§6).
func StartTCPServer(addr string, ecu *ECU) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Printf("simulator: listening on %s", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("simulator: accept error: %v", err)
			continue
		}
		go func() {
			if err := NewAdapter(ecu).Serve(conn); err != nil {
				log.Printf("simulator: connection from %s ended: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}
