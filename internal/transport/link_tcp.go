package transport

import "net"

// tcpLink wraps a net.Conn so it satisfies Link and exposes
// SetReadDeadline for readTick's per-poll deadline.
type tcpLink struct {
	net.Conn
}

func openTCP(address string) (Link, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return tcpLink{conn}, nil
}
