package publish

import (
	"fmt"
	"net"

	"nmeafix/internal/nmea"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type (
	resolveFunc func(network, address string) (*net.UDPAddr, error)
	dialFunc    func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)
)

// UDP sends one JSON datagram per record.
type UDP struct {
	dest string
	conn udpConn
}

func NewUDP(dest string) (*UDP, error) {
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	}
	return newUDP(dest, net.ResolveUDPAddr, dial)
}

func newUDP(dest string, resolve resolveFunc, dial dialFunc) (*UDP, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &UDP{dest: dest, conn: conn}, nil
}

func (u *UDP) Publish(rec nmea.Record) error {
	payload, err := Encode(rec)
	if err != nil {
		return err
	}
	return u.Send(payload)
}

func (u *UDP) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := u.conn.Write(payload)
	return err
}

func (u *UDP) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}
