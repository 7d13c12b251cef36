package main

import (
	"crypto/tls"
	"net"

	"github.com/pkg/errors"
)

// Conn is the connection to a client. It wraps whatever net.Conn the
// reactor accepted -- TLS-wrapped or not -- behind one small interface so
// the rest of the core never has to know the difference.
type Conn struct {
	conn net.Conn
	IP   net.IP
	Port string
}

// NewConn wraps an accepted net.Conn.
func NewConn(conn net.Conn) (Conn, error) {
	host, port, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return Conn{}, errors.Wrap(err, "unable to split remote address")
	}

	return Conn{
		conn: conn,
		IP:   net.ParseIP(host),
		Port: port,
	}, nil
}

// readRaw reads up to len(buf) bytes with no line framing applied -- the
// reactor does its own buffering and line extraction (spec section 4.7).
func (c Conn) readRaw(buf []byte) (int, error) {
	return c.conn.Read(buf)
}

// writeRaw writes a slice of already-framed bytes.
func (c Conn) writeRaw(b []byte) (int, error) {
	return c.conn.Write(b)
}

// Close closes the underlying connection.
func (c Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote network address.
func (c Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// tlsAdapter wraps a freshly accepted connection in a server-side TLS
// session using the configured certificate, if any. The core never reads a
// byte from the raw socket before this handshake completes.
type tlsAdapter struct {
	config *tls.Config
}

// newTLSAdapter loads a certificate/key pair. A nil adapter (with nil
// error) is returned when no TLS paths are configured -- the reactor then
// skips wrapping entirely.
func newTLSAdapter(certFile, keyFile string) (*tlsAdapter, error) {
	if certFile == "" && keyFile == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load TLS certificate")
	}

	return &tlsAdapter{
		config: &tls.Config{
			Certificates: []tls.Certificate{cert},
		},
	}, nil
}

// wrap performs the server-side TLS handshake over an already-accepted
// connection. On failure the caller must log and drop the connection
// (spec section 4.7 step 2); it never disconnects a client mid-protocol.
func (a *tlsAdapter) wrap(conn net.Conn) (net.Conn, error) {
	tlsConn := tls.Server(conn, a.config)
	if err := tlsConn.Handshake(); err != nil {
		return nil, errors.Wrap(err, "TLS handshake failed")
	}
	return tlsConn, nil
}
