package main

import (
	"fmt"
	"log"
	"time"

	"github.com/horgh/irc"
)

// clientHandler is the type of the per-state command handler spec.md
// section 3 names as a Client attribute: it is swapped out as the
// connection moves through the password-pending / registration /
// registered states (section 4.2).
type clientHandler func(*Server, *Client, irc.Message)

// Client represents one TCP/TLS connection. It is owned by the reactor
// goroutine; once the client has been handed off by acceptLoop, every
// field below except readBuf (used only by readLoop) is touched only from
// that goroutine, mirroring the teacher's LocalClient/Catbox split onto a
// single owning goroutine.
type Client struct {
	conn Conn
	id   uint64

	server *Server

	remoteHost string
	remotePort string

	// nick is empty until NICK succeeds; non-empty exactly when this client
	// is present in the server's nickname index (spec.md section 3
	// invariant).
	nick     string
	user     string
	realName string

	readBuf  []byte
	writeBuf []byte

	writeChan chan irc.Message

	lastActivity   time.Time
	pingSent       bool
	awaitingCapEnd bool

	registered bool

	handler clientHandler

	// channels a client belongs to, keyed by canonical channel name. Used
	// only to drive PART/QUIT teardown and NICK-change broadcast; the
	// Channel objects themselves own the authoritative membership.
	channels map[string]*Channel
}

func newClient(s *Server, id uint64, conn Conn) *Client {
	host := conn.IP.String()

	c := &Client{
		conn:       conn,
		id:         id,
		server:     s,
		remoteHost: host,
		remotePort: conn.Port,
		readBuf:    make([]byte, 0, s.Config.ReadBufferCap),
		writeChan:  make(chan irc.Message, 4096),
		channels:   make(map[string]*Channel),
	}

	if s.Config.Password != "" {
		c.handler = handlePasswordPending
	} else {
		c.handler = handleRegistration
	}

	return c
}

func (c *Client) String() string {
	return fmt.Sprintf("%d %s:%s", c.id, c.remoteHost, c.remotePort)
}

// queue hands a message to the client's write goroutine. It never blocks:
// a client stuck long enough to fill its queue gets disconnected by the
// liveness sweep, not by backpressure onto the reactor.
func (c *Client) queue(m irc.Message) {
	select {
	case c.writeChan <- m:
	default:
		log.Printf("client %s: write queue full, dropping", c)
	}
}

// readLoop reads raw bytes off the socket, extracts complete lines, parses
// them, and forwards each parsed message to the reactor as an event. Apart
// from the client's own readBuf, it never mutates server/channel/client
// state directly (spec.md section 5).
func (c *Client) readLoop() {
	defer c.server.wg.Done()

	buf := make([]byte, 1024)

	for {
		n, err := c.conn.readRaw(buf)
		if err != nil || n == 0 {
			c.server.events <- Event{Type: deadClientEvent, Client: c, Reason: "Read error"}
			return
		}

		c.readBuf = append(c.readBuf, buf[:n]...)

		lines, rest := extractLines(c.readBuf)
		c.readBuf = append([]byte(nil), rest...)

		for _, line := range lines {
			if line == "" {
				continue
			}
			msg, ok := tokenize(line)
			if !ok {
				continue
			}
			c.server.events <- Event{Type: messageEvent, Client: c, Message: msg}
		}
	}
}

// writeLoop drains the client's write channel, encodes each message, and
// writes it to the socket. Closing writeChan (done by disconnect, from the
// reactor goroutine) ends this loop and closes the connection.
func (c *Client) writeLoop() {
	defer c.server.wg.Done()

	for m := range c.writeChan {
		buf, err := m.Encode()
		if err != nil && buf == "" {
			log.Printf("client %s: unable to encode message: %s", c, err)
			continue
		}

		if _, err := c.conn.writeRaw([]byte(buf)); err != nil {
			log.Printf("client %s: write error: %s", c, err)
			c.server.events <- Event{Type: deadClientEvent, Client: c, Reason: "Write error"}
			break
		}
	}

	if err := c.conn.Close(); err != nil {
		log.Printf("client %s: problem closing connection: %s", c, err)
	}
}
