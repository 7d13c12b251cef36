package main

import (
	"log"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/horgh/irc"
	"github.com/pkg/errors"
)

// eventType distinguishes the kinds of work the reactor goroutine drains
// off its single events channel.
type eventType int

const (
	newClientEvent eventType = iota
	deadClientEvent
	messageEvent
	tickEvent
)

// Event is how every other goroutine talks to the reactor: new
// connections, dead connections, parsed client messages, and the periodic
// liveness-sweep wakeup all arrive this way, so that every mutation of the
// shared registry happens on the one goroutine that owns it (spec.md
// section 5).
type Event struct {
	Type    eventType
	Client  *Client
	Message irc.Message
	Reason  string
}

// Server is the server registry spec.md section 3 describes: it owns the
// channel map, the client set, and the nickname index, and enforces their
// uniqueness invariants. It also runs the reactor loop (spec.md section
// 4.7). It is a value owned by whoever calls Serve, never a package-level
// singleton (spec.md section 9).
type Server struct {
	Config Config

	channels map[string]*Channel
	clients  map[*Client]struct{}
	nicks    map[string]*Client

	listeners []net.Listener
	tls       *tlsAdapter

	events       chan Event
	shutdownChan chan struct{}
	wg           sync.WaitGroup

	nextID uint64

	motd []string

	started time.Time
}

// NewServer constructs a Server ready to Serve. It does not open any
// sockets yet -- that happens in Serve so that bind failures (which are
// fatal per spec.md section 7) are reported to the caller rather than
// logged from inside a goroutine.
func NewServer(cfg Config) (*Server, error) {
	s := &Server{
		Config:       cfg,
		channels:     make(map[string]*Channel),
		clients:      make(map[*Client]struct{}),
		nicks:        make(map[string]*Client),
		events:       make(chan Event, 4096),
		shutdownChan: make(chan struct{}),
		started:      time.Now(),
	}

	tls, err := newTLSAdapter(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "unable to set up TLS")
	}
	s.tls = tls

	s.motd = loadMOTD(cfg.MOTDFile)

	return s, nil
}

// loadMOTD reads the configured MOTD file into lines. A missing or
// unreadable file does not fail startup: we synthesize a single-line MOTD
// noting the failure (spec.md section 7).
func loadMOTD(path string) []string {
	if path == "" {
		return nil
	}

	data, err := readFile(path)
	if err != nil {
		log.Printf("unable to read MOTD file %s: %s", path, err)
		return []string{"(unable to read MOTD file)"}
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return lines
}

// Serve binds every configured listening port and runs the reactor loop
// until Stop is called. A bind failure is fatal (spec.md section 7) and is
// returned rather than logged, so main can log.Fatal it.
func (s *Server) Serve() error {
	for _, port := range s.Config.Ports {
		network := "tcp4"
		if s.Config.IPv6 {
			network = "tcp"
		}

		addr := net.JoinHostPort(s.Config.ListenAddress, port)
		ln, err := net.Listen(network, addr)
		if err != nil {
			return errors.Wrapf(err, "unable to listen on %s", addr)
		}

		s.listeners = append(s.listeners, ln)
		s.wg.Add(1)
		go s.acceptLoop(ln)
	}

	ticker := time.NewTicker(s.Config.WakeupInterval)
	defer ticker.Stop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ticker.C:
				select {
				case s.events <- Event{Type: tickEvent}:
				case <-s.shutdownChan:
					return
				}
			case <-s.shutdownChan:
				return
			}
		}
	}()

	s.run()
	return nil
}

// Stop closes every listener and tells the reactor and its helper
// goroutines to shut down. Clients already connected are not forcibly
// disconnected; they drain naturally as the process exits.
func (s *Server) Stop() {
	close(s.shutdownChan)
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
}

// acceptLoop accepts connections on one listener and hands each to the
// reactor. TLS wrapping (if configured) happens here, before the reactor
// ever sees the connection, matching spec.md section 4.7 step 2: a failed
// handshake is logged and the connection dropped, never surfaced to the
// protocol engine.
func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdownChan:
				return
			default:
			}
			log.Printf("accept error on %s: %s", ln.Addr(), err)
			continue
		}

		netConn := raw
		if s.tls != nil {
			wrapped, err := s.tls.wrap(raw)
			if err != nil {
				log.Printf("TLS handshake failed for %s: %s", raw.RemoteAddr(), err)
				_ = raw.Close()
				continue
			}
			netConn = wrapped
		}

		conn, err := NewConn(netConn)
		if err != nil {
			log.Printf("unable to wrap connection from %s: %s", raw.RemoteAddr(), err)
			_ = netConn.Close()
			continue
		}

		s.events <- Event{Type: newClientEvent, Client: newClient(s, s.allocID(), conn)}
	}
}

func (s *Server) allocID() uint64 {
	s.nextID++
	return s.nextID
}

// run is the reactor: the single goroutine that ever mutates channels,
// clients, or nicks. Every other goroutine (readLoop, writeLoop,
// acceptLoop, the ticker) only ever sends Events here.
func (s *Server) run() {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *Server) handleEvent(ev Event) {
	switch ev.Type {
	case newClientEvent:
		c := ev.Client
		c.lastActivity = time.Now()
		s.clients[c] = struct{}{}
		s.wg.Add(2)
		go c.readLoop()
		go c.writeLoop()

	case deadClientEvent:
		if _, exists := s.clients[ev.Client]; exists {
			s.disconnect(ev.Client, ev.Reason)
		}

	case messageEvent:
		c := ev.Client
		if _, exists := s.clients[c]; !exists {
			return
		}
		c.lastActivity = time.Now()
		c.pingSent = false
		c.handler(s, c, ev.Message)

	case tickEvent:
		s.livenessSweep()
	}
}

// livenessSweep implements spec.md section 4.7 step 5: disconnect clients
// idle past DeadTime; PING registered clients idle past PingTime (once per
// sweep); disconnect unregistered clients outright past PingTime. It
// iterates a snapshot so disconnecting a client mid-sweep cannot corrupt
// the iteration.
func (s *Server) livenessSweep() {
	now := time.Now()

	snapshot := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		snapshot = append(snapshot, c)
	}

	for _, c := range snapshot {
		if _, exists := s.clients[c]; !exists {
			continue
		}

		idle := now.Sub(c.lastActivity)

		if !c.registered {
			if idle > s.Config.PingTime {
				s.disconnect(c, "Idle too long")
			}
			continue
		}

		if idle > s.Config.DeadTime {
			s.disconnect(c, "Ping timeout")
			continue
		}

		if idle > s.Config.PingTime && !c.pingSent {
			c.send("PING", s.Config.ServerName)
			c.pingSent = true
		}
	}
}

// disconnect tears a client down: it broadcasts QUIT to every channel
// member that needs to hear it (each exactly once), removes the client
// from every channel and from the nickname index, then closes its write
// channel so writeLoop closes the socket.
func (s *Server) disconnect(c *Client, reason string) {
	if _, exists := s.clients[c]; !exists {
		return
	}

	if c.registered {
		s.broadcastQuit(c, reason)
	}

	for _, ch := range c.channelList() {
		ch.logMeta(c.nick, "quit ("+reason+")")
		ch.removeMember(c)
	}

	if c.nick != "" {
		delete(s.nicks, canonicalizeNick(c.nick))
	}

	delete(s.clients, c)

	c.send("ERROR", reason)
	close(c.writeChan)
}

// broadcastQuit sends QUIT to the union of members of every channel c
// belonged to, excluding c itself, with each recipient receiving exactly
// one copy even if they share multiple channels with c (spec.md section
// 4.4 broadcast rule; invariant 6 in section 8 scenario S6).
func (s *Server) broadcastQuit(c *Client, reason string) {
	told := make(map[*Client]struct{})

	for _, ch := range c.channelList() {
		for member := range ch.members {
			if member == c {
				continue
			}
			if _, done := told[member]; done {
				continue
			}
			relayFrom(c, member, "QUIT", reason)
			told[member] = struct{}{}
		}
	}
}

func (c *Client) channelList() []*Channel {
	list := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		list = append(list, ch)
	}
	return list
}

// getOrCreateChannel returns the named canonical channel, creating (and
// registering) it if it does not exist yet. The caller is responsible for
// adding a member right away -- an empty channel must not persist past the
// JOIN that is creating it (spec.md Channel invariant 1).
func (s *Server) getOrCreateChannel(canonName, displayName string) *Channel {
	ch, exists := s.channels[canonName]
	if !exists {
		ch = newChannel(s, displayName)
		s.channels[canonName] = ch
	}
	return ch
}

func (s *Server) lookupChannel(canonName string) (*Channel, bool) {
	ch, ok := s.channels[canonName]
	return ch, ok
}

func (s *Server) lookupNick(canonNick string) (*Client, bool) {
	c, ok := s.nicks[canonNick]
	return c, ok
}

// sortedChannelNames returns every channel's display name sorted
// ascending by original-case name, used by LIST (spec.md section 4.4).
func (s *Server) sortedChannelNames() []string {
	names := make([]string, 0, len(s.channels))
	for _, ch := range s.channels {
		names = append(names, ch.name)
	}
	sort.Strings(names)
	return names
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
