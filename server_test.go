package main

import (
	"testing"
	"time"

	"github.com/horgh/irc"
)

func TestLivenessSweepPingsIdleRegisteredClient(t *testing.T) {
	s := newTestServer(t)
	s.Config.PingTime = time.Minute
	s.Config.DeadTime = 3 * time.Minute

	c := newTestClient(s)
	s.clients[c] = struct{}{}
	register(t, s, c, "alice", "alice")
	drain(c)

	c.registered = true
	c.lastActivity = time.Now().Add(-2 * time.Minute)

	s.livenessSweep()

	msgs := drain(c)
	if !hasCommand(msgs, "PING") {
		t.Errorf("expected a PING, got %+v", msgs)
	}
	if !c.pingSent {
		t.Error("expected pingSent to be set")
	}
	if _, stillConnected := s.clients[c]; !stillConnected {
		t.Error("expected client to remain connected after a single PING")
	}
}

func TestLivenessSweepDisconnectsDeadRegisteredClient(t *testing.T) {
	s := newTestServer(t)
	s.Config.PingTime = time.Minute
	s.Config.DeadTime = 3 * time.Minute

	c := newTestClient(s)
	s.clients[c] = struct{}{}
	register(t, s, c, "alice", "alice")
	drain(c)

	c.lastActivity = time.Now().Add(-4 * time.Minute)

	s.livenessSweep()

	if _, stillConnected := s.clients[c]; stillConnected {
		t.Error("expected client past DeadTime to be disconnected")
	}
}

func TestLivenessSweepDisconnectsIdleUnregisteredClient(t *testing.T) {
	s := newTestServer(t)
	s.Config.PingTime = time.Minute
	s.Config.DeadTime = 3 * time.Minute

	c := newTestClient(s)
	s.clients[c] = struct{}{}
	c.lastActivity = time.Now().Add(-2 * time.Minute)

	s.livenessSweep()

	if _, stillConnected := s.clients[c]; stillConnected {
		t.Error("expected unregistered client past PingTime to be disconnected outright")
	}
}

func TestSortedChannelNamesAscending(t *testing.T) {
	s := newTestServer(t)
	s.channels["#zeta"] = &Channel{name: "#zeta", members: map[*Client]struct{}{}, server: s}
	s.channels["#alpha"] = &Channel{name: "#alpha", members: map[*Client]struct{}{}, server: s}

	got := s.sortedChannelNames()
	if len(got) != 2 || got[0] != "#alpha" || got[1] != "#zeta" {
		t.Errorf("unexpected order: %#v", got)
	}
}

func TestWallopsReachesEveryClient(t *testing.T) {
	s := newTestServer(t)

	a := newTestClient(s)
	s.clients[a] = struct{}{}
	register(t, s, a, "alice", "alice")
	drain(a)

	b := newTestClient(s)
	s.clients[b] = struct{}{}
	register(t, s, b, "bob", "bob")
	drain(b)

	cmdWallops(s, a, irc.Message{Command: "WALLOPS", Params: []string{"server going down"}})

	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		if !hasCommand(msgs, "NOTICE") {
			t.Errorf("expected NOTICE for client %s, got %+v", c, msgs)
		}
	}
}
