package main

import (
	"testing"

	"github.com/horgh/irc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(s *Server) *Client {
	c := &Client{
		server:     s,
		remoteHost: "203.0.113.1",
		writeChan:  make(chan irc.Message, 64),
		channels:   make(map[string]*Channel),
		handler:    handleRegistration,
	}
	return c
}

func drain(c *Client) []irc.Message {
	var out []irc.Message
	for {
		select {
		case m := <-c.writeChan:
			out = append(out, m)
		default:
			return out
		}
	}
}

func hasCommand(msgs []irc.Message, command string) bool {
	for _, m := range msgs {
		if m.Command == command {
			return true
		}
	}
	return false
}

func register(t *testing.T, s *Server, c *Client, nick, user string) {
	t.Helper()
	c.handler(s, c, irc.Message{Command: "NICK", Params: []string{nick}})
	c.handler(s, c, irc.Message{Command: "USER", Params: []string{user, "0", "*", "Real Name"}})
}

func TestRegistrationSendsWelcomeBlock(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(s)
	s.clients[c] = struct{}{}

	register(t, s, c, "alice", "alice")

	require.True(t, c.registered)

	msgs := drain(c)
	for _, want := range []string{"001", "002", "003", "004", "251"} {
		assert.Truef(t, hasCommand(msgs, want), "expected numeric %s in welcome block, got %+v", want, msgs)
	}
}

func TestNicknameUniquenessRejectsDuplicate(t *testing.T) {
	s := newTestServer(t)

	c1 := newTestClient(s)
	s.clients[c1] = struct{}{}
	register(t, s, c1, "alice", "alice")
	drain(c1)

	c2 := newTestClient(s)
	s.clients[c2] = struct{}{}
	c2.handler(s, c2, irc.Message{Command: "NICK", Params: []string{"alice"}})

	msgs := drain(c2)
	assert.True(t, hasCommand(msgs, "433"), "expected 433 ERR_NICKNAMEINUSE, got %+v", msgs)
	assert.Equal(t, "", c2.nick)
}

func TestJoinCreatesAndNamesChannel(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(s)
	s.clients[c] = struct{}{}
	register(t, s, c, "alice", "alice")
	drain(c)

	cmdJoin(s, c, irc.Message{Command: "JOIN", Params: []string{"#test"}})

	_, ok := s.channels["#test"]
	require.True(t, ok, "expected channel to be created")

	msgs := drain(c)
	assert.True(t, hasCommand(msgs, "JOIN"), "expected JOIN echo, got %+v", msgs)
	assert.True(t, hasCommand(msgs, "353"))
	assert.True(t, hasCommand(msgs, "366"))
}

func TestPartRemovesEmptyChannel(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(s)
	s.clients[c] = struct{}{}
	register(t, s, c, "alice", "alice")
	drain(c)

	cmdJoin(s, c, irc.Message{Command: "JOIN", Params: []string{"#test"}})
	drain(c)

	cmdPart(s, c, irc.Message{Command: "PART", Params: []string{"#test"}})

	_, ok := s.channels["#test"]
	assert.False(t, ok, "expected channel to be removed once empty")
	_, onChannel := c.channels["#test"]
	assert.False(t, onChannel)
}

func TestPrivmsgNoSelfEcho(t *testing.T) {
	s := newTestServer(t)

	a := newTestClient(s)
	s.clients[a] = struct{}{}
	register(t, s, a, "alice", "alice")
	drain(a)

	b := newTestClient(s)
	s.clients[b] = struct{}{}
	register(t, s, b, "bob", "bob")
	drain(b)

	cmdJoin(s, a, irc.Message{Command: "JOIN", Params: []string{"#test"}})
	drain(a)
	cmdJoin(s, b, irc.Message{Command: "JOIN", Params: []string{"#test"}})
	drain(a)
	drain(b)

	cmdPrivmsgOrNotice(s, a, irc.Message{Command: "PRIVMSG", Params: []string{"#test", "hello"}})

	assert.False(t, hasCommand(drain(a), "PRIVMSG"), "expected sender to not receive its own PRIVMSG")
	assert.True(t, hasCommand(drain(b), "PRIVMSG"), "expected recipient to receive PRIVMSG")
}

func TestQuitBroadcastsOnceAcrossSharedChannels(t *testing.T) {
	s := newTestServer(t)

	a := newTestClient(s)
	s.clients[a] = struct{}{}
	register(t, s, a, "alice", "alice")
	drain(a)

	b := newTestClient(s)
	s.clients[b] = struct{}{}
	register(t, s, b, "bob", "bob")
	drain(b)

	for _, ch := range []string{"#one", "#two"} {
		cmdJoin(s, a, irc.Message{Command: "JOIN", Params: []string{ch}})
		cmdJoin(s, b, irc.Message{Command: "JOIN", Params: []string{ch}})
	}
	drain(a)
	drain(b)

	s.disconnect(a, "leaving")

	count := 0
	for _, m := range drain(b) {
		if m.Command == "QUIT" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestModeKeyGateRejectsWrongKey(t *testing.T) {
	s := newTestServer(t)

	a := newTestClient(s)
	s.clients[a] = struct{}{}
	register(t, s, a, "alice", "alice")
	drain(a)
	cmdJoin(s, a, irc.Message{Command: "JOIN", Params: []string{"#test"}})
	drain(a)

	cmdChannelMode(s, a, irc.Message{Command: "MODE", Params: []string{"#test", "+k", "secret"}}, "#test")
	drain(a)

	b := newTestClient(s)
	s.clients[b] = struct{}{}
	register(t, s, b, "bob", "bob")
	drain(b)

	cmdJoin(s, b, irc.Message{Command: "JOIN", Params: []string{"#test", "wrong"}})
	msgs := drain(b)
	assert.True(t, hasCommand(msgs, "475"), "expected 475 ERR_BADCHANNELKEY, got %+v", msgs)
	_, onChannel := b.channels["#test"]
	assert.False(t, onChannel)
}

func TestIsonReportsOnlyOnlineNicks(t *testing.T) {
	s := newTestServer(t)
	a := newTestClient(s)
	s.clients[a] = struct{}{}
	register(t, s, a, "alice", "alice")
	drain(a)

	cmdIson(s, a, irc.Message{Command: "ISON", Params: []string{"alice bob"}})
	msgs := drain(a)
	require.Len(t, msgs, 1)
	assert.Equal(t, "303", msgs[0].Command)
	require.GreaterOrEqual(t, len(msgs[0].Params), 2)
	assert.Equal(t, "alice", msgs[0].Params[1])
}
