package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/horgh/irc"
)

// handlePasswordPending is the effective command handler while the
// connection is in the password-pending state (spec.md section 4.2): it
// exists only when the server is configured with a password. It accepts
// only PASS, CAP, and QUIT; anything else is silently ignored.
func handlePasswordPending(s *Server, c *Client, m irc.Message) {
	switch m.Command {
	case "PASS":
		cmdPassPending(s, c, m)
	case "CAP":
		cmdCap(s, c, m)
	case "QUIT":
		cmdQuit(s, c, m)
	}
}

func cmdPassPending(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		c.send("461", "PASS", "Not enough parameters")
		return
	}

	if m.Params[0] != s.Config.Password {
		// 464 ERR_PASSWDMISMATCH
		c.send("464", "Password incorrect")
		return
	}

	c.handler = handleRegistration
}

// handleRegistration is the effective command handler while the
// connection is registering: it accepts NICK, USER, CAP, and QUIT.
func handleRegistration(s *Server, c *Client, m irc.Message) {
	switch m.Command {
	case "NICK":
		cmdNick(s, c, m)
	case "USER":
		cmdUser(s, c, m)
	case "CAP":
		cmdCap(s, c, m)
	case "QUIT":
		cmdQuit(s, c, m)
	}

	maybeCompleteRegistration(s, c)
}

// handleRegistered is the effective command handler once a client has
// completed registration: the full command table (spec.md section 4.4).
func handleRegistered(s *Server, c *Client, m irc.Message) {
	switch m.Command {
	case "NICK":
		cmdNick(s, c, m)
	case "USER":
		// 462 ERR_ALREADYREGISTRED has no entry in spec.md's numeric list, so
		// a USER sent after registration gets the unknown-command reply.
		c.send("421", m.Command, "Unknown command")
	case "JOIN":
		cmdJoin(s, c, m)
	case "PART":
		cmdPart(s, c, m)
	case "PRIVMSG", "NOTICE":
		cmdPrivmsgOrNotice(s, c, m)
	case "TOPIC":
		cmdTopic(s, c, m)
	case "MODE":
		cmdMode(s, c, m)
	case "NAMES":
		cmdNames(s, c, m)
	case "LIST":
		cmdList(s, c, m)
	case "WHO":
		cmdWho(s, c, m)
	case "WHOIS":
		cmdWhois(s, c, m)
	case "ISON":
		cmdIson(s, c, m)
	case "LUSERS":
		cmdLusers(s, c)
	case "MOTD":
		cmdMotd(s, c)
	case "PING":
		cmdPing(s, c, m)
	case "PONG":
		// No reply; liveness bookkeeping already happened generically in
		// handleEvent for any received message (spec.md section 4.4).
	case "AWAY":
		// Accepted and ignored (spec.md section 4.4).
	case "WALLOPS":
		cmdWallops(s, c, m)
	case "QUIT":
		cmdQuit(s, c, m)
	case "CAP":
		cmdCap(s, c, m)
	default:
		// 421 ERR_UNKNOWNCOMMAND
		c.send("421", m.Command, "Unknown command")
	}
}

// maybeCompleteRegistration sends the welcome block and promotes the
// client to the registered state once it has both a nickname and a USER,
// and it is not mid CAP negotiation (spec.md section 4.2).
func maybeCompleteRegistration(s *Server, c *Client) {
	if c.registered || c.nick == "" || c.user == "" || c.awaitingCapEnd {
		return
	}

	c.registered = true
	c.handler = handleRegistered

	version := s.Config.Version

	// 001 RPL_WELCOME
	c.send("001", "Hi, welcome to IRC")
	// 002 RPL_YOURHOST
	c.send("002", fmt.Sprintf("Your host is %s, running version %s", s.Config.ServerName, version))
	// 003 RPL_CREATED
	c.send("003", fmt.Sprintf("This server was created %s", s.started.Format("2006-01-02")))
	// 004 RPL_MYINFO
	c.send("004", s.Config.ServerName, version, "o", "o")

	cmdLusers(s, c)
	cmdMotd(s, c)
}

// cmdCap implements the capability-negotiation stub (spec.md section 4.2).
func cmdCap(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		return
	}

	switch strings.ToUpper(m.Params[0]) {
	case "LS":
		c.queue(irc.Message{Prefix: s.Config.ServerName, Command: "CAP", Params: []string{"*", "LS", ""}})
		c.awaitingCapEnd = true
	case "REQ":
		caps := ""
		if len(m.Params) > 1 {
			caps = m.Params[1]
		}
		c.queue(irc.Message{Prefix: s.Config.ServerName, Command: "CAP", Params: []string{"*", "NAK", caps}})
		c.awaitingCapEnd = true
	case "END":
		c.awaitingCapEnd = false
		maybeCompleteRegistration(s, c)
	}
}

// cmdNick implements NICK for both the registration and registered states
// (spec.md section 4.4). The nickname index is updated here, immediately,
// regardless of state -- the invariant in spec.md section 3 is that a
// client is indexed iff it has a non-empty, NICK-validated nickname.
func cmdNick(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		c.send("431", "No nickname given")
		return
	}

	nick := m.Params[0]

	if !isValidNick(nick) {
		// 432 ERR_ERRONEUSNICKNAME
		c.send("432", nick, "Erroneous nickname")
		return
	}

	canon := canonicalizeNick(nick)

	if existing, exists := s.lookupNick(canon); exists {
		if existing == c {
			// Setting an already-owned but identical nickname is a no-op.
			return
		}
		// 433 ERR_NICKNAMEINUSE
		c.send("433", nick, "Nickname is already in use")
		return
	}

	oldNick := c.nick
	oldPrefix := c.prefix()

	if oldNick != "" {
		delete(s.nicks, canonicalizeNick(oldNick))
	}
	s.nicks[canon] = c
	c.nick = nick

	if !c.registered {
		return
	}

	// Broadcast to self and every member of every channel the client is in,
	// each recipient exactly once.
	told := make(map[*Client]struct{})
	for _, ch := range c.channelList() {
		ch.logMeta(oldNick, "is now known as "+nick)
		for member := range ch.members {
			if member == c {
				continue
			}
			if _, done := told[member]; done {
				continue
			}
			member.queue(irc.Message{Prefix: oldPrefix, Command: "NICK", Params: []string{nick}})
			told[member] = struct{}{}
		}
	}
	c.queue(irc.Message{Prefix: oldPrefix, Command: "NICK", Params: []string{nick}})
}

// cmdUser implements USER (spec.md section 4.4).
func cmdUser(s *Server, c *Client, m irc.Message) {
	if len(m.Params) < 4 {
		c.send("461", "USER", "Not enough parameters")
		return
	}
	c.user = m.Params[0]
	c.realName = m.Params[3]
}

// cmdJoin implements JOIN (spec.md section 4.4), including "JOIN 0" (part
// all channels) and positional channel keys.
func cmdJoin(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		c.send("461", "JOIN", "Not enough parameters")
		return
	}

	if m.Params[0] == "0" {
		for _, ch := range c.channelList() {
			partChannel(s, c, ch.name, c.nick)
		}
		return
	}

	names := strings.Split(m.Params[0], ",")
	var keys []string
	if len(m.Params) > 1 {
		keys = strings.Split(m.Params[1], ",")
	}

	for i, name := range names {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}
		joinChannel(s, c, name, key)
	}
}

func joinChannel(s *Server, c *Client, name, key string) {
	if !isValidChannel(name) {
		c.send("403", name, "No such channel")
		return
	}

	canon := canonicalizeChannel(name)

	if _, already := c.channels[canon]; already {
		return
	}

	existing, exists := s.lookupChannel(canon)
	if exists && existing.hasKey() && existing.key != key {
		// 475 ERR_BADCHANNELKEY
		c.send("475", name, "Cannot join channel (+k) - bad key")
		return
	}

	ch := s.getOrCreateChannel(canon, name)
	ch.addMember(c)

	ch.broadcast(c, nil, "JOIN", ch.name)
	ch.logMeta(c.nick, "has joined "+ch.name)

	if ch.topic != "" {
		c.send("332", ch.name, ch.topic)
	} else {
		// 331 RPL_NOTOPIC
		c.send("331", ch.name, "No topic is set")
	}

	c.sendNames(ch)
}

// cmdPart implements PART (spec.md section 4.4).
func cmdPart(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		c.send("461", "PART", "Not enough parameters")
		return
	}

	message := c.nick
	if len(m.Params) > 1 && m.Params[1] != "" {
		message = m.Params[1]
	}

	for _, name := range strings.Split(m.Params[0], ",") {
		partChannel(s, c, name, message)
	}
}

func partChannel(s *Server, c *Client, name, message string) {
	if !isValidChannel(name) {
		c.send("403", name, "No such channel")
		return
	}

	canon := canonicalizeChannel(name)
	ch, exists := s.lookupChannel(canon)
	if !exists {
		c.send("403", name, "No such channel")
		return
	}

	if _, onChannel := c.channels[canon]; !onChannel {
		// 442 ERR_NOTONCHANNEL
		c.send("442", name, "You're not on that channel")
		return
	}

	ch.broadcast(c, nil, "PART", ch.name, message)
	ch.logMeta(c.nick, "has left "+ch.name+" ("+message+")")
	ch.removeMember(c)
}

// cmdPrivmsgOrNotice implements PRIVMSG/NOTICE (spec.md section 4.4).
func cmdPrivmsgOrNotice(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		c.send("411", "No recipient given")
		return
	}
	if len(m.Params) < 2 || m.Params[1] == "" {
		c.send("412", "No text to send")
		return
	}

	target := m.Params[0]
	text := m.Params[1]

	if isValidChannel(target) {
		canon := canonicalizeChannel(target)
		ch, exists := s.lookupChannel(canon)
		if !exists {
			c.send("401", target, "No such nick/channel")
			return
		}
		ch.broadcast(c, c, m.Command, ch.name, text)
		ch.logSpeech(c.nick, text)
		return
	}

	canon := canonicalizeNick(target)
	to, exists := s.lookupNick(canon)
	if !exists {
		c.send("401", target, "No such nick/channel")
		return
	}
	relayFrom(c, to, m.Command, target, text)
}

// cmdTopic implements TOPIC (spec.md section 4.4).
func cmdTopic(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		c.send("461", "TOPIC", "Not enough parameters")
		return
	}

	name := m.Params[0]
	if !isValidChannel(name) {
		c.send("403", name, "No such channel")
		return
	}

	canon := canonicalizeChannel(name)
	ch, exists := s.lookupChannel(canon)
	if !exists {
		c.send("403", name, "No such channel")
		return
	}

	if _, onChannel := c.channels[canon]; !onChannel {
		c.send("442", name, "You're not on that channel")
		return
	}

	if len(m.Params) == 1 {
		if ch.topic == "" {
			c.send("331", ch.name, "No topic is set")
		} else {
			c.send("332", ch.name, ch.topic)
		}
		return
	}

	ch.topic = m.Params[1]
	ch.save()
	ch.broadcast(c, nil, "TOPIC", ch.name, ch.topic)
	ch.logMeta(c.nick, "changed the topic to: "+ch.topic)
}

// cmdMode implements the subset of MODE spec.md section 4.4 names: channel
// key (+k/-k) and a no-op self-mode reply.
func cmdMode(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		c.send("461", "MODE", "Not enough parameters")
		return
	}

	target := m.Params[0]

	if isValidChannel(target) {
		cmdChannelMode(s, c, m, target)
		return
	}

	if canonicalizeNick(target) == canonicalizeNick(c.nick) {
		if len(m.Params) > 1 {
			// 501 ERR_UMODEUNKNOWNFLAG
			c.send("501", "Unknown MODE flag")
			return
		}
		c.send("221", "+")
		return
	}

	c.send("403", target, "No such channel")
}

func cmdChannelMode(s *Server, c *Client, m irc.Message, name string) {
	canon := canonicalizeChannel(name)
	ch, exists := s.lookupChannel(canon)
	if !exists {
		c.send("403", name, "No such channel")
		return
	}

	_, onChannel := c.channels[canon]

	if len(m.Params) == 1 {
		if ch.hasKey() && onChannel {
			c.send("324", ch.name, "+k", ch.key)
		} else if ch.hasKey() {
			c.send("324", ch.name, "+k")
		} else {
			c.send("324", ch.name, "+")
		}
		return
	}

	flag := m.Params[1]

	if !onChannel {
		c.send("442", name, "You're not on that channel")
		return
	}

	switch flag {
	case "+k":
		if len(m.Params) < 3 {
			c.send("461", "MODE", "Not enough parameters")
			return
		}
		ch.key = m.Params[2]
		ch.save()
		ch.broadcast(c, nil, "MODE", ch.name, "+k", ch.key)
		ch.logMeta(c.nick, "set channel key")
	case "-k":
		ch.key = ""
		ch.save()
		ch.broadcast(c, nil, "MODE", ch.name, "-k")
		ch.logMeta(c.nick, "removed channel key")
	default:
		// 472 ERR_UNKNOWNMODE
		c.send("472", flag, "is unknown mode char to me")
	}
}

// cmdNames implements NAMES (spec.md section 4.4).
func cmdNames(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		for _, ch := range c.channelList() {
			c.sendNames(ch)
		}
		return
	}

	for _, name := range strings.Split(m.Params[0], ",") {
		if !isValidChannel(name) {
			c.send("403", name, "No such channel")
			continue
		}
		ch, exists := s.lookupChannel(canonicalizeChannel(name))
		if !exists {
			c.send("403", name, "No such channel")
			continue
		}
		c.sendNames(ch)
	}
}

// cmdList implements LIST (spec.md section 4.4): 322 per channel, sorted
// by original-case name ascending, then one 323.
func cmdList(s *Server, c *Client, m irc.Message) {
	var names []string
	if len(m.Params) > 0 && m.Params[0] != "" {
		names = strings.Split(m.Params[0], ",")
	} else {
		names = s.sortedChannelNames()
	}

	var channels []*Channel
	for _, name := range names {
		ch, exists := s.lookupChannel(canonicalizeChannel(name))
		if !exists {
			continue
		}
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].name < channels[j].name
	})

	for _, ch := range channels {
		// 322 RPL_LIST
		c.send("322", ch.name, strconv.Itoa(len(ch.members)), ch.topic)
	}

	// 323 RPL_LISTEND
	c.send("323", "End of LIST")
}

// cmdWho implements WHO (spec.md section 4.4): only channel targets
// produce output, per spec.md ("No-op if target isn't a channel").
func cmdWho(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		return
	}

	name := m.Params[0]
	if !isValidChannel(name) {
		return
	}

	ch, exists := s.lookupChannel(canonicalizeChannel(name))
	if !exists {
		return
	}

	for _, member := range ch.sortedMembers() {
		// 352 RPL_WHOREPLY
		c.send("352", ch.name, member.user, member.remoteHost, s.Config.ServerName,
			member.nick, "H", "0 "+member.realName)
	}

	// 315 RPL_ENDOFWHO
	c.send("315", name, "End of WHO list")
}

// cmdWhois implements WHOIS (spec.md section 4.4).
func cmdWhois(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		c.send("461", "WHOIS", "Not enough parameters")
		return
	}

	target, exists := s.lookupNick(canonicalizeNick(m.Params[0]))
	if !exists {
		c.send("401", m.Params[0], "No such nick/channel")
		return
	}

	// 311 RPL_WHOISUSER
	c.send("311", target.nick, target.user, target.remoteHost, "*", target.realName)

	// 312 RPL_WHOISSERVER
	c.send("312", target.nick, s.Config.ServerName, "miniircd IRC server")

	var chanNames strings.Builder
	for _, ch := range target.channelList() {
		chanNames.WriteString(ch.name)
		chanNames.WriteByte(' ')
	}
	// 319 RPL_WHOISCHANNELS
	c.send("319", target.nick, chanNames.String())

	// 318 RPL_ENDOFWHOIS
	c.send("318", target.nick, "End of WHOIS list")
}

// cmdIson implements ISON (spec.md section 4.4).
func cmdIson(s *Server, c *Client, m irc.Message) {
	var online []string
	for _, nick := range m.Params {
		for _, n := range strings.Fields(nick) {
			if _, exists := s.lookupNick(canonicalizeNick(n)); exists {
				online = append(online, n)
			}
		}
	}
	// 303 RPL_ISON
	c.send("303", strings.Join(online, " "))
}

// cmdLusers implements LUSERS (spec.md section 4.4).
func cmdLusers(s *Server, c *Client) {
	// 251 RPL_LUSERCLIENT
	c.send("251", fmt.Sprintf("There are %d users and 0 services on 1 servers.", len(s.nicks)))
}

// cmdMotd implements MOTD (spec.md section 4.4).
func cmdMotd(s *Server, c *Client) {
	if len(s.motd) == 0 {
		// 422 ERR_NOMOTD
		c.send("422", "MOTD File is missing")
		return
	}

	// 375 RPL_MOTDSTART
	c.send("375", fmt.Sprintf("- %s Message of the day -", s.Config.ServerName))
	for _, line := range s.motd {
		// 372 RPL_MOTD
		c.send("372", "- "+line)
	}
	// 376 RPL_ENDOFMOTD
	c.send("376", "End of MOTD command")
}

// cmdPing implements PING (spec.md section 4.4).
func cmdPing(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		// 409 ERR_NOORIGIN
		c.send("409", "No origin specified")
		return
	}
	c.queue(irc.Message{
		Prefix:  s.Config.ServerName,
		Command: "PONG",
		Params:  []string{s.Config.ServerName, m.Params[0]},
	})
}

// cmdWallops implements WALLOPS (spec.md section 4.4): a NOTICE to every
// connected client.
func cmdWallops(s *Server, c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		return
	}
	text := "Global notice: " + m.Params[0]
	for member := range s.clients {
		// A client with no nickname yet is addressed as "*", as in numerics.
		target := member.nick
		if target == "" {
			target = "*"
		}
		member.queue(irc.Message{
			Prefix:  s.Config.ServerName,
			Command: "NOTICE",
			Params:  []string{target, text},
		})
	}
}

// cmdQuit implements QUIT (spec.md section 4.4): disconnect with the
// supplied message, defaulting to the client's own nickname.
func cmdQuit(s *Server, c *Client, m irc.Message) {
	reason := c.nick
	if len(m.Params) > 0 && m.Params[0] != "" {
		reason = m.Params[0]
	}
	s.disconnect(c, reason)
}
