package main

import (
	"fmt"
	"strings"

	"github.com/horgh/irc"
)

// isNumericCommand reports whether command is a 3-digit numeric reply.
func isNumericCommand(command string) bool {
	if len(command) != 3 {
		return false
	}
	for _, c := range command {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// prefix builds the nick!user@host form used as the prefix on messages the
// server relays on behalf of a client.
func (c *Client) prefix() string {
	host := c.remoteHost
	if c.server.Config.ServerCloak != "" {
		host = c.server.Config.ServerCloak
	}
	return fmt.Sprintf("%s!%s@%s", c.nick, c.user, host)
}

// send queues a message from the server to c. For numeric replies it
// prepends the client's own nick (or "*" while it has none) as the first
// parameter, matching ircd-ratbox's convention.
func (c *Client) send(command string, params ...string) {
	if isNumericCommand(command) {
		nick := "*"
		if c.nick != "" {
			nick = c.nick
		}
		withNick := make([]string, 0, len(params)+1)
		withNick = append(withNick, nick)
		withNick = append(withNick, params...)
		params = withNick
	}

	c.queue(irc.Message{
		Prefix:  c.server.Config.ServerName,
		Command: command,
		Params:  params,
	})
}

// relayFrom queues a message to "to" that appears to originate from the
// client "from" (nick!user@host prefix).
func relayFrom(from *Client, to *Client, command string, params ...string) {
	to.queue(irc.Message{
		Prefix:  from.prefix(),
		Command: command,
		Params:  params,
	})
}

// maxNamesLen is the length available to a 353 line after ":<server-name> "
// and before CRLF; sendNames subtracts "353 <nick> = <channel> :" from it.
func maxNamesLen(serverName string) int {
	n := irc.MaxLineLength - (len(serverName) + 4)
	if n < 0 {
		n = 0
	}
	return n
}

// sendNames sends RPL_NAMREPLY (353) for the given channel's member nicks,
// splitting across as many lines as needed to keep each within the 512-byte
// wire limit, followed by a single RPL_ENDOFNAMES (366).
func (c *Client) sendNames(channel *Channel) {
	nick := "*"
	if c.nick != "" {
		nick = c.nick
	}
	budget := maxNamesLen(c.server.Config.ServerName) -
		len("353 "+nick+" = "+channel.name+" :")

	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		c.send("353", "=", channel.name, cur.String())
		cur.Reset()
	}

	for _, member := range channel.sortedMembers() {
		addition := member.nick
		sep := 0
		if cur.Len() > 0 {
			sep = 1
		}
		if cur.Len()+sep+len(addition) > budget {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(addition)
	}
	flush()

	c.send("366", channel.name, "End of NAMES list")
}
