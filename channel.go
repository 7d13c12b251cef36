package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	hconfig "github.com/horgh/config"
	"github.com/pkg/errors"
)

// Channel holds everything to do with a channel. A channel exists in the
// server registry iff its member set is non-empty or it is mid-creation by
// a JOIN that is about to add the joining client.
type Channel struct {
	// name is preserved in original case for display.
	name string

	// members is a non-owning set of the clients currently on the channel.
	members map[*Client]struct{}

	topic string

	// key is the channel key (mode +k). Empty means no key is set.
	key string

	server *Server
}

func newChannel(s *Server, name string) *Channel {
	ch := &Channel{
		name:    name,
		members: make(map[*Client]struct{}),
		server:  s,
	}
	ch.load()
	return ch
}

func (ch *Channel) hasKey() bool {
	return ch.key != ""
}

func (ch *Channel) sortedMembers() []*Client {
	members := make([]*Client, 0, len(ch.members))
	for c := range ch.members {
		members = append(members, c)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].nick < members[j].nick
	})
	return members
}

func (ch *Channel) addMember(c *Client) {
	ch.members[c] = struct{}{}
	c.channels[canonicalizeChannel(ch.name)] = ch
}

// removeMember removes c from the channel. If the channel becomes empty it
// is dropped from the server's registry (spec.md Channel invariant 1).
func (ch *Channel) removeMember(c *Client) {
	delete(ch.members, c)
	delete(c.channels, canonicalizeChannel(ch.name))

	if len(ch.members) == 0 {
		delete(ch.server.channels, canonicalizeChannel(ch.name))
	}
}

// broadcast sends command/params to every member, optionally excluding one
// client (used to implement PRIVMSG's no-self-echo rule). Each recipient
// gets exactly one copy even though callers may invoke broadcast once per
// channel a client is in -- callers that need "exactly once across many
// channels" (NICK/QUIT) build their own recipient set instead.
func (ch *Channel) broadcast(from *Client, exclude *Client, command string, params ...string) {
	for _, member := range ch.sortedMembers() {
		if member == exclude {
			continue
		}
		relayFrom(from, member, command, params...)
	}
}

// statePath returns the on-disk path used for persisting this channel's
// topic and key, or "" if no state directory is configured.
func (ch *Channel) statePath() string {
	if ch.server.Config.StateDir == "" {
		return ""
	}
	return filepath.Join(ch.server.Config.StateDir, safeLowerName(ch.name))
}

// load reads the persisted topic/key for this channel, if a state
// directory is configured. A missing or unparsable file is treated as
// "topic empty, no key" per spec.md section 7 -- it is not a fatal error.
func (ch *Channel) load() {
	path := ch.statePath()
	if path == "" {
		return
	}

	values, err := hconfig.ReadStringMap(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("channel %s: unable to read state file %s: %s", ch.name, path, err)
		}
		return
	}

	ch.topic = values["topic"]
	ch.key = values["key"]
}

// save persists the channel's topic and key atomically: we write to a
// sibling tempfile and rename it over the target, so a crash mid-write
// never leaves a partially written state file (spec.md section 9). The
// format is a plain, non-executable "key = value" text file -- the same
// format the server's own configuration uses -- never the original
// Python implementation's "evaluate the state file as code" hazard.
//
// A write failure is logged and otherwise ignored: the in-memory state
// remains authoritative and the next mutation retries (spec.md section 7).
func (ch *Channel) save() {
	path := ch.statePath()
	if path == "" {
		return
	}

	content := fmt.Sprintf("topic = %s\nkey = %s\n",
		escapeStateValue(ch.topic), escapeStateValue(ch.key))

	if err := atomicWriteFile(path, []byte(content)); err != nil {
		log.Printf("channel %s: unable to persist state: %s", ch.name, errors.Wrap(err, path))
	}
}

// escapeStateValue replaces CR and LF with spaces so the key=value format can never be
// used to smuggle extra keys into the file.
func escapeStateValue(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return v
}

// atomicWriteFile writes data to a tempfile beside path and renames it over
// path, so a reader never observes a partially written file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "unable to create state directory")
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "unable to create tempfile")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "unable to write tempfile")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "unable to close tempfile")
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "unable to rename tempfile into place")
	}

	return nil
}

// safeLowerName transforms a canonical (lowercased) channel name into a
// filesystem-safe basename: "_" doubles to "__" and "/" becomes "_".
func safeLowerName(name string) string {
	lower := canonicalizeChannel(name)
	lower = strings.ReplaceAll(lower, "_", "__")
	lower = strings.ReplaceAll(lower, "/", "_")
	return lower
}
