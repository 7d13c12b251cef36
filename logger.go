package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// logSpeech appends a PRIVMSG/NOTICE line to the channel's transcript, if a
// log directory is configured.
func (ch *Channel) logSpeech(nick, text string) {
	ch.appendLog(fmt.Sprintf("%s %s", nick, text))
}

// logMeta appends a membership/state-change line ("join, part, quit, nick
// change, topic set, key set/clear") to the channel's transcript, rendered
// as "* nick text" (spec.md section 4.5).
func (ch *Channel) logMeta(nick, text string) {
	ch.appendLog(fmt.Sprintf("* %s %s", nick, text))
}

// appendLog opens the channel's log file in append mode, writes one line,
// and closes it immediately. We open/append/close per event (rather than
// holding the handle open) so external log rotation tools can safely move
// or truncate the file between writes (spec.md section 5).
func (ch *Channel) appendLog(line string) {
	if ch.server.Config.ChanLogDir == "" {
		return
	}

	path := filepath.Join(ch.server.Config.ChanLogDir, safeLowerName(ch.name)+".log")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("channel %s: unable to open log file %s: %s", ch.name, path, err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("channel %s: unable to close log file %s: %s", ch.name, path, err)
		}
	}()

	stamp := time.Now().UTC().Format("2006-01-02 15:04:05")
	if _, err := fmt.Fprintf(f, "[%s UTC] %s\n", stamp, line); err != nil {
		log.Printf("channel %s: unable to write log file %s: %s", ch.name, path, err)
	}
}
