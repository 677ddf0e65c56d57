package server

import (
	"regexp"
	"strings"
)

// LogKind is the kind of a server output line recognised by ParseLine.
type LogKind uint8

const (
	LogOther LogKind = iota
	LogStartup
	LogPlayerJoined
	LogPlayerLeft
	LogChat
	LogRCONStarted
)

// LogLine is a parsed line of server output.
type LogLine struct {
	Kind LogKind
	// Player is the player that joined, left or chatted.
	Player string
	// Content is the chat message, or the RCON address for LogRCONStarted.
	Content string
}

var (
	// logPrefix matches `[12:00:00] [Server thread/INFO]: ` of vanilla and
	// `[12:00:00 INFO]: ` of Paper style servers.
	logPrefix   = regexp.MustCompile(`^\[[^\]]*\](?: \[[^\]]*\])?: `)
	startupLine = regexp.MustCompile(`^Done \([0-9.,]+m?s\)! For help, type "help"`)
	joinedLine  = regexp.MustCompile(`^([A-Za-z0-9_]{1,16}) joined the game$`)
	leftLine    = regexp.MustCompile(`^([A-Za-z0-9_]{1,16}) left the game$`)
	chatLine    = regexp.MustCompile(`^(?:\[Not Secure\] )?<([A-Za-z0-9_]{1,16})> (.*)$`)
	rconLine    = regexp.MustCompile(`^RCON running on (\S+)$`)
)

// ParseLine parses a line written to the standard output of the server.
// Lines not coming from the server thread, such as plugin or mod output
// without the usual prefix, are reported as LogOther.
func ParseLine(line string) LogLine {
	line = strings.TrimRight(line, "\r\n")
	loc := logPrefix.FindStringIndex(line)
	if loc == nil {
		return LogLine{Kind: LogOther, Content: line}
	}
	content := line[loc[1]:]
	if startupLine.MatchString(content) {
		return LogLine{Kind: LogStartup}
	}
	if m := joinedLine.FindStringSubmatch(content); m != nil {
		return LogLine{Kind: LogPlayerJoined, Player: m[1]}
	}
	if m := leftLine.FindStringSubmatch(content); m != nil {
		return LogLine{Kind: LogPlayerLeft, Player: m[1]}
	}
	if m := chatLine.FindStringSubmatch(content); m != nil {
		return LogLine{Kind: LogChat, Player: m[1], Content: m[2]}
	}
	if m := rconLine.FindStringSubmatch(content); m != nil {
		return LogLine{Kind: LogRCONStarted, Content: m[1]}
	}
	return LogLine{Kind: LogOther, Content: content}
}
