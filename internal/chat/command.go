package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Command is a recognized slash command.
type Command int

const (
	CmdNone Command = iota
	CmdStart
	CmdReport
	CmdCancel
	CmdHelp
)

func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdReport:
		return "report"
	case CmdCancel:
		return "cancel"
	case CmdHelp:
		return "help"
	}
	return "none"
}

// commandNames maps every accepted spelling to its command. Spanish names
// are the primary ones; English aliases are accepted on every platform.
var commandNames = map[string]Command{
	"start":    CmdStart,
	"reporte":  CmdReport,
	"report":   CmdReport,
	"cancelar": CmdCancel,
	"cancel":   CmdCancel,
	"ayuda":    CmdHelp,
	"help":     CmdHelp,
}

// ParseCommand recognizes a leading slash command in text. Telegram group
// chats append "@botname" to commands; that suffix is ignored. Unknown
// commands return CmdNone and false so they fall through as plain text.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return CmdNone, false
	}
	word := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	cmd, ok := commandNames[strings.ToLower(word)]
	return cmd, ok
}

// LooksLikeCommand reports whether text starts with "/" followed by a
// letter, the shape chat clients render as a bot command. Such text is never
// report input, whether or not the command is known.
func LooksLikeCommand(text string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[1:])
	return unicode.IsLetter(r)
}
