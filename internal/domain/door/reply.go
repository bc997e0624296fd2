package door

import "strings"

// Reply is the meaning of an operator text message.
type Reply int

// Operator replies.
const (
	// ReplyUnknown is anything that is not a command.
	ReplyUnknown Reply = iota
	// ReplyYes asks to open the door.
	ReplyYes
	// ReplyParty turns party mode on.
	ReplyParty
	// ReplyRegular turns party mode off.
	ReplyRegular
)

var replyWords = map[string]Reply{
	"y":       ReplyYes,
	"yes":     ReplyYes,
	"p":       ReplyParty,
	"party":   ReplyParty,
	"n":       ReplyRegular,
	"no":      ReplyRegular,
	"r":       ReplyRegular,
	"regular": ReplyRegular,
}

// ParseReply classifies a message body. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseReply(body string) Reply {
	return replyWords[strings.ToLower(strings.TrimSpace(body))]
}

// String returns a short name for logs.
func (r Reply) String() string {
	switch r {
	case ReplyYes:
		return "yes"
	case ReplyParty:
		return "party"
	case ReplyRegular:
		return "regular"
	default:
		return "unknown"
	}
}
