package slack

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageEvent is a channel message received from slack-forwarder via NATS.
type MessageEvent struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	MessageTS string `json:"message_ts"`
	ThreadTS  string `json:"thread_ts,omitempty"`
	BotID     string `json:"bot_id,omitempty"`
}

// ReactionEvent is a reaction received from slack-forwarder via NATS.
type ReactionEvent struct {
	Reaction  string `json:"reaction"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	MessageTS string `json:"message_ts"`
}

// forwarded is the wrapper slack-forwarder puts around every event.
type forwarded struct {
	Metadata map[string]string `json:"metadata"`
}

func parseWrapper(data []byte) (map[string]string, error) {
	var w forwarded
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return w.Metadata, nil
}

// ParseMessageEvent parses a forwarded message payload.
func ParseMessageEvent(data []byte) (*MessageEvent, error) {
	md, err := parseWrapper(data)
	if err != nil {
		return nil, fmt.Errorf("parse message wrapper: %w", err)
	}
	return &MessageEvent{
		Text:      strings.TrimSpace(md["text"]),
		UserID:    md["user_id"],
		Channel:   md["channel_id"],
		MessageTS: md["message_ts"],
		ThreadTS:  md["thread_ts"],
		BotID:     md["bot_id"],
	}, nil
}

// Thread is the timestamp of the thread the message belongs to; a top-level
// message starts its own thread.
func (e *MessageEvent) Thread() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.MessageTS
}

// SessionID keys a conversation by Slack thread.
func (e *MessageEvent) SessionID() string {
	return "slack:" + e.Channel + ":" + e.Thread()
}

// FromBot reports whether the message was posted by a bot, including clerk
// itself.
func (e *MessageEvent) FromBot() bool {
	return e.BotID != ""
}

// ParseReactionEvent parses a forwarded reaction payload.
func ParseReactionEvent(data []byte) (*ReactionEvent, error) {
	md, err := parseWrapper(data)
	if err != nil {
		return nil, fmt.Errorf("parse reaction wrapper: %w", err)
	}

	evt := &ReactionEvent{
		Reaction:  md["text"],
		UserID:    md["user_id"],
		Channel:   md["channel_id"],
		MessageTS: md["message_ts"],
	}

	if len(evt.Reaction) > 2 && evt.Reaction[0] == ':' && evt.Reaction[len(evt.Reaction)-1] == ':' {
		evt.Reaction = evt.Reaction[1 : len(evt.Reaction)-1]
	}

	return evt, nil
}

// ReactionUtterance maps a reaction on a confirmation prompt to the answer
// it stands for. Unknown reactions map to "".
func ReactionUtterance(reaction string) string {
	switch reaction {
	case "+1", "thumbsup", "white_check_mark", "heavy_check_mark":
		return "yes"
	case "-1", "thumbsdown":
		return "no"
	case "x", "no_entry_sign":
		return "cancel"
	default:
		return ""
	}
}
