package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/coordinator"
	"github.com/MikeSquared-Agency/clerk/internal/hermes"
	"github.com/MikeSquared-Agency/clerk/internal/session"
	"github.com/MikeSquared-Agency/clerk/internal/slack"
)

// Conversations is the coordinator entry point.
type Conversations interface {
	Handle(ctx context.Context, sessionID, utterance string) (coordinator.Reply, error)
}

// Publisher sends replies back over NATS.
type Publisher interface {
	Publish(subject string, data any) error
}

// Threads posts replies into Slack threads.
type Threads interface {
	PostThread(ctx context.Context, channel, threadTS, text string) (string, error)
}

// ReplyMessage is published on hermes.SubjectReply for every NATS utterance.
type ReplyMessage struct {
	Channel string `json:"channel,omitempty"`
	coordinator.Reply
	Error string `json:"error,omitempty"`
}

const unavailableText = "Sorry, I can't reach the conversation store right now. Please try again."

// Processor feeds utterances from NATS and Slack into the coordinator and
// delivers the replies.
type Processor struct {
	conversations Conversations
	hermes        Publisher
	slack         Threads
	logger        *slog.Logger
	timeout       time.Duration

	mu      sync.Mutex
	pending map[string]*pendingConfirmation // keyed by session ID
	prompts map[string]string               // prompt Slack TS -> session ID
}

// pendingConfirmation ties a posted confirmation prompt to its conversation
// so a reaction on the prompt can answer it. A session has at most one: a
// newer prompt supersedes the older one.
type pendingConfirmation struct {
	PromptTS  string
	SessionID string
	Channel   string
	ThreadTS  string
}

// New returns a processor. sl may be nil when Slack is not configured.
func New(conv Conversations, h Publisher, sl Threads, logger *slog.Logger) *Processor {
	return &Processor{
		conversations: conv,
		hermes:        h,
		slack:         sl,
		logger:        logger,
		timeout:       30 * time.Second,
		pending:       make(map[string]*pendingConfirmation),
		prompts:       make(map[string]string),
	}
}

// HandleUtterance is the NATS handler for swarm.clerk.utterance.
func (p *Processor) HandleUtterance(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	var msg hermes.Utterance
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Error("failed to parse utterance", "error", err)
		return
	}

	out := ReplyMessage{Channel: msg.Channel}
	reply, err := p.conversations.Handle(ctx, msg.SessionID, msg.Message)
	if err != nil {
		p.logger.Error("utterance failed", "session_id", msg.SessionID, "error", err)
		out.Reply = coordinator.Reply{
			SessionID: msg.SessionID,
			Text:      unavailableText,
			Outcome:   coordinator.OutcomeFailed,
		}
		out.Error = err.Error()
	} else {
		out.Reply = reply
	}

	if err := p.hermes.Publish(hermes.SubjectReply, out); err != nil {
		p.logger.Error("failed to publish reply", "session_id", out.SessionID, "error", err)
	}
}

// HandleSlackMessage processes channel messages forwarded from Slack. Each
// thread is one conversation; replies go back into the thread.
func (p *Processor) HandleSlackMessage(subject string, data []byte) {
	if p.slack == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	evt, err := slack.ParseMessageEvent(data)
	if err != nil {
		p.logger.Error("failed to parse slack message", "error", err)
		return
	}
	if evt.FromBot() || evt.Text == "" {
		return
	}

	p.converse(ctx, evt.SessionID(), evt.Channel, evt.Thread(), evt.Text)
}

// HandleReaction answers a pending confirmation prompt with a reaction:
// thumbs up confirms, thumbs down declines.
func (p *Processor) HandleReaction(subject string, data []byte) {
	if p.slack == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	evt, err := slack.ParseReactionEvent(data)
	if err != nil {
		p.logger.Error("failed to parse reaction", "error", err)
		return
	}

	answer := slack.ReactionUtterance(evt.Reaction)
	if answer == "" {
		return
	}

	p.mu.Lock()
	var pc *pendingConfirmation
	if sessionID, ok := p.prompts[evt.MessageTS]; ok {
		pc = p.pending[sessionID]
		p.clearPending(sessionID)
	}
	p.mu.Unlock()
	if pc == nil {
		return
	}

	p.logger.Info("confirmation reaction",
		"reaction", evt.Reaction,
		"answer", answer,
		"session_id", pc.SessionID,
	)
	p.converse(ctx, pc.SessionID, pc.Channel, pc.ThreadTS, answer)
}

func (p *Processor) converse(ctx context.Context, sessionID, channel, threadTS, text string) {
	reply, err := p.conversations.Handle(ctx, sessionID, text)
	if err != nil {
		// The session state is unchanged, so an earlier prompt still applies.
		p.logger.Error("slack turn failed", "session_id", sessionID, "error", err)
		if _, err := p.slack.PostThread(ctx, channel, threadTS, unavailableText); err != nil {
			p.logger.Error("failed to post slack reply", "session_id", sessionID, "error", err)
		}
		return
	}

	p.mu.Lock()
	p.clearPending(sessionID)
	p.mu.Unlock()

	ts, err := p.slack.PostThread(ctx, channel, threadTS, reply.Text)
	if err != nil {
		p.logger.Error("failed to post slack reply", "session_id", sessionID, "error", err)
		return
	}

	if reply.Phase == session.PhaseAwaitingConfirmation {
		p.mu.Lock()
		p.clearPending(sessionID)
		p.pending[sessionID] = &pendingConfirmation{PromptTS: ts, SessionID: sessionID, Channel: channel, ThreadTS: threadTS}
		p.prompts[ts] = sessionID
		p.mu.Unlock()
	}
}

// clearPending forgets the session's prompt. p.mu must be held.
func (p *Processor) clearPending(sessionID string) {
	if pc, ok := p.pending[sessionID]; ok {
		delete(p.prompts, pc.PromptTS)
		delete(p.pending, sessionID)
	}
}

// Pending returns the number of confirmation prompts awaiting a reaction.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
