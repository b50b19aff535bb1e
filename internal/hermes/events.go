package hermes

import (
	"context"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/gateway"
)

const (
	// SubjectUtterance carries user messages into the coordinator.
	SubjectUtterance = "swarm.clerk.utterance"
	// SubjectReply carries coordinator replies back to the channel.
	SubjectReply = "swarm.clerk.reply"

	SubjectReturnCommitted = "swarm.clerk.return.committed"
	SubjectReturnDuplicate = "swarm.clerk.return.duplicate"
	SubjectRegistered      = "swarm.agent.clerk.registered"
)

// QueueGroup load-balances utterances across clerk instances.
const QueueGroup = "clerk"

// Utterance is one user message arriving over NATS.
type Utterance struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// Channel identifies the sender surface, echoed on the reply.
	Channel string `json:"channel,omitempty"`
}

// ReturnEvent announces the outcome of a commit.
type ReturnEvent struct {
	Outcome   string    `json:"outcome"`
	DedupKey  string    `json:"dedup_key"`
	ReturnID  string    `json:"return_id"`
	Seq       int64     `json:"seq"`
	Product   string    `json:"product"`
	Store     string    `json:"store"`
	Price     string    `json:"price"`
	Currency  string    `json:"currency"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Registration is published once on startup.
type Registration struct {
	Agent        string    `json:"agent"`
	Capabilities []string  `json:"capabilities"`
	Mode         string    `json:"mode"`
	StartedAt    time.Time `json:"started_at"`
}

// Publisher is the part of Client the notifier needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// EventNotifier publishes a ReturnEvent for every finished commit.
type EventNotifier struct {
	pub Publisher
}

func NewEventNotifier(pub Publisher) *EventNotifier {
	return &EventNotifier{pub: pub}
}

func (n *EventNotifier) Notify(_ context.Context, res gateway.Result) error {
	subject := SubjectReturnCommitted
	if res.Outcome == gateway.OutcomeDuplicate {
		subject = SubjectReturnDuplicate
	}
	if err := n.pub.Publish(subject, NewReturnEvent(res)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func NewReturnEvent(res gateway.Result) ReturnEvent {
	r := res.Record
	return ReturnEvent{
		Outcome:   string(res.Outcome),
		DedupKey:  res.DedupKey,
		ReturnID:  r.ID.String(),
		Seq:       r.Seq,
		Product:   r.Product,
		Store:     r.Store,
		Price:     r.Price.String(),
		Currency:  r.Currency,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
}

// Register announces this instance on SubjectRegistered.
func Register(pub Publisher, mode string, now time.Time) error {
	return pub.Publish(SubjectRegistered, Registration{
		Agent:        "clerk",
		Capabilities: []string{"returns.insert", "returns.analytics", "returns.forecast", "returns.search"},
		Mode:         mode,
		StartedAt:    now,
	})
}
