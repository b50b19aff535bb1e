package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/clerk/internal/agents"
	"github.com/MikeSquared-Agency/clerk/internal/extractor"
	"github.com/MikeSquared-Agency/clerk/internal/gateway"
	"github.com/MikeSquared-Agency/clerk/internal/intent"
	"github.com/MikeSquared-Agency/clerk/internal/metrics"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
	"github.com/MikeSquared-Agency/clerk/internal/session"
)

// Outcome is the terminal result of a turn, empty while a conversation is
// still collecting or waiting for confirmation.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDuplicate Outcome = "duplicate_rejected"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
)

// Reply is what the user gets back for one utterance.
type Reply struct {
	SessionID string          `json:"session_id"`
	Text      string          `json:"text"`
	Phase     session.Phase   `json:"phase"`
	Intent    intent.Intent   `json:"intent"`
	Outcome   Outcome         `json:"outcome,omitempty"`
	Missing   []returns.Field `json:"missing,omitempty"`
	Record    *returns.Record `json:"record,omitempty"`
	Data      any             `json:"data,omitempty"`
}

// Committer performs the atomic insert-or-reject of a complete return.
type Committer interface {
	Commit(ctx context.Context, r returns.Record) (gateway.Result, error)
}

// Agents are the read-only collaborators a conversation can be routed to.
type Agents struct {
	Report    agents.Agent
	Forecast  agents.Agent
	Retrieval agents.Agent
}

type Config struct {
	// RequireConfirmation asks the user to confirm a complete return before
	// it is committed.
	RequireConfirmation bool
	// MaxTurns caps the turn history kept per session. 0 keeps everything.
	MaxTurns int
}

// Coordinator drives each conversation through collection, confirmation
// and commit, and routes non-insert requests to agents. Turns of one session
// are processed one at a time; different sessions run concurrently.
type Coordinator struct {
	sessions   session.Store
	extractor  *extractor.Extractor
	classifier *intent.Classifier
	committer  Committer
	agents     Agents
	cfg        Config
	logger     *slog.Logger

	now   func() time.Time
	locks *keyedMutex
}

func New(sessions session.Store, ext *extractor.Extractor, cls *intent.Classifier, committer Committer, ag Agents, cfg Config, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		sessions:   sessions,
		extractor:  ext,
		classifier: cls,
		committer:  committer,
		agents:     ag,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		locks:      newKeyedMutex(),
	}
}

// turn carries the working state of one Handle call.
type turn struct {
	state     *session.State
	utterance string
	extracted returns.Fields
	reply     Reply
}

// Handle processes one utterance. An empty sessionID starts a new session;
// the reply carries the id to use for the following turns. Errors are
// returned only when the conversation state cannot be loaded or saved.
func (c *Coordinator) Handle(ctx context.Context, sessionID, utterance string) (Reply, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	state, err := c.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		state = session.New(sessionID, c.now())
	} else if err != nil {
		return Reply{}, fmt.Errorf("load session: %w", err)
	}

	t := &turn{state: state, utterance: strings.TrimSpace(utterance)}
	c.step(ctx, t)

	t.reply.SessionID = sessionID
	t.reply.Phase = state.Phase
	if t.reply.Intent == "" {
		t.reply.Intent = state.Intent
	}
	if t.reply.Outcome != "" {
		state.LastOutcome = string(t.reply.Outcome)
	}
	state.AppendTurn(session.Turn{
		Utterance: t.utterance,
		Fields:    t.extracted,
		Intent:    t.reply.Intent,
		Reply:     t.reply.Text,
		Outcome:   string(t.reply.Outcome),
		At:        c.now(),
	}, c.cfg.MaxTurns)

	if err := c.sessions.Save(ctx, state); err != nil {
		return Reply{}, fmt.Errorf("save session: %w", err)
	}

	metrics.TurnsTotal.WithLabelValues(string(t.reply.Intent), string(state.Phase)).Inc()
	c.logger.Info("turn handled",
		"session_id", sessionID,
		"intent", t.reply.Intent,
		"phase", state.Phase,
		"outcome", t.reply.Outcome,
		"missing", len(t.reply.Missing),
	)
	return t.reply, nil
}

// End discards a conversation.
func (c *Coordinator) End(ctx context.Context, sessionID string) error {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	if err := c.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// State returns the stored conversation state.
func (c *Coordinator) State(ctx context.Context, sessionID string) (*session.State, error) {
	unlock := c.locks.Lock(sessionID)
	defer unlock()
	return c.sessions.Load(ctx, sessionID)
}

func (c *Coordinator) step(ctx context.Context, t *turn) {
	st := t.state

	if isCancel(t.utterance) {
		c.cancel(t)
		return
	}

	switch {
	case st.Phase == session.PhaseAwaitingConfirmation:
		c.awaitingConfirmation(ctx, t)
	case st.Phase == session.PhaseCollecting && st.Intent == intent.Retrieval:
		if c.switchesTopic(t, intent.Retrieval) {
			st.Reset()
			c.route(ctx, t)
			return
		}
		c.runAgent(ctx, t, intent.Retrieval, queryOf(t.utterance))
	default:
		c.route(ctx, t)
	}
}

func (c *Coordinator) route(ctx context.Context, t *turn) {
	st := t.state
	d := c.classifier.Classify(intent.Input{
		Current:   st.Intent,
		Complete:  st.Complete,
		Utterance: t.utterance,
	})
	t.reply.Intent = d.Intent
	c.logger.Debug("intent classified", "session_id", st.SessionID, "intent", d.Intent, "rule", d.Rule)

	switch d.Intent {
	case intent.Insert:
		c.collect(ctx, t)
	case intent.Analytics, intent.Forecast:
		c.runAgent(ctx, t, d.Intent, "")
	case intent.Retrieval:
		q := intent.Query(t.utterance)
		if q == "" {
			st.Intent = intent.Retrieval
			st.Phase = session.PhaseCollecting
			t.reply.Text = "What should I search for in past returns?"
			return
		}
		c.runAgent(ctx, t, intent.Retrieval, q)
	default:
		t.reply.Text = clarificationText
	}
}

// switchesTopic reports whether the utterance, classified as if the
// conversation were idle, asks for something other than the flow in progress.
// A retrieval request only counts when it names a search phrase, and an
// insert only counts when the utterance asks for a return outright.
func (c *Coordinator) switchesTopic(t *turn, current intent.Intent) bool {
	d := c.classifier.Classify(intent.Input{Utterance: t.utterance})
	if d.Intent == current {
		return false
	}
	switch d.Intent {
	case intent.Analytics, intent.Forecast:
		return true
	case intent.Retrieval:
		return intent.Query(t.utterance) != ""
	case intent.Insert:
		return isReturnRequest(t.utterance)
	}
	return false
}

// collect merges the fields of the utterance and either asks for what is
// still missing, asks for confirmation, or commits.
func (c *Coordinator) collect(ctx context.Context, t *turn) {
	st := t.state
	st.Intent = intent.Insert
	t.reply.Intent = intent.Insert

	res := c.extractor.Extract(t.utterance, st.Fields)
	present := res.Present()

	var problems []string
	for f, v := range present {
		if err := returns.ValidateField(f, v); err != nil {
			problems = append(problems, sentence(err.Error()))
			delete(present, f)
		}
	}
	st.Fields.Merge(present)
	if p := c.checkDateOrder(st.Fields, present); p != "" {
		problems = append(problems, p)
	}
	t.extracted = present

	missing := st.Fields.Missing()
	if len(missing) > 0 {
		st.Phase = session.PhaseCollecting
		st.Complete = false
		t.reply.Missing = missing
		t.reply.Text = followUpText(problems, vagueNotes(res, missing), missing)
		return
	}

	st.Complete = true
	if c.cfg.RequireConfirmation {
		st.Phase = session.PhaseAwaitingConfirmation
		t.reply.Text = joinSentences(problems, confirmationText(st.Fields))
		return
	}
	c.commit(ctx, t)
}

// checkDateOrder drops a return date earlier than the purchase date. The
// date given in this turn is the one dropped.
func (c *Coordinator) checkDateOrder(fields, fresh returns.Fields) string {
	purchase, err1 := returns.ParseDate(fields[returns.FieldPurchaseDate])
	ret, err2 := returns.ParseDate(fields[returns.FieldReturnDate])
	if err1 != nil || err2 != nil || !ret.Before(purchase) {
		return ""
	}
	drop := returns.FieldReturnDate
	if fresh.Has(returns.FieldPurchaseDate) && !fresh.Has(returns.FieldReturnDate) {
		drop = returns.FieldPurchaseDate
	}
	delete(fields, drop)
	return "The return date cannot be before the purchase date."
}

func (c *Coordinator) awaitingConfirmation(ctx context.Context, t *turn) {
	st := t.state
	t.reply.Intent = intent.Insert

	switch {
	case isConfirm(t.utterance):
		c.commit(ctx, t)
	case isDecline(t.utterance):
		st.Reset()
		t.reply.Outcome = OutcomeCancelled
		t.reply.Text = "Okay, I discarded this return. Nothing was saved."
	case c.switchesTopic(t, intent.Insert):
		c.logger.Info("pending return dropped for new request", "session_id", st.SessionID)
		st.Reset()
		c.route(ctx, t)
	default:
		if c.extractor.Extract(t.utterance, st.Fields).Empty() {
			t.reply.Text = "Please reply yes to save this return or no to discard it. " + confirmationText(st.Fields)
			return
		}
		c.collect(ctx, t)
	}
}

func (c *Coordinator) commit(ctx context.Context, t *turn) {
	st := t.state
	t.reply.Intent = intent.Insert

	// The gateway rejects incomplete records too; this check keeps the
	// conversation from ever reaching it with one.
	if missing := st.Fields.Missing(); len(missing) > 0 {
		st.Phase = session.PhaseCollecting
		st.Complete = false
		t.reply.Missing = missing
		t.reply.Text = followUpText(nil, nil, missing)
		return
	}

	rec, err := returns.FromFields(st.Fields)
	if err == nil {
		var res gateway.Result
		res, err = c.committer.Commit(ctx, rec)
		if err == nil {
			c.finishCommit(t, res)
			return
		}
	}

	var verr *returns.ValidationError
	if errors.As(err, &verr) {
		delete(st.Fields, verr.Field)
		missing := st.Fields.Missing()
		st.Phase = session.PhaseCollecting
		st.Complete = false
		t.reply.Missing = missing
		t.reply.Text = followUpText([]string{sentence(verr.Error())}, nil, missing)
		return
	}

	c.logger.Error("commit failed", "session_id", st.SessionID, "error", err)
	// Keep every collected field so that "retry" resubmits them.
	st.Phase = session.PhaseAwaitingConfirmation
	st.Complete = true
	t.reply.Outcome = OutcomeFailed
	if errors.Is(err, gateway.ErrStoreUnavailable) {
		t.reply.Text = "I couldn't save the return right now because storage is unavailable. Say retry to try again or cancel to discard it."
	} else {
		t.reply.Text = "Something went wrong while saving the return. Say retry to try again or cancel to discard it."
	}
}

func (c *Coordinator) finishCommit(t *turn, res gateway.Result) {
	rec := res.Record
	t.reply.Record = &rec
	t.state.Reset()

	switch res.Outcome {
	case gateway.OutcomeCommitted:
		t.reply.Outcome = OutcomeCommitted
		t.reply.Text = fmt.Sprintf("Return recorded: %s from %s (%s %s). Return ID: %s",
			rec.Product, rec.Store, rec.Price, rec.Currency, rec.ID)
	default:
		t.reply.Outcome = OutcomeDuplicate
		t.reply.Text = fmt.Sprintf("This return was already recorded on %s (Return ID: %s). Nothing new was saved.",
			rec.CreatedAt.UTC().Format("2006-01-02"), rec.ID)
	}
}

func (c *Coordinator) cancel(t *turn) {
	t.state.Reset()
	t.reply.Intent = intent.None
	t.reply.Outcome = OutcomeCancelled
	t.reply.Text = "Okay, I cleared this conversation. Nothing was saved."
}

func (c *Coordinator) runAgent(ctx context.Context, t *turn, kind intent.Intent, query string) {
	st := t.state
	t.reply.Intent = kind

	var (
		agent agents.Agent
		name  string
	)
	switch kind {
	case intent.Analytics:
		agent, name = c.agents.Report, string(agents.KindReport)
	case intent.Forecast:
		agent, name = c.agents.Forecast, string(agents.KindForecast)
	case intent.Retrieval:
		agent, name = c.agents.Retrieval, string(agents.KindRetrieval)
	}

	// Agent calls are one-shot: whatever happens, the conversation is idle
	// afterwards.
	defer st.Reset()

	if agent == nil {
		metrics.AgentCallsTotal.WithLabelValues(name, "unavailable").Inc()
		t.reply.Outcome = OutcomeFailed
		t.reply.Text = fmt.Sprintf("The %s service is not available.", name)
		return
	}

	res, err := agent.Handle(ctx, agents.Params{
		Utterance: t.utterance,
		Query:     query,
		Fields:    st.Fields.Clone(),
	})
	if err != nil {
		metrics.AgentCallsTotal.WithLabelValues(name, "error").Inc()
		c.logger.Warn("agent call failed", "agent", name, "session_id", st.SessionID, "error", err)
		t.reply.Outcome = OutcomeFailed
		switch {
		case errors.Is(err, agents.ErrInsufficientData):
			t.reply.Text = fmt.Sprintf("There isn't enough recorded data for a %s yet.", name)
		case errors.Is(err, agents.ErrEmptyQuery):
			t.reply.Text = "Please tell me what to search for."
		default:
			t.reply.Text = fmt.Sprintf("The %s failed. Please try again later.", name)
		}
		return
	}

	metrics.AgentCallsTotal.WithLabelValues(name, "ok").Inc()
	t.reply.Outcome = OutcomeSuccess
	t.reply.Text = res.Text
	t.reply.Data = res.Data
}

// queryOf is the search phrase of a follow-up answer.
func queryOf(utterance string) string {
	if q := intent.Query(utterance); q != "" {
		return q
	}
	return utterance
}
