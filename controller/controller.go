// controller/controller.go
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mwiater/gollamachat/conversation"
	"github.com/mwiater/gollamachat/gateway"
	"github.com/mwiater/gollamachat/store"
	"go.uber.org/zap"
)

// State is the controller's position in the turn-taking cycle.
type State int

const (
	// Idle accepts a new submission.
	Idle State = iota
	// AwaitingResponse holds the single in-flight request token.
	AwaitingResponse
	// Terminating is absorbing: the context has been saved and nothing else is accepted.
	Terminating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting-response"
	case Terminating:
		return "terminating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sender labels a displayed message.
type Sender string

const (
	SenderYou     Sender = "You"
	SenderBot     Sender = "Bot"
	SenderHistory Sender = "History"
)

// Display renders messages emitted by the controller.
type Display interface {
	Display(sender Sender, message string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(sender Sender, message string)

// Display calls f(sender, message).
func (f DisplayFunc) Display(sender Sender, message string) { f(sender, message) }

var (
	// ErrBusy is returned by Submit while a response is still pending.
	ErrBusy = errors.New("still waiting for the previous response")
	// ErrTerminated is returned once the conversation has ended.
	ErrTerminated = errors.New("conversation has ended")
)

// Options configures a Controller.
type Options struct {
	// ExitCommand is compared case-insensitively with trimmed input. Defaults to "exit".
	ExitCommand string
	Logger      *zap.Logger
}

// Controller owns the conversation context and serialises every change to it
// and to the persisted copy.
//
// All methods except Job.Run must be called from the same goroutine, the
// owner. Job.Run is the only part that executes elsewhere, and it touches no
// controller state: its Result is handed back to the owner through Complete.
type Controller struct {
	buf     *conversation.Buffer
	store   store.Store
	gateway gateway.Gateway
	display Display
	logger  *zap.Logger

	exitCommand string
	state       State
	// inflight is the ID of the job holding the in-flight token, "" when none.
	inflight string
	newID    func() string
}

// New wires a controller. None of the collaborators may be nil.
func New(buf *conversation.Buffer, st store.Store, gw gateway.Gateway, display Display, opts Options) *Controller {
	if opts.ExitCommand == "" {
		opts.ExitCommand = "exit"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		buf:         buf,
		store:       st,
		gateway:     gw,
		display:     display,
		logger:      opts.Logger,
		exitCommand: strings.TrimSpace(opts.ExitCommand),
		state:       Idle,
		newID:       func() string { return uuid.New().String() },
	}
}

// State reports the current state.
func (c *Controller) State() State { return c.state }

// Snapshot returns the current conversation context.
func (c *Controller) Snapshot() string { return c.buf.Snapshot() }

// Store returns the persistence backend.
func (c *Controller) Store() store.Store { return c.store }

// Restore loads the persisted context into the buffer. A storage failure
// leaves the context empty; the error is returned for the caller to report.
func (c *Controller) Restore(ctx context.Context) error {
	history, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("could not load history, starting empty", zap.Error(err))
		c.buf.Clear()
		c.display.Display(SenderHistory, fmt.Sprintf("Could not load history (%v); starting a new conversation.", err))
		return err
	}
	c.buf.Restore(history)
	if history != "" {
		c.logger.Info("history restored", zap.String("location", c.store.Location()), zap.Int("turns", c.buf.Len()))
		c.display.Display(SenderHistory, strings.TrimPrefix(c.buf.Snapshot(), "\n"))
	}
	return nil
}

// Submit handles one line of user input.
//
// Blank input is ignored and yields a nil Job. The exit command terminates
// the conversation and yields ErrTerminated. While a response is pending,
// Submit yields ErrBusy. Otherwise the question is displayed, the in-flight
// token is taken and the returned Job must be run off the owner goroutine.
func (c *Controller) Submit(ctx context.Context, text string) (*Job, error) {
	if c.state == Terminating {
		return nil, ErrTerminated
	}

	question := strings.TrimSpace(text)
	if question == "" {
		return nil, nil
	}
	if strings.EqualFold(question, c.exitCommand) {
		if err := c.Terminate(ctx); err != nil {
			c.logger.Warn("exit without saving", zap.Error(err))
		}
		return nil, ErrTerminated
	}
	if c.state == AwaitingResponse {
		return nil, ErrBusy
	}

	c.display.Display(SenderYou, question)

	job := &Job{
		ID:       c.newID(),
		Context:  c.buf.Snapshot(),
		Question: question,
		gateway:  c.gateway,
		logger:   c.logger,
	}
	c.inflight = job.ID
	c.state = AwaitingResponse
	c.logger.Debug("request dispatched", zap.String("request_id", job.ID), zap.Int("context_bytes", len(job.Context)))
	return job, nil
}

// Complete applies the result of a Job. Results for jobs that no longer hold
// the in-flight token (after Clear or Terminate) are dropped and Complete
// reports false.
func (c *Controller) Complete(ctx context.Context, r Result) bool {
	if c.state != AwaitingResponse || r.JobID != c.inflight {
		c.logger.Debug("stale result dropped", zap.String("request_id", r.JobID), zap.Stringer("state", c.state))
		return false
	}
	c.inflight = ""
	c.state = Idle

	if r.Err != nil {
		c.logger.Warn("request failed", zap.String("request_id", r.JobID), zap.Error(r.Err))
		c.display.Display(SenderBot, "Error: "+r.Err.Error())
		return true
	}

	c.buf.Append(r.Question, r.Answer)
	c.logger.Info("turn completed",
		zap.String("request_id", r.JobID),
		zap.Duration("elapsed", r.Elapsed),
		zap.Int("turns", c.buf.Len()),
	)
	if err := c.store.Save(ctx, c.buf.Snapshot()); err != nil {
		c.logger.Error("could not save history", zap.Error(err))
		c.display.Display(SenderHistory, fmt.Sprintf("Could not save history: %v", err))
	}
	c.display.Display(SenderBot, r.Answer)
	return true
}

// Clear empties the context, removes the persisted copy and releases the
// in-flight token so a late response is discarded.
func (c *Controller) Clear(ctx context.Context) error {
	if c.state == Terminating {
		return ErrTerminated
	}
	c.buf.Clear()
	c.inflight = ""
	c.state = Idle

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("could not clear history", zap.Error(err))
		c.display.Display(SenderHistory, fmt.Sprintf("Chat cleared, but the saved history could not be removed: %v", err))
		return err
	}
	c.logger.Info("history cleared", zap.String("location", c.store.Location()))
	c.display.Display(SenderHistory, "Chat cleared.")
	return nil
}

// Terminate saves the current context once and enters the Terminating state.
// It does not wait for a pending response. Later calls do nothing.
func (c *Controller) Terminate(ctx context.Context) error {
	if c.state == Terminating {
		return nil
	}
	c.state = Terminating
	c.inflight = ""

	if err := c.store.Save(ctx, c.buf.Snapshot()); err != nil {
		c.logger.Error("could not save history on exit", zap.Error(err))
		return err
	}
	c.logger.Info("history saved on exit", zap.String("location", c.store.Location()), zap.Int("turns", c.buf.Len()))
	return nil
}

// Job is one dispatched request. Its exported fields are a copy taken at
// Submit time, so Run never reads controller state.
type Job struct {
	ID       string
	Context  string
	Question string

	gateway gateway.Gateway
	logger  *zap.Logger
}

// Result is the outcome of a Job, delivered back to the owner goroutine.
type Result struct {
	JobID    string
	Question string
	Answer   string
	Err      error
	Elapsed  time.Duration
}

// Run calls the gateway. It is safe to call from any goroutine.
func (j *Job) Run(ctx context.Context) Result {
	start := time.Now()
	answer, err := j.gateway.Complete(ctx, j.Context, j.Question)
	r := Result{
		JobID:    j.ID,
		Question: j.Question,
		Answer:   answer,
		Err:      err,
		Elapsed:  time.Since(start),
	}
	j.logger.Debug("request returned", zap.String("request_id", j.ID), zap.Duration("elapsed", r.Elapsed), zap.Bool("failed", err != nil))
	return r
}
