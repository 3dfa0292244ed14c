// Package timelog implements the guided time-entry conversation:
// project search, project choice, task search, task choice, hours, description, commit.
package timelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/core/state"
	"github.com/m3rciful/timebot/core/telegram/helpers"
	"github.com/m3rciful/timebot/internal/odoo"
)

// EntryCommand starts the flow.
const EntryCommand = "logtime"

// Callback data carried by the flow's buttons.
const (
	cbProject = "tl:p:"
	cbTask    = "tl:t:"
	cbAgain   = "tl:again"
	cbCancel  = "tl:cancel"
)

// Gateway is the part of the ERP the flow needs.
type Gateway interface {
	Projects(ctx context.Context, companyID int64) ([]odoo.Item, error)
	Tasks(ctx context.Context, projectID int64) ([]odoo.Item, error)
	CreateTimeEntry(ctx context.Context, in odoo.TimeEntryInput) (int64, error)
}

// Commit describes a successfully written entry.
type Commit struct {
	Key     state.Key
	EntryID int64
	Session Session
}

// Options configure an Engine.
type Options struct {
	Gateway   Gateway
	CompanyID int64
	// Store defaults to a store with state.DefaultTTL.
	Store    *state.Store[Session]
	Location *time.Location
	Now      func() time.Time
	// OnCommit runs after a successful write.
	OnCommit func(ctx context.Context, c Commit)
}

// Engine owns the per-(chat, user) sessions of the flow.
type Engine struct {
	gw        Gateway
	companyID int64
	store     *state.Store[Session]
	loc       *time.Location
	now       func() time.Time
	onCommit  func(ctx context.Context, c Commit)
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		gw:        opts.Gateway,
		companyID: opts.CompanyID,
		store:     opts.Store,
		loc:       opts.Location,
		now:       opts.Now,
		onCommit:  opts.OnCommit,
	}
	if e.store == nil {
		e.store = state.NewStore[Session]()
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Store exposes the session store, for the expiry janitor.
func (e *Engine) Store() *state.Store[Session] { return e.store }

// Active reports whether key has a live session.
func (e *Engine) Active(key state.Key) bool { return e.store.Has(key) }

// Session returns the current session of key.
func (e *Engine) Session(key state.Key) (Session, bool) { return e.store.Get(key) }

func (e *Engine) today() time.Time {
	y, m, d := e.now().In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// Start begins a new entry, replacing any session the user already had.
// An optional argument sets the entry date.
func (e *Engine) Start(ctx context.Context, req *dispatch.Request) error {
	date := e.today()
	if arg := strings.TrimSpace(req.Args); arg != "" {
		d, ok := helpers.ParseFlexibleDate(arg, e.loc)
		if !ok {
			return errs.Validation("timelog.start", fmt.Errorf("Couldn't read the date %q. Use YYYY-MM-DD or DD.MM.YYYY.", arg))
		}
		date = d
	}

	var notice string
	if prev, ok := e.store.Delete(req.Key); ok {
		notice = "⚠️ Previous entry discarded.\n\n"
		e.logTransition(ctx, req.Key, prev.State, Cancelled, "restart")
	}

	projects, err := e.gw.Projects(ctx, e.companyID)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return req.Send(ctx, notice+"No projects found in Odoo.")
	}

	e.store.Put(req.Key, Session{State: AwaitingProjectSearch, Date: date, Projects: projects})
	logger.Info(ctx, logger.CompTimelog, "timelog.start",
		slog.String("status", "ok"),
		slog.Int("count", len(projects)),
		slog.String("from", date.Format(odoo.DateLayout)),
	)
	return req.Reply(ctx, dispatch.Reply{
		Text:    notice + fmt.Sprintf("⏱ Log time for %s\n\nType part of the project name to search.", date.Format(odoo.DateLayout)),
		Actions: []dispatch.Choice{cancelChoice},
	})
}

// CancelIdle answers /cancel when no session is active.
func (e *Engine) CancelIdle(ctx context.Context, req *dispatch.Request) error {
	if e.Active(req.Key) {
		return e.Handle(ctx, req)
	}
	return req.Send(ctx, "Nothing to cancel.")
}

var (
	cancelChoice = dispatch.Choice{Label: "❌ Cancel", Data: cbCancel}
	againChoice  = dispatch.Choice{Label: "🔍 Search again", Data: cbAgain}
)

func isCancel(req *dispatch.Request) bool {
	switch req.Kind {
	case dispatch.KindCommand:
		return req.Command == dispatch.CancelCommand
	case dispatch.KindCallback:
		return req.Callback == cbCancel
	}
	return false
}

// Handle advances the session of req.Key by one step.
func (e *Engine) Handle(ctx context.Context, req *dispatch.Request) error {
	sess, ok := e.store.Get(req.Key)
	if !ok {
		if req.Kind == dispatch.KindCallback {
			return req.Send(ctx, "This entry has expired. Start again with /"+EntryCommand+".")
		}
		return nil
	}

	if isCancel(req) {
		e.store.Delete(req.Key)
		e.logTransition(ctx, req.Key, sess.State, Cancelled, "cancel")
		return req.Send(ctx, "❌ Time entry cancelled.")
	}

	switch sess.State {
	case AwaitingProjectSearch:
		return e.search(ctx, req, sess, sess.Projects, "project")
	case AwaitingProjectChoice:
		return e.chooseProject(ctx, req, sess)
	case AwaitingTaskSearch:
		return e.search(ctx, req, sess, sess.Tasks, "task")
	case AwaitingTaskChoice:
		return e.chooseTask(ctx, req, sess)
	case AwaitingHours:
		return e.hours(ctx, req, sess)
	case AwaitingDescription:
		return e.describe(ctx, req, sess)
	}
	e.store.Delete(req.Key)
	return nil
}

func (e *Engine) advance(ctx context.Context, key state.Key, sess Session, next State, cause string) {
	prev := sess.State
	sess.State = next
	e.store.Put(key, sess)
	e.logTransition(ctx, key, prev, next, cause)
}

// search handles the project and task search steps.
func (e *Engine) search(ctx context.Context, req *dispatch.Request, sess Session, items []odoo.Item, noun string) error {
	if req.Kind != dispatch.KindText {
		return req.Reply(ctx, dispatch.Reply{
			Text:    fmt.Sprintf("Type part of the %s name to search.", noun),
			Actions: []dispatch.Choice{cancelChoice},
		})
	}
	query := strings.TrimSpace(req.Text)
	matches := Search(items, query)
	switch {
	case len(matches) == 0:
		return req.Reply(ctx, dispatch.Reply{
			Text:    fmt.Sprintf("No %ss match %q. Try another search.", noun, query),
			Actions: []dispatch.Choice{cancelChoice},
		})
	case len(matches) > MaxChoices:
		return req.Reply(ctx, dispatch.Reply{
			Text:    fmt.Sprintf("%d %ss match %q. Please narrow your search.", len(matches), noun, query),
			Actions: []dispatch.Choice{cancelChoice},
		})
	}
	sess.Matches = matches
	next := AwaitingProjectChoice
	if noun == "task" {
		next = AwaitingTaskChoice
	}
	e.advance(ctx, req.Key, sess, next, "search")
	return req.Reply(ctx, choiceReply(fmt.Sprintf("Pick a %s:", noun), sess.Matches, choicePrefix(noun)))
}

func choicePrefix(noun string) string {
	if noun == "task" {
		return cbTask
	}
	return cbProject
}

func choiceReply(text string, items []odoo.Item, prefix string) dispatch.Reply {
	choices := make([]dispatch.Choice, 0, len(items))
	for _, it := range items {
		choices = append(choices, dispatch.Choice{Label: it.Name, Data: prefix + strconv.FormatInt(it.ID, 10)})
	}
	return dispatch.Reply{Text: text, Choices: choices, Actions: []dispatch.Choice{againChoice, cancelChoice}}
}

// picked returns the chosen item of a choice step. again is true for "search again".
func picked(req *dispatch.Request, prefix string, matches []odoo.Item) (item odoo.Item, again, ok bool) {
	if req.Kind != dispatch.KindCallback {
		return odoo.Item{}, false, false
	}
	if req.Callback == cbAgain {
		return odoo.Item{}, true, false
	}
	raw, found := strings.CutPrefix(req.Callback, prefix)
	if !found {
		return odoo.Item{}, false, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return odoo.Item{}, false, false
	}
	item, ok = find(matches, id)
	return item, false, ok
}

func (e *Engine) chooseProject(ctx context.Context, req *dispatch.Request, sess Session) error {
	item, again, ok := picked(req, cbProject, sess.Matches)
	if again {
		sess.Matches = nil
		e.advance(ctx, req.Key, sess, AwaitingProjectSearch, "search_again")
		return req.Reply(ctx, dispatch.Reply{Text: "Type part of the project name to search.", Actions: []dispatch.Choice{cancelChoice}})
	}
	if !ok {
		return req.Reply(ctx, choiceReply("Please pick one of the projects below.", sess.Matches, cbProject))
	}

	tasks, err := e.gw.Tasks(ctx, item.ID)
	if err != nil {
		e.store.Delete(req.Key)
		e.logTransition(ctx, req.Key, sess.State, Cancelled, "external_error")
		return err
	}
	if len(tasks) == 0 {
		sess.Matches = nil
		e.advance(ctx, req.Key, sess, AwaitingProjectSearch, "no_tasks")
		return req.Reply(ctx, dispatch.Reply{
			Text:    fmt.Sprintf("Project %q has no tasks. Search for another project.", item.Name),
			Actions: []dispatch.Choice{cancelChoice},
		})
	}
	sess.Project = item
	sess.Tasks = tasks
	sess.Matches = nil
	e.advance(ctx, req.Key, sess, AwaitingTaskSearch, "project")
	return req.Reply(ctx, dispatch.Reply{
		Text:    fmt.Sprintf("📁 Project: %s\n\nType part of the task name to search.", item.Name),
		Actions: []dispatch.Choice{cancelChoice},
	})
}

func (e *Engine) chooseTask(ctx context.Context, req *dispatch.Request, sess Session) error {
	item, again, ok := picked(req, cbTask, sess.Matches)
	if again {
		sess.Matches = nil
		e.advance(ctx, req.Key, sess, AwaitingTaskSearch, "search_again")
		return req.Reply(ctx, dispatch.Reply{Text: "Type part of the task name to search.", Actions: []dispatch.Choice{cancelChoice}})
	}
	if !ok {
		return req.Reply(ctx, choiceReply("Please pick one of the tasks below.", sess.Matches, cbTask))
	}
	sess.Task = item
	sess.Matches = nil
	e.advance(ctx, req.Key, sess, AwaitingHours, "task")
	return req.Reply(ctx, dispatch.Reply{
		Text:    fmt.Sprintf("📋 Task: %s\n\nHow many hours? (e.g. 1.5)", item.Name),
		Actions: []dispatch.Choice{cancelChoice},
	})
}

const hoursHint = "Please enter a number of hours greater than 0 and at most 24 (e.g. 1.5 or 1,5)."

func (e *Engine) hours(ctx context.Context, req *dispatch.Request, sess Session) error {
	if req.Kind != dispatch.KindText {
		return req.Send(ctx, hoursHint)
	}
	h, ok := ParseHours(req.Text)
	if !ok {
		return req.Send(ctx, hoursHint)
	}
	sess.Hours = h
	e.advance(ctx, req.Key, sess, AwaitingDescription, "hours")
	return req.Reply(ctx, dispatch.Reply{
		Text:    fmt.Sprintf("⏱ %.2fh\n\nWhat did you work on?", h),
		Actions: []dispatch.Choice{cancelChoice},
	})
}

func (e *Engine) describe(ctx context.Context, req *dispatch.Request, sess Session) error {
	if req.Kind != dispatch.KindText {
		return req.Send(ctx, "Please describe the work in a message.")
	}
	desc := strings.TrimSpace(req.Text)
	if desc == "" {
		return req.Send(ctx, "The description can't be empty.")
	}
	sess.Description = desc
	return e.commit(ctx, req, sess)
}

// commit writes the entry. The session is gone afterwards whatever the outcome.
func (e *Engine) commit(ctx context.Context, req *dispatch.Request, sess Session) error {
	e.store.Delete(req.Key)
	prev := sess.State
	sess.State = Committed

	id, err := e.gw.CreateTimeEntry(ctx, odoo.TimeEntryInput{
		CompanyID:   e.companyID,
		ProjectID:   sess.Project.ID,
		TaskID:      sess.Task.ID,
		Description: sess.Description,
		Hours:       sess.Hours,
		Date:        sess.Date,
	})
	if err != nil {
		e.logTransition(ctx, req.Key, prev, Cancelled, "commit_failed")
		if errors.Is(err, odoo.ErrNoEmployee) {
			return errs.Validation("timelog.commit", errors.New("❌ No active employee record found for your user in this company. The entry was not saved."))
		}
		return err
	}
	e.logTransition(ctx, req.Key, prev, Committed, "commit")

	if e.onCommit != nil {
		e.onCommit(ctx, Commit{Key: req.Key, EntryID: id, Session: sess})
	}
	return req.Send(ctx, fmt.Sprintf("✅ Time entry created (ID %d)\n📅 %s\n📁 %s\n📋 %s\n⏱ %.2fh\n💬 %s",
		id, sess.Date.Format(odoo.DateLayout), sess.Project.Name, sess.Task.Name, sess.Hours, sess.Description))
}

func (e *Engine) logTransition(ctx context.Context, key state.Key, from, to State, cause string) {
	logger.Debug(ctx, logger.CompTimelog, "timelog.transition",
		slog.String("status", "ok"),
		slog.String("state", from.String()),
		slog.String("next_state", to.String()),
		slog.String("cause", cause),
		slog.String("payload", key.String()),
	)
}
