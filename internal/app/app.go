// Package app wires configuration, Odoo, Gemini, the journal and the command set
// into a runnable Telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/bootstrap"
	coreconfig "github.com/m3rciful/timebot/core/config"
	coredatabase "github.com/m3rciful/timebot/core/database"
	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/core/state"
	coretelegram "github.com/m3rciful/timebot/core/telegram"
	"github.com/m3rciful/timebot/core/telegram/router"
	"github.com/m3rciful/timebot/core/telegram/sender"
	"github.com/m3rciful/timebot/internal/config"
	"github.com/m3rciful/timebot/internal/handlers"
	"github.com/m3rciful/timebot/internal/intent"
	"github.com/m3rciful/timebot/internal/journal"
	"github.com/m3rciful/timebot/internal/notify"
	"github.com/m3rciful/timebot/internal/odoo"
	"github.com/m3rciful/timebot/internal/timelog"
	"github.com/m3rciful/timebot/internal/voice"
)

// janitorInterval is how often expired conversations are swept.
const janitorInterval = time.Minute

// voiceExcluded are commands a voice note never triggers.
var voiceExcluded = map[string]bool{"start": true, "help": true, dispatch.CancelCommand: true}

// Options override infrastructure for tests and alternative entry points.
type Options struct {
	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error

	// OdooHTTP replaces the Odoo client's HTTP client.
	OdooHTTP *http.Client
	// Model and Transcriber replace the Gemini client when set.
	Model       intent.Model
	Transcriber intent.Transcriber

	Now func() time.Time
}

// App is the assembled bot.
type App struct {
	cfg     *config.Config
	boot    *bootstrap.Result
	journal *journal.Store
	engine  *timelog.Engine
	disp    *dispatch.Dispatcher
	queue   *sender.Queue

	mu        sync.Mutex
	notifySrv *notify.Server
	stopSweep context.CancelFunc
	sweepDone chan struct{}
}

// New bootstraps logging and the journal, then builds the command set.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	boot, err := bootstrap.Run(bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		LoggerInit: opts.LoggerInit,
		Connect:    opts.Connect,
		Migrate:    opts.Migrate,
	})
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:   cfg,
		boot:  boot,
		queue: sender.NewQueue(sender.Options{Workers: 1, MaxRetries: 2}),
	}
	if boot.DB != nil {
		a.journal = journal.New(boot.DB)
	}
	if err := a.build(ctx, opts); err != nil {
		a.queue.Close()
		_ = boot.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.cfg
	client := odoo.NewClient(odoo.ClientOptions{
		URL:        cfg.Odoo.URL,
		DB:         cfg.Odoo.DB,
		Username:   cfg.Odoo.Username,
		APIKey:     cfg.Odoo.APIKey,
		Timeout:    cfg.OdooTimeout(),
		HTTPClient: opts.OdooHTTP,
	})
	gw := odoo.NewGateway(client, cfg.Odoo.CompanyID)

	a.engine = timelog.New(timelog.Options{
		Gateway:   gw,
		CompanyID: cfg.Odoo.CompanyID,
		Store:     state.NewStore[timelog.Session](),
		Location:  cfg.Location(),
		Now:       opts.Now,
		OnCommit:  a.recordCommit,
	})

	reg := dispatch.NewRegistry()
	deps := handlers.Deps{
		Gateway:    gw,
		CompanyID:  cfg.Odoo.CompanyID,
		Flow:       a.engine,
		Scripts:    cfg.Scripts,
		Location:   cfg.Location(),
		Now:        opts.Now,
		Started:    opts.Now(),
		QueueStats: a.queue.Stats,
	}
	if a.journal != nil {
		deps.History = a.journal
	}
	if err := handlers.New(deps).Register(reg); err != nil {
		return fmt.Errorf("app: register commands: %w", err)
	}
	reg.SetCallbackNotFound(a.engine.Handle)

	a.disp = dispatch.New(reg, dispatch.Options{
		AdminID: cfg.Telegram.AdminID,
		Flow:    a.engine,
		OnAdminReject: func(ctx context.Context, req *dispatch.Request) error {
			return req.Send(ctx, "⛔ This command is restricted to the bot admin.")
		},
	})

	pipeline, err := a.voicePipeline(ctx, opts, reg)
	if err != nil {
		return err
	}
	reg.SetVoice(pipeline.Handle)
	return nil
}

func (a *App) voicePipeline(ctx context.Context, opts Options, reg *dispatch.Registry) (*voice.Pipeline, error) {
	if !a.cfg.LLM.VoiceEnabled {
		logger.TWire.Info("voice disabled", slog.String("event", "voice.skip"))
		return voice.New(voice.Options{}), nil
	}
	model, tr := opts.Model, opts.Transcriber
	if model == nil || tr == nil {
		g, err := intent.NewGemini(ctx, intent.GeminiOptions{
			APIKey:  a.cfg.LLM.APIKey,
			Model:   a.cfg.LLM.Model,
			Timeout: a.cfg.LLMTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("app: gemini: %w", err)
		}
		if model == nil {
			model = g
		}
		if tr == nil {
			tr = g
		}
	}
	rec := intent.NewRecognizer(model, func() []intent.Command {
		var out []intent.Command
		for _, c := range reg.List(true) {
			if voiceExcluded[c.Name] {
				continue
			}
			out = append(out, intent.Command{Name: c.Name, Description: c.Description})
		}
		return out
	})
	vo := voice.Options{Transcriber: tr, Recognizer: rec, Runner: a.disp}
	if a.journal != nil {
		vo.Journal = a.journal
	}
	return voice.New(vo), nil
}

func (a *App) recordCommit(ctx context.Context, c timelog.Commit) {
	if a.journal == nil {
		return
	}
	_, err := a.journal.RecordEntry(ctx, journal.Entry{
		OdooEntryID: c.EntryID,
		ChatID:      c.Key.ChatID,
		UserID:      c.Key.UserID,
		ProjectID:   c.Session.Project.ID,
		ProjectName: c.Session.Project.Name,
		TaskID:      c.Session.Task.ID,
		TaskName:    c.Session.Task.Name,
		Hours:       c.Session.Hours,
		Description: c.Session.Description,
		EntryDate:   c.Session.Date.Format(odoo.DateLayout),
	})
	if err != nil {
		logger.Warn(ctx, logger.CompJournal, "journal.record",
			append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
	}
}

// Dispatcher exposes the request router.
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.disp }

// Journal returns the journal store, nil when the database is disabled.
func (a *App) Journal() *journal.Store { return a.journal }

// Queue is the outbound sender queue shared by replies and notifications.
func (a *App) Queue() *sender.Queue { return a.queue }

// NotifyAddr is the bound address of the notify endpoint, empty when it is not running.
func (a *App) NotifyAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.notifySrv == nil {
		return ""
	}
	return a.notifySrv.Addr()
}

// TelegramRunOptions builds the runtime configuration for core/telegram.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	cfg := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:     cfg,
		Dispatcher: a.disp,
		Sender:     a.queue,
		Middlewares: coretelegram.DefaultMiddlewares(cfg, func(c tele.Context) error {
			return c.Send("⏳ Slow down a little, please.")
		}),
		Routes:  router.Routes(a.disp),
		OnStart: a.onStart,
		OnStop:  a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.Notify.Listen != "" {
		n, err := notify.New(notify.Options{Sender: rt.Bot, ChatID: a.cfg.Telegram.ChatID, Queue: rt.Sender})
		if err != nil {
			return err
		}
		srv, err := notify.Listen(a.cfg.Notify.Listen, notify.Handler(n, a.cfg.Notify.Token))
		if err != nil {
			return err
		}
		a.notifySrv = srv
	}

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopSweep = cancel
	a.sweepDone = make(chan struct{})
	go func() {
		defer close(a.sweepDone)
		a.engine.Store().Janitor(sweepCtx, janitorInterval)
	}()
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.notifySrv != nil {
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = a.notifySrv.Shutdown(sctx)
		cancel()
		a.notifySrv = nil
	}
	if a.stopSweep != nil {
		a.stopSweep()
		<-a.sweepDone
		a.stopSweep = nil
	}
	return err
}

// Close releases the queue and the database handle.
func (a *App) Close() error {
	a.queue.Close()
	return a.boot.Close()
}
