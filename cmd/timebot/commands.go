package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/m3rciful/timebot/core/buildinfo"
	corecmd "github.com/m3rciful/timebot/core/cmd"
	"github.com/m3rciful/timebot/core/logger"
	coretelegram "github.com/m3rciful/timebot/core/telegram"
	"github.com/m3rciful/timebot/core/telegram/sender"
	"github.com/m3rciful/timebot/internal/app"
	"github.com/m3rciful/timebot/internal/config"
	"github.com/m3rciful/timebot/internal/notify"
)

const defaultConfigPath = "config.yaml"

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "timebot",
		Short:         "Telegram bot for Odoo time tracking and notifications",
		Version:       buildinfo.Summary(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")

	serve := newServeCmd(&cfgPath)
	root.RunE = serve.RunE
	root.AddCommand(serve, newNotifyCmd(&cfgPath), newCheckCmd(&cfgPath))
	return root
}

func resolvePath(flag string) string {
	return corecmd.ResolveConfigPath(flag, corecmd.DefaultConfigEnv, defaultConfigPath)
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return corecmd.Run(corecmd.Options{
				ConfigPath:        *cfgPath,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return config.Load(path)
				},
				Bootstrap: func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					cfg, ok := c.(*config.Config)
					if !ok {
						return nil, fmt.Errorf("unexpected config type %T", c)
					}
					a, err := app.New(ctx, cfg, app.Options{})
					if err != nil {
						return nil, err
					}
					return a, nil
				},
			})
		},
	}
}

func newNotifyCmd(cfgPath *string) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "notify [text|-]",
		Short: "Send one message to the configured chat and exit",
		Long: `Send one message to telegram.chat_id. The text is taken from the
arguments, or from stdin when the only argument is "-".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(data)
			}
			cfg, err := config.Load(resolvePath(*cfgPath))
			if err != nil {
				return err
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			bot, err := coretelegram.NewBot(cfg.CoreConfig(), coretelegram.BotOptions{Offline: true})
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return sendOnce(ctx, bot, cfg.Telegram.ChatID, text, markdown)
		},
	}
	cmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "send with Markdown parse mode")
	return cmd
}

// sendOnce queues text and drains the queue before returning.
func sendOnce(ctx context.Context, s notify.Sender, chatID int64, text string, markdown bool) error {
	q := sender.NewQueue(sender.Options{Workers: 1, QueueSize: 1, MaxRetries: 2})
	n, err := notify.New(notify.Options{Sender: s, ChatID: chatID, Queue: q})
	if err != nil {
		q.Close()
		return err
	}
	err = n.Notify(ctx, text, markdown)
	q.Close()
	if err != nil {
		return err
	}
	if q.Stats().Failed > 0 {
		return errors.New("telegram rejected the message; see log for details")
	}
	return nil
}

func newCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := resolvePath(*cfgPath)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "config %s ok\n", path)
			fmt.Fprintf(w, "  run mode:  %s\n", cfg.Telegram.RunMode)
			fmt.Fprintf(w, "  chat:      %d (admin %d)\n", cfg.Telegram.ChatID, cfg.Telegram.AdminID)
			fmt.Fprintf(w, "  odoo:      %s db=%s user=%s\n", cfg.Odoo.URL, cfg.Odoo.DB, cfg.Odoo.Username)
			fmt.Fprintf(w, "  timezone:  %s\n", cfg.Location())
			fmt.Fprintf(w, "  voice:     %s\n", onOff(cfg.LLM.VoiceEnabled, cfg.LLM.Model))
			fmt.Fprintf(w, "  journal:   %s\n", onOff(cfg.Database.Enabled, cfg.Database.Driver))
			fmt.Fprintf(w, "  notify:    %s\n", onOff(cfg.Notify.Listen != "", cfg.Notify.Listen))
			for _, s := range cfg.Scripts {
				fmt.Fprintf(w, "  script:    /%s -> %s %s\n", s.Name, s.Command, strings.Join(s.Args, " "))
			}
			return nil
		},
	}
}

func onOff(on bool, detail string) string {
	if !on {
		return "off"
	}
	if detail == "" {
		return "on"
	}
	return "on (" + detail + ")"
}
