package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/notify"
	"github.com/embassy-watch/embassy-eye/runner"
	"github.com/embassy-watch/embassy-eye/store"
)

// exitIPBlocked tells a wrapping script to rotate the VPN endpoint
// before the next invocation.
const exitIPBlocked = 86

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one availability check across the configured consulates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		initLogger(cfg.Log)
		slog.Info("embassy-eye run starting",
			"embassy", cfg.Target.Embassy,
			"consulates", cfg.Target.Consulates,
			"headless", cfg.Browser.Headless,
		)

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		notifier := notify.NewTelegram(cfg.Telegram)
		if !notifier.Enabled() {
			slog.Warn("telegram credentials absent, notifications disabled")
		}

		r := runner.New(cfg, st, notifier, slog.Default())
		if err := r.Run(cmd.Context()); err != nil {
			if errors.Is(err, runner.ErrIPBlocked) {
				slog.Error("egress ip blocked, rotate vpn", "error", err)
				st.Close()
				os.Exit(exitIPBlocked)
			}
			return err
		}

		slog.Info("embassy-eye run finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
