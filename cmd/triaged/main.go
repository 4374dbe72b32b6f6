// Command triaged runs the automated JMAP mail triage daemon: one-shot
// or looping cycles that classify inbox messages, archive the
// low-priority ones, and draft replies for the rest, plus small admin
// and single-message utility subcommands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxd/triaged/internal/config"
	"github.com/inboxd/triaged/internal/mailstore"
	"github.com/inboxd/triaged/internal/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	cfgPath     string
	stateDBPath string
	jsonOutput  bool

	cfg        *config.Config
	automation config.Automation
	st         *store.Store
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "triaged",
	Short: "triaged - automated JMAP mail inbox triage",
	Long:  "triaged classifies inbox messages by priority, auto-archives the ones that don't need attention, and drafts replies for the rest.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "version", "help":
			return nil
		}

		loaded, _, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		automation = config.NormalizeAutomation(cfg)
		if stateDBPath != "" {
			automation.StateDB = stateDBPath
		}

		s, err := store.Open(automation.StateDB)
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		st = s

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			st.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("triaged version %s\n", Version)
	},
}

// newMailStore constructs the JMAP-backed MailStore from the loaded
// config, the one transport adapter every subcommand that touches mail
// shares.
func newMailStore(ctx context.Context) (mailstore.MailStore, error) {
	senderEmail := ""
	if len(cfg.Mail.SenderEmails) > 0 {
		senderEmail = cfg.Mail.SenderEmails[0]
	}
	return mailstore.NewJMAPStore(ctx, cfg.Fastmail.SessionURL, cfg.Fastmail.APIToken, senderEmail, cfg.Mail.Account)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&stateDBPath, "state-db", "", "Override state DB path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print machine-readable JSON output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(triageCmd)
	rootCmd.AddCommand(vipCmd)
	rootCmd.AddCommand(draftBlockCmd)
	rootCmd.AddCommand(mailCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
