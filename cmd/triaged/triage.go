package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxd/triaged/internal/config"
	"github.com/inboxd/triaged/internal/display"
	"github.com/inboxd/triaged/internal/llmassist"
	"github.com/inboxd/triaged/internal/triage"
	"github.com/inboxd/triaged/internal/types"
)

var (
	triageApply       bool
	triageLimit       int
	triageReprocess   bool
	triageNoCodex     bool
	triageLoopSeconds int
	triageCycles      int
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Run one or more automated triage cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if triageNoCodex {
			off := false
			automation.UseCodex = &off
		}

		if added, err := st.SeedVIPSendersFromConfig(cfg.Triage.VIPSenders); err == nil && added > 0 {
			logger.Info("seeded vip senders from config", "count", added)
		}

		codexSettings, err := config.NormalizeAI(cfg)
		if err != nil {
			return fmt.Errorf("load ai settings: %w", err)
		}

		provider, err := llmassist.BuildProvider(ctx, codexSettings, automation)
		if err != nil {
			return fmt.Errorf("initialize codex provider: %w", err)
		}

		loopSeconds := triageLoopSeconds
		if loopSeconds == 0 && triageCycles != 0 {
			loopSeconds = automation.LoopIntervalSeconds
		}

		opts := triage.LoopOptions{
			Options: triage.Options{
				ApplyMode:     triageApply,
				LimitOverride: triageLimit,
				Reprocess:     triageReprocess,
				Config:        cfg,
				Automation:    automation,
				Provider:      provider,
			},
			LoopSeconds: loopSeconds,
			Cycles:      triageCycles,
		}

		onResult := func(cycle int, summary types.CycleSummary, cycleErr error) error {
			if cycleErr != nil {
				if jsonOutput {
					enc := json.NewEncoder(os.Stdout)
					enc.Encode(map[string]any{
						"error": cycleErr.Error(),
						"cycle": cycle,
					})
				} else {
					fmt.Printf("ERROR:%v\n", cycleErr)
				}
				if loopSeconds <= 0 {
					return cycleErr
				}
				return nil
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				return enc.Encode(summary)
			}
			display.PrintSummary(summary)
			return nil
		}

		return triage.RunLoop(ctx, logger, newMailStore, st, opts, onResult)
	},
}

func init() {
	triageCmd.Flags().BoolVar(&triageApply, "apply", false, "Create drafts and archive matching emails (default: dry-run)")
	triageCmd.Flags().IntVar(&triageLimit, "limit", 0, "Override max emails per cycle")
	triageCmd.Flags().BoolVar(&triageReprocess, "reprocess", false, "Reprocess emails even if already drafted")
	triageCmd.Flags().BoolVar(&triageNoCodex, "no-codex", false, "Disable Codex intelligence and use rule-only triage")
	triageCmd.Flags().IntVar(&triageLoopSeconds, "loop-seconds", 0, "Run continuously with this delay between cycles")
	triageCmd.Flags().IntVar(&triageCycles, "cycles", 0, "When looping, stop after this many cycles")
}
