package triage

import (
	"context"
	"log/slog"
	"time"

	"github.com/inboxd/triaged/internal/mailstore"
	"github.com/inboxd/triaged/internal/types"
)

// LoopOptions configures RunLoop's scheduling on top of a per-cycle
// Options value.
type LoopOptions struct {
	Options
	LoopSeconds int
	Cycles      int
}

// NewMailStore constructs a fresh MailStore handle for one cycle.
type NewMailStore func(ctx context.Context) (mailstore.MailStore, error)

// RunLoop runs ProcessOneCycle repeatedly, matching main's scheduling:
// if LoopSeconds is zero, run exactly one cycle and return. Otherwise
// keep running until Cycles is reached (0 means unbounded), sleeping
// LoopSeconds between cycles. Each iteration calls newMail to build a
// fresh MailStore handle before running the cycle, so a transient
// session failure on one iteration doesn't keep failing every
// subsequent one. onResult is invoked after every cycle, successful or
// not; RunLoop stops and returns the error if onResult returns a
// non-nil error or ctx is canceled.
func RunLoop(ctx context.Context, log *slog.Logger, newMail NewMailStore, st stateStore, opts LoopOptions, onResult func(cycle int, summary types.CycleSummary, err error) error) error {
	if log == nil {
		log = slog.Default()
	}

	cycle := 0
	for {
		cycle++
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var summary types.CycleSummary
		mail, err := newMail(ctx)
		if err != nil {
			summary, err = types.CycleSummary{}, &types.MailStoreError{Op: "connect", Err: err}
		} else {
			summary, err = ProcessOneCycle(ctx, log, mail, st, opts.Options)
		}

		if cbErr := onResult(cycle, summary, err); cbErr != nil {
			return cbErr
		}

		if opts.LoopSeconds <= 0 {
			return nil
		}
		if opts.Cycles > 0 && cycle >= opts.Cycles {
			return nil
		}

		wait := time.Duration(opts.LoopSeconds) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
