// Package broadcast implements the main-admin mass send: per-recipient
// error isolation, blocked-vs-other classification, fixed batch pauses
// and coarse progress reporting.
package broadcast

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"buildsbot/core/logger"
)

// Defaults for batching and pacing.
const (
	DefaultBatchSize = 20
	DefaultPause     = 500 * time.Millisecond
)

// Sender delivers the broadcast message to one user.
type Sender func(ctx context.Context, userID int64) error

// Progress is invoked at roughly 10% increments of the recipient list.
type Progress func(done, total int)

// Report tallies the outcome of a broadcast run.
type Report struct {
	Total   int
	Sent    int
	Blocked int
	Failed  int
}

// Percent returns the delivery rate in whole percent.
func (r Report) Percent() int {
	if r.Total == 0 {
		return 0
	}
	return r.Sent * 100 / r.Total
}

// Options tunes batching; zero values select the defaults.
type Options struct {
	BatchSize int
	Pause     time.Duration
	// Sleep is injectable for tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// Run sends to every recipient, isolating per-recipient failures.
// Cancelling the context stops between sends; the partial tally is returned.
func Run(ctx context.Context, userIDs []int64, send Sender, progress Progress, opts Options) Report {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Pause <= 0 {
		opts.Pause = DefaultPause
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	report := Report{Total: len(userIDs)}
	step := len(userIDs) / 10
	if step == 0 {
		step = 1
	}

	for i, id := range userIDs {
		if ctx.Err() != nil {
			logger.Warn(ctx, "broadcast", "cancelled",
				slog.Int("sent", report.Sent),
				slog.Int("count", report.Total),
			)
			return report
		}

		if err := send(ctx, id); err != nil {
			if isBlocked(err) {
				report.Blocked++
			} else {
				report.Failed++
				logger.Warn(ctx, "broadcast", "send.fail",
					slog.Int64("user_id", id),
					slog.String("err", err.Error()),
				)
			}
		} else {
			report.Sent++
		}

		done := i + 1
		if progress != nil && done%step == 0 && done < report.Total {
			progress(done, report.Total)
		}
		if done%opts.BatchSize == 0 && done < report.Total {
			sleep(opts.Pause)
		}
	}

	logger.Info(ctx, "broadcast", "complete",
		slog.Int("sent", report.Sent),
		slog.Int("blocked", report.Blocked),
		slog.Int("failed", report.Failed),
		slog.Int("count", report.Total),
	)
	return report
}

// isBlocked classifies "user blocked the bot" style failures by the
// error description, matching how the transport reports them.
func isBlocked(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "blocked") || strings.Contains(msg, "forbidden")
}
