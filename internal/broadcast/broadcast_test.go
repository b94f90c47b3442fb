package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ids(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestRunTallyAndClassification(t *testing.T) {
	send := func(_ context.Context, id int64) error {
		switch id {
		case 2:
			return errors.New("Forbidden: bot was blocked by the user")
		case 4:
			return errors.New("Bad Request: chat not found")
		}
		return nil
	}

	report := Run(context.Background(), ids(5), send, nil, Options{Sleep: func(time.Duration) {}})
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 1, report.Blocked)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 60, report.Percent())
}

func TestRunProgressAtTenPercentSteps(t *testing.T) {
	var calls []int
	progress := func(done, total int) {
		calls = append(calls, done)
		assert.Equal(t, 50, total)
	}
	send := func(context.Context, int64) error { return nil }

	Run(context.Background(), ids(50), send, progress, Options{Sleep: func(time.Duration) {}})
	// Every 5 sends, final send excluded (the tally message covers it).
	assert.Equal(t, []int{5, 10, 15, 20, 25, 30, 35, 40, 45}, calls)
}

func TestRunPausesEveryBatch(t *testing.T) {
	pauses := 0
	send := func(context.Context, int64) error { return nil }

	Run(context.Background(), ids(45), send, nil, Options{
		BatchSize: 20,
		Sleep:     func(time.Duration) { pauses++ },
	})
	assert.Equal(t, 2, pauses)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sent := 0
	send := func(context.Context, int64) error {
		sent++
		if sent == 3 {
			cancel()
		}
		return nil
	}

	report := Run(ctx, ids(10), send, nil, Options{Sleep: func(time.Duration) {}})
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 10, report.Total)
}

func TestPercentZeroTotal(t *testing.T) {
	assert.Zero(t, Report{}.Percent())
}
