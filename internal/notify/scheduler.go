// Package notify delivers scheduled notifications on a fixed 60-second
// cadence. Failed deliveries keep their flag unset and retry on every
// subsequent tick; there is no cutoff.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"buildsbot/core/logger"
	"buildsbot/internal/model"
	"buildsbot/internal/store"
)

// TickInterval is the fixed scheduler period.
const TickInterval = 60 * time.Second

// Sender delivers a single notification to its user.
type Sender func(ctx context.Context, n model.Notification) error

// Scheduler owns the notifications document and the delivery loop.
type Scheduler struct {
	store    *store.Store
	send     Sender
	now      func() time.Time
	interval time.Duration
}

// NewScheduler constructs a scheduler delivering through send.
func NewScheduler(st *store.Store, send Sender) *Scheduler {
	return &Scheduler{
		store:    st,
		send:     send,
		now:      time.Now,
		interval: TickInterval,
	}
}

// WithClock overrides time source, used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Schedule appends a new undelivered notification.
func (s *Scheduler) Schedule(userID int64, typ string, at time.Time) (string, error) {
	id := uuid.NewString()
	notifications := model.Notifications{}
	err := s.store.Update(store.DocNotifications, &notifications, func() error {
		notifications = append(notifications, model.Notification{
			ID:            id,
			UserID:        userID,
			Type:          typ,
			ScheduledTime: at,
			CreatedAt:     s.now(),
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.Component("notify")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info("scheduler started",
		slog.String("event", "start"),
		slog.Duration("interval", s.interval),
	)
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped", slog.String("event", "stop"))
			return
		case <-ticker.C:
			if sent, err := s.Tick(ctx); err != nil {
				logger.Error(ctx, "notify", "tick.fail",
					slog.String("err", err.Error()),
				)
			} else if sent > 0 {
				logger.Info(ctx, "notify", "tick.delivered",
					slog.Int("sent", sent),
				)
			}
		}
	}
}

// Tick delivers every due undelivered notification for opted-in users and
// persists the document once. Returns the number of successful deliveries.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	users := model.Users{}
	if err := s.store.Load(store.DocUsers, &users); err != nil {
		return 0, err
	}

	delivered := 0
	notifications := model.Notifications{}
	err := s.store.Update(store.DocNotifications, &notifications, func() error {
		now := s.now()
		for i := range notifications {
			n := &notifications[i]
			if n.Sent || n.ScheduledTime.After(now) {
				continue
			}
			// Opted-out users are skipped without marking, so the entry
			// delivers later if they opt back in.
			if u, ok := users[model.UserKey(n.UserID)]; !ok || !u.NotificationsEnabled {
				continue
			}
			if err := s.send(ctx, *n); err != nil {
				logger.Warn(ctx, "notify", "deliver.fail",
					slog.Int64("user_id", n.UserID),
					slog.String("type", n.Type),
					slog.String("err", err.Error()),
				)
				continue
			}
			n.Sent = true
			delivered++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return delivered, nil
}
