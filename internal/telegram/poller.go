package telegram

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jpillora/backoff"
)

const DefaultPollTimeout = 30

// UpdateSource is the long-poll half of the client.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSecs int, allowed []string) ([]Update, error)
}

// Poller feeds updates to a handler one at a time, in order.
type Poller struct {
	Source      UpdateSource
	TimeoutSecs int
	Allowed     []string

	offset  int64
	backoff *backoff.Backoff
	sleep   func(context.Context, time.Duration) bool
}

func NewPoller(src UpdateSource, timeoutSecs int) *Poller {
	if timeoutSecs <= 0 {
		timeoutSecs = DefaultPollTimeout
	}
	return &Poller{
		Source:      src,
		TimeoutSecs: timeoutSecs,
		Allowed:     AllowedUpdates,
		backoff:     &backoff.Backoff{Min: time.Second, Max: 60 * time.Second, Factor: 2, Jitter: true},
		sleep:       sleepContext,
	}
}

// Offset is the next update id the poller will ask for.
func (p *Poller) Offset() int64 { return p.offset }

// Run polls until ctx is cancelled. handle is called synchronously so
// updates are processed in arrival order.
func (p *Poller) Run(ctx context.Context, handle func(context.Context, Update)) error {
	log.Printf("telegram: polling (timeout=%ds, allowed=%v)", p.TimeoutSecs, p.Allowed)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := p.Source.GetUpdates(ctx, p.offset, p.TimeoutSecs, p.Allowed)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait, flood := RetryAfter(err)
			if !flood {
				wait = p.backoff.Duration()
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Code == 401 {
				return err
			}
			log.Printf("telegram: getUpdates failed: %v; retrying in %s", err, wait.Round(time.Millisecond))
			if !p.sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		p.backoff.Reset()

		for _, upd := range updates {
			if upd.UpdateID >= p.offset {
				p.offset = upd.UpdateID + 1
			}
			handle(ctx, upd)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
