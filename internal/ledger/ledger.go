// Package ledger mirrors participant results to an external stats ledger.
// Mirroring is best effort and never blocks match completion.
package ledger

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/httpclient"
	"github.com/park285/linkrace-arena/internal/obslog"
)

// Record is one participant's result in one match.
type Record struct {
	Ref        string `json:"agent_ref"`
	MatchID    string `json:"match_id"`
	Outcome    string `json:"outcome"` // win | loss | draw
	Rating     int    `json:"elo"`
	ClickCount int    `json:"click_count"`
}

type Mirror interface {
	Mirror(ctx context.Context, rec Record) error
}

// HTTPMirror posts records to {base}/agents/{ref}/stats.
type HTTPMirror struct {
	http *httpclient.Client
}

func NewHTTPMirror(c *httpclient.Client) *HTTPMirror { return &HTTPMirror{http: c} }

func (m *HTTPMirror) Mirror(ctx context.Context, rec Record) error {
	return m.http.PostJSON(ctx, "/agents/"+url.PathEscape(rec.Ref)+"/stats", rec, nil)
}

// Dispatcher runs each mirror call in its own goroutine with its own
// deadline, detached from the request that produced it.
type Dispatcher struct {
	mirror  Mirror
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(m Mirror, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{mirror: m, timeout: timeout}
}

// Dispatch schedules records; those without a ledger reference are skipped.
func (d *Dispatcher) Dispatch(records ...Record) {
	if d == nil || d.mirror == nil {
		return
	}
	for _, rec := range records {
		if strings.TrimSpace(rec.Ref) == "" {
			continue
		}
		d.wg.Add(1)
		go func(rec Record) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := d.mirror.Mirror(ctx, rec); err != nil {
				obslog.L().Warn("ledger_mirror_error",
					zap.String("match_id", rec.MatchID),
					zap.String("ref", rec.Ref),
					zap.Error(err),
				)
				return
			}
			obslog.L().Debug("ledger_mirror", zap.String("match_id", rec.MatchID), zap.String("ref", rec.Ref))
		}(rec)
	}
}

// Close waits for in-flight calls or until ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ledger drain: %w", ctx.Err())
	}
}
