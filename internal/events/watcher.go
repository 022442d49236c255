package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/linkrace-arena/pkg/arenadto"
)

type WatchState string

const (
	WatchConnecting   WatchState = "connecting"
	WatchConnected    WatchState = "connected"
	WatchReconnecting WatchState = "reconnecting"
	WatchFailed       WatchState = "failed"
	WatchClosed       WatchState = "closed"
)

// Watcher follows one match's event stream and redials after a dropped
// connection.
type Watcher struct {
	url          string
	maxReconnect int

	mu      sync.RWMutex
	onEvent func(arenadto.Event)
	onState func(WatchState)
	state   WatchState
}

// NewWatcher targets ws(s)://host/matches/{id}/events. maxReconnect bounds
// consecutive failed redials; zero disables redialing.
func NewWatcher(baseURL, matchID string, maxReconnect int) *Watcher {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	}
	return &Watcher{
		url:          base + "/matches/" + strings.TrimSpace(matchID) + "/events",
		maxReconnect: maxReconnect,
		state:        WatchClosed,
	}
}

func (w *Watcher) URL() string { return w.url }

func (w *Watcher) OnEvent(fn func(arenadto.Event)) {
	w.mu.Lock()
	w.onEvent = fn
	w.mu.Unlock()
}

func (w *Watcher) OnStateChange(fn func(WatchState)) {
	w.mu.Lock()
	w.onState = fn
	w.mu.Unlock()
}

func (w *Watcher) State() WatchState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Run streams events until ctx ends, the stream reports match_complete, or
// redialing gives up.
func (w *Watcher) Run(ctx context.Context) error {
	attempt := 0
	w.setState(WatchConnecting)
	for {
		done, err := w.session(ctx)
		if done || ctx.Err() != nil {
			w.setState(WatchClosed)
			return nil
		}
		if err == nil {
			attempt = 0
		}
		attempt++
		if attempt > w.maxReconnect {
			w.setState(WatchFailed)
			return fmt.Errorf("watch %s: %w", w.url, err)
		}
		w.setState(WatchReconnecting)
		select {
		case <-ctx.Done():
			w.setState(WatchClosed)
			return nil
		case <-time.After(backoff(attempt)):
		}
	}
}

// session handles one connection. done reports the match has finished.
func (w *Watcher) session(ctx context.Context) (done bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, w.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		return false, err
	}
	defer conn.CloseNow()
	w.setState(WatchConnected)

	for {
		var ev arenadto.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return false, nil
			}
			if errors.Is(err, context.Canceled) {
				return true, nil
			}
			return false, err
		}
		w.mu.RLock()
		fn := w.onEvent
		w.mu.RUnlock()
		if fn != nil {
			fn(ev)
		}
		switch ev.Name {
		case arenadto.EventMatchComplete, arenadto.EventMatchWithdrawn:
			_ = conn.Close(websocket.StatusNormalClosure, ev.Name)
			return true, nil
		}
	}
}

func (w *Watcher) setState(s WatchState) {
	w.mu.Lock()
	w.state = s
	fn := w.onState
	w.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
