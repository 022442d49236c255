package events

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/linkrace-arena/internal/obslog"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.send) }) }

// Hub relays match events to websocket spectators.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *Hub) subscribe(matchID string) *subscriber {
	s := &subscriber{send: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	set, ok := h.subs[matchID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[matchID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(matchID string, s *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[matchID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, matchID)
		}
	}
	h.mu.Unlock()
	s.close()
}

// Subscribers reports how many spectators follow matchID.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID])
}

// Broadcast queues raw for every spectator of matchID. Subscribers whose
// buffer is full are dropped.
func (h *Hub) Broadcast(matchID string, raw []byte) {
	var slow []*subscriber
	h.mu.RLock()
	for s := range h.subs[matchID] {
		select {
		case s.send <- raw:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range slow {
		obslog.L().Warn("spectator_dropped", zap.String("match_id", matchID))
		h.unsubscribe(matchID, s)
	}
}

// Relay pattern-subscribes to every match channel and broadcasts until ctx
// ends. ready, if non-nil, is closed once the subscription is confirmed.
func (h *Hub) Relay(ctx context.Context, rdb redis.UniversalClient, ready chan<- struct{}) error {
	ps := rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.Broadcast(strings.TrimPrefix(msg.Channel, channelPrefix), []byte(msg.Payload))
		}
	}
}

// ServeHTTP upgrades GET /matches/{id}/events and streams envelopes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFromPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("spectator_accept_error", zap.String("match_id", matchID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub := h.subscribe(matchID)
	defer h.unsubscribe(matchID, sub)
	obslog.L().Debug("spectator_join", zap.String("match_id", matchID))

	// spectators never send; CloseRead cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.send:
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, raw)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func matchIDFromPath(p string) (string, bool) {
	p = strings.Trim(p, "/")
	parts := strings.Split(p, "/")
	if len(parts) != 3 || parts[0] != "matches" || parts[2] != "events" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
