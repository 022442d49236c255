// Package httpapi exposes the arena to agents over a JSON HTTP API.
package httpapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/match"
	"github.com/park285/linkrace-arena/internal/matchmaking"
	"github.com/park285/linkrace-arena/internal/msgcat"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/store"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxBodySize           = 4 << 20

	matchesPath = "/api/matches"
	queuePath   = "/api/matches/queue"
)

type Deps struct {
	Store    store.Store
	Queue    *matchmaking.Service
	Engine   *match.Engine
	Messages *msgcat.Catalog
	Clock    clockwork.Clock
	// Pairing decides which of the queue or hosted routes are served.
	Pairing domain.PairingMode
	// RequestTimeout bounds each request's work; claims that trigger
	// adjudication keep running detached past it.
	RequestTimeout time.Duration
}

type Server struct {
	store   store.Store
	queue   *matchmaking.Service
	engine  *match.Engine
	msgs    *msgcat.Catalog
	clock   clockwork.Clock
	pairing domain.PairingMode
	timeout time.Duration

	srv *fasthttp.Server
}

func New(d Deps) *Server {
	s := &Server{
		store:   d.Store,
		queue:   d.Queue,
		engine:  d.Engine,
		msgs:    d.Messages,
		clock:   d.Clock,
		pairing: d.Pairing.OrDefault(),
		timeout: d.RequestTimeout,
	}
	if s.msgs == nil {
		s.msgs = msgcat.MustDefault()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "linkrace-arena",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       60 * time.Second,
		IdleTimeout:        2 * time.Minute,
		MaxRequestBodySize: maxBodySize,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	obslog.L().Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// Handler returns the routed request handler with access logging and panic
// recovery.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		started := time.Now()
		defer func() {
			if r := recover(); r != nil {
				obslog.L().Error("http_panic", zap.Any("panic", r), zap.ByteString("path", ctx.Path()))
				writeError(ctx, fmt.Errorf("panic: %v", r))
			}
			obslog.L().Debug("http_request",
				zap.ByteString("method", ctx.Method()),
				zap.ByteString("path", ctx.Path()),
				zap.Int("status", ctx.Response.StatusCode()),
				zap.Duration("took", time.Since(started)),
			)
		}()
		s.route(ctx)
	}
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := strings.TrimSuffix(string(ctx.Path()), "/")
	switch {
	case path == "/healthz":
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
	case path == queuePath:
		if s.pairing != domain.PairingQueue {
			notFound(ctx)
			return
		}
		switch {
		case ctx.IsPost():
			s.authed(ctx, s.handleJoinQueue)
		case ctx.IsGet():
			s.authed(ctx, s.handleQueueStatus)
		case ctx.IsDelete():
			s.authed(ctx, s.handleLeaveQueue)
		default:
			methodNotAllowed(ctx)
		}
	case path == matchesPath:
		if s.pairing != domain.PairingHosted {
			notFound(ctx)
			return
		}
		if !ctx.IsPost() {
			methodNotAllowed(ctx)
			return
		}
		s.authed(ctx, s.handleOpenMatch)
	case strings.HasPrefix(path, matchesPath+"/"):
		s.routeMatch(ctx, strings.Split(strings.TrimPrefix(path, matchesPath+"/"), "/"))
	default:
		notFound(ctx)
	}
}

func (s *Server) routeMatch(ctx *fasthttp.RequestCtx, parts []string) {
	id := strings.TrimSpace(parts[0])
	if id == "" || len(parts) > 2 {
		notFound(ctx)
		return
	}
	hosted := s.pairing == domain.PairingHosted
	if len(parts) == 1 {
		switch {
		case ctx.IsGet():
			s.handleGetMatch(ctx, id)
		case ctx.IsDelete() && hosted:
			s.authed(ctx, func(ctx *fasthttp.RequestCtx, p domain.Participant) { s.handleWithdraw(ctx, p, id) })
		default:
			methodNotAllowed(ctx)
		}
		return
	}
	var h func(*fasthttp.RequestCtx, domain.Participant, string)
	switch parts[1] {
	case "join":
		if !hosted {
			notFound(ctx)
			return
		}
		h = s.handleFillSlot
	case "ready":
		h = s.handleReady
	case "claim-victory":
		h = s.handleClaim
	case "frames":
		h = s.handleFrame
	default:
		notFound(ctx)
		return
	}
	if !ctx.IsPost() {
		methodNotAllowed(ctx)
		return
	}
	s.authed(ctx, func(ctx *fasthttp.RequestCtx, p domain.Participant) { h(ctx, p, id) })
}

// reqContext bounds a request's store and engine calls.
func (s *Server) reqContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
