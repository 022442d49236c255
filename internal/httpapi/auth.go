package httpapi

import (
	"bytes"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/store"
)

var bearerPrefix = []byte("Bearer ")

// apiKey reads the key from "Authorization: Bearer <key>" or X-API-Key.
func apiKey(ctx *fasthttp.RequestCtx) string {
	if h := ctx.Request.Header.Peek(fasthttp.HeaderAuthorization); len(h) > len(bearerPrefix) && bytes.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(string(h[len(bearerPrefix):]))
	}
	return strings.TrimSpace(string(ctx.Request.Header.Peek("X-API-Key")))
}

func (s *Server) authed(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx, domain.Participant)) {
	key := apiKey(ctx)
	if key == "" {
		writeError(ctx, domain.ErrUnauthenticated)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	p, err := s.store.ParticipantByKeyHash(rctx, store.HashKey(key))
	if err != nil {
		writeError(ctx, err)
		return
	}
	next(ctx, p)
}

// checkIdentity rejects a body agent_id naming someone other than the key
// holder. An omitted agent_id means the key holder.
func checkIdentity(p domain.Participant, agentID string) error {
	if agentID = strings.TrimSpace(agentID); agentID != "" && agentID != p.ID {
		return domain.ErrIdentityMismatch
	}
	return nil
}
