package httpapi

import (
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/match"
	"github.com/park285/linkrace-arena/internal/matchmaking"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

func (s *Server) handleJoinQueue(ctx *fasthttp.RequestCtx, p domain.Participant) {
	var req arenadto.JoinQueueRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if err := checkIdentity(p, req.AgentID); err != nil {
		writeError(ctx, err)
		return
	}
	if req.TimeLimitSeconds < 0 {
		writeError(ctx, domain.ErrInvalidArgs)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	res, err := s.queue.Join(rctx, p.ID, matchmaking.Preferences{TimeLimit: time.Duration(req.TimeLimitSeconds) * time.Second})
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, s.queueResponse(p, res, "queue.paired"))
}

func (s *Server) handleQueueStatus(ctx *fasthttp.RequestCtx, p domain.Participant) {
	if err := checkIdentity(p, string(ctx.QueryArgs().Peek("agent_id"))); err != nil {
		writeError(ctx, err)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	res, err := s.queue.Status(rctx, p.ID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, s.queueResponse(p, res, "queue.in_match"))
}

func (s *Server) handleLeaveQueue(ctx *fasthttp.RequestCtx, p domain.Participant) {
	var req arenadto.AgentRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if err := checkIdentity(p, req.AgentID); err != nil {
		writeError(ctx, err)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	left, err := s.queue.Leave(rctx, p.ID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if !left {
		writeJSON(ctx, fasthttp.StatusOK, arenadto.QueueResponse{Status: string(matchmaking.Idle), Message: s.msgs.Text("queue.not_left", nil)})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, arenadto.QueueResponse{Status: "left", Message: s.msgs.Text("queue.left", nil)})
}

func (s *Server) handleOpenMatch(ctx *fasthttp.RequestCtx, p domain.Participant) {
	var req arenadto.HostedMatchRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if err := checkIdentity(p, req.AgentID); err != nil {
		writeError(ctx, err)
		return
	}
	if req.TimeLimitSeconds < 0 {
		writeError(ctx, domain.ErrInvalidArgs)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	m, err := s.engine.OpenMatch(rctx, p.ID, match.HostedConfig{
		Start:     req.StartArticle,
		Target:    req.TargetArticle,
		TimeLimit: time.Duration(req.TimeLimitSeconds) * time.Second,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp := matchSummary(m, p.ID)
	resp.Status = "open"
	resp.Message = s.msgs.Text("hosted.open", map[string]any{"MatchID": m.ID})
	writeJSON(ctx, fasthttp.StatusCreated, resp)
}

func (s *Server) handleFillSlot(ctx *fasthttp.RequestCtx, p domain.Participant, matchID string) {
	var req arenadto.AgentRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if err := checkIdentity(p, req.AgentID); err != nil {
		writeError(ctx, err)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	m, err := s.engine.FillSlot(rctx, matchID, p.ID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp := matchSummary(m, p.ID)
	resp.Status = string(matchmaking.Paired)
	resp.Message = s.msgs.Text("hosted.joined", map[string]any{"MatchID": m.ID, "Opponent": opponentName(m, p.ID)})
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleWithdraw(ctx *fasthttp.RequestCtx, p domain.Participant, matchID string) {
	var req arenadto.AgentRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if err := checkIdentity(p, req.AgentID); err != nil {
		writeError(ctx, err)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	m, err := s.engine.WithdrawMatch(rctx, matchID, p.ID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp := matchSummary(m, p.ID)
	resp.Status = "withdrawn"
	resp.Message = s.msgs.Text("hosted.withdrawn", map[string]any{"MatchID": m.ID})
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleReady(ctx *fasthttp.RequestCtx, p domain.Participant, matchID string) {
	var req arenadto.AgentRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if err := checkIdentity(p, req.AgentID); err != nil {
		writeError(ctx, err)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	res, err := s.engine.SignalReady(rctx, matchID, p.ID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	m := res.Match
	resp := arenadto.ReadyResponse{
		Status:        string(m.Status),
		YouReady:      res.YouReady,
		OpponentReady: res.OpponentReady,
		StartsAt:      m.StartedAt,
		EndsAt:        m.EndsAt,
	}
	now := s.clock.Now()
	switch {
	case m.Status != domain.StatusActive:
		resp.Message = s.msgs.Text("ready.waiting", map[string]any{"Opponent": opponentName(m, p.ID)})
	case m.StartedAt != nil && now.Before(*m.StartedAt):
		secs := int(m.StartedAt.Sub(now).Round(time.Second) / time.Second)
		resp.CountdownSeconds = secs
		resp.Message = s.msgs.Text("ready.countdown", map[string]any{"Seconds": secs})
	default:
		resp.Message = s.msgs.Text("ready.active", nil)
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleClaim(ctx *fasthttp.RequestCtx, p domain.Participant, matchID string) {
	var req arenadto.ClaimRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if err := checkIdentity(p, req.AgentID); err != nil {
		writeError(ctx, err)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	res, err := s.engine.ClaimVictory(rctx, matchID, p.ID, req.FinalURL)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp := arenadto.ClaimResponse{
		Result:          string(res.Result),
		Reason:          res.Reason,
		VerifiedArticle: res.Page,
		TargetArticle:   res.Target,
	}
	switch {
	case res.Result == match.ClaimVictory:
		resp.Winner = &arenadto.AgentRef{AgentID: p.ID, Name: p.Name}
		resp.ClickCount = res.Clicks
		resp.Path = res.Path
		resp.TimeElapsedSeconds = int(res.Elapsed / time.Second)
		resp.NewRating = res.NewRating
		resp.Message = s.msgs.Text("claim.victory", map[string]any{"Target": res.Target, "Clicks": res.Clicks})
	case res.Reason == match.ReasonUnparseable:
		resp.Message = s.msgs.Text("claim.unparseable", map[string]any{"Location": res.Location})
	default:
		resp.Message = s.msgs.Text("claim.mismatch", map[string]any{"Page": res.Page, "Target": res.Target})
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleFrame(ctx *fasthttp.RequestCtx, p domain.Participant, matchID string) {
	var req arenadto.FrameRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if err := checkIdentity(p, req.AgentID); err != nil {
		writeError(ctx, err)
		return
	}
	rctx, cancel := s.reqContext()
	defer cancel()
	ok, err := s.engine.PushFrame(rctx, matchID, p.ID, match.FrameInput{
		Location:   req.CurrentURL,
		ClickCount: req.ClickCount,
		Thought:    req.Thought,
		Image:      req.Frame,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	key := "frames.accepted"
	if !ok {
		key = "frames.ignored"
	}
	writeJSON(ctx, fasthttp.StatusOK, arenadto.FrameResponse{Accepted: ok, Message: s.msgs.Text(key, nil)})
}

// handleGetMatch is public so spectators can poll without a key.
func (s *Server) handleGetMatch(ctx *fasthttp.RequestCtx, matchID string) {
	rctx, cancel := s.reqContext()
	defer cancel()
	st, err := s.engine.Get(rctx, matchID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ratings := make(map[string]int, 2)
	for _, id := range st.Match.ParticipantIDs() {
		if p, err := s.store.Participant(rctx, id); err == nil {
			ratings[id] = p.Rating
		}
	}
	writeJSON(ctx, fasthttp.StatusOK, matchView(st, ratings))
}

func (s *Server) queueResponse(p domain.Participant, res matchmaking.JoinResult, pairedKey string) arenadto.QueueResponse {
	switch res.Status {
	case matchmaking.Queued:
		since := res.Ticket.EnqueuedAt
		return arenadto.QueueResponse{
			Status:        string(matchmaking.Queued),
			Message:       s.msgs.Text("queue.queued", map[string]any{"Position": res.Position}),
			QueuePosition: res.Position,
			WaitingSince:  &since,
		}
	case matchmaking.Paired:
		m := res.Match
		resp := matchSummary(m, p.ID)
		resp.Status = string(matchmaking.Paired)
		resp.Message = s.msgs.Text(pairedKey, map[string]any{
			"Opponent": opponentName(m, p.ID),
			"Start":    m.StartURL,
			"Target":   m.Target,
			"MatchID":  m.ID,
			"Status":   string(m.Status),
		})
		return resp
	default:
		return arenadto.QueueResponse{Status: string(matchmaking.Idle), Message: s.msgs.Text("queue.not_queued", nil)}
	}
}
