package httpapi

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

var statusByCode = map[string]int{
	domain.ErrInvalidArgs.Code:          fasthttp.StatusBadRequest,
	domain.ErrUnauthenticated.Code:      fasthttp.StatusUnauthorized,
	domain.ErrIdentityMismatch.Code:     fasthttp.StatusForbidden,
	domain.ErrNotInMatch.Code:           fasthttp.StatusForbidden,
	domain.ErrNotCreator.Code:           fasthttp.StatusForbidden,
	domain.ErrPairingDisabled.Code:      fasthttp.StatusNotFound,
	domain.ErrParticipantNotFound.Code:  fasthttp.StatusNotFound,
	domain.ErrMatchNotFound.Code:        fasthttp.StatusNotFound,
	domain.ErrAlreadyQueued.Code:        fasthttp.StatusConflict,
	domain.ErrAlreadyInMatch.Code:       fasthttp.StatusConflict,
	domain.ErrSlotAlreadyFilled.Code:    fasthttp.StatusConflict,
	domain.ErrWrongPhase.Code:           fasthttp.StatusConflict,
	domain.ErrMatchNotActive.Code:       fasthttp.StatusConflict,
	domain.ErrCountdown.Code:            fasthttp.StatusConflict,
	domain.ErrExpired.Code:              fasthttp.StatusConflict,
	domain.ErrMatchAlreadyComplete.Code: fasthttp.StatusConflict,
	domain.ErrConflict.Code:             fasthttp.StatusConflict,
	domain.ErrNoLocationAvailable.Code:  fasthttp.StatusUnprocessableEntity,
}

// StatusFor maps an error to its HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	var de arenadto.DomainError
	if errors.As(err, &de) {
		if st, ok := statusByCode[de.Code]; ok {
			return st
		}
	}
	return fasthttp.StatusInternalServerError
}

func writeError(ctx *fasthttp.RequestCtx, err error) {
	var de arenadto.DomainError
	if !errors.As(err, &de) {
		obslog.L().Error("http_internal_error", zap.ByteString("path", ctx.Path()), zap.Error(err))
		de = arenadto.DomainError{Code: "internal", Message: "internal error", Retryable: true}
	}
	writeJSON(ctx, StatusFor(err), arenadto.ErrorBody{Error: arenadto.ErrorDetail{
		Code:      de.Code,
		Message:   de.Message,
		Retryable: de.Retryable,
	}})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		obslog.L().Error("http_encode_error", zap.Error(err))
		ctx.Error(`{"error":{"code":"internal","message":"internal error"}}`, fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}

// decode reads an optional JSON body into v. An empty body leaves v zero.
func decode(ctx *fasthttp.RequestCtx, v any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return arenadto.DomainError{Code: domain.ErrInvalidArgs.Code, Message: "malformed JSON body"}
	}
	return nil
}

func notFound(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusNotFound, arenadto.ErrorBody{Error: arenadto.ErrorDetail{Code: "not_found", Message: "no such route"}})
}

func methodNotAllowed(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusMethodNotAllowed, arenadto.ErrorBody{Error: arenadto.ErrorDetail{Code: "method_not_allowed", Message: "method not allowed"}})
}
