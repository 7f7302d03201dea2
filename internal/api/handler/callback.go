package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hendrianz14/tripay-callback-service/internal/api/ack"
	"github.com/hendrianz14/tripay-callback-service/internal/domain"
	"github.com/hendrianz14/tripay-callback-service/internal/idempotency"
	"github.com/hendrianz14/tripay-callback-service/internal/observability"
	"github.com/hendrianz14/tripay-callback-service/internal/service"
	"github.com/hendrianz14/tripay-callback-service/internal/tripay"
)

// SettledCache is the read-through cache of already-settled references.
// *idempotency.Cache implements it against redis.
type SettledCache interface {
	Seen(ctx context.Context, reference string) bool
	MarkSettled(ctx context.Context, reference string)
}

// CallbackHandler orchestrates the callback pipeline: raw body, signature,
// normalization, resolution, settlement, acknowledgment.
type CallbackHandler struct {
	secret     string
	resolver   *service.ResolverService
	settlement *service.SettlementService
	cache      SettledCache
	timeout    time.Duration
}

func NewCallbackHandler(secret string, resolver *service.ResolverService, settlement *service.SettlementService, cache SettledCache, timeout time.Duration) *CallbackHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cache == nil {
		cache = (*idempotency.Cache)(nil)
	}
	return &CallbackHandler{
		secret:     secret,
		resolver:   resolver,
		settlement: settlement,
		cache:      cache,
		timeout:    timeout,
	}
}

// Handle processes POST /tripay/callback.
//
// Response contract: 200 means the gateway must stop delivering (processed or
// intentionally ignored), 400 means the input can never be accepted, 5xx
// means redeliver later. Timeouts fall in the retryable class; idempotent
// settlement makes timeout-then-retry safe.
func (h *CallbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// The verifier needs the exact bytes, so the body is read before any
	// JSON decoding.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read callback body failed", zap.Error(err))
		h.reject(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := tripay.SignatureFromHeader(r.Header)
	if !tripay.VerifySignature(h.secret, body, signature) {
		zap.L().Warn("callback signature rejected",
			zap.Bool("signature_present", signature != ""),
			zap.String("trace_id", traceID(r)),
		)
		h.reject(w, http.StatusBadRequest, "invalid signature")
		return
	}

	cb, err := tripay.ParseCallback(body)
	if err != nil {
		h.reject(w, http.StatusBadRequest, "malformed payload")
		return
	}

	// Fast path for redeliveries of already-settled references. Only PAID is
	// short-circuited, and the redelivered payload is still merged into the
	// invoice's audit record; the cache only saves the resolve and the status
	// read.
	if cb.Status == domain.InvoiceStatusPaid && h.cache.Seen(ctx, cb.Reference) {
		if err := h.settlement.MergeSettled(ctx, cb.Reference, cb.Raw); err != nil {
			zap.L().Error("merge settled delivery failed", zap.Error(err), zap.String("reference", cb.Reference))
			h.reject(w, http.StatusInternalServerError, "temporary failure, please retry")
			return
		}
		observability.IncrementCallbackOutcome(string(service.OutcomeDuplicate))
		ack.OK(w, "already processed")
		return
	}

	res, err := h.resolver.Resolve(ctx, cb)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOutOfNamespace):
			observability.IncrementCallbackOutcome("ignored")
			ack.OK(w, "ignored: reference outside topup namespace")
		case errors.Is(err, service.ErrUnresolvable):
			zap.L().Warn("unresolvable topup reference", zap.String("reference", cb.Reference))
			observability.IncrementCallbackOutcome("ignored")
			ack.OK(w, "ignored: reference cannot be resolved")
		default:
			zap.L().Error("resolve reference failed", zap.Error(err), zap.String("reference", cb.Reference))
			h.reject(w, http.StatusInternalServerError, "temporary failure, please retry")
		}
		return
	}

	outcome, err := h.settlement.Apply(ctx, res, cb.Status, cb.Raw)
	if err != nil {
		zap.L().Error("settlement failed", zap.Error(err), zap.String("reference", res.Reference))
		h.reject(w, http.StatusInternalServerError, "temporary failure, please retry")
		return
	}

	if outcome == service.OutcomeCredited || outcome == service.OutcomeDuplicate {
		h.cache.MarkSettled(ctx, res.Reference)
	}

	observability.IncrementCallbackOutcome(string(outcome))
	switch outcome {
	case service.OutcomeDuplicate:
		ack.OK(w, "already processed")
	default:
		ack.OK(w, "")
	}
}

func (h *CallbackHandler) reject(w http.ResponseWriter, status int, msg string) {
	if status >= http.StatusInternalServerError {
		observability.IncrementCallbackOutcome("error")
	} else {
		observability.IncrementCallbackOutcome("rejected")
	}
	ack.Fail(w, status, msg)
}
