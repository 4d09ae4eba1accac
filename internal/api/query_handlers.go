package api

import (
	"net/http"
	"strconv"

	"github.com/ignite/cart-recovery/internal/pkg/httputil"
)

func pageParams(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// HandleListCarts returns tracked carts, most recently updated first.
//
//	GET /api/carts
func (h *Handlers) HandleListCarts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	carts, total, err := h.carts.List(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"carts": carts, "total": total})
}

// HandleListBrowseEvents returns recorded views, newest first.
//
//	GET /api/browse-events
func (h *Handlers) HandleListBrowseEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	events, total, err := h.views.List(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"events": events, "total": total})
}

// HandleListEmailLog returns the notification audit trail, newest first.
//
//	GET /api/email-log
func (h *Handlers) HandleListEmailLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	entries, total, err := h.emailLog.List(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"entries": entries, "total": total})
}

// HandleStats returns 30-day rollups for both tracks plus send counts.
//
//	GET /api/stats
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	cartStats, err := h.carts.Stats(r.Context(), statsWindow)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	browseStats, err := h.views.Stats(r.Context(), statsWindow)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	sends, err := h.emailLog.CountByType(r.Context(), statsWindow)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"window_days": int(statsWindow.Hours() / 24),
		"carts":       cartStats,
		"browse":      browseStats,
		"emails_sent": sends,
	})
}

// HandleRunCartSweep triggers one cart sweep cycle synchronously.
//
//	POST /api/sweep/carts
func (h *Handlers) HandleRunCartSweep(w http.ResponseWriter, r *http.Request) {
	sent, err := h.cartSweep.RunOnce(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"sent": sent})
}

// HandleRunBrowseSweep triggers one browse sweep cycle synchronously.
//
//	POST /api/sweep/browse
func (h *Handlers) HandleRunBrowseSweep(w http.ResponseWriter, r *http.Request) {
	sent, err := h.browseSweep.RunOnce(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"sent": sent})
}

// HandleHealth reports liveness plus database reachability.
//
//	GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "up"
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status = "unhealthy"
			dbStatus = "down"
		}
	} else {
		dbStatus = "not_configured"
	}
	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]any{
		"status": status,
		"checks": map[string]string{"database": dbStatus},
	})
}
