package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/numbering"
)

// NumberingHandler exposes the series counters for inspection and
// operator override.
type NumberingHandler struct {
	authority *numbering.Authority
	log       *slog.Logger
}

func NewNumberingHandler(authority *numbering.Authority, log *slog.Logger) *NumberingHandler {
	return &NumberingHandler{authority: authority, log: log}
}

func (h *NumberingHandler) Get(c *gin.Context) {
	counters, err := h.authority.Counters(c.Request.Context())
	if err != nil {
		h.log.Error("failed to read counters", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ToNumberingResponse(counters))
}

// Override resets one series counter. The authority rejects negatives
// and warns when the value falls below the ledger maximum.
func (h *NumberingHandler) Override(c *gin.Context) {
	var req OverrideCounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("failed to bind JSON", "error", err)
		c.Error(common.NewAppError("INVALID_REQUEST",
			"body must carry series and last_issued", common.ErrInvalidInput))
		return
	}
	series, ok := constants.ParseSeries(req.Series)
	if !ok {
		c.Error(common.NewAppError("INVALID_SERIES",
			fmt.Sprintf("unknown series %q", req.Series), common.ErrInvalidInput))
		return
	}

	counter, err := h.authority.Override(c.Request.Context(), series, *req.LastIssued)
	if err != nil {
		h.log.Error("failed to override counter", "series", series, "error", err)
		c.Error(err)
		return
	}
	h.log.Info("counter overridden", "series", series, "last_issued", counter.LastIssued)
	c.JSON(http.StatusOK, ToCounterResponse(counter))
}
