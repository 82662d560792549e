package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schiavigomme/hertz-invoicer/internal/ledger"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

// SystemHandler serves the dashboard aggregate and the liveness probe.
type SystemHandler struct {
	ledger *ledger.Service
	pool   *pgxpool.Pool
	log    *slog.Logger
}

func NewSystemHandler(ledger *ledger.Service, pool *pgxpool.Pool, log *slog.Logger) *SystemHandler {
	return &SystemHandler{ledger: ledger, pool: pool, log: log}
}

func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.ledger.Stats(c.Request.Context())
	if err != nil {
		h.log.Error("failed to build stats", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Healthz answers liveness and, when a pool is wired, pings the database.
func (h *SystemHandler) Healthz(c *gin.Context) {
	if h.pool != nil {
		if err := repository.HealthCheck(c.Request.Context(), h.pool, 2*time.Second, h.log); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  "database unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
