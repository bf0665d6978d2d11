package health

import (
	"context"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/pkg/response"
)

// Check pings one backing service.
type Check func(ctx context.Context) error

// Handler serves GET /health.
type Handler struct {
	checks  map[string]Check
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler creates a health handler. Each check gets timeout to answer.
func NewHandler(checks map[string]Check, timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{checks: checks, timeout: timeout, logger: logger}
}

// Status answers 200 when every dependency responds and 503 naming the first one that does not.
func (h *Handler) Status(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			response.ServiceUnavailable(c, name+" unavailable")
			return
		}
	}
	response.OK(c, gin.H{"status": "ok"})
}
