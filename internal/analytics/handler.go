package analytics

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/pkg/csvexport"
	"github.com/aura-portal/backend/pkg/response"
)

// Handler serves GET /clients/:id/analytics and its CSV export.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Get returns the report as JSON.
func (h *Handler) Get(c *gin.Context) {
	client := clients.FromContext(c)
	report, err := h.svc.Report(c.Request.Context(), client.TenantID, client.ID)
	if err != nil {
		h.logger.Error("load analytics", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	response.OK(c, report)
}

// Export streams analytics_report_YYYY-MM-DD.csv.
func (h *Handler) Export(c *gin.Context) {
	client := clients.FromContext(c)
	report, err := h.svc.Report(c.Request.Context(), client.TenantID, client.ID)
	if err != nil {
		h.logger.Error("load analytics", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	data, err := CSV(report)
	if err != nil {
		response.Internal(c, "failed to export analytics")
		return
	}
	response.Attachment(c, csvexport.Filename(ReportPrefix, time.Now().UTC()), csvexport.ContentType, data)
}
