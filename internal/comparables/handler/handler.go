package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carma_backend/internal/comparables/service"
	"carma_backend/internal/comparables/transport"
	"carma_backend/platform/apperr"
	"carma_backend/platform/httpkit"
)

const (
	msgInvalidRequest = "invalid request"
	msgNoComparables  = "no comparable listings found"
)

// Handler handles HTTP requests for comparables.
type Handler struct {
	svc *service.Service
}

// New creates a new comparables handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Compare returns ranked comparables for a listing.
// GET /api/v1/comparables/:id
// GET /api/v1/listings/:id/comparables
func (h *Handler) Compare(c *gin.Context) {
	var req transport.ComparablesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest).WithCode(apperr.CodeInvalidRequest))
		return
	}
	req.ID = c.Param("id")

	result, err := h.svc.Compare(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	if result.NoResults() {
		httpkit.JSON(c, http.StatusNotFound, transport.NoResultsResponse{
			Error:    msgNoComparables,
			Code:     apperr.CodeNoComparables,
			Target:   result.Target,
			Metadata: result.Metadata,
		})
		return
	}
	httpkit.OK(c, result)
}

// GetListing returns the normalized view of a listing.
// GET /api/v1/listings/:id
func (h *Handler) GetListing(c *gin.Context) {
	result, err := h.svc.GetListing(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Stats returns listing and engine counters.
// GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	result, err := h.svc.GetStats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
