package handler

import (
	"context"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/internal/search/querylog"
	"vdestor_backend/internal/search/service"
	"vdestor_backend/internal/search/transport"
	"vdestor_backend/platform/apperr"
	"vdestor_backend/platform/httpkit"
	"vdestor_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// SearchService is the part of service.Service the handler calls.
type SearchService interface {
	Search(ctx context.Context, raw domain.RawSearchParams) (*domain.SearchResult, error)
	Availability(ctx context.Context, raw domain.RawAvailabilityParams) (map[int64]domain.DynamicData, error)
	Status(ctx context.Context) service.StatusReport
	FrequentMisses(ctx context.Context, lookbackDays, minCount, limit int) ([]querylog.MissSummary, error)
}

type Handler struct {
	svc SearchService
	val *validator.Validator
}

func New(svc SearchService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.Search)
	rg.GET("/availability", h.Availability)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.Status)
	rg.GET("/misses", h.Misses)
}

func (h *Handler) Search(c *gin.Context) {
	var req transport.SearchQuery
	if !h.bindQuery(c, &req) {
		return
	}

	result, err := h.svc.Search(c.Request.Context(), req.Params())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewSearchResponse(result))
}

func (h *Handler) Availability(c *gin.Context) {
	var req transport.AvailabilityQuery
	if !h.bindQuery(c, &req) {
		return
	}

	items, err := h.svc.Availability(c.Request.Context(), req.Params())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewAvailabilityResponse(items))
}

func (h *Handler) Status(c *gin.Context) {
	httpkit.OK(c, h.svc.Status(c.Request.Context()))
}

func (h *Handler) Misses(c *gin.Context) {
	var req transport.MissesQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest).WithDetails(err.Error()))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgValidationFailed).WithDetails(validator.FieldErrors(err)))
		return
	}

	items, err := h.svc.FrequentMisses(c.Request.Context(), req.LookbackDays, req.MinCount, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.MissesResponse{Items: items})
}

// bindQuery reports parameter problems as CONFIGURATION_ERROR, the code the
// domain uses for the same mistakes.
func (h *Handler) bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		httpkit.HandleError(c, domain.ConfigurationError(msgInvalidRequest).WithDetails(err.Error()))
		return false
	}
	if err := h.val.Struct(dst); err != nil {
		httpkit.HandleError(c, domain.ConfigurationError(msgValidationFailed).WithDetails(validator.FieldErrors(err)))
		return false
	}
	return true
}
