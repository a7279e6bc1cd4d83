package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"tillcore/internal/domain/register"
	"tillcore/internal/domain/sales"
	"tillcore/internal/infrastructure/http/v1/dto"
)

// SaleHandler finalizes sales behind the register gate.
type SaleHandler struct {
	*BaseHandler
	gate    *register.Gate
	service *sales.Service
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(base *BaseHandler, gate *register.Gate, service *sales.Service) *SaleHandler {
	return &SaleHandler{BaseHandler: base, gate: gate, service: service}
}

// Finalize handles POST /sales
func (h *SaleHandler) Finalize(c *gin.Context) {
	var req dto.FinalizeSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sale, err := register.Within(c.Request.Context(), h.gate, h.Actor(c),
		func(ctx context.Context, s register.OpenSession) (*sales.Sale, error) {
			in, err := req.ToInput()
			if err != nil {
				return nil, err
			}
			return h.service.Finalize(ctx, s, in)
		})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromSale(sale))
}

// Get handles GET /sales/:billNumber
func (h *SaleHandler) Get(c *gin.Context) {
	// Bill numbers contain slashes and arrive through a catch-all parameter.
	billNumber := strings.TrimPrefix(c.Param("billNumber"), "/")

	sale, err := h.service.Get(c.Request.Context(), billNumber)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSale(sale))
}
