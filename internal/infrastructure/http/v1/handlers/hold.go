package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tillcore/internal/core/clock"
	"tillcore/internal/domain/heldsale"
	"tillcore/internal/domain/register"
	"tillcore/internal/domain/sales"
	"tillcore/internal/infrastructure/http/v1/dto"
)

// HoldHandler parks, lists, resumes and discards held sales.
type HoldHandler struct {
	*BaseHandler
	gate  *register.Gate
	holds *heldsale.Service
	sales *sales.Service
	clock clock.Clock
}

// NewHoldHandler creates a new hold handler.
func NewHoldHandler(base *BaseHandler, gate *register.Gate, holds *heldsale.Service, saleService *sales.Service, clk clock.Clock) *HoldHandler {
	return &HoldHandler{BaseHandler: base, gate: gate, holds: holds, sales: saleService, clock: clk}
}

// Create handles POST /holds
func (h *HoldHandler) Create(c *gin.Context) {
	var req dto.CreateHoldRequest
	if !h.BindJSON(c, &req) {
		return
	}

	held, err := register.Within(c.Request.Context(), h.gate, h.Actor(c),
		func(ctx context.Context, s register.OpenSession) (*heldsale.HeldSale, error) {
			return h.holds.Create(ctx, req.ToInput(s.Actor().ID))
		})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromHeldSale(held, h.clock.Now()))
}

// List handles GET /holds
func (h *HoldHandler) List(c *gin.Context) {
	var q dto.ListHoldsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	query := q.ToQuery()
	items, err := h.holds.List(c.Request.Context(), query)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromHeldSales(items, h.clock.Now()), heldsale.EffectiveLimit(query.Limit)))
}

// Get handles GET /holds/:holdId
func (h *HoldHandler) Get(c *gin.Context) {
	held, err := h.holds.Get(c.Request.Context(), h.HoldIDParam(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromHeldSale(held, h.clock.Now()))
}

// Recall handles POST /holds/:holdId/recall
func (h *HoldHandler) Recall(c *gin.Context) {
	holdID := h.HoldIDParam(c)

	held, err := register.Within(c.Request.Context(), h.gate, h.Actor(c),
		func(ctx context.Context, _ register.OpenSession) (*heldsale.HeldSale, error) {
			return h.holds.Recall(ctx, holdID)
		})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromHeldSale(held, h.clock.Now()))
}

// Finalize handles POST /holds/:holdId/finalize
func (h *HoldHandler) Finalize(c *gin.Context) {
	var req dto.FinalizeHoldRequest
	if !h.BindJSON(c, &req) {
		return
	}
	holdID := h.HoldIDParam(c)

	sale, err := register.Within(c.Request.Context(), h.gate, h.Actor(c),
		func(ctx context.Context, s register.OpenSession) (*sales.Sale, error) {
			total, err := req.ParsedTotal()
			if err != nil {
				return nil, err
			}
			return h.sales.FinalizeHeld(ctx, s, holdID, total)
		})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromSale(sale))
}

// Delete handles DELETE /holds/:holdId
func (h *HoldHandler) Delete(c *gin.Context) {
	if err := h.holds.Delete(c.Request.Context(), h.HoldIDParam(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Sweep handles POST /holds/sweep
func (h *HoldHandler) Sweep(c *gin.Context) {
	n, err := h.holds.ExpireSweep(c.Request.Context(), h.clock.Now())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountResponse{Count: n})
}
