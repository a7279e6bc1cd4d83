package handlers

import (
	"github.com/gin-gonic/gin"

	"tillcore/internal/domain/register"
	"tillcore/internal/infrastructure/http/v1/dto"
)

// RegisterHandler opens and closes cash register sessions.
type RegisterHandler struct {
	*BaseHandler
	service *register.Service
}

// NewRegisterHandler creates a new register handler.
func NewRegisterHandler(base *BaseHandler, service *register.Service) *RegisterHandler {
	return &RegisterHandler{BaseHandler: base, service: service}
}

// Open handles POST /register/open
func (h *RegisterHandler) Open(c *gin.Context) {
	session, err := h.service.Open(c.Request.Context(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromRegisterSession(session))
}

// Close handles POST /register/close
func (h *RegisterHandler) Close(c *gin.Context) {
	session, err := h.service.Close(c.Request.Context(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRegisterSession(session))
}

// Current handles GET /register/current
func (h *RegisterHandler) Current(c *gin.Context) {
	session, err := h.service.Current(c.Request.Context(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRegisterSession(session))
}
