package handlers

import (
	stderrors "errors"
	"io"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type createAlertRequest struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

type reinforceRequest struct {
	Location string `json:"location"`
}

type updateStatusRequest struct {
	Status models.AlertStatus `json:"status" binding:"required"`
	Note   string             `json:"note"`
}

// handleCreateAlert the first press. A reporter without active contacts still
// gets a record, returned with the warning as message.
func (h *Handlers) handleCreateAlert(c *gin.Context) {
	var req createAlertRequest
	if !bindOptional(c, &req) {
		return
	}
	actor := actorOf(c)

	a, err := h.engine.CreateAlert(c.Request.Context(), actor.ID, req.Location, req.Message)
	if err != nil {
		if a != nil && errors.IsKind(err, errors.KindValidation) {
			response.Created(c, errors.GetMessage(err), a)
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, "alert created", a)
}

func (h *Handlers) handleReinforceAlert(c *gin.Context) {
	var req reinforceRequest
	if !bindOptional(c, &req) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	// only the reporter may reinforce
	if _, err := h.engine.Get(ctx, id, actorOf(c)); err != nil {
		response.Error(c, err)
		return
	}
	a, err := h.engine.Reinforce(ctx, id, req.Location)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "alert reinforced", a)
}

func (h *Handlers) handleUpdateAlertStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "status is required", nil)
		return
	}
	if !req.Status.Valid() {
		response.Fail(c, "unknown status "+string(req.Status), nil)
		return
	}

	a, err := h.aggregator.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, actorOf(c), req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "status updated", a)
}

func (h *Handlers) handleGetAlert(c *gin.Context) {
	a, err := h.engine.Get(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", a)
}

func (h *Handlers) handleListUserAlerts(c *gin.Context) {
	limit, offset := page(c)
	alerts, err := h.engine.ListForUser(c.Request.Context(), actorOf(c).ID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", alerts)
}

func (h *Handlers) handleListContactAlerts(c *gin.Context) {
	limit, offset := page(c)
	alerts, err := h.engine.ListForContact(c.Request.Context(), actorOf(c).ID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", alerts)
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !stderrors.Is(err, io.EOF) {
		response.Fail(c, "invalid request body", nil)
		return false
	}
	return true
}

func page(c *gin.Context) (limit, offset int) {
	limit = cast.ToInt(c.Query("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = cast.ToInt(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
