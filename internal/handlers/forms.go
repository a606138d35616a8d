// forms.go
//
// Asset lifecycle engine: formula-driven numbering and approval flow tracking
// Copyright (c) 2026 assetcore contributors
//
// This file is part of assetcore.
// assetcore is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// assetcore is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with assetcore.
// If not, see <https://www.gnu.org/licenses/>.

package handlers

import (
	"fmt"

	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/notification"
	"github.com/assetops/assetcore/internal/services"
	"github.com/assetops/assetcore/internal/types"
	"github.com/assetops/assetcore/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// FormHandler handles flow instance routes
type FormHandler struct {
	DB     *gorm.DB
	Notify *notification.Manager
}

type createFormRequest struct {
	FlowID      types.FlexUint64 `json:"flow_id,omitempty"`
	EventKey    string           `json:"event_key,omitempty"`
	Title       string           `json:"title"`
	Comment     string           `json:"comment"`
	SubjectType string           `json:"subject_type"`
	SubjectID   string           `json:"subject_id"`
	Actor       string           `json:"actor"`
}

type decideRequest struct {
	Actor    string `json:"actor"`
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

// CreateForm handles POST /api/forms
// @Summary Open a form against a flow
// @Description Bind a flow (by id, or resolved from a lifecycle event key) to one subject; the form starts pending at node 0
// @Tags Forms
// @Accept json
// @Produce json
// @Param form body createFormRequest true "Form"
// @Success 201 {object} models.FlowHasForm
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms [post]
func (h *FormHandler) CreateForm(c *fiber.Ctx) error {
	var req createFormRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "createForm")
	}

	var (
		form *models.FlowHasForm
		err  error
	)
	switch {
	case req.FlowID != 0:
		form, err = services.CreateHasForm(h.DB, uint64(req.FlowID), req.Title, req.Comment, req.SubjectType, req.SubjectID, req.Actor)
	case req.EventKey != "":
		form, err = services.CreateFormForEvent(h.DB, req.EventKey, req.Title, req.Comment, req.SubjectType, req.SubjectID, req.Actor)
	default:
		return utils.ErrorResponse(c, "either flow_id or event_key is required", fiber.StatusBadRequest, "createForm")
	}
	if err != nil {
		h.Notify.Notify(false, fmt.Sprintf("form not created: %v", err))
		return utils.DomainErrorResponse(c, err, "createForm")
	}

	h.Notify.Notify(true, fmt.Sprintf("form %q created", form.Title))
	return utils.SuccessResponse(c, form, fiber.StatusCreated)
}

// GetForm handles GET /api/forms/:id
// @Summary Get a form
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {object} models.FlowHasForm
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{id} [get]
func (h *FormHandler) GetForm(c *fiber.Ctx) error {
	form, err := services.GetForm(h.DB, c.Params("id"))
	if err != nil {
		return utils.DomainErrorResponse(c, err, "getForm")
	}
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// Decide handles POST /api/forms/:id/decide
// @Summary Record a decision on the form's current node
// @Description Approve advances the form, reject terminates it; the log append and form update are atomic
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path string true "Form ID"
// @Param decision body decideRequest true "Decision"
// @Success 200 {object} models.FlowHasForm
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/decide [post]
func (h *FormHandler) Decide(c *fiber.Ctx) error {
	var req decideRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "decide")
	}
	if req.Actor == "" || req.Decision == "" {
		return utils.ErrorResponse(c, "actor and decision are required", fiber.StatusBadRequest, "decide")
	}

	form, err := services.Decide(h.DB, c.Params("id"), req.Actor, req.Decision, req.Comment)
	if err != nil {
		h.Notify.Notify(false, fmt.Sprintf("decision on form %s failed: %v", c.Params("id"), err))
		return utils.DomainErrorResponse(c, err, "decide")
	}

	h.Notify.Notify(true, fmt.Sprintf("form %s %s by %s (now %s)", form.FormID, req.Decision, req.Actor, form.Status))
	return utils.SuccessResponse(c, form, fiber.StatusOK)
}

// Progress handles GET /api/forms/:id/progress
// @Summary Flow progress projection for charting
// @Description Two parallel ordered sequences (node ids and names) in position order, independent of decision history
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {object} services.FlowProgress
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/progress [get]
func (h *FormHandler) Progress(c *fiber.Ctx) error {
	progress, err := services.SortNodes(h.DB, c.Params("id"))
	if err != nil {
		return utils.DomainErrorResponse(c, err, "progress")
	}
	return utils.SuccessResponse(c, progress, fiber.StatusOK)
}

// Logs handles GET /api/forms/:id/logs
// @Summary Decision audit trail of a form
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {array} models.FormNodeLog
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /forms/{id}/logs [get]
func (h *FormHandler) Logs(c *fiber.Ctx) error {
	logs, err := services.FormLogs(h.DB, c.Params("id"))
	if err != nil {
		return utils.DomainErrorResponse(c, err, "formLogs")
	}
	return utils.SuccessResponse(c, logs, fiber.StatusOK)
}
