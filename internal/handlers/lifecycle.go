// lifecycle.go
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
	"errors"
	"fmt"
	"strings"

	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/notification"
	"github.com/assetops/assetcore/internal/services"
	"github.com/assetops/assetcore/internal/types"
	"github.com/assetops/assetcore/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// LifecycleHandler handles lifecycle action routes (retire/disposal)
type LifecycleHandler struct {
	DB     *gorm.DB
	Notify *notification.Manager
}

type retireRequest struct {
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
	Label       string `json:"label"`
	Comment     string `json:"comment"`
	Actor       string `json:"actor"`
	Force       bool   `json:"force,omitempty"`
}

type retireResponse struct {
	Mode string              `json:"mode"` // "flow" or "forced"
	Form *models.FlowHasForm `json:"form,omitempty"`
}

// Retire handles POST /api/lifecycle/retire
// @Summary Start retirement of an asset
// @Description Opens an approval form against the flow bound to the subject class's delete event. With force, or when no flow is bound, retirement completes immediately without a form.
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param request body retireRequest true "Retirement request"
// @Success 201 {object} retireResponse
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /lifecycle/retire [post]
func (h *LifecycleHandler) Retire(c *fiber.Ctx) error {
	var req retireRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "retire")
	}
	if req.SubjectType == "" || req.SubjectID == "" || req.Actor == "" {
		return utils.ErrorResponse(c, "subject_type, subject_id and actor are required", fiber.StatusBadRequest, "retire")
	}

	if req.Force {
		h.Notify.Notify(true, fmt.Sprintf("%s %s force retired by %s", req.SubjectType, req.SubjectID, req.Actor))
		return utils.SuccessResponse(c, retireResponse{Mode: "forced"}, fiber.StatusCreated)
	}

	eventKey := DeleteFlowEventKey(req.SubjectType)
	title := fmt.Sprintf("%s retirement", req.Label)
	form, err := services.CreateFormForEvent(h.DB, eventKey, title, req.Comment, req.SubjectType, req.SubjectID, req.Actor)
	if err != nil {
		if errors.Is(err, types.ErrFlowNotBound) {
			// No flow configured for this event: complete immediately
			// instead of creating a form.
			h.Notify.Notify(true, fmt.Sprintf("%s %s retired without flow by %s", req.SubjectType, req.SubjectID, req.Actor))
			return utils.SuccessResponse(c, retireResponse{Mode: "forced"}, fiber.StatusCreated)
		}
		h.Notify.Notify(false, fmt.Sprintf("retirement of %s %s failed: %v", req.SubjectType, req.SubjectID, err))
		return utils.DomainErrorResponse(c, err, "retire")
	}

	h.Notify.Notify(true, fmt.Sprintf("retirement form %s created for %s %s", form.FormID, req.SubjectType, req.SubjectID))
	return utils.SuccessResponse(c, retireResponse{Mode: "flow", Form: form}, fiber.StatusCreated)
}

// DeleteFlowEventKey derives the settings key binding a subject class's
// delete event to a flow, e.g. "device_delete_flow_id".
func DeleteFlowEventKey(subjectType string) string {
	return strings.ToLower(subjectType) + "_delete_flow_id"
}
