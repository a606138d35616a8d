// flows.go
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

	"github.com/assetops/assetcore/internal/notification"
	"github.com/assetops/assetcore/internal/services"
	"github.com/assetops/assetcore/internal/types"
	"github.com/assetops/assetcore/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// FlowHandler handles flow definition and settings routes
type FlowHandler struct {
	DB     *gorm.DB
	Notify *notification.Manager
}

type createFlowRequest struct {
	Name  string                              `json:"name"`
	Nodes types.FlexList[services.FlowNodeInput] `json:"nodes"`
}

type setSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CreateFlow handles POST /api/flows
// @Summary Create an approval flow
// @Description Nodes are assigned contiguous positions 0..n-1 in the order given
// @Tags Flows
// @Accept json
// @Produce json
// @Param flow body createFlowRequest true "Flow definition"
// @Success 201 {object} models.Flow
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /flows [post]
func (h *FlowHandler) CreateFlow(c *fiber.Ctx) error {
	var req createFlowRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "createFlow")
	}

	flow, err := services.CreateFlow(h.DB, req.Name, req.Nodes)
	if err != nil {
		h.Notify.Notify(false, fmt.Sprintf("flow %q not created: %v", req.Name, err))
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "createFlow")
	}

	h.Notify.Notify(true, fmt.Sprintf("flow %q created with %d nodes", flow.Name, len(flow.Nodes)))
	return utils.SuccessResponse(c, flow, fiber.StatusCreated)
}

// ListFlows handles GET /api/flows
// @Summary List approval flows
// @Tags Flows
// @Produce json
// @Success 200 {array} models.Flow
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /flows [get]
func (h *FlowHandler) ListFlows(c *fiber.Ctx) error {
	flows, err := services.ListFlows(h.DB)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listFlows")
	}
	return utils.SuccessResponse(c, flows, fiber.StatusOK)
}

// SetSetting handles POST /api/settings
// @Summary Set a configuration key
// @Description Upsert a settings row; lifecycle events bind to flows through keys such as device_delete_flow_id
// @Tags Settings
// @Accept json
// @Produce json
// @Param setting body setSettingRequest true "Setting"
// @Success 200 {object} utils.MutationSuccessStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /settings [post]
func (h *FlowHandler) SetSetting(c *fiber.Ctx) error {
	var req setSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "setSetting")
	}

	setting, err := services.SetSetting(h.DB, req.Key, req.Value)
	if err != nil {
		h.Notify.Notify(false, fmt.Sprintf("setting %q not saved: %v", req.Key, err))
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "setSetting")
	}

	h.Notify.Notify(true, fmt.Sprintf("setting %s saved", setting.Key))
	return utils.MutationSuccessResponse(c, "Setting saved", setting)
}
