// assets.go
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
	"time"

	"github.com/assetops/assetcore/internal/notification"
	"github.com/assetops/assetcore/internal/services"
	"github.com/assetops/assetcore/internal/types"
	"github.com/assetops/assetcore/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AssetNumberHandler handles allocation routes
type AssetNumberHandler struct {
	DB         *gorm.DB
	Notify     *notification.Manager
	RetryLimit int
}

type allocateRequest struct {
	TargetClass string           `json:"target_class,omitempty"`
	RuleID      types.FlexUint64 `json:"rule_id,omitempty"`
	AsOf        string           `json:"as_of,omitempty"` // RFC3339; defaults to now
}

type manualNumberRequest struct {
	Number string `json:"number"`
}

// Allocate handles POST /api/assets/allocate
// @Summary Allocate the next asset number
// @Description Allocate atomically for an explicit rule id, or for the rule bound to a target class
// @Tags Assets
// @Accept json
// @Produce json
// @Param request body allocateRequest true "Allocation request"
// @Success 201 {object} models.AssetNumberTrack
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /assets/allocate [post]
func (h *AssetNumberHandler) Allocate(c *fiber.Ctx) error {
	var req allocateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "allocate")
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			return utils.ErrorResponse(c, fmt.Sprintf("invalid as_of %q: expected RFC3339", req.AsOf), fiber.StatusBadRequest, "allocate")
		}
		asOf = parsed.UTC()
	}

	ruleID := uint64(req.RuleID)
	if ruleID == 0 {
		if req.TargetClass == "" {
			return utils.ErrorResponse(c, "either rule_id or target_class is required", fiber.StatusBadRequest, "allocate")
		}
		binding, err := services.GetAutoRule(h.DB, req.TargetClass)
		if err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "allocate")
		}
		if binding == nil {
			return utils.NotFoundResponse(c, fmt.Sprintf("No rule bound for class '%s'; record the number manually", req.TargetClass))
		}
		ruleID = binding.RuleID
	}

	track, err := services.AllocateAssetNumber(h.DB, ruleID, asOf, h.RetryLimit)
	if err != nil {
		h.Notify.Notify(false, fmt.Sprintf("allocation failed: %v", err))
		return utils.DomainErrorResponse(c, err, "allocate")
	}

	h.Notify.Notify(true, fmt.Sprintf("asset number %s allocated", track.GeneratedNumber))
	return utils.SuccessResponse(c, track, fiber.StatusCreated)
}

// RecordManual handles POST /api/assets/manual
// @Summary Record a manually supplied asset number
// @Description Audits an external number so later auto-generated numbers cannot collide with it
// @Tags Assets
// @Accept json
// @Produce json
// @Param request body manualNumberRequest true "Manual number"
// @Success 201 {object} models.AssetNumberTrack
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /assets/manual [post]
func (h *AssetNumberHandler) RecordManual(c *fiber.Ctx) error {
	var req manualNumberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "recordManual")
	}
	if req.Number == "" {
		return utils.ErrorResponse(c, "number is required", fiber.StatusBadRequest, "recordManual")
	}

	track, err := services.RecordManualNumber(h.DB, req.Number)
	if err != nil {
		h.Notify.Notify(false, fmt.Sprintf("manual number %q rejected: %v", req.Number, err))
		return utils.DomainErrorResponse(c, err, "recordManual")
	}

	h.Notify.Notify(true, fmt.Sprintf("manual asset number %s recorded", track.GeneratedNumber))
	return utils.SuccessResponse(c, track, fiber.StatusCreated)
}

// ListTracks handles GET /api/assets/tracks
// @Summary List allocation records
// @Tags Assets
// @Produce json
// @Success 200 {array} models.AssetNumberTrack
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /assets/tracks [get]
func (h *AssetNumberHandler) ListTracks(c *fiber.Ctx) error {
	tracks, err := services.ListTracks(h.DB)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listTracks")
	}
	return utils.SuccessResponse(c, tracks, fiber.StatusOK)
}
