// rules.go
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

// RuleHandler handles numbering rule and binding routes
type RuleHandler struct {
	DB     *gorm.DB
	Notify *notification.Manager
}

type createRuleRequest struct {
	Name                string `json:"name"`
	Formula             string `json:"formula"`
	AutoIncrementLength int    `json:"auto_increment_length"`
}

type bindRuleRequest struct {
	TargetClass string           `json:"target_class"`
	RuleID      types.FlexUint64 `json:"rule_id"`
	IsAuto      bool             `json:"is_auto"`
}

// CreateRule handles POST /api/rules
// @Summary Create numbering rule
// @Description Create an asset number rule; the formula is validated before saving
// @Tags Rules
// @Accept json
// @Produce json
// @Param rule body createRuleRequest true "Rule definition"
// @Success 201 {object} models.AssetNumberRule
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Router /rules [post]
func (h *RuleHandler) CreateRule(c *fiber.Ctx) error {
	var req createRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "createRule")
	}

	rule, err := services.CreateRule(h.DB, req.Name, req.Formula, req.AutoIncrementLength)
	if err != nil {
		h.Notify.Notify(false, fmt.Sprintf("rule %q not created: %v", req.Name, err))
		return utils.DomainErrorResponse(c, err, "createRule")
	}

	h.Notify.Notify(true, fmt.Sprintf("rule %q created", rule.Name))
	return utils.SuccessResponse(c, rule, fiber.StatusCreated)
}

// ListRules handles GET /api/rules
// @Summary List numbering rules
// @Tags Rules
// @Produce json
// @Success 200 {array} models.AssetNumberRule
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /rules [get]
func (h *RuleHandler) ListRules(c *fiber.Ctx) error {
	rules, err := services.ListRules(h.DB)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listRules")
	}
	return utils.SuccessResponse(c, rules, fiber.StatusOK)
}

// BindRule handles POST /api/rules/bind
// @Summary Bind a rule to a target class
// @Description Upsert the single binding of a target class; is_auto applies the rule to every new entity of the class
// @Tags Rules
// @Accept json
// @Produce json
// @Param binding body bindRuleRequest true "Binding"
// @Success 200 {object} utils.MutationSuccessStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /rules/bind [post]
func (h *RuleHandler) BindRule(c *fiber.Ctx) error {
	var req bindRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "bindRule")
	}

	binding, err := services.SetAutoRule(h.DB, req.TargetClass, uint64(req.RuleID), req.IsAuto)
	if err != nil {
		h.Notify.Notify(false, fmt.Sprintf("binding for %q failed: %v", req.TargetClass, err))
		return utils.DomainErrorResponse(c, err, "bindRule")
	}

	h.Notify.Notify(true, fmt.Sprintf("rule %d bound to %s", binding.RuleID, binding.TargetClass))
	return utils.MutationSuccessResponse(c, "Rule bound", binding)
}

// UnbindRule handles DELETE /api/rules/bind/:class
// @Summary Remove the binding of a target class
// @Description Clears the class binding entirely; subsequent allocations for the class are manual
// @Tags Rules
// @Produce json
// @Param class path string true "Target class"
// @Success 200 {object} utils.MutationSuccessStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /rules/bind/{class} [delete]
func (h *RuleHandler) UnbindRule(c *fiber.Ctx) error {
	class := c.Params("class")

	if err := services.ResetAutoRule(h.DB, class); err != nil {
		h.Notify.Notify(false, fmt.Sprintf("unbinding %q failed: %v", class, err))
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "unbindRule")
	}

	h.Notify.Notify(true, fmt.Sprintf("rule binding cleared for %s", class))
	return utils.MutationSuccessResponse(c, "Binding cleared", nil)
}

// GetBinding handles GET /api/rules/bind/:class
// @Summary Get the binding of a target class
// @Tags Rules
// @Produce json
// @Param class path string true "Target class"
// @Success 200 {object} models.AssetNumberRuleBinding
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /rules/bind/{class} [get]
func (h *RuleHandler) GetBinding(c *fiber.Ctx) error {
	class := c.Params("class")

	binding, err := services.GetAutoRule(h.DB, class)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getBinding")
	}
	if binding == nil {
		return utils.NotFoundResponse(c, fmt.Sprintf("No rule bound for class '%s'", class))
	}

	return utils.SuccessResponse(c, binding, fiber.StatusOK)
}
