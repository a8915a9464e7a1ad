package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"ledger-backend/middlewares"
	"ledger-backend/models"
	"ledger-backend/services"
)

type programRequest struct {
	Name               string           `json:"name" validate:"required,max=128"`
	NameAr             *string          `json:"name_ar" validate:"omitempty,max=128"`
	Type               string           `json:"type" validate:"required,program_type"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount"`
	Currency           *string          `json:"currency" validate:"omitempty,len=3"`
	IsActive           *bool            `json:"is_active"`
	ValidFrom          *string          `json:"valid_from" validate:"omitempty,datetime=2006-01-02"`
	ValidTo            *string          `json:"valid_to" validate:"omitempty,datetime=2006-01-02"`
}

type programPatchRequest struct {
	Name               *string          `json:"name" validate:"omitempty,max=128"`
	NameAr             *string          `json:"name_ar" validate:"omitempty,max=128"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount"`
	Currency           *string          `json:"currency" validate:"omitempty,len=3"`
	IsActive           *bool            `json:"is_active"`
	ValidFrom          *string          `json:"valid_from" validate:"omitempty,datetime=2006-01-02"`
	ValidTo            *string          `json:"valid_to" validate:"omitempty,datetime=2006-01-02"`
}

// CreateDiscountProgram stores a program. New programs are active unless is_active is false.
func (h *Handler) CreateDiscountProgram(c *fiber.Ctx) error {
	var req programRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	from, err := optDate(req.ValidFrom, "valid_from")
	if err != nil {
		return err
	}
	to, err := optDate(req.ValidTo, "valid_to")
	if err != nil {
		return err
	}
	active := req.IsActive == nil || *req.IsActive
	p, err := h.ledger.Discounts.CreateProgram(c.UserContext(), actor(c), services.ProgramInput{
		Name:               req.Name,
		NameAr:             req.NameAr,
		Type:               models.DiscountProgramType(req.Type),
		DiscountPercentage: req.DiscountPercentage,
		MaxDiscountAmount:  req.MaxDiscountAmount,
		Currency:           req.Currency,
		IsActive:           active,
		ValidFrom:          from,
		ValidTo:            to,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// GetDiscountPrograms lists programs; ?active=true returns only active ones.
func (h *Handler) GetDiscountPrograms(c *fiber.Ctx) error {
	p := page(c)
	programs, total, err := h.ledger.Discounts.ListPrograms(c.UserContext(), actor(c), c.QueryBool("active"), p)
	if err != nil {
		return err
	}
	return c.JSON(list("discount_programs", programs, total, p))
}

// GetDiscountProgram returns one program.
func (h *Handler) GetDiscountProgram(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.ledger.Discounts.GetProgram(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// UpdateDiscountProgram patches a program.
func (h *Handler) UpdateDiscountProgram(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req programPatchRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	from, err := optDate(req.ValidFrom, "valid_from")
	if err != nil {
		return err
	}
	to, err := optDate(req.ValidTo, "valid_to")
	if err != nil {
		return err
	}
	p, err := h.ledger.Discounts.UpdateProgram(c.UserContext(), actor(c), id, services.ProgramPatch{
		Name:               req.Name,
		NameAr:             req.NameAr,
		DiscountPercentage: req.DiscountPercentage,
		MaxDiscountAmount:  req.MaxDiscountAmount,
		Currency:           req.Currency,
		IsActive:           req.IsActive,
		ValidFrom:          from,
		ValidTo:            to,
	})
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// DeleteDiscountProgram soft-deletes a program.
func (h *Handler) DeleteDiscountProgram(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.ledger.Discounts.DeleteProgram(c.UserContext(), actor(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}
