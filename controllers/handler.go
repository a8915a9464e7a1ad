// Package controllers adapts HTTP requests to the ledger services.
package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"

	"ledger-backend/middlewares"
	"ledger-backend/services"
	"ledger-backend/utils"
)

// Renderer turns an invoice document into a PDF.
type Renderer interface {
	Enabled() bool
	Render(doc *services.InvoiceDocument) ([]byte, error)
}

// Handler holds the dependencies of every route.
type Handler struct {
	ledger   *services.Ledger
	renderer Renderer
}

// New returns a Handler. renderer may be nil; the PDF route then returns the document as JSON.
func New(ledger *services.Ledger, renderer Renderer) *Handler {
	return &Handler{ledger: ledger, renderer: renderer}
}

// actor builds the caller identity from the auth locals.
func actor(c *fiber.Ctx) services.Actor {
	tenantID, _ := c.Locals(middlewares.LocalTenantID).(string)
	userID, _ := c.Locals(middlewares.LocalUserID).(string)
	name, _ := c.Locals(middlewares.LocalUserName).(string)
	return services.Actor{TenantID: tenantID, UserID: userID, Name: name}
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func page(c *fiber.Ctx) services.Page {
	limit, offset := utils.Pagination(c.Query("limit"), c.Query("offset"))
	return services.Page{Limit: limit, Offset: offset}
}

// optDate parses an optional YYYY-MM-DD value.
func optDate(value *string, field string) (*datatypes.Date, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	d, err := utils.ParseDate(*value)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, field+": "+err.Error())
	}
	return &d, nil
}

func queryDate(c *fiber.Ctx, key string) (*datatypes.Date, error) {
	v := c.Query(key)
	return optDate(&v, key)
}

func queryUint(c *fiber.Ctx, key string) (*uint, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	u := uint(n)
	return &u, nil
}

func list(key string, items any, total int64, p services.Page) fiber.Map {
	return fiber.Map{
		key:       items,
		"total":   total,
		"limit":   p.Limit,
		"offset":  p.Offset,
		"message": "success",
	}
}
