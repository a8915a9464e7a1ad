// Package renderer posts invoice documents to the external PDF rendering service.
package renderer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"ledger-backend/apperrors"
	"ledger-backend/services"
)

// ErrNotConfigured is returned when no renderer URL is set.
var ErrNotConfigured = errors.New("pdf renderer not configured")

// Client renders invoice documents over HTTP.
type Client struct {
	url     string
	timeout time.Duration
	log     zerolog.Logger
}

// New returns a Client for the renderer at url. An empty url yields a client
// whose Render always fails with ErrNotConfigured.
func New(url string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:     strings.TrimSpace(url),
		timeout: timeout,
		log:     log.With().Str("component", "renderer").Logger(),
	}
}

// Enabled reports whether a renderer URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Render posts doc as JSON and returns the PDF bytes.
func (c *Client) Render(doc *services.InvoiceDocument) ([]byte, error) {
	const op = "renderer.render"
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	code, body, errs := fiber.Post(c.url).
		JSON(doc).
		Set(fiber.HeaderAccept, "application/pdf").
		Timeout(c.timeout).
		Bytes()
	if len(errs) > 0 {
		c.log.Warn().Err(errs[0]).Str("invoice", doc.Number).Msg("renderer request failed")
		return nil, apperrors.Transient(op, errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		c.log.Warn().Int("status", code).Str("invoice", doc.Number).Msg("renderer rejected document")
		return nil, apperrors.Transient(op, fmt.Errorf("renderer responded with status %d", code))
	}
	c.log.Debug().Str("invoice", doc.Number).Dur("took", time.Since(start)).Int("bytes", len(body)).Msg("invoice rendered")
	return body, nil
}
