package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ledger-backend/database"
	"ledger-backend/models"
)

const idempotencyHeader = "Idempotency-Key"

// Idempotency processes Idempotency-Key for mutating HTTP methods, per tenant.
// The first successful response is stored and replayed for identical retries;
// a failed request releases its key so the client may retry.
func Idempotency(db *gorm.DB, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyHeader))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Idempotency-Key too long"})
		}

		tenantID, _ := c.Locals(LocalTenantID).(string)
		userID, _ := c.Locals(LocalUserID).(string)
		if tenantID == "" || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}

		path := c.OriginalURL()
		reqHash := requestHash(method, path, c.Body(), tenantID, userID)

		// ---- Phase 1: claim the key, or replay what it already produced
		var (
			existing models.IdempotencyKey
			claimed  bool
		)
		err := db.Transaction(func(tx *gorm.DB) error {
			err := tx.Scopes(database.ForTenant(tenantID)).Where("key = ?", key).First(&existing).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			existing = models.IdempotencyKey{
				TenantID:    tenantID,
				Key:         key,
				RequestHash: reqHash,
				Method:      method,
				Path:        path,
				UserID:      userID,
			}
			if err := tx.Create(&existing).Error; err != nil {
				return err
			}
			claimed = true
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still in progress")
			}
			log.Error().Err(err).Msg("idempotency lookup failed")
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency lookup failed")
		}

		if existing.RequestHash != reqHash {
			return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		}
		if !claimed {
			if existing.ResponseStatus == 0 {
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still in progress")
			}
			c.Set("Idempotent-Replayed", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(existing.ResponseStatus).Send(existing.ResponseBody)
		}

		// ---- Run the handler once
		if err := c.Next(); err != nil {
			if derr := db.Where("tenant_id = ? AND key = ?", tenantID, key).Delete(&models.IdempotencyKey{}).Error; derr != nil {
				log.Warn().Err(derr).Str("key", key).Msg("failed to release idempotency key")
			}
			return err
		}

		// ---- Phase 2: store the response (best-effort)
		now := time.Now().UTC()
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		if err := db.Model(&models.IdempotencyKey{}).
			Where("tenant_id = ? AND key = ?", tenantID, key).
			Updates(map[string]any{
				"response_status": c.Response().StatusCode(),
				"response_body":   blob,
				"completed_at":    &now,
			}).Error; err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
		}
		return nil
	}
}

// requestHash is sha256 over method|path|body|tenant|user.
func requestHash(method, path string, body []byte, tenantID, userID string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	h.Write([]byte{'\n'})
	h.Write([]byte(tenantID))
	h.Write([]byte{'\n'})
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}
