package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
)

// LocalsAPIKeyID holds a short fingerprint of the key that authenticated the request.
const LocalsAPIKeyID = "api_key_id"

// LoadAPIKeys reads the comma separated API_KEY setting.
func LoadAPIKeys() []string {
	var keys []string
	for _, k := range strings.Split(env.GetEnv("API_KEY", ""), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// APIKeyAuthMiddleware authenticates requests carrying one of keys in the
// X-API-Key header or as a bearer token. With no keys configured every request
// is rejected.
func APIKeyAuthMiddleware(keys []string) fiber.Handler {
	hashes := make([][32]byte, 0, len(keys))
	for _, k := range keys {
		hashes = append(hashes, sha256.Sum256([]byte(k)))
	}
	if len(hashes) == 0 {
		log.Warn("[Auth] API_KEY not set, all API requests will be rejected")
	}

	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		sum := sha256.Sum256([]byte(apiKey))
		matched := 0
		for _, h := range hashes {
			matched |= subtle.ConstantTimeCompare(sum[:], h[:])
		}
		if matched != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		c.Locals(LocalsAPIKeyID, keyID(sum))
		return c.Next()
	}
}

func keyID(sum [32]byte) string {
	return hex.EncodeToString(sum[:4])
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
