package handlers

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	config "github.com/adcraft/postpilot/configs"
	job "github.com/adcraft/postpilot/internal/jobs"
)

// ScanHandler exposes the periodic scan as an HTTP entry point for
// cron-style hosting environments. The shared secret keeps it from
// being publicly triggerable.
type ScanHandler struct {
	scan *job.ScanJob
	cfg  config.Config
}

func NewScanHandler(scan *job.ScanJob, cfg config.Config) *ScanHandler {
	return &ScanHandler{scan: scan, cfg: cfg}
}

func (h *ScanHandler) RunScan(c *fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if h.cfg.ScanSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.ScanSecret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid scan credential",
		})
	}

	if err := h.scan.Scan(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Scan failed",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
