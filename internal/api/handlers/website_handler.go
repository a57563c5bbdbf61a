package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/internal/middleware/validation"
	"github.com/llm-monitor/backend/internal/monitoring"
	"github.com/llm-monitor/backend/internal/scraper/web"
	"github.com/llm-monitor/backend/pkg/logger"
)

type WebsiteHandler struct {
	monitor *monitoring.Monitor
	store   Store
	links   LinkExtractor
}

func NewWebsiteHandler(monitor *monitoring.Monitor, store Store, links LinkExtractor) *WebsiteHandler {
	return &WebsiteHandler{
		monitor: monitor,
		store:   store,
		links:   links,
	}
}

func (h *WebsiteHandler) ListWebsites(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active_only", true)

	websites, err := h.store.ListWebsites(c.Context(), activeOnly)
	if err != nil {
		return writeError(c, err, "Failed to list websites")
	}

	return c.JSON(fiber.Map{
		"websites": websites,
		"count":    len(websites),
	})
}

func (h *WebsiteHandler) AddWebsite(c *fiber.Ctx) error {
	req, err := validation.WebsiteFrom(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	id, err := h.monitor.AddWebsite(c.Context(), req.URL, req.Name, req.Description)
	if err != nil {
		return writeError(c, err, "Failed to add website")
	}

	site, err := h.store.GetWebsite(c.Context(), id)
	if err != nil {
		return writeError(c, err, "Failed to load website")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Website added successfully",
		"website": site,
	})
}

func (h *WebsiteHandler) DeleteWebsite(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err, "")
	}

	if err := h.store.DeactivateWebsite(c.Context(), id); err != nil {
		return writeError(c, err, "Failed to remove website")
	}

	logger.Info("Website deactivated", zap.Int64("website_id", id))
	return c.JSON(fiber.Map{
		"message":    "Website removed from monitoring",
		"website_id": id,
	})
}

// GetContent returns the latest snapshot of a website with the key facts
// found in it.
func (h *WebsiteHandler) GetContent(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err, "")
	}

	site, err := h.store.GetWebsite(c.Context(), id)
	if err != nil {
		return writeError(c, err, "Failed to load website")
	}

	content, err := h.store.GetLatestContent(c.Context(), id)
	if err != nil {
		return writeError(c, err, "Failed to load website content")
	}

	return c.JSON(fiber.Map{
		"website":         site,
		"content":         content,
		"key_information": web.ExtractKeyInformation(content.Content),
	})
}

func (h *WebsiteHandler) GetLinks(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err, "")
	}

	site, err := h.store.GetWebsite(c.Context(), id)
	if err != nil {
		return writeError(c, err, "Failed to load website")
	}

	sameDomain := c.QueryBool("same_domain", true)
	links, err := h.links.ExtractLinks(c.Context(), site.URL, sameDomain)
	if err != nil {
		logger.Warn("Link extraction failed", zap.String("url", site.URL), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to extract links",
		})
	}

	return c.JSON(fiber.Map{
		"website_id": id,
		"url":        site.URL,
		"links":      links,
		"count":      len(links),
	})
}
