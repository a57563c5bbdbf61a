package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/llm-monitor/backend/internal/middleware/validation"
	"github.com/llm-monitor/backend/internal/storage/models"
)

type QuestionHandler struct {
	store Store
}

func NewQuestionHandler(store Store) *QuestionHandler {
	return &QuestionHandler{store: store}
}

func (h *QuestionHandler) AddQuestion(c *fiber.Ctx) error {
	req, err := validation.QuestionFrom(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Category == "" {
		req.Category = models.CategoryManual
	}

	if _, err := h.store.GetWebsite(c.Context(), req.WebsiteID); err != nil {
		return writeError(c, err, "Failed to load website")
	}

	id, err := h.store.InsertQuestion(c.Context(), req.WebsiteID, req.QuestionText, req.Category)
	if err != nil {
		return writeError(c, err, "Failed to add question")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Question added successfully",
		"question_id": id,
	})
}

func (h *QuestionHandler) ListQuestions(c *fiber.Ctx) error {
	id, err := paramID(c, "website_id")
	if err != nil {
		return writeError(c, err, "")
	}

	questions, err := h.store.ListQuestions(c.Context(), id)
	if err != nil {
		return writeError(c, err, "Failed to list questions")
	}

	return c.JSON(fiber.Map{
		"website_id": id,
		"questions":  questions,
		"count":      len(questions),
	})
}
