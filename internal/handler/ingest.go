package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/internal/service"
	"github.com/chunkstream/api/pkg/response"
)

type IngestHandler struct {
	service   *service.IngestService
	validator *validator.Validate
	tempDir   string
}

func NewIngestHandler(svc *service.IngestService, v *validator.Validate, tempDir string) *IngestHandler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &IngestHandler{
		service:   svc,
		validator: v,
		tempDir:   tempDir,
	}
}

// Upload handles POST /api/ingest/upload (multipart)
func (h *IngestHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Missing file field", nil)
	}

	opts := model.IngestUploadOptions{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Qualities:   splitQualities(c.FormValue("qualities")),
	}
	if err := h.validator.Struct(&opts); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	// Job-private temp input; removed by the worker on every exit path.
	inputPath := filepath.Join(h.tempDir, fmt.Sprintf("upload-%s%s", uuid.New().String(), filepath.Ext(file.Filename)))
	if err := c.SaveFile(file, inputPath); err != nil {
		return response.ServiceError(c, "Failed to store upload")
	}

	result, err := h.service.Start(c.Context(), service.StartInput{
		InputPath:   inputPath,
		Title:       opts.Title,
		Description: opts.Description,
		Qualities:   opts.Qualities,
	})
	if err != nil {
		os.Remove(inputPath)
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// FromURL handles POST /api/ingest/url
func (h *IngestHandler) FromURL(c *fiber.Ctx) error {
	var req model.IngestURLRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Start(c.Context(), service.StartInput{
		SourceURL:   req.URL,
		Title:       req.Title,
		Description: req.Description,
		Qualities:   req.Qualities,
	})
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

func splitQualities(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	qualities := make([]string, 0, len(parts))
	for _, p := range parts {
		if q := strings.TrimSpace(p); q != "" {
			qualities = append(qualities, q)
		}
	}
	return qualities
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
