package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/chunkstream/api/internal/registry"
	"github.com/chunkstream/api/internal/service"
	"github.com/chunkstream/api/pkg/response"
)

type JobHandler struct {
	service *service.IngestService
}

func NewJobHandler(svc *service.IngestService) *JobHandler {
	return &JobHandler{service: svc}
}

// List handles GET /api/jobs?limit=N
func (h *JobHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		return response.ValidationError(c, "limit must be in 1..100", nil)
	}

	jobs, err := h.service.ListJobs(c.Context(), limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"jobs": jobs})
}

// Get handles GET /api/jobs/:jobId
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, job)
}

// Delete handles DELETE /api/jobs/:jobId
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	err := h.service.DeleteJob(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.NoContent(c)
}
