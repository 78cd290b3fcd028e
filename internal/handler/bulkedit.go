package handler

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/duedatechanger/api/internal/model"
	"github.com/duedatechanger/api/internal/service"
	"github.com/duedatechanger/api/pkg/response"
)

type BulkEditHandler struct {
	service   *service.BulkEditService
	validator *validator.Validate
}

func NewBulkEditHandler(svc *service.BulkEditService, v *validator.Validate) *BulkEditHandler {
	return &BulkEditHandler{
		service:   svc,
		validator: v,
	}
}

// Update handles POST /course/:courseId/update
func (h *BulkEditHandler) Update(c *fiber.Ctx) error {
	params := courseParams{CourseID: c.Params("courseId")}
	if err := h.validator.Struct(&params); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	form, err := formValues(c)
	if err != nil {
		return response.ValidationError(c, "Invalid form body", nil)
	}

	jobID, err := h.service.Enqueue(c.UserContext(), params.CourseID, form)
	if err != nil {
		return response.ServiceError(c, "Unable to queue the update. Please try again.")
	}

	return response.Accepted(c, model.EnqueueResponse{JobURL: jobURL(jobID)})
}

// Status handles GET /jobs/:jobKey/
func (h *BulkEditHandler) Status(c *fiber.Ctx) error {
	jobKey := c.Params("jobKey")

	status, err := h.service.GetStatus(c.UserContext(), jobKey)
	if err != nil {
		if service.IsNotFound(err) {
			return response.JobError(c, fiber.StatusNotFound, fmt.Sprintf("%s is not a valid job key.", jobKey))
		}
		return response.ServiceError(c, "Unable to read job status.")
	}

	switch status.Outcome {
	case service.StatusFinished:
		return response.OK(c, status.Meta)
	case service.StatusFailed:
		return response.JobError(c, fiber.StatusInternalServerError, fmt.Sprintf("Job %s failed to complete.", jobKey))
	default:
		return response.Accepted(c, status.Meta)
	}
}

func jobURL(jobID string) string {
	return "/jobs/" + jobID + "/"
}
