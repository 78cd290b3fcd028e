package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/service"
	"github.com/duedatechanger/api/pkg/response"
)

type CourseHandler struct {
	service   *service.CourseService
	validator *validator.Validate
	log       zerolog.Logger
}

func NewCourseHandler(svc *service.CourseService, v *validator.Validate) *CourseHandler {
	return &CourseHandler{
		service:   svc,
		validator: v,
		log:       logger.Get().With().Str("component", "course_handler").Logger(),
	}
}

// Assignments handles GET /course/:courseId/assignments
func (h *CourseHandler) Assignments(c *fiber.Ctx) error {
	params := courseParams{CourseID: c.Params("courseId")}
	if err := h.validator.Struct(&params); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Assignments(c.UserContext(), params.CourseID)
	if err != nil {
		h.log.Error().Err(err).Str("course_id", params.CourseID).Msg("Error getting course, assignments or quizzes from Canvas")
		return response.RemoteError(c, "Error getting course, assignments or quizzes from Canvas.")
	}

	return response.OK(c, result)
}
