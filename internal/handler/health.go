package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/duedatechanger/api/internal/service"
	"github.com/duedatechanger/api/pkg/response"
)

type HealthHandler struct {
	service *service.HealthService
	baseURL string
}

func NewHealthHandler(svc *service.HealthService, baseURL string) *HealthHandler {
	return &HealthHandler{service: svc, baseURL: baseURL}
}

// Status handles GET /status
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	base := h.baseURL
	if base == "" {
		base = c.BaseURL()
	}

	report := h.service.Check(c.UserContext())
	report.URL = base + "/"
	report.XMLURL = base + "/lti.xml"

	return response.OK(c, report)
}
