package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/duedatechanger/api/internal/middleware"
)

// Routes bundles the handlers and guards mounted by RegisterRoutes.
type Routes struct {
	LTI            *LTIHandler
	Course         *CourseHandler
	BulkEdit       *BulkEditHandler
	Health         *HealthHandler
	Session        *middleware.SessionMiddleware
	RateLimiter    *middleware.RateLimiter
	UpdatesPerHour int
}

func RegisterRoutes(app *fiber.App, r Routes) {
	app.Get("/", r.LTI.Index)
	app.Get("/lti.xml", r.LTI.ConfigXML)
	app.Get("/launch", r.LTI.Launch)
	app.Post("/launch", r.LTI.Launch)
	if r.Health != nil {
		app.Get("/status", r.Health.Status)
	}

	// Job keys are unguessable; the status endpoint is polled without a session.
	app.Get("/jobs/:jobKey/", r.BulkEdit.Status)

	app.Get("/course/:courseId/assignments", r.Session.Authenticate(), r.Course.Assignments)
	app.Post("/course/:courseId/update",
		r.Session.Authenticate(),
		r.RateLimiter.UpdateLimit(r.UpdatesPerHour),
		r.BulkEdit.Update,
	)
}
