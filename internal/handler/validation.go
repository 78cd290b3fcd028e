package handler

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type courseParams struct {
	CourseID string `validate:"required,numeric"`
}

// formatValidationErrors formats validator errors for response
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

// formValues collects the request body fields, urlencoded or multipart.
func formValues(c *fiber.Ctx) (url.Values, error) {
	values := url.Values{}
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, err
		}
		for k, vs := range form.Value {
			values[k] = append(values[k], vs...)
		}
		return values, nil
	}
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values, nil
}
