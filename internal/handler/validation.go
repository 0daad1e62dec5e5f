package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vertigo/eventtimeline/internal/service"
	"github.com/vertigo/eventtimeline/pkg/response"
)

// formatValidationErrors maps each failing field to the rule it broke
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Namespace()] = e.Tag()
		}
		return errors
	}
	return nil
}

// engineError answers with the code of a planning error. Input errors are
// 400, requests that cannot be scheduled are 422.
func engineError(c *fiber.Ctx, err error) error {
	info, ok := service.DescribeError(err)
	if !ok {
		return response.ServiceError(c, err.Error())
	}
	if info.Code == response.CodeValidationError {
		return response.ValidationError(c, info.Message, info.Details)
	}
	return response.Unprocessable(c, info.Code, info.Message, info.Details)
}
