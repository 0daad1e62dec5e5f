package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vertigo/eventtimeline/internal/export"
	"github.com/vertigo/eventtimeline/internal/model"
	"github.com/vertigo/eventtimeline/internal/service"
	"github.com/vertigo/eventtimeline/pkg/response"
)

type TimelineHandler struct {
	service   *service.TimelineService
	validator *validator.Validate
	ics       export.ICSOptions
}

func NewTimelineHandler(svc *service.TimelineService, v *validator.Validate, ics export.ICSOptions) *TimelineHandler {
	return &TimelineHandler{
		service:   svc,
		validator: v,
		ics:       ics,
	}
}

func (h *TimelineHandler) parse(c *fiber.Ctx) (*model.PlanRequest, error) {
	var req model.PlanRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return nil, response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return &req, nil
}

// Plan handles POST /api/timeline/plan
func (h *TimelineHandler) Plan(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if req == nil {
		return err
	}

	result, err := h.service.Plan(c.UserContext(), req)
	if err != nil {
		return engineError(c, err)
	}

	return response.OK(c, result)
}

// ExportICS handles POST /api/timeline/export/ics
func (h *TimelineHandler) ExportICS(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if req == nil {
		return err
	}

	opts := h.ics
	opts.IncludeCrew = c.QueryBool("crew", false)
	opts.IncludeCallTimes = c.QueryBool("callTimes", false)

	data, err := h.service.ExportICS(c.UserContext(), req, opts)
	if err != nil {
		return engineError(c, err)
	}

	return response.Calendar(c, "timeline.ics", data)
}
