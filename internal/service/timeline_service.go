package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vertigo/eventtimeline/internal/export"
	"github.com/vertigo/eventtimeline/internal/model"
	"github.com/vertigo/eventtimeline/internal/scheduler"
)

// TimelineService runs the scheduling engine with the configured defaults
type TimelineService struct {
	defaults scheduler.Options
	logger   *slog.Logger
}

func NewTimelineService(defaults scheduler.Options, logger *slog.Logger) *TimelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimelineService{defaults: defaults, logger: logger}
}

// Options returns the engine options for req: configured defaults with the
// request overrides applied.
func (s *TimelineService) Options(req *model.PlanRequest) scheduler.Options {
	return req.Options.Apply(s.defaults)
}

// Plan runs the engine synchronously. A window overrun yields the
// best-effort plan with Overrun set, or the *scheduler.WindowOverrunError
// together with that plan when the request rejects overruns.
func (s *TimelineService) Plan(ctx context.Context, req *model.PlanRequest) (*model.PlanResponse, error) {
	return s.PlanWithProgress(ctx, req, nil)
}

// PlanWithProgress is Plan with a callback before each engine stage.
func (s *TimelineService) PlanWithProgress(ctx context.Context, req *model.PlanRequest, progress func(scheduler.Stage)) (*model.PlanResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := scheduler.PlanWithProgress(req.ToRequest(), s.Options(req), progress)
	var overrun *scheduler.WindowOverrunError
	if err != nil && !errors.As(err, &overrun) {
		s.logger.Info("Plan rejected", "performers", len(req.Performers), "error", err)
		return nil, err
	}

	resp := &model.PlanResponse{Result: res, Overrun: model.NewOverrun(overrun)}
	s.logger.Debug("Plan composed",
		"performers", len(req.Performers),
		"entries", len(res.Schedule),
		"warnings", len(res.Warnings),
		"runtime_minutes", res.Summary.TotalRuntimeMinutes)

	if overrun != nil {
		s.logger.Warn("Plan overruns its limit", "minutes", overrun.OverrunMinutes, "performers", overrun.PerformerIDs, "milestones", overrun.MilestoneNames)
		if req.RejectOnOverrun {
			return resp, overrun
		}
	}
	return resp, nil
}

// ExportICS plans req and renders the result as an iCalendar document.
func (s *TimelineService) ExportICS(ctx context.Context, req *model.PlanRequest, opts export.ICSOptions) ([]byte, error) {
	resp, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return []byte(export.ICS(resp.Result, opts)), nil
}
