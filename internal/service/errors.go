package service

import (
	"errors"

	"github.com/vertigo/eventtimeline/internal/scheduler"
	"github.com/vertigo/eventtimeline/pkg/response"
)

// ErrorInfo is the API view of a planning error
type ErrorInfo struct {
	Code    string
	Message string
	Details interface{}
}

// DescribeError maps an engine error to its API code and details. ok is
// false for errors that did not come from the engine.
func DescribeError(err error) (ErrorInfo, bool) {
	var (
		verr    *scheduler.ValidationError
		unknown *scheduler.UnknownReferenceError
		cycle   *scheduler.CyclicDependencyError
		overrun *scheduler.WindowOverrunError
	)
	switch {
	case errors.As(err, &verr):
		return ErrorInfo{
			Code:    response.CodeValidationError,
			Message: verr.Error(),
			Details: map[string]interface{}{"field": verr.Field, "ids": verr.IDs},
		}, true
	case errors.As(err, &unknown):
		return ErrorInfo{
			Code:    response.CodeUnknownReference,
			Message: unknown.Error(),
			Details: map[string]interface{}{"ids": unknown.IDs(), "references": unknown.References},
		}, true
	case errors.As(err, &cycle):
		return ErrorInfo{
			Code:    response.CodeCyclicDependency,
			Message: cycle.Error(),
			Details: map[string]interface{}{"cycle": cycle.Cycle},
		}, true
	case errors.As(err, &overrun):
		return ErrorInfo{
			Code:    response.CodeWindowOverrun,
			Message: overrun.Error(),
			Details: map[string]interface{}{
				"minutes":        overrun.OverrunMinutes,
				"limit":          overrun.Limit,
				"latestEnd":      overrun.LatestEnd,
				"performerIds":   overrun.PerformerIDs,
				"milestoneNames": overrun.MilestoneNames,
			},
		}, true
	}
	return ErrorInfo{}, false
}
