// Package scheduler builds conflict-free event timelines.
//
// A planning run flows strictly downstream:
//
//	roster -> Build (precedence graph) -> Order (running order)
//	       -> Allocate (timeline) -> Resolve (milestone conflicts)
//	       -> Compose (call sheet, summary, contingencies)
//
// Every stage takes plain values and returns new ones. Nothing is cached
// between runs, so concurrent calls need no locking and identical requests
// produce identical results.
package scheduler

import (
	"errors"
	"fmt"
)

// Stage names a step of a planning run
type Stage string

const (
	StageValidate Stage = "validate"
	StageGraph    Stage = "graph"
	StageOrder    Stage = "order"
	StageAllocate Stage = "allocate"
	StageResolve  Stage = "resolve"
	StageCompose  Stage = "compose"
)

// Stages lists the planning stages in execution order.
var Stages = []Stage{StageValidate, StageGraph, StageOrder, StageAllocate, StageResolve, StageCompose}

// Plan runs the whole pipeline. Input, reference and cycle errors return a
// nil result. A window overrun returns the best-effort result together with
// a *WindowOverrunError.
func Plan(req Request, opts Options) (*Result, error) {
	return PlanWithProgress(req, opts, nil)
}

// PlanWithProgress is Plan with a callback invoked before each stage.
func PlanWithProgress(req Request, opts Options, progress func(Stage)) (*Result, error) {
	notify := func(s Stage) {
		if progress != nil {
			progress(s)
		}
	}

	req = Normalize(req)
	notify(StageValidate)
	if err := Validate(req); err != nil {
		return nil, err
	}

	notify(StageGraph)
	g, err := Build(req.Performers)
	if err != nil {
		return nil, err
	}

	notify(StageOrder)
	ordered := Order(g, req.Performers, opts)

	notify(StageAllocate)
	alloc, _, err := Allocate(ordered, req, opts)
	var overrun *WindowOverrunError
	if err != nil && !errors.As(err, &overrun) {
		return nil, err
	}

	notify(StageResolve)
	resolved, warnings := Resolve(alloc)

	notify(StageCompose)
	res := Compose(resolved, req, opts)
	warnings = append(warnings, resolved.pastWindow()...)

	overrun = resolved.Overrun()
	if overrun != nil {
		warnings = append(warnings, Warning{
			Code:    WarnWindowOverrun,
			Message: fmt.Sprintf("schedule ends %d minutes past %s", overrun.OverrunMinutes, overrun.Limit.Format("15:04")),
			RefIDs:  overrun.RefIDs(),
			Minutes: overrun.OverrunMinutes,
		})
	}
	if warnings != nil {
		res.Warnings = warnings
	}

	if overrun != nil {
		return &res, overrun
	}
	return &res, nil
}
