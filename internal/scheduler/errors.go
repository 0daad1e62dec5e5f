package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownReference = errors.New("unknown reference")
	ErrCyclicDependency = errors.New("cyclic dependency")
	ErrWindowOverrun    = errors.New("window overrun")
)

// ValidationError rejects a request before any scheduling work starts.
type ValidationError struct {
	Field   string   `json:"field"`
	Message string   `json:"message"`
	IDs     []string `json:"ids,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.IDs) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, strings.Join(e.IDs, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// DanglingReference is one precedence hint pointing at an ID not in the roster
type DanglingReference struct {
	PerformerID string `json:"performerId"`
	Field       string `json:"field"`
	RefID       string `json:"refId"`
}

// UnknownReferenceError lists every dangling precedence reference in input order.
type UnknownReferenceError struct {
	References []DanglingReference `json:"references"`
}

func (e *UnknownReferenceError) Error() string {
	parts := make([]string, 0, len(e.References))
	for _, r := range e.References {
		parts = append(parts, fmt.Sprintf("%s.%s -> %q", r.PerformerID, r.Field, r.RefID))
	}
	return "unknown performer reference: " + strings.Join(parts, "; ")
}

func (e *UnknownReferenceError) Unwrap() error { return ErrUnknownReference }

// IDs returns the unknown referenced IDs, deduplicated, in first-seen order.
func (e *UnknownReferenceError) IDs() []string {
	seen := make(map[string]bool, len(e.References))
	var ids []string
	for _, r := range e.References {
		if !seen[r.RefID] {
			seen[r.RefID] = true
			ids = append(ids, r.RefID)
		}
	}
	return ids
}

// CyclicDependencyError names the performers on one precedence cycle, in
// edge order: Cycle[i] must precede Cycle[i+1], and the last precedes the first.
type CyclicDependencyError struct {
	Cycle []string `json:"cycle"`
}

func (e *CyclicDependencyError) Error() string {
	path := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return "cyclic precedence: " + strings.Join(path, " -> ")
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// WindowOverrunError reports how far the schedule runs past its limit. It is
// returned alongside a best-effort result, never instead of one.
type WindowOverrunError struct {
	OverrunMinutes int       `json:"overrunMinutes"`
	Limit          time.Time `json:"limit"`
	LatestEnd      time.Time `json:"latestEnd"`
	PerformerIDs   []string  `json:"performerIds"`
	MilestoneNames []string  `json:"milestoneNames,omitempty"`
}

func (e *WindowOverrunError) Error() string {
	msg := fmt.Sprintf("schedule overruns %s by %d minutes (latest end %s; performers: %s",
		e.Limit.Format("15:04"), e.OverrunMinutes, e.LatestEnd.Format("15:04"), strings.Join(e.PerformerIDs, ", "))
	if len(e.MilestoneNames) > 0 {
		msg += "; milestones: " + strings.Join(e.MilestoneNames, ", ")
	}
	return msg + ")"
}

// RefIDs lists every performer and milestone past the limit.
func (e *WindowOverrunError) RefIDs() []string {
	return append(append([]string(nil), e.PerformerIDs...), e.MilestoneNames...)
}

func (e *WindowOverrunError) Unwrap() error { return ErrWindowOverrun }
