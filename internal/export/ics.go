// Package export renders planning results into calendar formats.
package export

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/vertigo/eventtimeline/internal/scheduler"
)

const defaultProductID = "-//vertigo//eventtimeline//EN"

// ICSOptions controls what goes into the calendar
type ICSOptions struct {
	// ProductID is written to PRODID. Empty uses the package default.
	ProductID string
	// Domain is the right-hand side of every UID.
	Domain string
	// IncludeCrew also exports setup, breakdown and break entries.
	IncludeCrew bool
	// IncludeCallTimes adds one event per performer at their call time.
	IncludeCallTimes bool
	// Stamp is written to DTSTAMP. Zero uses the first entry start so the
	// output stays stable for identical results.
	Stamp time.Time
}

// ICS renders the schedule of res as an iCalendar document.
func ICS(res *scheduler.Result, opts ICSOptions) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	productID := opts.ProductID
	if productID == "" {
		productID = defaultProductID
	}
	cal.SetProductId(productID)

	domain := opts.Domain
	if domain == "" {
		domain = "eventtimeline.local"
	}
	stamp := opts.Stamp
	if stamp.IsZero() && len(res.Schedule) > 0 {
		stamp = res.Schedule[0].Start
	}

	for _, e := range res.Schedule {
		if !e.GuestFacing && !opts.IncludeCrew {
			continue
		}
		ev := cal.AddEvent(uid(string(e.Kind), e.RefID, e.Start, domain))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(e.Start.UTC())
		ev.SetEndAt(e.End.UTC())
		ev.SetSummary(summary(e))
		ev.SetDescription(fmt.Sprintf("%s %s, %d minutes", e.Kind, e.RefID, e.Minutes()))
	}

	if opts.IncludeCallTimes {
		for _, row := range res.CallSheet {
			ev := cal.AddEvent(uid("call", row.PerformerID, row.CallTime, domain))
			ev.SetDtStampTime(stamp.UTC())
			ev.SetStartAt(row.CallTime.UTC())
			ev.SetEndAt(row.SetupStart.UTC())
			ev.SetSummary("Call: " + row.PerformerID)
			ev.SetDescription(fmt.Sprintf("setup %s, on stage %s-%s, load-out %s",
				row.SetupStart.Format("15:04"), row.PerformStart.Format("15:04"),
				row.PerformEnd.Format("15:04"), row.LoadOut.Format("15:04")))
		}
	}

	return cal.Serialize()
}

func uid(kind, ref string, at time.Time, domain string) string {
	return fmt.Sprintf("%s-%s-%s@%s", kind, ref, at.UTC().Format("20060102T1504"), domain)
}

func summary(e scheduler.ScheduleEntry) string {
	switch e.Kind {
	case scheduler.KindPerformance:
		return e.RefID
	case scheduler.KindMilestone:
		return strings.ReplaceAll(e.RefID, "-", " ")
	default:
		return fmt.Sprintf("%s (%s)", e.RefID, e.Kind)
	}
}
