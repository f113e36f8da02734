package orchestrator

import (
	"time"

	"github.com/gosight/gosight/analytics/internal/runledger"
)

// Request selects how a run's window is resolved.
type Request struct {
	IgnoreLastRun bool
	TestMode      bool
	// Date runs over that whole UTC calendar day.
	Date    *time.Time
	RunType string
}

// Window is the half-open event interval [Start, End) of a run.
type Window struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	TargetDate time.Time `json:"target_date"`
}

type Lookbacks struct {
	Default time.Duration
	Test    time.Duration
	Max     time.Duration
}

// ResolveWindow picks the run window. Without flags the run resumes from
// the end of last, the latest completed or partial run, never looking back
// further than Max.
func ResolveWindow(req Request, last *runledger.Run, now time.Time, lb Lookbacks) Window {
	now = now.UTC()

	var start, end time.Time
	switch {
	case req.Date != nil:
		d := req.Date.UTC()
		start = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: start.Add(24 * time.Hour), TargetDate: start}
	case req.IgnoreLastRun:
		start, end = now.Add(-lb.Default), now
	case req.TestMode:
		start, end = now.Add(-lb.Test), now
	case last != nil && last.EndTime.Before(now):
		start, end = last.EndTime.UTC(), now
		if lb.Max > 0 && end.Sub(start) > lb.Max {
			start = end.Add(-lb.Max)
		}
	default:
		start, end = now.Add(-lb.Default), now
	}

	return Window{Start: start, End: end, TargetDate: dateOf(end)}
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
