// Package workflow holds the pure rules of the case lifecycle: the status
// graph and its guard, the payout state table, the SLA and eligibility
// clocks, and the ledger calculator. Nothing here performs I/O.
package workflow

import (
	"strings"

	"github.com/noah-isme/agency-case-api/internal/models"
)

// EdgeKind distinguishes the regular path from fast-track variants.
type EdgeKind int

const (
	// EdgeNone means the transition is not allowed.
	EdgeNone EdgeKind = iota
	// EdgeStandard is a regular progression step.
	EdgeStandard
	// EdgeFastTrack skips intermediate steps; it needs an admin and a reason
	// and is audited as an override.
	EdgeFastTrack
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeStandard:
		return "standard"
	case EdgeFastTrack:
		return "fast_track"
	}
	return "none"
}

// Edge is one allowed transition out of a status.
type Edge struct {
	Target models.CaseStatus
	Kind   EdgeKind
}

var standardEdges = map[models.CaseStatus][]models.CaseStatus{
	models.CaseStatusNew:                  {models.CaseStatusEligible, models.CaseStatusNotEligible},
	models.CaseStatusEligible:             {models.CaseStatusAssigned, models.CaseStatusNotEligible},
	models.CaseStatusAssigned:             {models.CaseStatusContacted},
	models.CaseStatusContacted:            {models.CaseStatusAppointmentScheduled},
	models.CaseStatusAppointmentScheduled: {models.CaseStatusAppointmentWaiting, models.CaseStatusAppointmentCompleted},
	models.CaseStatusAppointmentWaiting:   {models.CaseStatusAppointmentCompleted},
	models.CaseStatusAppointmentCompleted: {models.CaseStatusProfileFilled},
	models.CaseStatusProfileFilled:        {models.CaseStatusServicesFilled},
	models.CaseStatusServicesFilled:       {models.CaseStatusReadyToApply},
	models.CaseStatusReadyToApply:         {models.CaseStatusPaid},
	models.CaseStatusPaid:                 {models.CaseStatusVisaStage},
	models.CaseStatusVisaStage:            {models.CaseStatusCompleted},
	models.CaseStatusCompleted:            nil,
	models.CaseStatusNotEligible:          nil,
}

// fastTrackEdges are the only sanctioned skips. Each one is a product
// decision; add entries here rather than forcing statuses at call sites.
var fastTrackEdges = map[models.CaseStatus][]models.CaseStatus{
	models.CaseStatusContacted:      {models.CaseStatusProfileFilled},
	models.CaseStatusProfileFilled:  {models.CaseStatusReadyToApply, models.CaseStatusPaid},
	models.CaseStatusServicesFilled: {models.CaseStatusPaid},
}

var legacyAliases = map[string]models.CaseStatus{
	"lead":        models.CaseStatusNew,
	"in_progress": models.CaseStatusContacted,
	"appointment": models.CaseStatusAppointmentScheduled,
	"services":    models.CaseStatusServicesFilled,
	"done":        models.CaseStatusCompleted,
	"closed":      models.CaseStatusCompleted,
	"rejected":    models.CaseStatusNotEligible,
	"visa":        models.CaseStatusVisaStage,
	"ready":       models.CaseStatusReadyToApply,
}

// Statuses returns the vocabulary in nominal progress order.
func Statuses() []models.CaseStatus {
	return []models.CaseStatus{
		models.CaseStatusNew,
		models.CaseStatusEligible,
		models.CaseStatusAssigned,
		models.CaseStatusContacted,
		models.CaseStatusAppointmentScheduled,
		models.CaseStatusAppointmentWaiting,
		models.CaseStatusAppointmentCompleted,
		models.CaseStatusProfileFilled,
		models.CaseStatusServicesFilled,
		models.CaseStatusReadyToApply,
		models.CaseStatusPaid,
		models.CaseStatusVisaStage,
		models.CaseStatusCompleted,
		models.CaseStatusNotEligible,
	}
}

// IsKnown reports whether s belongs to the vocabulary.
func IsKnown(s models.CaseStatus) bool {
	_, ok := standardEdges[s]
	return ok
}

// IsTerminal reports whether no edge leaves s.
func IsTerminal(s models.CaseStatus) bool {
	return IsKnown(s) && len(standardEdges[s]) == 0 && len(fastTrackEdges[s]) == 0
}

// Classify returns the kind of edge from current to target.
func Classify(current, target models.CaseStatus) EdgeKind {
	for _, s := range standardEdges[current] {
		if s == target {
			return EdgeStandard
		}
	}
	for _, s := range fastTrackEdges[current] {
		if s == target {
			return EdgeFastTrack
		}
	}
	return EdgeNone
}

// CanTransition reports whether target is adjacent to current through any edge.
func CanTransition(current, target models.CaseStatus) bool {
	return Classify(current, target) != EdgeNone
}

// NextSteps returns the standard targets of current, primary suggestion first.
func NextSteps(current models.CaseStatus) []models.CaseStatus {
	steps := standardEdges[current]
	out := make([]models.CaseStatus, len(steps))
	copy(out, steps)
	return out
}

// Edges returns every edge leaving current, standard ones first.
func Edges(current models.CaseStatus) []Edge {
	edges := make([]Edge, 0, len(standardEdges[current])+len(fastTrackEdges[current]))
	for _, s := range standardEdges[current] {
		edges = append(edges, Edge{Target: s, Kind: EdgeStandard})
	}
	for _, s := range fastTrackEdges[current] {
		edges = append(edges, Edge{Target: s, Kind: EdgeFastTrack})
	}
	return edges
}

// ResolveStatus maps stored or legacy values onto the vocabulary. Unknown
// values resolve to new.
func ResolveStatus(raw string) models.CaseStatus {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if s := models.CaseStatus(normalized); IsKnown(s) {
		return s
	}
	if s, ok := legacyAliases[normalized]; ok {
		return s
	}
	return models.CaseStatusNew
}

// ParseStatus is the strict counterpart of ResolveStatus used for caller input.
func ParseStatus(raw string) (models.CaseStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	s := models.CaseStatus(normalized)
	return s, IsKnown(s)
}
