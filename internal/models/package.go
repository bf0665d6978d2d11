package models

import (
	"time"

	"github.com/google/uuid"
)

// Package is a client's deliverable allocation for the current cycle.
type Package struct {
	ID             uuid.UUID     `json:"id"`
	ClientID       uuid.UUID     `json:"client_id"`
	Name           string        `json:"name"`
	MaxRevisions   int           `json:"max_revisions"`
	CycleStartedAt time.Time     `json:"cycle_started_at"`
	Items          []PackageItem `json:"items"`
}

// PackageItem tracks usage of one deliverable type, e.g. "6 of 10 graphics".
type PackageItem struct {
	DeliverableType string `json:"deliverable_type"`
	Allocated       int    `json:"allocated"`
	Used            int    `json:"used"`
}

// Remaining returns how many deliverables of this type are still available.
func (i PackageItem) Remaining() int {
	if i.Used >= i.Allocated {
		return 0
	}
	return i.Allocated - i.Used
}
