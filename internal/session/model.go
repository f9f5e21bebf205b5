package session

import (
	"time"

	"github.com/prime30/synapse-sub013/internal/coordinator"
)

// Record is a finished execution persisted for a project.
type Record struct {
	ProjectPath string    `json:"project_path"`
	ProjectHash string    `json:"project_hash"` // Used for directory scoping
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	SavedAt     time.Time `json:"saved_at"`

	State coordinator.ExecutionState `json:"state"`
}

// Meta is a lightweight representation for listing.
type Meta struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Status    coordinator.Status `json:"status"`
	StartedAt time.Time          `json:"started_at"`
	SavedAt   time.Time          `json:"saved_at"`
	Summary   string             `json:"summary"`
}
