// Package fleet is the client side of the compute-fleet inventory service.
// The engine consults it for one thing only: which workloads reference a
// backing blob, so deletion can refuse to pull an image out from under a
// live workload.
package fleet

import (
	"context"
)

// Workload states as reported by the inventory service.
const (
	StateRunning = "running"
	StateStopped = "stopped"
)

// Workload is one provisioned instance.
type Workload struct {
	ID    string `json:"uuid"`
	Alias string `json:"alias,omitempty"`
	State string `json:"state"`
}

// Running reports whether the workload is currently executing.
func (w *Workload) Running() bool {
	return w.State == StateRunning
}

// ListParams scopes a workload query.  BlobID is required; Owner restricts
// the query to one tenant; States restricts by lifecycle state (empty means
// any non-destroyed state).
type ListParams struct {
	BlobID string
	Owner  string
	States []string
}

// Inventory is the Fleet Inventory Service contract consumed by the engine.
type Inventory interface {
	// ListWorkloads returns the workloads matching params.
	ListWorkloads(ctx context.Context, params ListParams) ([]*Workload, error)
}
