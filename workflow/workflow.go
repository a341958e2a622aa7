// Package workflow is the client side of the asynchronous job service that
// performs registry pulls on the engine's behalf, plus the progress plumbing
// and error classification that make job outcomes presentable as
// Docker-compatible pull output.
package workflow

import (
	"context"
	"fmt"
)

// PullJob is the parameter block submitted with a pull job.
type PullJob struct {
	// RepoAndTag is the canonical image name being pulled, e.g.
	// "docker.io/library/busybox:latest".
	RepoAndTag string `json:"rat"`
	// Owner is the requesting tenant's account UUID.
	Owner string `json:"account_uuid"`
	// RegistryAuthHeader carries the caller's X-Registry-Auth header
	// verbatim; the job forwards it to the registry.
	RegistryAuthHeader string `json:"regauth,omitempty"`
	// RegistryConfigHeader carries the caller's X-Registry-Config header
	// verbatim.
	RegistryConfigHeader string `json:"regconfig,omitempty"`
}

// JobError is a structured failure reported by the job service.  Code is
// empty when the job only produced freeform message text.
type JobError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *JobError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Client is the Workflow Service contract consumed by the engine.  The
// service exposes only submission and completion; there is no mid-flight
// cancellation.
type Client interface {
	// SubmitPullJob submits a pull and returns the job identifier.
	SubmitPullJob(ctx context.Context, job PullJob) (string, error)
	// AwaitJob blocks until the job completes.  A failed job returns a
	// *JobError; transport problems return other errors.
	AwaitJob(ctx context.Context, jobID string) error
}
