package images

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/greenbaum-institute/sdc-docker/workflow"
)

// PullRequest carries the parameters of a pull.  The auth and config
// headers are the caller's X-Registry-Auth / X-Registry-Config values,
// forwarded to the pull job untouched.
type PullRequest struct {
	Name                 string
	Owner                string
	RegistryAuthHeader   string
	RegistryConfigHeader string
}

// PullImage submits a pull to the workflow service and relays its progress
// to sink until the job completes.  Because the pull response is a chunked
// stream whose headers are committed before the outcome is known, job
// failures are appended to the stream as structured error payloads and
// PullImage itself returns nil; only failures before the stream is engaged
// (an unparsable name, missing configuration) are returned as errors.
func (e *Engine) PullImage(ctx context.Context, req PullRequest, sink io.Writer) error {
	if e.wf == nil || e.progress == nil {
		return errors.New("images: pull is not configured")
	}
	p, err := parseName(req.Name)
	if err != nil {
		return err
	}
	if p.bareDigest {
		return &InvalidNameError{Name: req.Name, Err: errors.New("cannot pull a bare digest")}
	}
	canonical := p.canonical

	e.progress.Register(canonical, sink)
	defer e.progress.Unregister(canonical)
	e.progress.WriteStatus(canonical, fmt.Sprintf("Pulling repository %s", p.localName))

	jobID, err := e.wf.SubmitPullJob(ctx, workflow.PullJob{
		RepoAndTag:           canonical,
		Owner:                req.Owner,
		RegistryAuthHeader:   req.RegistryAuthHeader,
		RegistryConfigHeader: req.RegistryConfigHeader,
	})
	if err != nil {
		e.log.Warnf("pull job submission for %q failed: %v", canonical, err)
		e.progress.WriteError(canonical, workflow.PullErrorMessage(err, canonical))
		return nil
	}
	e.log.Debugf("pull of %q running as job %s", canonical, jobID)

	if err := e.wf.AwaitJob(ctx, jobID); err != nil {
		e.log.Warnf("pull job %s for %q failed: %v", jobID, canonical, err)
		e.progress.WriteError(canonical, workflow.PullErrorMessage(err, canonical))
		return nil
	}
	e.progress.WriteStatus(canonical, fmt.Sprintf("Status: Downloaded newer image for %s", canonical))
	return nil
}
