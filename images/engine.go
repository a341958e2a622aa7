// Package images is the image-management core of the control plane: it maps
// ambiguous user-supplied names onto exactly one image record across the two
// on-disk schemas, walks and repairs parent-chain ancestry, aggregates the
// catalog, and performs reference-counted deletion against the shared
// backing blob store.
package images

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/greenbaum-institute/sdc-docker/blobstore"
	"github.com/greenbaum-institute/sdc-docker/fleet"
	"github.com/greenbaum-institute/sdc-docker/recordstore"
	"github.com/greenbaum-institute/sdc-docker/workflow"
)

// Options configures an Engine.  Store, Blobs and Fleet are required;
// Workflow and Progress are only needed when pulls are served.
type Options struct {
	Store      recordstore.Store
	Blobs      blobstore.Store
	Fleet      fleet.Inventory
	Workflow   workflow.Client
	Progress   *workflow.ProgressRegistry
	AdminOwner string
	Logger     *logrus.Entry
}

// Engine is the image resolution, ancestry and deletion engine.  One Engine
// serves all tenants; every operation is scoped by an owner argument, except
// the cross-tenant blob refcount scans, which are deliberately unscoped and
// confined to countV1References / countV2BlobRefs.
type Engine struct {
	store      recordstore.Store
	blobs      blobstore.Store
	fleet      fleet.Inventory
	wf         workflow.Client
	progress   *workflow.ProgressRegistry
	adminOwner string
	log        *logrus.Entry

	scratch scratchCache
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("images: record store is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("images: blob store is required")
	}
	if opts.Fleet == nil {
		return nil, errors.New("images: fleet inventory is required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.WithField("component", "images")
	}
	return &Engine{
		store:      opts.Store,
		blobs:      opts.Blobs,
		fleet:      opts.Fleet,
		wf:         opts.Workflow,
		progress:   opts.Progress,
		adminOwner: opts.AdminOwner,
		log:        log,
	}, nil
}
