package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/greenbaum-institute/sdc-docker/blobstore"
	"github.com/greenbaum-institute/sdc-docker/record"
	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

// cascadeV1 performs the legacy deletion cascade: untag everything, then
// walk the ancestry newest to oldest, dropping this chain's membership from
// shared ancestors and destroying the rest.  Backing blobs are reclaimed
// only when no other (owner, registry host) pair in the datacenter still
// references the same docker_id.
func (op *deleteOp) cascadeV1(ctx context.Context) (bool, error) {
	e := op.e
	img := op.res.Image.(*record.V1Image)

	chain, partial, err := e.Ancestry(ctx, img)
	if err != nil {
		return false, err
	}
	if partial {
		// A broken chain limits the cascade but never aborts the
		// delete.
		op.changes = append(op.changes, DeleteChange{
			Warning: fmt.Sprintf("ancestry of %s is incomplete; some parent layers were not removed", img.ShortID()),
		})
	}

	// One scoped query for the datacenter-wide refcounts of every
	// ancestor; the decision per layer below must not re-query.
	dcRefs, err := e.countV1References(ctx, img, chain)
	if err != nil {
		return false, err
	}

	for _, tag := range op.tags {
		if err := e.deleteTagRecord(ctx, tag); err != nil {
			return false, err
		}
		op.changes = append(op.changes, DeleteChange{Untagged: tag.RepoTag()})
	}

	blobStopped := false
	for _, ancestor := range chain {
		a := ancestor.(*record.V1Image)
		if a.Refcount > 1 {
			// Shared with another head chain: drop this chain's
			// membership, keep the record.
			a.DropHead(img.DockerID)
			if a.DockerID == img.DockerID {
				a.Head = false
			}
			if err := e.store.Put(ctx, record.V1Images, a); err != nil {
				return false, fmt.Errorf("updating shared ancestor %s: %w", a.ShortID(), err)
			}
			continue
		}
		if err := e.store.Delete(ctx, record.V1Images, a.Key()); err != nil && !errors.Is(err, recordstore.ErrNoSuchRecord) {
			return false, fmt.Errorf("deleting image record %s: %w", a.ShortID(), err)
		}
		op.changes = append(op.changes, DeleteChange{Deleted: a.DockerID})
		if blobStopped || dcRefs[a.DockerID] > 0 {
			continue
		}
		err := e.blobs.Delete(ctx, a.BackingBlobID)
		switch {
		case err == nil:
		case errors.Is(err, blobstore.ErrDependentBlob):
			// The blob dependency chain guarantees every older
			// ancestor would hit the same condition; stop asking.
			e.log.Debugf("blob %s has dependents; stopping blob reclamation for this cascade", a.BackingBlobID)
			blobStopped = true
		case errors.Is(err, blobstore.ErrBlobNotFound):
			e.log.Debugf("blob %s already gone", a.BackingBlobID)
		default:
			return false, fmt.Errorf("deleting backing blob %s: %w", a.BackingBlobID, err)
		}
	}
	return true, nil
}

// countV1References counts, per ancestor docker_id, how many records of
// OTHER (owner, registry host) pairs reference the same content.  This is
// the one deliberately cross-tenant read in the engine: blob handles are
// shared datacenter-wide, so reclamation must see every tenant.
func (e *Engine) countV1References(ctx context.Context, target *record.V1Image, chain []record.Image) (map[string]int, error) {
	ids := make([]string, 0, len(chain))
	for _, ancestor := range chain {
		ids = append(ids, ancestor.ImageID())
	}
	var f recordstore.Filter
	f = f.In("docker_id", ids...)
	recs, err := e.store.List(ctx, record.V1Images, f)
	if err != nil {
		return nil, fmt.Errorf("counting datacenter references: %w", err)
	}
	refs := make(map[string]int, len(ids))
	for _, r := range recs {
		other := r.(*record.V1Image)
		if other.Owner == target.Owner && other.IndexName == target.IndexName {
			// This chain's own record, not a foreign reference.
			continue
		}
		refs[other.DockerID]++
	}
	return refs, nil
}
