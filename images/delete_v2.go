package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/greenbaum-institute/sdc-docker/blobstore"
	"github.com/greenbaum-institute/sdc-docker/record"
	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

// cascadeV2 performs the content-addressed deletion cascade: untag
// everything, collect the ancestry up to (excluding) the first head
// ancestor, reclaim the per-layer shared blobs leaf to root where no other
// record still needs them, then drop the metadata records unconditionally.
// Record deletion is independent of whether the blob bytes could be
// reclaimed.
func (op *deleteOp) cascadeV2(ctx context.Context) (bool, error) {
	e := op.e
	img := op.res.Image.(*record.V2Image)

	for _, tag := range op.tags {
		if err := e.deleteTagRecord(ctx, tag); err != nil {
			return false, err
		}
		op.changes = append(op.changes, DeleteChange{Untagged: tag.RepoTag()})
	}

	chain, partial, err := e.Ancestry(ctx, img)
	if err != nil {
		return false, err
	}
	if partial {
		op.changes = append(op.changes, DeleteChange{
			Warning: fmt.Sprintf("ancestry of %s is incomplete; some parent layers were not removed", img.ShortID()),
		})
	}

	// A head ancestor marks a reuse boundary: it and everything above it
	// stay.
	cascade := []*record.V2Image{img}
	for _, ancestor := range chain[1:] {
		a := ancestor.(*record.V2Image)
		if a.Head {
			break
		}
		cascade = append(cascade, a)
	}

	if err := op.reclaimV2Blobs(ctx, img, cascade); err != nil {
		return false, err
	}

	for _, a := range cascade {
		if err := e.store.Delete(ctx, record.V2Images, a.Key()); err != nil && !errors.Is(err, recordstore.ErrNoSuchRecord) {
			return false, fmt.Errorf("deleting image record %s: %w", a.ShortID(), err)
		}
		op.changes = append(op.changes, DeleteChange{Deleted: a.Digest.String()})
	}
	return true, nil
}

// reclaimV2Blobs walks the image's per-layer blob handles (derived root to
// leaf from the layer digests) and deletes them leaf to root.  Each step is
// guarded by the count of v2 records of any owner still pointing at the
// handle, minus this cascade's own contribution; a positive residual, or a
// dependent-blob response from the store, stops all further reclamation
// without failing the delete.
func (op *deleteOp) reclaimV2Blobs(ctx context.Context, img *record.V2Image, cascade []*record.V2Image) error {
	e := op.e
	blobChain := img.BlobChain()
	own := make(map[string]int, len(cascade))
	for _, a := range cascade {
		own[a.BackingBlobID]++
	}
	for i := len(blobChain) - 1; i >= 0; i-- {
		blobID := blobChain[i]
		total, err := e.countV2BlobRefs(ctx, blobID)
		if err != nil {
			return err
		}
		if total-own[blobID] > 0 {
			// Another image still shares this layer prefix; every
			// shallower prefix is shared too.
			e.log.Debugf("blob %s still referenced; stopping blob reclamation for this cascade", blobID)
			return nil
		}
		err = e.blobs.Delete(ctx, blobID)
		switch {
		case err == nil:
		case errors.Is(err, blobstore.ErrDependentBlob):
			e.log.Debugf("blob %s has dependents; stopping blob reclamation for this cascade", blobID)
			return nil
		case errors.Is(err, blobstore.ErrBlobNotFound):
			e.log.Debugf("blob %s already gone", blobID)
		default:
			return fmt.Errorf("deleting backing blob %s: %w", blobID, err)
		}
	}
	return nil
}

// countV2BlobRefs counts the v2 records of every owner pointing at blobID.
// Like countV1References this is deliberately cross-tenant: the blob store
// is shared datacenter-wide.
func (e *Engine) countV2BlobRefs(ctx context.Context, blobID string) (int, error) {
	var f recordstore.Filter
	f = f.Eq("image_uuid", blobID)
	recs, err := e.store.List(ctx, record.V2Images, f)
	if err != nil {
		return 0, fmt.Errorf("counting references to blob %s: %w", blobID, err)
	}
	return len(recs), nil
}
