package images

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/greenbaum-institute/sdc-docker/fleet"
	"github.com/greenbaum-institute/sdc-docker/record"
)

// DeleteChange is one entry of the ordered deletion changelog.  Exactly one
// field is set per entry.  Entries appear in operation order: untags before
// deletes, children before parents.
type DeleteChange struct {
	Untagged string `json:"Untagged,omitempty"`
	Deleted  string `json:"Deleted,omitempty"`
	Warning  string `json:"Warning,omitempty"`
}

// deleteOp is the mutable context a deletion pipeline runs over.
type deleteOp struct {
	e       *Engine
	owner   string
	force   bool
	res     *Resolution
	tags    []record.Tag
	changes []DeleteChange
}

// deleteStep is one named stage of a deletion pipeline.  done=true ends the
// pipeline without error (e.g. an untag-only request); an error aborts it.
type deleteStep struct {
	name string
	run  func(ctx context.Context) (done bool, err error)
}

// DeleteImage deletes or untags the named image for owner.  The returned
// changelog lists every untag and record deletion in the order performed;
// callers may rely on untags preceding deletes and children preceding
// parents.
func (e *Engine) DeleteImage(ctx context.Context, name, owner string, force bool) ([]DeleteChange, error) {
	res, err := e.Resolve(ctx, name, owner, ResolveOptions{})
	if err != nil {
		return nil, err
	}
	op := &deleteOp{e: e, owner: owner, force: force, res: res}

	var steps []deleteStep
	switch res.Image.Schema() {
	case record.SchemaV1:
		steps = []deleteStep{
			{"load-tags", op.loadTags},
			{"check-head", op.checkHeadV1},
			{"untag-only", op.checkUntagOnly},
			{"live-use", op.checkLiveUse},
			{"cascade", op.cascadeV1},
		}
	case record.SchemaV2:
		steps = []deleteStep{
			{"load-tags", op.loadTags},
			{"untag-only", op.checkUntagOnly},
			{"live-use", op.checkLiveUse},
			{"cascade", op.cascadeV2},
		}
	}
	for _, s := range steps {
		e.log.Debugf("delete %s: step %s", res.Image.ShortID(), s.name)
		done, err := s.run(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return op.changes, nil
}

func (op *deleteOp) loadTags(ctx context.Context) (bool, error) {
	tags, err := op.e.tagsFor(ctx, op.res.Image)
	if err != nil {
		return false, err
	}
	op.tags = tags
	return false, nil
}

// checkHeadV1 rejects direct deletion of a non-head v1 image.  Non-head
// records exist only as ancestry of other images; the heads back-references
// name what depends on them.
func (op *deleteOp) checkHeadV1(ctx context.Context) (bool, error) {
	img := op.res.Image.(*record.V1Image)
	if img.Head {
		return false, nil
	}
	shortHeads := make([]string, 0, len(img.Heads))
	for _, h := range img.Heads {
		shortHeads = append(shortHeads, record.ShortID(h))
	}
	return false, conflictf("conflict: unable to delete %s (cannot be forced) - image has dependent child images %s",
		img.ShortID(), strings.Join(shortHeads, ", "))
}

// checkUntagOnly decides whether the request only removes one name->image
// mapping.  With several tags on the image, a request by tag name unmaps
// just that tag; a request by ID or digest needs force to proceed to a full
// delete.
func (op *deleteOp) checkUntagOnly(ctx context.Context) (bool, error) {
	if len(op.tags) <= 1 {
		return false, nil
	}
	if op.res.ViaTag {
		tag := op.res.Tag
		if err := op.e.deleteTagRecord(ctx, tag); err != nil {
			return false, err
		}
		op.changes = append(op.changes, DeleteChange{Untagged: tag.RepoTag()})
		return true, nil
	}
	if !op.force {
		return false, conflictf("conflict: unable to delete %s (must be forced) - image is referenced in multiple repositories",
			op.res.Image.ShortID())
	}
	return false, nil
}

// checkLiveUse refuses to delete an image whose backing blob is referenced
// by any of the owner's workloads: a running workload always blocks, a
// stopped one blocks unless forced.  The reported workload is chosen by
// sorting candidates so a running instance wins, then the shortest
// identifier.
func (op *deleteOp) checkLiveUse(ctx context.Context) (bool, error) {
	workloads, err := op.e.fleet.ListWorkloads(ctx, fleet.ListParams{
		BlobID: op.res.Image.BlobID(),
		Owner:  op.owner,
		States: []string{fleet.StateRunning, fleet.StateStopped},
	})
	if err != nil {
		return false, fmt.Errorf("checking workloads using image %s: %w", op.res.Image.ShortID(), err)
	}
	if len(workloads) == 0 {
		return false, nil
	}
	slices.SortFunc(workloads, func(a, b *fleet.Workload) int {
		if a.Running() != b.Running() {
			if a.Running() {
				return -1
			}
			return 1
		}
		ia, ib := workloadIdent(a), workloadIdent(b)
		if len(ia) != len(ib) {
			return len(ia) - len(ib)
		}
		return strings.Compare(ia, ib)
	})
	reported := workloads[0]
	if reported.Running() {
		return false, conflictf("conflict: unable to delete %s (cannot be forced) - image is being used by running workload %s",
			op.res.Image.ShortID(), workloadIdent(reported))
	}
	if !op.force {
		return false, conflictf("conflict: unable to delete %s (must be forced) - image is being used by stopped workload %s",
			op.res.Image.ShortID(), workloadIdent(reported))
	}
	return false, nil
}

func workloadIdent(w *fleet.Workload) string {
	if w.Alias != "" && len(w.Alias) < len(w.ID) {
		return w.Alias
	}
	return w.ID
}

func (e *Engine) deleteTagRecord(ctx context.Context, tag record.Tag) error {
	bucket := record.V1Tags
	if _, ok := tag.(*record.V2Tag); ok {
		bucket = record.V2Tags
	}
	if err := e.store.Delete(ctx, bucket, tag.Key()); err != nil {
		return fmt.Errorf("untagging %s: %w", tag.RepoTag(), err)
	}
	return nil
}
