package images

import (
	"context"
	"errors"
	"fmt"

	digest "github.com/opencontainers/go-digest"

	"github.com/greenbaum-institute/sdc-docker/internal/set"
	"github.com/greenbaum-institute/sdc-docker/record"
)

// Ancestry walks the parent chain starting at img, newest first.  A parent
// lookup that comes up not-found terminates the walk and reports
// partial=true instead of failing: broken ancestry must never block
// read-only use of what was found.  Any other lookup error propagates.
func (e *Engine) Ancestry(ctx context.Context, img record.Image) (chain []record.Image, partial bool, err error) {
	seen := set.New[string]()
	current := img
	for {
		if seen.Contains(current.ImageID()) {
			e.log.Warnf("ancestry of %s contains a cycle at %s", img.ShortID(), current.ShortID())
			return chain, true, nil
		}
		seen.Add(current.ImageID())
		chain = append(chain, current)
		parentRef := current.ParentRef()
		if parentRef == "" {
			return chain, false, nil
		}
		parent, err := e.lookupParent(ctx, current, parentRef)
		if errors.Is(err, ErrNoSuchImage) {
			e.log.Warnf("ancestry of %s is broken: parent %s of %s not found",
				img.ShortID(), record.ShortID(parentRef), current.ShortID())
			return chain, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		current = parent
	}
}

// lookupParent resolves a parent reference within the same schema and owner
// as the child (and, for v1, the same registry host).
func (e *Engine) lookupParent(ctx context.Context, child record.Image, parentRef string) (record.Image, error) {
	switch child := child.(type) {
	case *record.V1Image:
		return e.getV1Image(ctx, child.Owner, child.IndexName, parentRef)
	case *record.V2Image:
		dgst, err := digest.Parse(parentRef)
		if err != nil {
			return nil, fmt.Errorf("image %s has malformed parent reference %q: %w", child.ShortID(), parentRef, err)
		}
		return e.lookupV2ByDigest(ctx, child.Owner, dgst)
	}
	return nil, fmt.Errorf("unknown image record schema %v", child.Schema())
}
