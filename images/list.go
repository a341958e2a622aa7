package images

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/docker/docker/api/types/filters"
	imagetypes "github.com/docker/docker/api/types/image"
	"golang.org/x/sync/errgroup"

	"github.com/greenbaum-institute/sdc-docker/record"
	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

// Tag and digest placeholders rendered for untagged images.
const (
	noneRepoTag    = "<none>:<none>"
	noneRepoDigest = "<none>@<none>"
)

// ListOptions tunes the catalog listing.
type ListOptions struct {
	// All includes intermediate (non-head) layers.
	All bool
	// IncludeFleet adds the fleet-native image population.
	IncludeFleet bool
	// IncludeV1 adds the legacy v1 population.
	IncludeV1 bool
	// Filters supports "dangling" and "label".
	Filters filters.Args
}

var acceptedListFilters = map[string]bool{
	"dangling": true,
	"label":    true,
}

// rowFilter is the evaluated form of ListOptions.Filters.
type rowFilter struct {
	args        filters.Args
	danglingSet bool
	dangling    bool
}

func newRowFilter(args filters.Args) (*rowFilter, error) {
	if err := args.Validate(acceptedListFilters); err != nil {
		return nil, &InvalidFilterError{Err: err}
	}
	rf := &rowFilter{args: args, danglingSet: args.Contains("dangling")}
	if rf.danglingSet {
		v, err := args.GetBoolOrDefault("dangling", false)
		if err != nil {
			return nil, &InvalidFilterError{Err: err}
		}
		rf.dangling = v
	}
	return rf, nil
}

func (rf *rowFilter) matches(dangling bool, labels map[string]string) bool {
	if rf.danglingSet && rf.dangling != dangling {
		return false
	}
	if rf.args.Contains("label") && !rf.args.MatchKVList("label", labels) {
		return false
	}
	return true
}

// ListImages merges the three image populations (fleet-native, v2, v1) into
// one listing, sorted by creation time descending.  The three source
// queries run concurrently and join before the merge.  An image with
// several tags still produces a single row carrying the whole tag list.
func (e *Engine) ListImages(ctx context.Context, owner string, opts ListOptions) ([]imagetypes.Summary, error) {
	rf, err := newRowFilter(opts.Filters)
	if err != nil {
		return nil, err
	}

	var fleetRows, v1Rows, v2Rows []imagetypes.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		v2Rows, err = e.listV2(gctx, owner, opts.All, rf)
		return err
	})
	if opts.IncludeV1 {
		g.Go(func() error {
			var err error
			v1Rows, err = e.listV1(gctx, owner, opts.All, rf)
			return err
		})
	}
	if opts.IncludeFleet {
		g.Go(func() error {
			var err error
			fleetRows, err = e.listFleet(gctx, owner, rf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]imagetypes.Summary, 0, len(fleetRows)+len(v1Rows)+len(v2Rows))
	rows = append(rows, fleetRows...)
	rows = append(rows, v2Rows...)
	rows = append(rows, v1Rows...)
	slices.SortFunc(rows, func(a, b imagetypes.Summary) int {
		if a.Created != b.Created {
			if a.Created > b.Created {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return rows, nil
}

func (e *Engine) listV2(ctx context.Context, owner string, all bool, rf *rowFilter) ([]imagetypes.Summary, error) {
	var f recordstore.Filter
	f = f.Eq("owner_uuid", owner)
	if !all {
		f = f.Eq("head", "true")
	}
	recs, err := e.store.List(ctx, record.V2Images, f)
	if err != nil {
		return nil, fmt.Errorf("listing v2 images: %w", err)
	}
	var rows []imagetypes.Summary
	for _, r := range recs {
		img := r.(*record.V2Image)
		row := imagetypes.Summary{
			ID:          img.Digest.String(),
			ParentID:    img.ParentRef(),
			Created:     img.Created,
			Size:        img.Size,
			VirtualSize: img.Size,
			Labels:      img.ImageLabels(),
			RepoTags:    []string{noneRepoTag},
			RepoDigests: []string{noneRepoDigest},
		}
		dangling := true
		// Intermediate layers have no tags to look up.
		if img.Head {
			tags, err := e.tagsFor(ctx, img)
			if err != nil {
				return nil, err
			}
			if len(tags) > 0 {
				dangling = false
				row.RepoTags = row.RepoTags[:0]
				repos := map[string]bool{}
				for _, t := range tags {
					row.RepoTags = append(row.RepoTags, t.RepoTag())
					repos[t.(*record.V2Tag).Repo] = true
				}
				row.RepoDigests = row.RepoDigests[:0]
				for repo := range repos {
					row.RepoDigests = append(row.RepoDigests, repo+"@"+img.ManifestDigest.String())
				}
				slices.Sort(row.RepoTags)
				slices.Sort(row.RepoDigests)
			}
		}
		if !rf.matches(dangling, row.Labels) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *Engine) listV1(ctx context.Context, owner string, all bool, rf *rowFilter) ([]imagetypes.Summary, error) {
	var f recordstore.Filter
	f = f.Eq("owner_uuid", owner)
	if !all {
		f = f.Eq("head", "true")
	}
	recs, err := e.store.List(ctx, record.V1Images, f)
	if err != nil {
		return nil, fmt.Errorf("listing v1 images: %w", err)
	}
	var rows []imagetypes.Summary
	for _, r := range recs {
		img := r.(*record.V1Image)
		row := imagetypes.Summary{
			ID:          img.DockerID,
			ParentID:    img.Parent,
			Created:     img.Created,
			Size:        img.Size,
			VirtualSize: img.VirtualSize,
			Labels:      img.ImageLabels(),
			RepoTags:    []string{noneRepoTag},
			RepoDigests: []string{noneRepoDigest},
		}
		if row.VirtualSize == 0 {
			row.VirtualSize = img.Size
		}
		dangling := true
		if img.Head {
			tags, err := e.tagsFor(ctx, img)
			if err != nil {
				return nil, err
			}
			if len(tags) > 0 {
				dangling = false
				row.RepoTags = row.RepoTags[:0]
				for _, t := range tags {
					row.RepoTags = append(row.RepoTags, t.RepoTag())
				}
				slices.Sort(row.RepoTags)
			}
		}
		if !rf.matches(dangling, row.Labels) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// listFleet projects fleet-native images into the docker listing.  Native
// images have no concept of dangling and behave as always-non-dangling.
func (e *Engine) listFleet(ctx context.Context, owner string, rf *rowFilter) ([]imagetypes.Summary, error) {
	if rf.danglingSet && rf.dangling {
		return nil, nil
	}
	blobs, err := e.blobs.ListNative(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing fleet images: %w", err)
	}
	var rows []imagetypes.Summary
	for _, b := range blobs {
		if !b.Active() {
			continue
		}
		if !rf.matches(false, b.Tags) {
			continue
		}
		repoTag := noneRepoTag
		if b.Name != "" {
			repoTag = b.Name + ":" + b.Version
		}
		rows = append(rows, imagetypes.Summary{
			ID:          b.ID,
			Created:     b.Created,
			Size:        b.Size,
			VirtualSize: b.Size,
			Labels:      b.Tags,
			RepoTags:    []string{repoTag},
			RepoDigests: []string{noneRepoDigest},
		})
	}
	return rows, nil
}
