package images

import (
	"context"
	"encoding/json"

	"github.com/greenbaum-institute/sdc-docker/record"
)

// Inspect is the single-image detail view.
type Inspect struct {
	ID          string
	RepoTags    []string
	RepoDigests []string
	Parent      string
	Created     int64
	Size        int64
	VirtualSize int64
	Labels      map[string]string
	Config      json.RawMessage
	// Partial reports that the ancestry chain behind this image is
	// broken; the fields above are still valid.
	Partial bool
}

// InspectImage resolves name and projects the detail view.  Fleet-native
// images and the scratch base image are inspectable too.
func (e *Engine) InspectImage(ctx context.Context, name, owner string) (*Inspect, error) {
	res, err := e.Resolve(ctx, name, owner, ResolveOptions{
		IncludeFleetImages: true,
		IncludeScratch:     true,
	})
	if err != nil {
		return nil, err
	}
	if res.Native != nil {
		b := res.Native
		repoTag := noneRepoTag
		if b.Name != "" {
			repoTag = b.Name + ":" + b.Version
		}
		return &Inspect{
			ID:          b.ID,
			RepoTags:    []string{repoTag},
			RepoDigests: []string{noneRepoDigest},
			Created:     b.Created,
			Size:        b.Size,
			VirtualSize: b.Size,
			Labels:      b.Tags,
		}, nil
	}

	img := res.Image
	ins := &Inspect{
		ID:          img.ImageID(),
		Parent:      img.ParentRef(),
		Created:     img.CreatedAt(),
		Size:        img.ImageSize(),
		VirtualSize: img.ImageSize(),
		Labels:      img.ImageLabels(),
		RepoTags:    []string{noneRepoTag},
		RepoDigests: []string{noneRepoDigest},
	}
	switch img := img.(type) {
	case *record.V1Image:
		ins.Config = img.Config
		if img.VirtualSize > 0 {
			ins.VirtualSize = img.VirtualSize
		}
	case *record.V2Image:
		ins.Config = img.Config
	}
	tags, err := e.tagsFor(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		ins.RepoTags = ins.RepoTags[:0]
		for _, t := range tags {
			ins.RepoTags = append(ins.RepoTags, t.RepoTag())
		}
		if v2, ok := img.(*record.V2Image); ok {
			ins.RepoDigests = ins.RepoDigests[:0]
			seen := map[string]bool{}
			for _, t := range tags {
				repo := t.(*record.V2Tag).Repo
				if !seen[repo] {
					seen[repo] = true
					ins.RepoDigests = append(ins.RepoDigests, repo+"@"+v2.ManifestDigest.String())
				}
			}
		}
	}
	// Ancestry health is advisory on inspect; a broken chain only sets
	// the flag.
	if _, partial, err := e.Ancestry(ctx, img); err == nil {
		ins.Partial = partial
	}
	return ins, nil
}
