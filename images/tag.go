package images

import (
	"context"
	"fmt"

	"github.com/greenbaum-institute/sdc-docker/record"
)

// TagImage gives the image resolved by name an additional repo:tag mapping
// in the same schema.  Tagging an intermediate layer promotes it to a head
// image.
func (e *Engine) TagImage(ctx context.Context, name, repoTag, owner string) (record.Tag, error) {
	res, err := e.Resolve(ctx, name, owner, ResolveOptions{})
	if err != nil {
		return nil, err
	}
	p, err := parseName(repoTag)
	if err != nil {
		return nil, err
	}
	if p.digest != "" {
		return nil, &InvalidNameError{Name: repoTag, Err: fmt.Errorf("refusing to create a tag from a digest reference")}
	}

	var tag record.Tag
	switch img := res.Image.(type) {
	case *record.V1Image:
		tag = &record.V1Tag{
			Owner:     owner,
			IndexName: img.IndexName,
			Repo:      p.localName,
			Tag:       p.tag,
			DockerID:  img.DockerID,
		}
		if !img.Head {
			img.Head = true
			if err := e.store.Put(ctx, record.V1Images, img); err != nil {
				return nil, fmt.Errorf("promoting %s to head: %w", img.ShortID(), err)
			}
		}
		if err := e.store.Put(ctx, record.V1Tags, tag.(*record.V1Tag)); err != nil {
			return nil, fmt.Errorf("tagging %s as %s: %w", img.ShortID(), p.repoTag(), err)
		}
	case *record.V2Image:
		tag = &record.V2Tag{
			Owner:  owner,
			Repo:   p.localName,
			Tag:    p.tag,
			Digest: img.Digest,
		}
		if !img.Head {
			img.Head = true
			if err := e.store.Put(ctx, record.V2Images, img); err != nil {
				return nil, fmt.Errorf("promoting %s to head: %w", img.ShortID(), err)
			}
		}
		if err := e.store.Put(ctx, record.V2Tags, tag.(*record.V2Tag)); err != nil {
			return nil, fmt.Errorf("tagging %s as %s: %w", img.ShortID(), p.repoTag(), err)
		}
	default:
		return nil, fmt.Errorf("cannot tag %q: not a docker image record", name)
	}
	e.log.Debugf("tagged %s as %s", res.Image.ShortID(), p.repoTag())
	return tag, nil
}
