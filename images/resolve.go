package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	digest "github.com/opencontainers/go-digest"

	"github.com/greenbaum-institute/sdc-docker/blobstore"
	"github.com/greenbaum-institute/sdc-docker/record"
	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

// ResolveOptions tunes name resolution.
type ResolveOptions struct {
	// IncludeFleetImages lets a UUID name match a fleet-native image
	// directly, bypassing the docker record buckets.
	IncludeFleetImages bool
	// IncludeScratch lets the reserved name "scratch" resolve to the
	// synthesized empty base image.
	IncludeScratch bool
	// IndexName scopes v1 lookups to one registry host.  Empty means the
	// host parsed from the name (for tags) or any host (for IDs).
	IndexName string
}

// Resolution is the outcome of resolving a name.  Exactly one of Image and
// Native is set.  Tag is set when resolution went through a tag record;
// ViaDigest marks v2 resolution by digest, manifest digest, or ID prefix.
type Resolution struct {
	Image     record.Image
	Tag       record.Tag
	Native    *blobstore.Blob
	ViaTag    bool
	ViaDigest bool
	Parsed    *parsedName
}

// Resolve maps a user-supplied name (tag, digest, ID, or ID prefix) to
// exactly one image record.  Precedence: fleet UUID, v2 manifest digest, v2
// digest, v2 tag, v2 digest prefix, v1 tag, v1 ID or prefix — the first hit
// wins, and a tag-name match always beats a content-matching prefix.
//
// A record whose backing blob has vanished is deleted on the spot (the tag
// record too, when resolution went through one) and reported as
// ErrNoSuchImage, indistinguishable from a plain miss.
func (e *Engine) Resolve(ctx context.Context, name, owner string, opts ResolveOptions) (*Resolution, error) {
	p, err := parseName(name)
	if err != nil {
		return nil, err
	}
	e.log.Debugf("resolving %q for owner %s", name, owner)

	if opts.IncludeFleetImages && looksLikeUUID(name) {
		blob, err := e.blobs.Get(ctx, name)
		if err == nil {
			return &Resolution{Native: blob, Parsed: p}, nil
		}
		if !errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, fmt.Errorf("looking up fleet image %q: %w", name, err)
		}
	}

	if opts.IncludeScratch && name == "scratch" {
		img, err := e.scratchImage()
		if err != nil {
			return nil, err
		}
		return &Resolution{Image: img, Parsed: p}, nil
	}

	if p.digest != "" {
		img, err := e.lookupV2ByManifestDigest(ctx, owner, p.digest)
		if errors.Is(err, ErrNoSuchImage) {
			img, err = e.lookupV2ByDigest(ctx, owner, p.digest)
		}
		if err == nil {
			if err := e.vetBlob(ctx, img, nil); err != nil {
				return nil, err
			}
			return &Resolution{Image: img, ViaDigest: true, Parsed: p}, nil
		}
		if !errors.Is(err, ErrNoSuchImage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, name)
	}

	if p.tag != "" {
		tag, err := e.lookupV2Tag(ctx, owner, p.localName, p.tag)
		if err == nil {
			img, err := e.lookupV2ByDigest(ctx, owner, tag.Digest)
			if err == nil {
				if err := e.vetBlob(ctx, img, tag); err != nil {
					return nil, err
				}
				return &Resolution{Image: img, Tag: tag, ViaTag: true, Parsed: p}, nil
			}
			if !errors.Is(err, ErrNoSuchImage) {
				return nil, err
			}
			// A tag without its image record: out-of-band deletion
			// got halfway.  Fall through to the other populations.
			e.log.Warnf("v2 tag %q points at missing image %s", tag.RepoTag(), tag.Digest)
		} else if !errors.Is(err, ErrNoSuchImage) {
			return nil, err
		}
	}

	if prefix := p.idPrefix(); prefix != "" {
		img, err := e.lookupV2ByDigestPrefix(ctx, owner, prefix)
		if err == nil {
			if err := e.vetBlob(ctx, img, nil); err != nil {
				return nil, err
			}
			return &Resolution{Image: img, ViaDigest: true, Parsed: p}, nil
		}
		if !errors.Is(err, ErrNoSuchImage) {
			return nil, err
		}
	}

	if p.tag != "" {
		indexName := opts.IndexName
		if indexName == "" {
			indexName = p.indexName
		}
		tag, err := e.lookupV1Tag(ctx, owner, indexName, p.localName, p.tag)
		if err == nil {
			img, err := e.getV1Image(ctx, owner, tag.IndexName, tag.DockerID)
			if err == nil {
				if err := e.vetBlob(ctx, img, tag); err != nil {
					return nil, err
				}
				return &Resolution{Image: img, Tag: tag, ViaTag: true, Parsed: p}, nil
			}
			if !errors.Is(err, ErrNoSuchImage) {
				return nil, err
			}
			e.log.Warnf("v1 tag %q points at missing image %s", tag.RepoTag(), tag.DockerID)
		} else if !errors.Is(err, ErrNoSuchImage) {
			return nil, err
		}
	}

	if prefix := p.idPrefix(); prefix != "" {
		img, err := e.lookupV1ByPrefix(ctx, owner, prefix, opts.IndexName)
		if err == nil {
			if err := e.vetBlob(ctx, img, nil); err != nil {
				return nil, err
			}
			return &Resolution{Image: img, Parsed: p}, nil
		}
		if !errors.Is(err, ErrNoSuchImage) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, name)
}

func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// vetBlob confirms the record's backing blob still exists.  A vanished blob
// triggers lazy self-healing: the image record, and the tag record when
// resolution went through one, are deleted and the caller sees a plain
// not-found.
func (e *Engine) vetBlob(ctx context.Context, img record.Image, tag record.Tag) error {
	_, err := e.blobs.Get(ctx, img.BlobID())
	if err == nil {
		return nil
	}
	if !errors.Is(err, blobstore.ErrBlobNotFound) {
		return fmt.Errorf("checking backing blob %s: %w", img.BlobID(), err)
	}
	e.log.Infof("backing blob %s of image %s is gone; removing stale record", img.BlobID(), img.ShortID())
	bucket := record.V1Images
	if img.Schema() == record.SchemaV2 {
		bucket = record.V2Images
	}
	e.deleteRecordQuiet(ctx, bucket, img.Key())
	if tag != nil {
		tagBucket := record.V1Tags
		if img.Schema() == record.SchemaV2 {
			tagBucket = record.V2Tags
		}
		e.deleteRecordQuiet(ctx, tagBucket, tag.Key())
	}
	return fmt.Errorf("%w: %s", ErrNoSuchImage, img.ShortID())
}

func (e *Engine) deleteRecordQuiet(ctx context.Context, b *recordstore.Bucket, key string) {
	if err := e.store.Delete(ctx, b, key); err != nil && !errors.Is(err, recordstore.ErrNoSuchRecord) {
		e.log.Warnf("removing stale %s record %q: %v", b.Name, key, err)
	}
}

func (e *Engine) lookupV2ByDigest(ctx context.Context, owner string, dgst digest.Digest) (*record.V2Image, error) {
	r, err := e.store.Get(ctx, record.V2Images, record.V2ImageKey(owner, dgst))
	if errors.Is(err, recordstore.ErrNoSuchRecord) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, dgst)
	}
	if err != nil {
		return nil, err
	}
	return r.(*record.V2Image), nil
}

func (e *Engine) lookupV2ByManifestDigest(ctx context.Context, owner string, dgst digest.Digest) (*record.V2Image, error) {
	var f recordstore.Filter
	f = f.Eq("owner_uuid", owner).Eq("manifest_digest", dgst.String())
	recs, err := e.store.List(ctx, record.V2Images, f)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, dgst)
	}
	return recs[0].(*record.V2Image), nil
}

func (e *Engine) lookupV2ByDigestPrefix(ctx context.Context, owner, prefix string) (*record.V2Image, error) {
	var f recordstore.Filter
	f = f.Eq("owner_uuid", owner).Prefix("config_digest", digest.Canonical.String()+":"+prefix)
	recs, err := e.store.List(ctx, record.V2Images, f)
	if err != nil {
		return nil, err
	}
	// An ambiguous digest prefix is a hard not-found, never a pick.
	if len(recs) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, prefix)
	}
	return recs[0].(*record.V2Image), nil
}

func (e *Engine) lookupV2Tag(ctx context.Context, owner, repo, tag string) (*record.V2Tag, error) {
	r, err := e.store.Get(ctx, record.V2Tags, record.V2TagKey(owner, repo, tag))
	if errors.Is(err, recordstore.ErrNoSuchRecord) {
		return nil, fmt.Errorf("%w: %s:%s", ErrNoSuchImage, repo, tag)
	}
	if err != nil {
		return nil, err
	}
	return r.(*record.V2Tag), nil
}

func (e *Engine) lookupV1Tag(ctx context.Context, owner, indexName, repo, tag string) (*record.V1Tag, error) {
	r, err := e.store.Get(ctx, record.V1Tags, record.V1TagKey(owner, indexName, repo, tag))
	if errors.Is(err, recordstore.ErrNoSuchRecord) {
		return nil, fmt.Errorf("%w: %s:%s", ErrNoSuchImage, repo, tag)
	}
	if err != nil {
		return nil, err
	}
	return r.(*record.V1Tag), nil
}

func (e *Engine) getV1Image(ctx context.Context, owner, indexName, dockerID string) (*record.V1Image, error) {
	r, err := e.store.Get(ctx, record.V1Images, record.V1ImageKey(owner, indexName, dockerID))
	if errors.Is(err, recordstore.ErrNoSuchRecord) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, record.ShortID(dockerID))
	}
	if err != nil {
		return nil, err
	}
	return r.(*record.V1Image), nil
}

// lookupV1ByPrefix finds the v1 image whose docker_id starts with prefix.
// A prefix matching two or more distinct docker_ids is a hard not-found; a
// prefix matching one docker_id registered against several registry hosts
// is AmbiguousIDError, because those records may hold different content.
func (e *Engine) lookupV1ByPrefix(ctx context.Context, owner, prefix, indexName string) (*record.V1Image, error) {
	var f recordstore.Filter
	f = f.Eq("owner_uuid", owner).Prefix("docker_id", prefix)
	if indexName != "" {
		f = f.Eq("index_name", indexName)
	}
	recs, err := e.store.List(ctx, record.V1Images, f)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, prefix)
	}
	ids := map[string][]*record.V1Image{}
	for _, r := range recs {
		img := r.(*record.V1Image)
		ids[img.DockerID] = append(ids[img.DockerID], img)
	}
	if len(ids) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, prefix)
	}
	for _, imgs := range ids {
		if len(imgs) > 1 {
			indexNames := make([]string, len(imgs))
			for i, img := range imgs {
				indexNames[i] = img.IndexName
			}
			return nil, &AmbiguousIDError{Prefix: prefix, IndexNames: indexNames}
		}
		return imgs[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchImage, prefix) // unreachable
}
