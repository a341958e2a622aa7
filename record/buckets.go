package record

import (
	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

// The four record buckets.  Bucket versions only ever increase; adding a
// migration means appending to Migrations and bumping Version together.
var (
	V1Images = &recordstore.Bucket{
		Name:    "docker_images",
		Version: 2,
		New:     func() recordstore.Record { return &V1Image{} },
		Migrations: []recordstore.Migration{
			migrateV1ImageRefcount,
		},
	}

	V1Tags = &recordstore.Bucket{
		Name:    "docker_image_tags",
		Version: 1,
		New:     func() recordstore.Record { return &V1Tag{} },
	}

	V2Images = &recordstore.Bucket{
		Name:    "docker_images_v2",
		Version: 1,
		New:     func() recordstore.Record { return &V2Image{} },
	}

	V2Tags = &recordstore.Bucket{
		Name:    "docker_image_tags_v2",
		Version: 1,
		New:     func() recordstore.Record { return &V2Tag{} },
	}
)

// Buckets lists every bucket a store must be opened with.
func Buckets() []*recordstore.Bucket {
	return []*recordstore.Bucket{V1Images, V1Tags, V2Images, V2Tags}
}

// migrateV1ImageRefcount backfills Refcount on records written before the
// field existed: the head chains a record participates in are exactly its
// Heads entries.
func migrateV1ImageRefcount(r recordstore.Record) (bool, error) {
	img, ok := r.(*V1Image)
	if !ok {
		return false, nil
	}
	if img.Refcount > 0 {
		return false, nil
	}
	if len(img.Heads) > 0 {
		img.Refcount = len(img.Heads)
	} else {
		img.Refcount = 1
	}
	return true, nil
}
