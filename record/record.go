// Package record holds the two image-record schemas and their tag records.
// The v1 schema is the legacy per-registry-host form with explicit head/heads
// bookkeeping; the v2 schema is digest-addressed with deduplicated layer
// blobs.  They coexist indefinitely and are never merged: the Image and Tag
// interfaces are the shared capability surface, and callers dispatch on
// Schema() rather than on concrete types.
package record

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	digest "github.com/opencontainers/go-digest"

	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

// Schema discriminates the two record kinds.
type Schema int

const (
	// SchemaV1 is the legacy full-image schema, identified by
	// (owner, index_name, docker_id).
	SchemaV1 Schema = iota + 1
	// SchemaV2 is the digest/manifest schema, identified by
	// (owner, digest).
	SchemaV2
)

func (s Schema) String() string {
	switch s {
	case SchemaV1:
		return "v1"
	case SchemaV2:
		return "v2"
	}
	return fmt.Sprintf("schema(%d)", int(s))
}

// Image is the capability surface shared by both image-record schemas.
type Image interface {
	recordstore.Record
	// ImageOwner returns the owning tenant's account UUID.
	ImageOwner() string
	// IsHead reports whether this is a terminal, directly-referenceable
	// image rather than an intermediate ancestry layer.
	IsHead() bool
	// ParentRef returns the parent's docker_id (v1) or digest (v2), or ""
	// for a root image.
	ParentRef() string
	// BlobID returns the handle of the backing blob in the shared store.
	BlobID() string
	// ImageID returns the schema-native full identifier: the docker_id
	// for v1, the digest string for v2.
	ImageID() string
	// ShortID returns the familiar 12-character identifier.
	ShortID() string
	// CreatedAt returns the creation time as Unix seconds.
	CreatedAt() int64
	// ImageSize returns the image's reported size in bytes.
	ImageSize() int64
	// ImageLabels returns the labels from the image's config payload, or
	// nil if there are none.
	ImageLabels() map[string]string
	// Schema returns the record kind.
	Schema() Schema
}

// configLabels extracts the Labels map from a raw image config payload.
// A missing or malformed payload yields nil; labels are advisory and must
// never fail a listing.
func configLabels(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var cfg struct {
		Labels map[string]string `json:"Labels"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil
	}
	return cfg.Labels
}

// Tag is the capability surface shared by both tag-record schemas.
type Tag interface {
	recordstore.Record
	// TagOwner returns the owning tenant's account UUID.
	TagOwner() string
	// RepoTag returns the familiar "repo:tag" form.
	RepoTag() string
	// Target returns the docker_id (v1) or digest (v2) the tag points at.
	Target() string
}

var validDockerID = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IsDockerID reports whether s is a full 64-hex-char image content ID.
func IsDockerID(s string) bool {
	return validDockerID.MatchString(s)
}

// IsDockerIDPrefix reports whether s could be a prefix of a docker_id.
func IsDockerIDPrefix(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// ShortID truncates a full identifier to the familiar 12 characters, with
// any "algorithm:" prefix stripped first.
func ShortID(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// blobNamespace is the UUID namespace for deriving backing-blob handles from
// layer digest chains.  It must never change: derived handles are persisted
// in every tenant's records and in the shared blob store.
var blobNamespace = uuid.MustParse("9725e2f4-7952-4d76-8d6f-4d2943d30804")

// BlobIDForLayers derives the backing-blob handle for the image whose
// ordered layer digests are layerDigests.  The derivation folds the digests
// left to right, so two images whose layer lists share a prefix share the
// handles for that prefix.  Empty input derives the scratch-image handle.
func BlobIDForLayers(layerDigests []digest.Digest) string {
	h := sha256.New()
	for _, d := range layerDigests {
		fmt.Fprintf(h, "%s\n", d)
	}
	return uuid.NewSHA1(blobNamespace, h.Sum(nil)).String()
}

// BlobIDChain derives the per-prefix blob handles for the ordered layer
// digests, root first: element i is the handle for layerDigests[:i+1].
func BlobIDChain(layerDigests []digest.Digest) []string {
	chain := make([]string, len(layerDigests))
	for i := range layerDigests {
		chain[i] = BlobIDForLayers(layerDigests[:i+1])
	}
	return chain
}

func boolField(b bool) []string {
	if b {
		return []string{"true"}
	}
	return []string{"false"}
}
