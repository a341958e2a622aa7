package record

import (
	"encoding/json"
	"fmt"

	digest "github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// V2Image is the digest-addressed image record, one per (owner, digest).
// It is registry-host-agnostic; its backing blob handle is derived from the
// ordered layer digests, so images sharing a layer prefix share blobs.
type V2Image struct {
	Owner          string             `json:"owner_uuid"`
	Digest         digest.Digest      `json:"config_digest"`
	Head           bool               `json:"head"`
	Parent         digest.Digest      `json:"parent,omitempty"`
	BackingBlobID  string             `json:"image_uuid"`
	ManifestDigest digest.Digest      `json:"manifest_digest"`
	ManifestString string             `json:"manifest_str,omitempty"`
	Size           int64              `json:"size"`
	Created        int64              `json:"created"`
	History        []imgspecv1.History `json:"history,omitempty"`
	DiffIDs        []digest.Digest    `json:"diff_ids,omitempty"`
	Config         json.RawMessage    `json:"config,omitempty"`
}

// V2ImageKey builds the bucket key for a v2 image record.
func V2ImageKey(owner string, dgst digest.Digest) string {
	return fmt.Sprintf("%s/%s", owner, dgst)
}

func (i *V2Image) Key() string {
	return V2ImageKey(i.Owner, i.Digest)
}

func (i *V2Image) Field(name string) ([]string, bool) {
	switch name {
	case "owner_uuid":
		return []string{i.Owner}, true
	case "config_digest":
		return []string{i.Digest.String()}, true
	case "head":
		return boolField(i.Head), true
	case "parent":
		if i.Parent == "" {
			return nil, false
		}
		return []string{i.Parent.String()}, true
	case "image_uuid":
		return []string{i.BackingBlobID}, true
	case "manifest_digest":
		return []string{i.ManifestDigest.String()}, true
	}
	return nil, false
}

func (i *V2Image) ImageOwner() string { return i.Owner }
func (i *V2Image) IsHead() bool       { return i.Head }
func (i *V2Image) ParentRef() string {
	if i.Parent == "" {
		return ""
	}
	return i.Parent.String()
}
func (i *V2Image) BlobID() string   { return i.BackingBlobID }
func (i *V2Image) ImageID() string  { return i.Digest.String() }
func (i *V2Image) ShortID() string  { return ShortID(i.Digest.String()) }
func (i *V2Image) CreatedAt() int64 { return i.Created }
func (i *V2Image) ImageSize() int64 { return i.Size }
func (i *V2Image) Schema() Schema   { return SchemaV2 }

func (i *V2Image) ImageLabels() map[string]string { return configLabels(i.Config) }

// BlobChain returns the per-layer backing-blob handles, root first.
func (i *V2Image) BlobChain() []string {
	return BlobIDChain(i.DiffIDs)
}

// V2Tag maps (owner, repo, tag) to an image digest.
type V2Tag struct {
	Owner  string        `json:"owner_uuid"`
	Repo   string        `json:"repo"`
	Tag    string        `json:"tag"`
	Digest digest.Digest `json:"config_digest"`
}

// V2TagKey builds the bucket key for a v2 tag record.
func V2TagKey(owner, repo, tag string) string {
	return fmt.Sprintf("%s/%s:%s", owner, repo, tag)
}

func (t *V2Tag) Key() string {
	return V2TagKey(t.Owner, t.Repo, t.Tag)
}

func (t *V2Tag) Field(name string) ([]string, bool) {
	switch name {
	case "owner_uuid":
		return []string{t.Owner}, true
	case "repo":
		return []string{t.Repo}, true
	case "tag":
		return []string{t.Tag}, true
	case "config_digest":
		return []string{t.Digest.String()}, true
	}
	return nil, false
}

func (t *V2Tag) TagOwner() string { return t.Owner }
func (t *V2Tag) RepoTag() string  { return t.Repo + ":" + t.Tag }
func (t *V2Tag) Target() string   { return t.Digest.String() }
