package record

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// V1Image is the legacy image record, one per (owner, index_name, docker_id).
// Head/heads bookkeeping makes sharing explicit: Refcount counts the head
// chains this image participates in, and Heads lists the docker_ids of the
// head images whose ancestry reaches this record.
type V1Image struct {
	Owner         string          `json:"owner_uuid"`
	IndexName     string          `json:"index_name"`
	DockerID      string          `json:"docker_id"`
	Head          bool            `json:"head"`
	Heads         []string        `json:"heads,omitempty"`
	Parent        string          `json:"parent,omitempty"`
	Refcount      int             `json:"refcount"`
	BackingBlobID string          `json:"image_uuid"`
	Size          int64           `json:"size"`
	VirtualSize   int64           `json:"virtual_size,omitempty"`
	Created       int64           `json:"created"`
	Config        json.RawMessage `json:"config,omitempty"`
	ContainerCfg  json.RawMessage `json:"container_config,omitempty"`
}

// V1ImageKey builds the bucket key for a v1 image record.
func V1ImageKey(owner, indexName, dockerID string) string {
	return fmt.Sprintf("%s/%s/%s", owner, indexName, dockerID)
}

func (i *V1Image) Key() string {
	return V1ImageKey(i.Owner, i.IndexName, i.DockerID)
}

func (i *V1Image) Field(name string) ([]string, bool) {
	switch name {
	case "owner_uuid":
		return []string{i.Owner}, true
	case "index_name":
		return []string{i.IndexName}, true
	case "docker_id":
		return []string{i.DockerID}, true
	case "head":
		return boolField(i.Head), true
	case "heads":
		return i.Heads, len(i.Heads) > 0
	case "parent":
		if i.Parent == "" {
			return nil, false
		}
		return []string{i.Parent}, true
	case "image_uuid":
		return []string{i.BackingBlobID}, true
	case "refcount":
		return []string{strconv.Itoa(i.Refcount)}, true
	}
	return nil, false
}

func (i *V1Image) ImageOwner() string { return i.Owner }
func (i *V1Image) IsHead() bool       { return i.Head }
func (i *V1Image) ParentRef() string  { return i.Parent }
func (i *V1Image) BlobID() string     { return i.BackingBlobID }
func (i *V1Image) ImageID() string    { return i.DockerID }
func (i *V1Image) ShortID() string    { return ShortID(i.DockerID) }
func (i *V1Image) CreatedAt() int64   { return i.Created }
func (i *V1Image) ImageSize() int64   { return i.Size }
func (i *V1Image) Schema() Schema     { return SchemaV1 }

func (i *V1Image) ImageLabels() map[string]string { return configLabels(i.Config) }

// HasHead reports whether dockerID is among this record's head
// back-references.
func (i *V1Image) HasHead(dockerID string) bool {
	for _, h := range i.Heads {
		if h == dockerID {
			return true
		}
	}
	return false
}

// DropHead removes dockerID from the record's head back-references and
// decrements Refcount accordingly.  It is a no-op if dockerID is absent.
func (i *V1Image) DropHead(dockerID string) {
	heads := i.Heads[:0]
	for _, h := range i.Heads {
		if h != dockerID {
			heads = append(heads, h)
		}
	}
	if len(heads) != len(i.Heads) {
		i.Heads = heads
		i.Refcount--
	}
}

// V1Tag maps (owner, index_name, repo, tag) to a docker_id.  Several tag
// records may point at the same docker_id.
type V1Tag struct {
	Owner     string `json:"owner_uuid"`
	IndexName string `json:"index_name"`
	Repo      string `json:"repo"`
	Tag       string `json:"tag"`
	DockerID  string `json:"docker_id"`
}

// V1TagKey builds the bucket key for a v1 tag record.
func V1TagKey(owner, indexName, repo, tag string) string {
	return fmt.Sprintf("%s/%s/%s:%s", owner, indexName, repo, tag)
}

func (t *V1Tag) Key() string {
	return V1TagKey(t.Owner, t.IndexName, t.Repo, t.Tag)
}

func (t *V1Tag) Field(name string) ([]string, bool) {
	switch name {
	case "owner_uuid":
		return []string{t.Owner}, true
	case "index_name":
		return []string{t.IndexName}, true
	case "repo":
		return []string{t.Repo}, true
	case "tag":
		return []string{t.Tag}, true
	case "docker_id":
		return []string{t.DockerID}, true
	}
	return nil, false
}

func (t *V1Tag) TagOwner() string { return t.Owner }
func (t *V1Tag) RepoTag() string  { return t.Repo + ":" + t.Tag }
func (t *V1Tag) Target() string   { return t.DockerID }
