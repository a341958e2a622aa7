// Package blobstore is the client side of the datacenter's shared
// content-addressable blob service.  Blobs are stored once per datacenter
// and referenced by image records of every tenant and both schemas; the
// service, not this client, is the authority on blob-to-blob dependencies.
package blobstore

import (
	"context"
	"errors"
)

var (
	// ErrBlobNotFound is returned when the store has no blob with the
	// given handle.  Records pointing at such a handle are stale and get
	// removed lazily by the resolver.
	ErrBlobNotFound = errors.New("no such blob")
	// ErrDependentBlob is returned by Delete when another blob's lineage
	// still requires this one.  It is an internal signal: it halts
	// further reclamation in a deletion cascade but is never surfaced to
	// the API caller.
	ErrDependentBlob = errors.New("blob has dependent blobs")
)

// Blob is the stored metadata of one blob.  The same structure doubles as
// the datacenter's native image manifest: fleet-native images are blobs with
// a name and version, directly provisionable without any docker record on
// top.
type Blob struct {
	ID      string            `json:"uuid"`
	Owner   string            `json:"owner"`
	Name    string            `json:"name,omitempty"`
	Version string            `json:"version,omitempty"`
	State   string            `json:"state"`
	Public  bool              `json:"public"`
	Size    int64             `json:"size"`
	Created int64             `json:"created"`
	Origin  string            `json:"origin,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

// Active reports whether the blob is fully imported and usable.
func (b *Blob) Active() bool {
	return b.State == "active"
}

// Store is the Backing Blob Store contract consumed by the engine.
type Store interface {
	// Get returns the blob's metadata, or ErrBlobNotFound.
	Get(ctx context.Context, blobID string) (*Blob, error)
	// Delete reclaims the blob's bytes.  Returns ErrDependentBlob when a
	// dependent blob still exists, ErrBlobNotFound when the handle is
	// already gone.
	Delete(ctx context.Context, blobID string) error
	// Create registers a new empty blob from the manifest.
	Create(ctx context.Context, manifest *Blob) (*Blob, error)
	// Import registers a blob whose bytes will arrive out of band.
	Import(ctx context.Context, manifest *Blob) (*Blob, error)
	// Activate marks an imported blob as usable.
	Activate(ctx context.Context, blobID string) (*Blob, error)
	// ListNative returns the fleet-native images visible to owner
	// (its own plus public ones).
	ListNative(ctx context.Context, owner string) ([]*Blob, error)
}
