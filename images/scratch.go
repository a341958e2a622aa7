package images

import (
	"sync"

	digest "github.com/opencontainers/go-digest"

	"github.com/greenbaum-institute/sdc-docker/record"
)

// scratchConfig is the canonical config payload of the empty base image.
const scratchConfig = `{"architecture":"amd64","os":"linux","rootfs":{"type":"layers","diff_ids":[]},"config":{}}`

// scratchCache holds the synthesized "scratch" image record.  It is
// computed once per process and shared by reference; InvalidateScratch
// resets it for tests.
type scratchCache struct {
	mutex sync.Mutex
	img   *record.V2Image
}

// scratchImage returns the empty base image every build chain bottoms out
// on.  The record is synthesized, owned by the admin account, and never
// persisted: it exists so resolution and ancestry have a terminal to land
// on.
func (e *Engine) scratchImage() (*record.V2Image, error) {
	e.scratch.mutex.Lock()
	defer e.scratch.mutex.Unlock()
	if e.scratch.img == nil {
		cfg := []byte(scratchConfig)
		e.scratch.img = &record.V2Image{
			Owner:         e.adminOwner,
			Digest:        digest.FromBytes(cfg),
			Head:          true,
			BackingBlobID: record.BlobIDForLayers(nil),
			Size:          0,
			Created:       0,
			Config:        cfg,
		}
	}
	return e.scratch.img, nil
}

// InvalidateScratch drops the cached scratch image so the next access
// rebuilds it.
func (e *Engine) InvalidateScratch() {
	e.scratch.mutex.Lock()
	defer e.scratch.mutex.Unlock()
	e.scratch.img = nil
}
