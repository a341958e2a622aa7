package images

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/greenbaum-institute/sdc-docker/record"
	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

// HistoryEntry is one row of the user-facing per-layer change log, newest
// first.  Synthetic rows for layers with no persisted record carry the ID
// placeholder "<missing>".
type HistoryEntry struct {
	ID        string
	Created   int64
	CreatedBy string
	Size      int64
	Comment   string
	Tags      []string
}

// missingEntryID marks history rows whose layer has no resolvable record.
const missingEntryID = "<missing>"

// History projects the per-layer change log for the named image.  Live
// ancestry supplies one entry per resolvable ancestor; for v2 images the
// record's own embedded history may be longer (metadata-only layers need no
// persisted record), in which case the excess oldest entries are filled in
// as synthetic rows so the total always equals the embedded history length.
// partial reports a broken ancestry chain; it never fails the call.
func (e *Engine) History(ctx context.Context, name, owner string) ([]HistoryEntry, bool, error) {
	res, err := e.Resolve(ctx, name, owner, ResolveOptions{})
	if err != nil {
		return nil, false, err
	}
	chain, partial, err := e.Ancestry(ctx, res.Image)
	if err != nil {
		return nil, false, err
	}

	entries := make([]HistoryEntry, 0, len(chain))
	for _, ancestor := range chain {
		entry := HistoryEntry{
			ID:      ancestor.ImageID(),
			Created: ancestor.CreatedAt(),
			Size:    ancestor.ImageSize(),
		}
		switch a := ancestor.(type) {
		case *record.V1Image:
			entry.CreatedBy = v1CreatedBy(a)
		case *record.V2Image:
			if n := len(a.History); n > 0 {
				newest := a.History[n-1]
				entry.CreatedBy = newest.CreatedBy
				entry.Comment = newest.Comment
			}
		}
		tags, err := e.tagNamesFor(ctx, ancestor)
		if err != nil {
			return nil, false, err
		}
		entry.Tags = tags
		entries = append(entries, entry)
	}

	// v1 has no embedded history; the walked ancestry is authoritative.
	target, ok := res.Image.(*record.V2Image)
	if !ok {
		return entries, partial, nil
	}
	if excess := len(target.History) - len(entries); excess > 0 {
		for i := excess - 1; i >= 0; i-- {
			h := target.History[i]
			entry := HistoryEntry{
				ID:        missingEntryID,
				CreatedBy: h.CreatedBy,
				Comment:   h.Comment,
			}
			if h.Created != nil {
				entry.Created = h.Created.Unix()
			}
			entries = append(entries, entry)
		}
	}
	return entries, partial, nil
}

// v1CreatedBy reconstructs the single "created by" command from the v1
// container_config payload.
func v1CreatedBy(img *record.V1Image) string {
	if len(img.ContainerCfg) == 0 {
		return ""
	}
	var cfg struct {
		Cmd []string `json:"Cmd"`
	}
	if err := json.Unmarshal(img.ContainerCfg, &cfg); err != nil {
		return ""
	}
	return strings.Join(cfg.Cmd, " ")
}

// tagNamesFor returns the repo:tag names currently pointing at img.
func (e *Engine) tagNamesFor(ctx context.Context, img record.Image) ([]string, error) {
	tags, err := e.tagsFor(ctx, img)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.RepoTag())
	}
	return names, nil
}

// tagsFor returns the tag records currently pointing at img.
func (e *Engine) tagsFor(ctx context.Context, img record.Image) ([]record.Tag, error) {
	var (
		bucket *recordstore.Bucket
		f      recordstore.Filter
	)
	switch img := img.(type) {
	case *record.V1Image:
		bucket = record.V1Tags
		f = f.Eq("owner_uuid", img.Owner).Eq("index_name", img.IndexName).Eq("docker_id", img.DockerID)
	case *record.V2Image:
		bucket = record.V2Tags
		f = f.Eq("owner_uuid", img.Owner).Eq("config_digest", img.Digest.String())
	}
	recs, err := e.store.List(ctx, bucket, f)
	if err != nil {
		return nil, err
	}
	tags := make([]record.Tag, 0, len(recs))
	for _, r := range recs {
		tags = append(tags, r.(record.Tag))
	}
	return tags, nil
}
