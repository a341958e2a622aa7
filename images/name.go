package images

import (
	"github.com/distribution/reference"
	digest "github.com/opencontainers/go-digest"

	"github.com/greenbaum-institute/sdc-docker/record"
)

// parsedName is the digested form of a user-supplied image name.  Parsing is
// delegated to the reference library; this only projects the pieces the
// resolver dispatches on.
type parsedName struct {
	raw string
	// localName is the familiar repo name without tag or digest, e.g.
	// "busybox" or "quay.io/foo/bar".
	localName string
	// tag is the explicit or defaulted tag; empty when the name carried a
	// digest instead.
	tag string
	// digest is set when the name was "repo@digest" or a bare digest.
	digest digest.Digest
	// indexName is the registry host the name normalizes to.
	indexName string
	// canonical is the fully-qualified name, host and tag included.
	canonical string
	// bareDigest is true when raw was just "algorithm:hex" with no repo.
	bareDigest bool
}

// parseName parses a user-supplied image name, ID, ID prefix, or digest.
// Bare IDs and prefixes parse successfully as repo names; the resolver
// handles those by precedence, not here.
func parseName(name string) (*parsedName, error) {
	if dgst, err := digest.Parse(name); err == nil {
		return &parsedName{raw: name, digest: dgst, bareDigest: true, canonical: name}, nil
	}
	// A full 64-hex ID is rejected by the reference grammar but is a valid
	// lookup key; it can only ever be an ID, never a repo name.
	if record.IsDockerID(name) {
		return &parsedName{raw: name, canonical: name}, nil
	}
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return nil, &InvalidNameError{Name: name, Err: err}
	}
	p := &parsedName{
		raw:       name,
		localName: reference.FamiliarName(named),
		indexName: reference.Domain(named),
	}
	if canonical, ok := named.(reference.Canonical); ok {
		p.digest = canonical.Digest()
		p.canonical = reference.FamiliarString(named)
		return p, nil
	}
	named = reference.TagNameOnly(named)
	if tagged, ok := named.(reference.NamedTagged); ok {
		p.tag = tagged.Tag()
	}
	p.canonical = reference.FamiliarString(named)
	return p, nil
}

// repoTag returns the "repo:tag" form used in tag records and changelogs.
func (p *parsedName) repoTag() string {
	return p.localName + ":" + p.tag
}

// idPrefix returns the raw name when it is usable as a docker_id prefix,
// and "" otherwise.
func (p *parsedName) idPrefix() string {
	if record.IsDockerIDPrefix(p.raw) {
		return p.raw
	}
	return ""
}
