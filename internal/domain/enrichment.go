// Package domain contains the core entities of the enrichment service: the
// shared cache record, the per-user album and track records it enriches, and
// the batch bookkeeping types.
package domain

import (
	"fmt"
	"strings"
)

// Kind is the field a resolution fills in.
type Kind string

// Enrichment kinds.
const (
	KindImage Kind = "image"
	KindGenre Kind = "genre"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindGenre
}

// ParseKinds expands a request-level kind. "both" runs images first, then
// genres, so genre resolution can reuse album rows created by the image pass.
func ParseKinds(s string) ([]Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images", "cover", "covers":
		return []Kind{KindImage}, nil
	case "genre", "genres":
		return []Kind{KindGenre}, nil
	case "both", "all":
		return []Kind{KindImage, KindGenre}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", s)
	}
}

// ItemKind says which record table a batch item came from.
type ItemKind string

// Record kinds.
const (
	ItemAlbum ItemKind = "album"
	ItemTrack ItemKind = "track"
)

// Target selects which record tables a batch enumerates.
type Target string

// Batch targets.
const (
	TargetAlbums Target = "albums"
	TargetTracks Target = "tracks"
	TargetBoth   Target = "both"
)

// ParseTarget parses a target, defaulting to albums.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case "", TargetAlbums:
		return TargetAlbums, nil
	case TargetTracks:
		return TargetTracks, nil
	case TargetBoth:
		return TargetBoth, nil
	default:
		return "", fmt.Errorf("unknown target %q", s)
	}
}

// IncludesAlbums reports whether album records are enumerated.
func (t Target) IncludesAlbums() bool {
	return t == TargetAlbums || t == TargetBoth
}

// IncludesTracks reports whether track records are enumerated.
func (t Target) IncludesTracks() bool {
	return t == TargetTracks || t == TargetBoth
}

// Scope bounds one batch to a user's records. IDs, when set, restricts the
// batch to those record ids.
type Scope struct {
	UserID string   `json:"user_id"`
	Target Target   `json:"target"`
	IDs    []string `json:"ids,omitempty"`
}
