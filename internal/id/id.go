// Package id generates prefixed record and job identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the identifiers the server mints.
const (
	Job    = "job"
	Album  = "alb"
	Track  = "trk"
	Client = "sse"
)

// Generate returns prefix followed by a hyphen and a 21 character NanoID,
// e.g. "job-V1StGXR8_Z5jdHi6B-myT". It fails only when the system cannot
// supply secure random bytes.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
