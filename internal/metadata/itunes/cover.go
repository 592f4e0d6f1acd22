package itunes

import "regexp"

// MaxCoverSize is the size we request from iTunes.
// iTunes will serve the largest available size up to this.
const MaxCoverSize = "1000x1000bb.jpg"

// sizePattern matches iTunes artwork size patterns like "100x100bb.jpg"
var sizePattern = regexp.MustCompile(`/\d+x\d+bb\.jpg$`)

// MaxCoverURL transforms an iTunes artwork URL to request a large rendition.
func MaxCoverURL(url string) string {
	if url == "" {
		return ""
	}
	return sizePattern.ReplaceAllString(url, "/"+MaxCoverSize)
}
