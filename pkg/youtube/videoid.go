package youtube

import "regexp"

var videoURL = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|shorts/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

var bareVideoID = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// VideoIDFromURL extracts the 11 character video id from a watch, shorts or
// youtu.be link.
func VideoIDFromURL(text string) (string, bool) {
	m := videoURL.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsVideoID reports whether s already has the shape of a video id.
func IsVideoID(s string) bool {
	return bareVideoID.MatchString(s)
}
