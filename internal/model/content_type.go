package model

import (
	"mime"
	"strings"
)

// ContentType is the coarse type of a loaded document.
// Known types are the constants below; anything else is "Other: <mime>".
type ContentType string

const (
	// ContentTypeHTML is an HTML document.
	ContentTypeHTML ContentType = "HTML"
	// ContentTypeImage is an image rendered directly by the browser.
	ContentTypeImage ContentType = "Image"
	// ContentTypeAudio is an audio file.
	ContentTypeAudio ContentType = "Audio"
	// ContentTypePDF is a PDF document.
	ContentTypePDF ContentType = "PDF"
	// ContentTypeVideo is a video file.
	ContentTypeVideo ContentType = "Video"

	otherPrefix = "Other: "
)

// ClassifyContentType maps a MIME type, as reported by the browser's
// document.contentType, to a ContentType. Parameters such as charset are
// ignored and matching is case-insensitive.
func ClassifyContentType(mimeType string) ContentType {
	raw := strings.TrimSpace(mimeType)
	base := strings.ToLower(raw)
	if mt, _, err := mime.ParseMediaType(raw); err == nil {
		base = mt
	}

	switch {
	case base == "text/html":
		return ContentTypeHTML
	case strings.HasPrefix(base, "image/"):
		return ContentTypeImage
	case strings.HasPrefix(base, "audio/"):
		return ContentTypeAudio
	case base == "application/pdf":
		return ContentTypePDF
	case strings.HasPrefix(base, "video/"):
		return ContentTypeVideo
	default:
		return ContentType(otherPrefix + raw)
	}
}

// IsOther reports whether the type is outside the known set.
func (c ContentType) IsOther() bool {
	return strings.HasPrefix(string(c), otherPrefix)
}

// String implements fmt.Stringer.
func (c ContentType) String() string {
	return string(c)
}
