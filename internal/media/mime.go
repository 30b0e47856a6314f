package media

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Filter buckets accepted by ListPaginated and the type classification.
const (
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeDocument = "document"
	TypeOther    = "other"
)

// documentMimes is the closed set of MIME types classified as documents.
var documentMimes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/vnd.ms-powerpoint":                                     {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"text/plain": {},
	"text/csv":   {},
}

// extensionMimes maps lowercase extensions to MIME types when content
// sniffing is inconclusive.
var extensionMimes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"wmv":  "video/x-ms-wmv",
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"zip":  "application/zip",
	"json": "application/json",
}

const fallbackMime = "application/octet-stream"

// Classify maps a MIME type to one of the four filter buckets.
func Classify(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return TypeImage
	case strings.HasPrefix(mime, "video/"):
		return TypeVideo
	default:
		if _, ok := documentMimes[mime]; ok {
			return TypeDocument
		}
		return TypeOther
	}
}

// MatchesType reports whether a MIME type belongs to the given bucket.
// Unknown bucket names match nothing; validating them is the caller's job.
func MatchesType(mime, bucket string) bool {
	switch bucket {
	case TypeImage, TypeVideo, TypeDocument, TypeOther:
		return Classify(mime) == bucket
	default:
		return false
	}
}

// ValidType reports whether t names one of the four filter buckets.
func ValidType(t string) bool {
	switch t {
	case TypeImage, TypeVideo, TypeDocument, TypeOther:
		return true
	}
	return false
}

// detectMime sniffs the MIME type from file content, stripping any
// parameters (e.g. "; charset=utf-8") so the stored value is a bare media
// type. When sniffing fails or is inconclusive, the extension map decides.
func detectMime(path string) string {
	if mtype, err := mimetype.DetectFile(path); err == nil {
		m := mtype.String()
		if i := strings.IndexByte(m, ';'); i >= 0 {
			m = strings.TrimSpace(m[:i])
		}
		if m != fallbackMime && m != "" {
			return m
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if m, ok := extensionMimes[ext]; ok {
		return m
	}
	return fallbackMime
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9-_]+`)

// sanitizeName reduces a filename base to lowercase alphanumerics, hyphens
// and underscores. Empty results become "file".
func sanitizeName(base string) string {
	name := unsafeNameChars.ReplaceAllString(base, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "file"
	}
	return strings.ToLower(name)
}
