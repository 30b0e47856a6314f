package media

import "time"

// timeLayout matches the ISO-8601 representation the sidecar files carry
// (numeric zone offset, second precision).
const timeLayout = "2006-01-02T15:04:05-07:00"

// StoredObject describes one uploaded file. The JSON tags define the sidecar
// schema ({id}.json next to the payload); the schema is an external contract
// shared with the zip tooling, so field names must not change.
type StoredObject struct {
	ID         string `json:"id"`
	FileName   string `json:"filename"` // client-supplied name, verbatim (display only, not sanitized)
	SafeName   string `json:"safeName"`
	StoredAs   string `json:"storedAs"`
	Size       int64  `json:"size"`
	Mime       string `json:"mime"`
	UploadedAt string `json:"uploadedAt"`
	UploadedBy string `json:"uploadedBy"`

	// Path is the resolved absolute payload location. Not part of the
	// sidecar schema.
	Path string `json:"-"`
}

// uploadedAtTime parses UploadedAt for ordering. Missing or unparseable
// values sort as the earliest possible time.
func (o *StoredObject) uploadedAtTime() time.Time {
	if o.UploadedAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, o.UploadedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Page is one slice of a filtered listing.
type Page struct {
	Items   []*StoredObject
	Total   int
	Page    int
	PerPage int
}
