package attachments

import "time"

// Record is one uploaded reference file bound to a session. Records are
// immutable once created; removal is a local list operation on the
// owning specification.
type Record struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	SizeBytes  int64     `json:"sizeBytes"`
	MediaType  string    `json:"mediaType"`
	StorageKey string    `json:"storageKey"`
	UploadedAt time.Time `json:"uploadedAt"`
}
