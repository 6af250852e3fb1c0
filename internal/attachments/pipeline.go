package attachments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio-backend/internal/catalog"
	"studio-backend/internal/shared/telemetry"
)

// File is the declared metadata and content of one upload candidate.
type File struct {
	Name      string
	MediaType string
	Size      int64
	Body      io.Reader
}

// Outcome is the per-file result of a batch upload. Exactly one of
// Record and Err is set.
type Outcome struct {
	FileName string  `json:"fileName"`
	Record   *Record `json:"record,omitempty"`
	Err      error   `json:"-"`
}

// BatchResult reports every file's success or failure plus the count
// of accepted files.
type BatchResult struct {
	Outcomes []Outcome
	Accepted int
}

// Pipeline performs the two-phase upload: request a target from the
// storage collaborator, then transfer the bytes directly to it.
type Pipeline struct {
	Issuer TargetIssuer
	HTTP   *http.Client
}

// NewPipeline constructs a Pipeline with a transfer timeout suited to
// large media files.
func NewPipeline(issuer TargetIssuer) *Pipeline {
	return &Pipeline{
		Issuer: issuer,
		HTTP:   &http.Client{Timeout: 10 * time.Minute},
	}
}

// Validate rejects a candidate before any round-trip: the media type
// must be allow-listed and the declared size within the module ceiling.
func Validate(f File, policy catalog.AttachmentPolicy) error {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(f.MediaType, ";")[0]))
	if !policy.AllowsMediaType(mediaType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}
	if f.Size <= 0 || (policy.MaxSizeBytes > 0 && f.Size > policy.MaxSizeBytes) {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, f.Size)
	}
	return nil
}

// Upload validates, requests a target, and transfers one file. The
// returned record is only constructed after the transfer succeeds;
// on any failure nothing is recorded.
func (p *Pipeline) Upload(ctx context.Context, userID string, policy catalog.AttachmentPolicy, f File) (Record, error) {
	if strings.TrimSpace(userID) == "" {
		return Record{}, ErrUnauthorized
	}
	if err := Validate(f, policy); err != nil {
		return Record{}, err
	}

	target, err := p.Issuer.IssueTarget(ctx, userID, f.Name, f.MediaType, f.Size)
	if err != nil {
		telemetry.Error("attachments.issue_target_failed", map[string]any{
			"file_name":  f.Name,
			"media_type": f.MediaType,
			"size_bytes": f.Size,
			"err":        err.Error(),
		})
		return Record{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	if err := p.transfer(ctx, target, f); err != nil {
		return Record{}, err
	}

	return Record{
		ID:         uuid.NewString(),
		FileName:   f.Name,
		SizeBytes:  f.Size,
		MediaType:  f.MediaType,
		StorageKey: target.StorageKey,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// UploadBatch processes files sequentially. One file's failure never
// aborts the rest; every file yields its own outcome. slots caps how
// many more attachments the caller may accept.
func (p *Pipeline) UploadBatch(ctx context.Context, userID string, policy catalog.AttachmentPolicy, slots int, files []File) BatchResult {
	result := BatchResult{Outcomes: make([]Outcome, 0, len(files))}
	for _, f := range files {
		if slots <= 0 {
			result.Outcomes = append(result.Outcomes, Outcome{FileName: f.Name, Err: ErrQuotaExceeded})
			continue
		}
		rec, err := p.Upload(ctx, userID, policy, f)
		if err != nil {
			result.Outcomes = append(result.Outcomes, Outcome{FileName: f.Name, Err: err})
			continue
		}
		slots--
		result.Accepted++
		result.Outcomes = append(result.Outcomes, Outcome{FileName: f.Name, Record: &rec})
	}
	return result
}

func (p *Pipeline) transfer(ctx context.Context, target UploadTarget, f File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, f.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	req.Header.Set("Content-Type", f.MediaType)
	req.ContentLength = f.Size

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d", ErrTransferFailed, resp.StatusCode)
	}
	return nil
}
