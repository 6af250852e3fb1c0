package attachments

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	local "studio-backend/internal/shared/storage/object/local"
	"studio-backend/internal/shared/telemetry"
	"studio-backend/internal/shared/util"
)

// LocalIssuer is the dev fallback when no uploads bucket is configured.
// It serves PUT targets from an in-process loopback listener and writes
// the bytes into a local directory, so the two-phase protocol stays
// identical to the S3 path.
type LocalIssuer struct {
	store *local.Store
	once  sync.Once
	addr  string
	err   error
}

// NewLocalIssuer constructs a LocalIssuer writing under baseDir.
func NewLocalIssuer(baseDir string) *LocalIssuer {
	return &LocalIssuer{store: local.New(baseDir)}
}

// IssueTarget returns a loopback PUT target for one upload.
func (i *LocalIssuer) IssueTarget(ctx context.Context, userID, fileName, mediaType string, size int64) (UploadTarget, error) {
	i.once.Do(i.start)
	if i.err != nil {
		return UploadTarget{}, i.err
	}

	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return UploadTarget{}, fmt.Errorf("sanitize file name: %w", err)
	}
	key := fmt.Sprintf("%s%s/%s-%s",
		defaultUploadsPrefix,
		util.OwnerKey(userID),
		uuid.NewString(),
		sanitized,
	)
	return UploadTarget{
		URL:        "http://" + i.addr + "/" + key,
		StorageKey: key,
		ExpiresIn:  presignExpires,
	}, nil
}

func (i *LocalIssuer) start() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		i.err = fmt.Errorf("local upload listener: %w", err)
		return
	}
	i.addr = ln.Addr().String()

	srv := &http.Server{
		Handler:           http.HandlerFunc(i.handlePut),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			telemetry.Error("attachments.local_listener_stopped", map[string]any{"err": err.Error()})
		}
	}()
	telemetry.Info("attachments.local_issuer_started", map[string]any{"addr": i.addr})
}

func (i *LocalIssuer) handlePut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/")
	if key == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if _, err := i.store.SaveWithKey(r.Context(), key, r.Header.Get("Content-Type"), r.Body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	io.Copy(io.Discard, r.Body)
	w.WriteHeader(http.StatusOK)
}

var _ TargetIssuer = (*LocalIssuer)(nil)
