// Package artifact archives evaluation inputs and outputs to object
// storage for later audit. Archival is best effort; grading never waits
// on it and never fails because of it.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"hushhire/internal/common/storage"
	"hushhire/pkg/utils/logger"
)

const uploadTimeout = 30 * time.Second

// Store archives evaluation run artifacts.
type Store struct {
	storage storage.ObjectStorage
	bucket  string
}

// NewStore creates an artifact store. A nil storage disables archival.
func NewStore(objectStorage storage.ObjectStorage, bucket string) *Store {
	return &Store{storage: objectStorage, bucket: bucket}
}

// Archive uploads the named files from the workspace under a per-run
// prefix. Missing files are skipped; failures are logged and swallowed.
func (s *Store) Archive(ctx context.Context, assessmentID int64, workspaceDir string, names ...string) {
	if s == nil || s.storage == nil {
		return
	}
	prefix := fmt.Sprintf("evaluations/%d/%d", assessmentID, time.Now().Unix())
	for _, name := range names {
		path := filepath.Join(workspaceDir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		key := prefix + "/" + name
		uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		err = s.storage.PutObject(uploadCtx, s.bucket, key, bytes.NewReader(raw), int64(len(raw)), "application/octet-stream")
		cancel()
		if err != nil {
			logger.Warn(ctx, "archive evaluation artifact failed",
				zap.Int64("assessment_id", assessmentID),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}
