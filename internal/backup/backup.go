// Package backup snapshots the sqlite credential store and ships the copy
// to object storage.
package backup

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"account-portal/internal/storage"
)

// SnapshotFunc writes a consistent copy of the database to dest.
type SnapshotFunc func(ctx context.Context, dest string) error

type Config struct {
	Bucket    string
	KeyPrefix string
	Logger    logrus.FieldLogger
}

type Runner struct {
	cfg      Config
	snapshot SnapshotFunc
	store    storage.Service
	now      func() time.Time
}

func NewRunner(cfg Config, snapshot SnapshotFunc, store storage.Service) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &Runner{cfg: cfg, snapshot: snapshot, store: store, now: time.Now}
}

// Run takes a snapshot and uploads it. It returns the object location.
func (r *Runner) Run(ctx context.Context) (string, error) {
	errb := oops.Code("BACKUP_FAILED").With("bucket", r.cfg.Bucket)
	if r.cfg.Bucket == "" {
		return "", errb.Errorf("backup bucket is not configured")
	}

	tmp, err := os.MkdirTemp("", "account-backup-")
	if err != nil {
		return "", errb.Wrapf(err, "create temp dir")
	}
	defer os.RemoveAll(tmp)

	name := ObjectName(r.now())
	local := filepath.Join(tmp, name)
	if err := r.snapshot(ctx, local); err != nil {
		return "", errb.Wrapf(err, "snapshot database")
	}

	key := path.Join(r.cfg.KeyPrefix, name)
	logger := r.cfg.Logger.WithField("key", key)
	location, err := r.store.UploadFile(ctx, local, storage.UploadOptions{
		Bucket:      r.cfg.Bucket,
		Key:         key,
		ContentType: "application/vnd.sqlite3",
		ProgressCallback: func(done, total int64) {
			if done == total {
				logger.Debugf("uploaded %d bytes", done)
			}
		},
	})
	if err != nil {
		return "", errb.With("key", key).Wrapf(err, "upload snapshot")
	}
	logger.Infof("backup stored at %s", location)
	return location, nil
}

// List returns existing backups, oldest first.
func (r *Runner) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	if r.cfg.Bucket == "" {
		return nil, oops.Code("BACKUP_LIST_FAILED").Errorf("backup bucket is not configured")
	}
	prefix := r.cfg.KeyPrefix
	if prefix != "" {
		prefix += "/"
	}
	objects, err := r.store.ListObjects(ctx, r.cfg.Bucket, prefix)
	if err != nil {
		return nil, oops.Code("BACKUP_LIST_FAILED").With("bucket", r.cfg.Bucket).Wrap(err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// ObjectName is the file name of a backup taken at t. Names sort by time.
func ObjectName(t time.Time) string {
	return "accounts-" + t.UTC().Format("20060102T150405Z") + ".db"
}
