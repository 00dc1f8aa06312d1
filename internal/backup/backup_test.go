package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-portal/internal/repository/sqlite"
	"account-portal/internal/storage"
)

type fakeStore struct {
	uploaded map[string][]byte
	objects  []storage.ObjectInfo
	prefix   string
	err      error
}

func (f *fakeStore) UploadFile(_ context.Context, localPath string, opts storage.UploadOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	if f.uploaded == nil {
		f.uploaded = make(map[string][]byte)
	}
	f.uploaded[opts.Key] = data
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (f *fakeStore) ListObjects(_ context.Context, _ string, prefix string) ([]storage.ObjectInfo, error) {
	f.prefix = prefix
	return f.objects, f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestObjectName(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 5, 0, time.FixedZone("WIB", 7*3600))
	assert.Equal(t, "accounts-20260301T053005Z.db", ObjectName(at))
}

func TestRun_UploadsSqliteSnapshot(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	store := &fakeStore{}
	r := NewRunner(Config{Bucket: "backups", KeyPrefix: "/account-backups/", Logger: quietLogger()},
		func(ctx context.Context, dest string) error { return sqlite.Snapshot(ctx, db, dest) },
		store)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	loc, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3://backups/account-backups/accounts-20260301T000000Z.db", loc)

	data := store.uploaded["account-backups/accounts-20260301T000000Z.db"]
	require.NotEmpty(t, data)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	okSnapshot := func(_ context.Context, dest string) error {
		return os.WriteFile(dest, []byte("db"), 0o600)
	}

	t.Run("no bucket", func(t *testing.T) {
		r := NewRunner(Config{Logger: quietLogger()}, okSnapshot, &fakeStore{})
		_, err := r.Run(ctx)
		assert.Error(t, err)
	})

	t.Run("snapshot failure", func(t *testing.T) {
		boom := errors.New("disk full")
		r := NewRunner(Config{Bucket: "b", Logger: quietLogger()},
			func(context.Context, string) error { return boom }, &fakeStore{})
		_, err := r.Run(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("upload failure", func(t *testing.T) {
		denied := errors.New("access denied")
		r := NewRunner(Config{Bucket: "b", Logger: quietLogger()}, okSnapshot, &fakeStore{err: denied})
		_, err := r.Run(ctx)
		assert.ErrorIs(t, err, denied)
	})
}

func TestList(t *testing.T) {
	store := &fakeStore{objects: []storage.ObjectInfo{
		{Key: "account-backups/accounts-20260302T000000Z.db"},
		{Key: "account-backups/accounts-20260301T000000Z.db"},
	}}
	r := NewRunner(Config{Bucket: "b", KeyPrefix: "account-backups", Logger: quietLogger()}, nil, store)

	objects, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "account-backups/", store.prefix)
	require.Len(t, objects, 2)
	assert.Equal(t, "account-backups/accounts-20260301T000000Z.db", objects[0].Key)
}
