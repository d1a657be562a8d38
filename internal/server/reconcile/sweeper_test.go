package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/nodes"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/versions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type state struct {
	mu       sync.Mutex
	versions map[string]*models.FileVersion
	nodes    map[string]bool
	listErr  error
	deleted  []string
}

type fakeVersions struct {
	versions.Repository
	s *state
}

func (f fakeVersions) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]*models.FileVersion, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.listErr != nil {
		return nil, f.s.listErr
	}
	var out []*models.FileVersion
	for _, v := range f.s.versions {
		if v.Status == models.VersionPending && v.CreatedAt.Before(olderThan) && len(out) < limit {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f fakeVersions) DeletePending(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, ok := f.s.versions[id]
	if !ok || v.Status != models.VersionPending {
		return common.ErrorNotFound
	}
	delete(f.s.versions, id)
	return nil
}

func (f fakeVersions) FindByHash(_ context.Context, ownerID, hash string) (*models.FileVersion, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, v := range f.s.versions {
		if v.OwnerID == ownerID && v.Hash == hash {
			c := *v
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeNodes struct {
	nodes.Repository
	s *state
}

func (f fakeNodes) DeleteFileWithoutVersions(_ context.Context, id string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, v := range f.s.versions {
		if v.NodeID == id {
			return false, nil
		}
	}
	if f.s.nodes[id] {
		delete(f.s.nodes, id)
		return true, nil
	}
	return false, nil
}

type fakeRepos struct{ s *state }

func (m fakeRepos) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeRepos) Users(dbx.DBTX) users.Repository           { return nil }
func (m fakeRepos) Nodes(dbx.DBTX) nodes.Repository           { return fakeNodes{s: m.s} }
func (m fakeRepos) Versions(dbx.DBTX) versions.Repository     { return fakeVersions{s: m.s} }

type fakeBlobs struct {
	mu      sync.Mutex
	keys    map[string]bool
	deleted []string
	err     error
}

func (b *fakeBlobs) Put(context.Context, string, io.Reader, int64) error { return nil }
func (b *fakeBlobs) Get(context.Context, string) (io.ReadCloser, error) { return nil, nil }
func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.deleted = append(b.deleted, key)
	delete(b.keys, key)
	return nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSweeper(t *testing.T, s *state, blobs *fakeBlobs, batch int) *Sweeper {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sw := NewSweeper(Options{DB: db, Repos: fakeRepos{s: s}, Blobs: blobs, GracePeriod: time.Hour, BatchSize: batch})
	sw.now = func() time.Time { return now }
	return sw
}

func version(id, node, status string, age time.Duration) *models.FileVersion {
	return &models.FileVersion{
		ID: id, NodeID: node, OwnerID: "u-1", Hash: "h-" + id, StorageKey: "k-" + id,
		Status: status, CreatedAt: now.Add(-age),
	}
}

func TestSweep_RemovesOnlyStalePending(t *testing.T) {
	s := &state{
		versions: map[string]*models.FileVersion{
			"stale":  version("stale", "n-new", models.VersionPending, 2*time.Hour),
			"fresh":  version("fresh", "n-fresh", models.VersionPending, time.Minute),
			"done":   version("done", "n-old", models.VersionCompleted, 3*time.Hour),
			"stale2": version("stale2", "n-old", models.VersionPending, 2*time.Hour),
		},
		nodes: map[string]bool{"n-new": true, "n-fresh": true, "n-old": true},
	}
	blobs := &fakeBlobs{}

	n, err := newTestSweeper(t, s, blobs, 10).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Contains(t, s.versions, "fresh")
	assert.Contains(t, s.versions, "done")
	assert.NotContains(t, s.versions, "stale")
	assert.NotContains(t, s.versions, "stale2")

	assert.False(t, s.nodes["n-new"], "node left without versions is removed")
	assert.True(t, s.nodes["n-old"], "node with completed history stays")
	assert.ElementsMatch(t, []string{"k-stale", "k-stale2"}, blobs.deleted)
}

func TestSweep_Batches(t *testing.T) {
	s := &state{versions: map[string]*models.FileVersion{}, nodes: map[string]bool{}}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		s.versions[id] = version(id, "n-"+id, models.VersionPending, 2*time.Hour)
		s.nodes["n-"+id] = true
	}

	n, err := newTestSweeper(t, s, &fakeBlobs{}, 2).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, s.versions)
	assert.Empty(t, s.nodes)
}

func TestSweep_KeepsBlobReclaimedByNewUpload(t *testing.T) {
	s := &state{versions: map[string]*models.FileVersion{
		"stale": version("stale", "n-1", models.VersionPending, 2*time.Hour),
	}}
	again := version("again", "n-1", models.VersionCompleted, 0)
	again.Hash, again.StorageKey = "h-stale", "k-stale"
	s.versions["again"] = again
	blobs := &fakeBlobs{}

	_, err := newTestSweeper(t, s, blobs, 10).Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, blobs.deleted)
}

func TestSweep_Errors(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		s := &state{listErr: errors.New("db down")}
		_, err := newTestSweeper(t, s, &fakeBlobs{}, 10).Sweep(context.Background())
		assert.EqualError(t, err, "db down")
	})

	t.Run("blob delete", func(t *testing.T) {
		s := &state{
			versions: map[string]*models.FileVersion{"x": version("x", "n", models.VersionPending, 2*time.Hour)},
			nodes:    map[string]bool{},
		}
		_, err := newTestSweeper(t, s, &fakeBlobs{err: errors.New("s3 down")}, 10).Sweep(context.Background())
		assert.ErrorContains(t, err, "s3 down")
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestSweeper(t, &state{}, &fakeBlobs{}, 10).Sweep(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("missing deps", func(t *testing.T) {
		_, err := NewSweeper(Options{}).Sweep(context.Background())
		assert.Error(t, err)
	})
}

func TestStart_RunsUntilCanceled(t *testing.T) {
	s := &state{
		versions: map[string]*models.FileVersion{"x": version("x", "n", models.VersionPending, 2*time.Hour)},
		nodes:    map[string]bool{"n": true},
	}
	blobs := &fakeBlobs{}
	sw := newTestSweeper(t, s, blobs, 10)

	cancel := sw.Start(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.versions) == 0
	}, time.Second, 5*time.Millisecond)
}
