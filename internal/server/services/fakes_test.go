package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/nodes"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/versions"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// memDB is an in-memory stand-in for the metadata store. It enforces the
// same unique constraints as the schema.
type memDB struct {
	mu       sync.Mutex
	users    map[string]*models.User
	nodes    map[string]*models.Node
	versions map[string]*models.FileVersion
	clock    time.Time

	getByEmailErr     error
	listChildrenErr   error
	nodeCreateErr     error
	versionCreateErr  error
	markCompletedErr  error
	findByHashPanic   bool
	beforeVersionSave func()
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]*models.User{},
		nodes:    map[string]*models.Node{},
		versions: map[string]*models.FileVersion{},
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// now reads the store clock; the services under test use it as wall time.
func (m *memDB) now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

func (m *memDB) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(d)
}

func (m *memDB) versionsOf(nodeID string) []*models.FileVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.FileVersion
	for _, v := range m.versions {
		if v.NodeID == nodeID {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func (m *memDB) nodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

// addVersion inserts a version directly, bypassing the pipeline.
func (m *memDB) addVersion(v models.FileVersion) *models.FileVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = uuid.NewString()
	v.CreatedAt = m.tick()
	m.versions[v.ID] = &v
	c := v
	return &c
}

func (m *memDB) addNode(n models.Node) *models.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = m.tick()
	m.nodes[n.ID] = &n
	c := n
	return &c
}

type memUsers struct{ db *memDB }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return nil, common.ErrConflict
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = r.db.tick()
	c := *u
	r.db.users[u.ID] = &c
	return u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.getByEmailErr != nil {
		return nil, r.db.getByEmailErr
	}
	for _, u := range r.db.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, common.ErrorNotFound
}

type memNodes struct{ db *memDB }

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r memNodes) Create(_ context.Context, n *models.Node) (*models.Node, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.nodeCreateErr != nil {
		return nil, r.db.nodeCreateErr
	}
	for _, e := range r.db.nodes {
		if n.ParentID == nil && e.ParentID == nil && e.OwnerID == n.OwnerID {
			return nil, common.ErrConflict
		}
		if n.ParentID != nil && sameParent(e.ParentID, n.ParentID) && e.Name == n.Name {
			return nil, common.ErrConflict
		}
	}
	n.ID = uuid.NewString()
	n.CreatedAt = r.db.tick()
	c := *n
	r.db.nodes[n.ID] = &c
	return n, nil
}

func (r memNodes) GetByID(_ context.Context, id string) (*models.Node, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if n, ok := r.db.nodes[id]; ok {
		c := *n
		return &c, nil
	}
	return nil, common.ErrorNotFound
}

func (r memNodes) GetRoot(_ context.Context, ownerID string) (*models.Node, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, n := range r.db.nodes {
		if n.OwnerID == ownerID && n.ParentID == nil {
			c := *n
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memNodes) GetDirectoryByName(_ context.Context, ownerID, name string) (*models.Node, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var best *models.Node
	for _, n := range r.db.nodes {
		if n.OwnerID == ownerID && n.IsDirectory && n.Name == name {
			if best == nil || n.CreatedAt.Before(best.CreatedAt) {
				best = n
			}
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	c := *best
	return &c, nil
}

func (r memNodes) FindDirectoryByName(_ context.Context, name string) (*models.Node, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var best *models.Node
	for _, n := range r.db.nodes {
		if n.IsDirectory && n.ParentID != nil && n.Name == name {
			if best == nil || n.CreatedAt.Before(best.CreatedAt) {
				best = n
			}
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	c := *best
	return &c, nil
}

func (r memNodes) sorted(keep func(*models.Node) bool) []*models.Node {
	var out []*models.Node
	for _, n := range r.db.nodes {
		if keep(n) {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDirectory != out[j].IsDirectory {
			return out[i].IsDirectory
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r memNodes) ListByOwner(_ context.Context, ownerID string) ([]*models.Node, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.sorted(func(n *models.Node) bool { return n.OwnerID == ownerID }), nil
}

func (r memNodes) ListChildren(_ context.Context, parentID string) ([]*models.Node, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.listChildrenErr != nil {
		return nil, r.db.listChildrenErr
	}
	return r.sorted(func(n *models.Node) bool { return n.ParentID != nil && *n.ParentID == parentID }), nil
}

func (r memNodes) DeleteFileWithoutVersions(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.nodes[id]
	if !ok || n.IsDirectory {
		return false, nil
	}
	for _, v := range r.db.versions {
		if v.NodeID == id {
			return false, nil
		}
	}
	delete(r.db.nodes, id)
	return true, nil
}

type memVersions struct{ db *memDB }

func (r memVersions) Create(_ context.Context, v *models.FileVersion) (*models.FileVersion, error) {
	if hook := r.db.beforeVersionSave; hook != nil {
		hook()
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.versionCreateErr != nil {
		return nil, r.db.versionCreateErr
	}
	for _, e := range r.db.versions {
		if e.NodeID == v.NodeID && e.Version == v.Version {
			return nil, common.ErrConflict
		}
		if e.OwnerID == v.OwnerID && e.Hash == v.Hash {
			return nil, common.ErrConflict
		}
	}
	v.ID = uuid.NewString()
	v.CreatedAt = r.db.tick()
	c := *v
	r.db.versions[v.ID] = &c
	return v, nil
}

func (r memVersions) HighestNumber(_ context.Context, nodeID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var max int64
	for _, v := range r.db.versions {
		if v.NodeID == nodeID && v.Status == models.VersionCompleted && v.Version > max {
			max = v.Version
		}
	}
	return max, nil
}

func (r memVersions) completed(keep func(*models.FileVersion) bool) []*models.FileVersion {
	var out []*models.FileVersion
	for _, v := range r.db.versions {
		if v.Status == models.VersionCompleted && keep(v) {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func (r memVersions) Latest(_ context.Context, nodeID string) (*models.FileVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	vs := r.completed(func(v *models.FileVersion) bool { return v.NodeID == nodeID })
	if len(vs) == 0 {
		return nil, common.ErrorNotFound
	}
	return vs[len(vs)-1], nil
}

func (r memVersions) ByNumber(_ context.Context, nodeID string, number int64) (*models.FileVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	vs := r.completed(func(v *models.FileVersion) bool { return v.NodeID == nodeID && v.Version == number })
	if len(vs) == 0 {
		return nil, common.ErrorNotFound
	}
	return vs[0], nil
}

func (r memVersions) FindByHash(_ context.Context, ownerID, hash string) (*models.FileVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.findByHashPanic {
		panic("index corrupted")
	}
	for _, v := range r.db.versions {
		if v.OwnerID == ownerID && v.Hash == hash {
			c := *v
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memVersions) ListByNode(_ context.Context, nodeID string) ([]*models.FileVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.completed(func(v *models.FileVersion) bool { return v.NodeID == nodeID }), nil
}

func (r memVersions) MarkCompleted(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.markCompletedErr != nil {
		return r.db.markCompletedErr
	}
	v, ok := r.db.versions[id]
	if !ok || v.Status != models.VersionPending {
		return common.ErrorNotFound
	}
	v.Status = models.VersionCompleted
	return nil
}

func (r memVersions) DeletePending(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v, ok := r.db.versions[id]
	if !ok || v.Status != models.VersionPending {
		return common.ErrorNotFound
	}
	delete(r.db.versions, id)
	return nil
}

func (r memVersions) DeleteStalePending(_ context.Context, ownerID string, olderThan time.Time) ([]*models.FileVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.FileVersion
	for id, v := range r.db.versions {
		if v.OwnerID == ownerID && v.Status == models.VersionPending && v.CreatedAt.Before(olderThan) {
			out = append(out, v)
			delete(r.db.versions, id)
		}
	}
	return out, nil
}

func (r memVersions) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]*models.FileVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.FileVersion
	for _, v := range r.db.versions {
		if v.Status == models.VersionPending && v.CreatedAt.Before(olderThan) && len(out) < limit {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeRepoManager struct{ db *memDB }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository           { return memUsers{m.db} }
func (m *fakeRepoManager) Nodes(dbx.DBTX) nodes.Repository           { return memNodes{m.db} }
func (m *fakeRepoManager) Versions(dbx.DBTX) versions.Repository     { return memVersions{m.db} }

// memBlobs is an in-memory blob store with failure injection.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes int

	putErr error
	getErr error
	getNil bool
	// advance leaves returned readers positioned past their first bytes.
	advance int64
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (b *memBlobs) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = data
	b.puts++
	return nil
}

type seekCloser struct {
	*bytes.Reader
}

func (seekCloser) Close() error { return nil }

func (b *memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	if b.getNil {
		return nil, nil
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	r := bytes.NewReader(data)
	if b.advance > 0 {
		_, _ = r.Seek(b.advance, io.SeekStart)
	}
	return seekCloser{r}, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deletes++
	return nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

var errStoreDown = errors.New("store down")

// newTxDB returns a handle that only serves transactions; the fakes ignore it.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	svc    *FileService
	owners *OwnerService
	db     *memDB
	blobs  *memBlobs
	cfg    *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := newMemDB()
	blobs := newMemBlobs()
	cfg := &config.Config{
		SpoolDir:                    t.TempDir(),
		MaxUploadSize:               1 << 20,
		SecretKey:                   "test-secret",
		AccessTokenValidityDuration: time.Hour,
		PendingGracePeriod:          time.Hour,
	}
	txdb := newTxDB(t)
	rm := &fakeRepoManager{db: mem}
	svc := NewFileService(txdb, rm, blobs, logging.Nop(), cfg)
	svc.now = mem.now
	return &fixture{
		svc:    svc,
		owners: NewOwnerService(txdb, rm, logging.Nop(), cfg),
		db:     mem,
		blobs:  blobs,
		cfg:    cfg,
	}
}

// seedOwner registers email with a root folder directly in the store.
func (f *fixture) seedOwner(t *testing.T, email string) (*models.User, *models.Node) {
	t.Helper()
	u, err := memUsers{f.db}.Create(context.Background(), &models.User{Email: email})
	require.NoError(t, err)
	root, err := memNodes{f.db}.Create(context.Background(), &models.Node{Name: RootFolderName, IsDirectory: true, OwnerID: u.ID})
	require.NoError(t, err)
	return u, root
}

func (f *fixture) seedFolder(t *testing.T, owner *models.User, parent *models.Node, name string) *models.Node {
	t.Helper()
	n, err := memNodes{f.db}.Create(context.Background(), &models.Node{Name: name, IsDirectory: true, OwnerID: owner.ID, ParentID: &parent.ID})
	require.NoError(t, err)
	return n
}
