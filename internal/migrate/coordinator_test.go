package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/wordbook-go/internal/model"
	"github.com/olegiv/wordbook-go/internal/store"
	"github.com/olegiv/wordbook-go/internal/testutil"
)

// fakeRemote mimics the remote store's transactional root create and keyed
// batch writes in memory.
type fakeRemote struct {
	mu    sync.Mutex
	roots map[string]model.UserRecord
	docs  map[string]map[string][]byte
	clock model.Millis

	failRoot   bool
	failPutAll bool

	rootCreates int
	batchWrites int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		roots: make(map[string]model.UserRecord),
		docs:  make(map[string]map[string][]byte),
		clock: model.Millis(1_700_000_000_000),
	}
}

func (f *fakeRemote) EnsureRoot(_ context.Context, uid, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRoot {
		return errors.New("root transaction failed")
	}
	// Conditional create: existence check prevents overwrite.
	if _, ok := f.roots[uid]; ok {
		return nil
	}
	f.roots[uid] = model.UserRecord{UID: uid, Email: email, CreatedAt: f.clock}
	f.rootCreates++
	return nil
}

func (f *fakeRemote) PutAll(_ context.Context, uid string, kind model.Kind, docs map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPutAll {
		return errors.New("batch write failed")
	}
	key := uid + "/" + string(kind)
	if f.docs[key] == nil {
		f.docs[key] = make(map[string][]byte)
	}
	for id, doc := range docs {
		f.docs[key][id] = doc
	}
	f.batchWrites++
	return nil
}

func (f *fakeRemote) ServerTime(context.Context) (model.Millis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock++
	return f.clock, nil
}

func (f *fakeRemote) collection(uid string, kind model.Kind) map[string][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[uid+"/"+string(kind)]
}

func testLocal(t *testing.T) *store.Local {
	t.Helper()
	return testutil.TestLocal(t)
}

func seedVocabulary(t *testing.T, local *store.Local, entries []model.VocabularyEntry) {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, local.SaveSnapshot(context.Background(), model.KindVocabulary.LocalKey(), data))
}

func TestMigrationCopiesAndClears(t *testing.T) {
	local := testLocal(t)
	remote := newFakeRemote()
	ctx := context.Background()

	seedVocabulary(t, local, []model.VocabularyEntry{
		{ID: "hello", Word: "Hello", Context: "ctx", Explanation: "greeting", Translation: "你好", AddedAt: 123, Tags: []string{"topic#travel"}},
		{ID: "world", Word: "World", AddedAt: 456},
	})

	c := NewCoordinator(local, remote, testutil.TestLoggerSilent())
	require.NoError(t, c.OnLogin(ctx, "u1", "u1@example.com"))

	docs := remote.collection("u1", model.KindVocabulary)
	require.Len(t, docs, 2, "every local entry lands in the remote collection")

	var migrated model.VocabularyEntry
	require.NoError(t, json.Unmarshal(docs["hello"], &migrated))
	assert.Equal(t, "hello", migrated.ID)
	assert.Equal(t, "Hello", migrated.Word)
	assert.Equal(t, "greeting", migrated.Explanation)
	assert.Equal(t, "你好", migrated.Translation)
	assert.True(t, migrated.HasTag("topic#travel"))
	assert.NotEqual(t, model.Millis(123), migrated.AddedAt,
		"local wall-clock stamp replaced with server time")

	raw, err := local.LoadSnapshot(ctx, model.KindVocabulary.LocalKey())
	require.NoError(t, err)
	assert.Nil(t, raw, "local snapshot cleared after confirmed copy")

	// Root record exists.
	remote.mu.Lock()
	rec, ok := remote.roots["u1"]
	remote.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, "u1@example.com", rec.Email)
}

func TestMigrationEmptySnapshotIsNoOp(t *testing.T) {
	local := testLocal(t)
	remote := newFakeRemote()

	c := NewCoordinator(local, remote, testutil.TestLoggerSilent())
	require.NoError(t, c.OnLogin(context.Background(), "u1", ""))

	assert.Equal(t, 0, remote.batchWrites, "no batch write for an absent snapshot")
	assert.Equal(t, 1, remote.rootCreates, "root record still ensured")
}

func TestMigrationIdempotent(t *testing.T) {
	local := testLocal(t)
	remote := newFakeRemote()
	ctx := context.Background()

	entries := []model.VocabularyEntry{{ID: "hello", Word: "Hello", AddedAt: 1}}
	seedVocabulary(t, local, entries)

	c := NewCoordinator(local, remote, testutil.TestLoggerSilent())
	require.NoError(t, c.OnLogin(ctx, "u1", ""))

	// Simulate the interrupted case: the batch committed but the clear was
	// lost, so the next login re-reads a non-empty snapshot.
	seedVocabulary(t, local, entries)
	require.NoError(t, c.OnLogin(ctx, "u1", ""))

	docs := remote.collection("u1", model.KindVocabulary)
	assert.Len(t, docs, 1, "re-migration overwrites by id, no duplicates")

	remote.mu.Lock()
	assert.Equal(t, 1, remote.rootCreates, "no duplicate root record")
	remote.mu.Unlock()
}

func TestMigrationRootFailureIsNonFatal(t *testing.T) {
	local := testLocal(t)
	remote := newFakeRemote()
	remote.failRoot = true
	ctx := context.Background()

	seedVocabulary(t, local, []model.VocabularyEntry{{ID: "hello", Word: "Hello"}})

	c := NewCoordinator(local, remote, testutil.TestLoggerSilent())
	require.NoError(t, c.OnLogin(ctx, "u1", ""), "root failure must not abort entry migration")

	assert.Len(t, remote.collection("u1", model.KindVocabulary), 1)
}

func TestMigrationBatchFailureKeepsLocal(t *testing.T) {
	local := testLocal(t)
	remote := newFakeRemote()
	remote.failPutAll = true
	ctx := context.Background()

	seedVocabulary(t, local, []model.VocabularyEntry{{ID: "hello", Word: "Hello"}})

	c := NewCoordinator(local, remote, testutil.TestLoggerSilent())
	err := c.OnLogin(ctx, "u1", "")
	require.Error(t, err)

	raw, lerr := local.LoadSnapshot(ctx, model.KindVocabulary.LocalKey())
	require.NoError(t, lerr)
	assert.NotNil(t, raw, "failed batch keeps the local snapshot for the next attempt")

	// The next login succeeds and completes the move.
	remote.failPutAll = false
	require.NoError(t, c.OnLogin(ctx, "u1", ""))
	raw, _ = local.LoadSnapshot(ctx, model.KindVocabulary.LocalKey())
	assert.Nil(t, raw)
}

func TestMigrationBothKinds(t *testing.T) {
	local := testLocal(t)
	remote := newFakeRemote()
	ctx := context.Background()

	seedVocabulary(t, local, []model.VocabularyEntry{{ID: "hello", Word: "Hello"}})
	articles, err := json.Marshal([]model.Article{{ID: "my-trip-2024", Title: "My Trip 2024", Content: "…"}})
	require.NoError(t, err)
	require.NoError(t, local.SaveSnapshot(ctx, model.KindArticles.LocalKey(), articles))

	c := NewCoordinator(local, remote, testutil.TestLoggerSilent())
	require.NoError(t, c.OnLogin(ctx, "u1", ""))

	assert.Len(t, remote.collection("u1", model.KindVocabulary), 1)
	assert.Len(t, remote.collection("u1", model.KindArticles), 1)
}

func TestConcurrentLoginCreatesOneRoot(t *testing.T) {
	local := testLocal(t)
	remote := newFakeRemote()
	ctx := context.Background()

	seedVocabulary(t, local, []model.VocabularyEntry{{ID: "hello", Word: "Hello"}})

	c := NewCoordinator(local, remote, testutil.TestLoggerSilent())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.OnLogin(ctx, "u1", "u1@example.com")
		}()
	}
	wg.Wait()

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Equal(t, 1, remote.rootCreates, "exactly one root record under a concurrent login race")
	assert.Len(t, remote.docs["u1/vocabulary"], 1)
}

func TestOnLoginRequiresUserID(t *testing.T) {
	c := NewCoordinator(testLocal(t), newFakeRemote(), testutil.TestLoggerSilent())
	assert.ErrorIs(t, c.OnLogin(context.Background(), "", ""), ErrEmptyUserID)
}
