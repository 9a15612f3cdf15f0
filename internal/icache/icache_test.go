package icache

import (
	"sync"
	"testing"

	"github.com/shadowfs/shadowfsd/internal/shadowmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache() *Icache {
	return New(1, 1, Attr{Mode: 0040755, Ino: 1}, 3)
}

func TestNew_RootIsSelfReferencing(t *testing.T) {
	ic := newTestCache()
	assert.Equal(t, 1, ic.Count())
	assert.Equal(t, RootHandle, ic.Root().Handle())
}

func TestAllocate_AssignsDistinctHandles(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()

	a := ic.Allocate(root, "a", 2, 1, KindRegularFile, nil, Attr{Ino: 2}, -1)
	b := ic.Allocate(root, "b", 3, 1, KindRegularFile, nil, Attr{Ino: 3}, -1)

	assert.NotEqual(t, a.Handle(), b.Handle())
	assert.Equal(t, 3, ic.Count())
}

func TestAllocate_TakesReferenceOnParent(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()

	child := ic.Allocate(root, "child", 2, 1, KindDirectory, nil, Attr{Ino: 2}, 4)
	require.NotNil(t, child)

	// Dropping the child's only reference must recurse onto root, but
	// root's baseline self-reference keeps it alive and indexed.
	ic.Put(child, 1)
	assert.Equal(t, 1, ic.Count())
	assert.Equal(t, RootHandle, ic.Root().Handle())
}

func TestFindByIno_DedupsConcurrentLookups(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()

	first := ic.Allocate(root, "f", 2, 1, KindRegularFile, nil, Attr{Ino: 2}, -1)

	rec, ok := ic.FindByIno(2, 1)
	require.True(t, ok)
	assert.Same(t, first, rec)
	assert.Equal(t, 2, ic.Count())
}

func TestGetFromHandle_UnknownHandleFails(t *testing.T) {
	ic := newTestCache()
	_, err := ic.GetFromHandle(Handle(9999))
	assert.Error(t, err)
}

func TestPut_DestroysAtZeroRefcount(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()

	rec := ic.Allocate(root, "f", 2, 1, KindRegularFile, nil, Attr{Ino: 2}, -1)
	h := rec.Handle()

	ic.Put(rec, 1)

	_, err := ic.GetFromHandle(h)
	assert.Error(t, err)
	_, ok := ic.FindByIno(2, 1)
	assert.False(t, ok)
}

func TestPut_PinnedRecordSurvivesZeroRefcount(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()

	rec := ic.Allocate(root, "f", 2, 1, KindRegularFile, nil, Attr{Ino: 2}, -1)
	ic.SetAttr(rec, func(a *Attr) { a.Mode = 0100644 })

	ic.Put(rec, 1)

	got, err := ic.GetFromHandle(rec.Handle())
	require.NoError(t, err)
	assert.Same(t, rec, got)
	ic.Put(got, 1) // undo the GetFromHandle borrow
}

func TestPut_PanicsOnUnderflow(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()
	rec := ic.Allocate(root, "f", 2, 1, KindRegularFile, nil, Attr{Ino: 2}, -1)

	assert.Panics(t, func() { ic.Put(rec, 2) })
}

func TestSetFmetaIfMissing_DoesNotOverwriteExisting(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()

	rec := ic.Allocate(root, "f", 2, 1, KindRegularFile, sampleMeta("one"), Attr{Ino: 2}, -1)
	ic.SetFmetaIfMissing(rec, sampleMeta("two"))

	assert.Equal(t, "one", ic.Fmeta(rec).Path)
}

func TestSetFmetaIfMissing_FillsAbsent(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()

	rec := ic.Allocate(root, "f", 2, 1, KindRegularFile, nil, Attr{Ino: 2}, -1)
	ic.SetFmetaIfMissing(rec, sampleMeta("filled"))

	assert.Equal(t, "filled", ic.Fmeta(rec).Path)
}

func TestFlock_ExclusiveThenUnlock(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()
	rec := ic.Allocate(root, "f", 2, 1, KindRegularFile, nil, Attr{Ino: 2}, -1)

	require.NoError(t, ic.TryLockExclusive(rec))
	assert.Error(t, ic.TryLockExclusive(rec))
	assert.True(t, ic.FlockHeld(rec))

	require.NoError(t, ic.Unflock(rec))
	assert.Error(t, ic.Unflock(rec))
}

// TestConcurrentLookupDedup races many goroutines allocating-or-finding the
// same (ino, dev) pair and asserts exactly one record ever exists for it.
func TestConcurrentLookupDedup(t *testing.T) {
	ic := newTestCache()
	root := ic.Root()

	const n = 64
	recs := make([]*Record, n)
	var wg sync.WaitGroup
	var allocMu sync.Mutex

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if rec, ok := ic.FindByIno(2, 1); ok {
				recs[i] = rec
				return
			}
			allocMu.Lock()
			defer allocMu.Unlock()
			if rec, ok := ic.FindByIno(2, 1); ok {
				recs[i] = rec
				return
			}
			recs[i] = ic.Allocate(root, "race", 2, 1, KindRegularFile, nil, Attr{Ino: 2}, -1)
		}(i)
	}
	wg.Wait()

	first := recs[0]
	for _, r := range recs {
		assert.Same(t, first, r)
	}
	for _, r := range recs {
		ic.Put(r, 1)
	}
	assert.Equal(t, 1, ic.Count())
}

func sampleMeta(path string) *shadowmeta.Meta {
	return &shadowmeta.Meta{Path: path}
}
