package prefs

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ApplyPersistsAndReloads(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	two := 2
	_, err = s.Apply("user-1", Directives{Decimals: &two, Rules: []string{"always show totals in usd"}})
	require.NoError(t, err)

	doc, err := s.Load("user-1")
	require.NoError(t, err)
	assert.Equal(t, "2", doc.Values["decimals"])
	assert.Equal(t, []string{"always show totals in usd"}, doc.Rules)
}

func TestStore_ApplyIdempotentOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	off := false
	d := Directives{ShowCashFlow: &off, ExcludeAssets: []string{"DOGE"}}

	first, err := s.Apply("user-1", d)
	require.NoError(t, err)
	second, err := s.Apply("user-1", d)
	require.NoError(t, err)

	assert.Equal(t, first.Render(), second.Render())
}

func TestStore_MissingFileIsEmptyDocument(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	doc, err := s.Load("never-seen")
	require.NoError(t, err)
	assert.Empty(t, doc.Values)
	assert.Empty(t, doc.Rules)
}

func TestStore_PathSanitizesUserID(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	_, err = s.Apply("../../etc/passwd", Directives{Rules: []string{"x"}, ExcludeAssets: []string{"BTC"}})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestStore_ConcurrentWritersSameUser(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Apply("user-1", Directives{Rules: []string{ruleName(i)}})
		}(i)
	}
	wg.Wait()

	doc, err := s.Load("user-1")
	require.NoError(t, err)
	assert.Len(t, doc.Rules, 16, "per-user serialization must not lose writes")
}
