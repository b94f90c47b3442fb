package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Counter int               `json:"counter"`
	Names   map[string]string `json:"names"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLoadMissingLeavesZeroValue(t *testing.T) {
	s := newTestStore(t)

	var doc testDoc
	require.NoError(t, s.Load("absent", &doc))
	assert.Zero(t, doc.Counter)
	assert.Nil(t, doc.Names)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	in := testDoc{Counter: 3, Names: map[string]string{"42": "alice"}}
	require.NoError(t, s.Save("users", in))

	var out testDoc
	require.NoError(t, s.Load("users", &out))
	assert.Equal(t, in, out)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "users.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"counter\": 3")
}

func TestUpdateAppliesMutation(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("stats", testDoc{Counter: 1}))

	var doc testDoc
	err := s.Update("stats", &doc, func() error {
		doc.Counter++
		return nil
	})
	require.NoError(t, err)

	var out testDoc
	require.NoError(t, s.Load("stats", &out))
	assert.Equal(t, 2, out.Counter)
}

func TestUpdateErrorAbortsSave(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("stats", testDoc{Counter: 5}))

	var doc testDoc
	err := s.Update("stats", &doc, func() error {
		doc.Counter = 99
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var out testDoc
	require.NoError(t, s.Load("stats", &out))
	assert.Equal(t, 5, out.Counter)
}

func TestUpdateSerializesConcurrentWriters(t *testing.T) {
	s := newTestStore(t)

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			var doc testDoc
			_ = s.Update("counters", &doc, func() error {
				doc.Counter++
				return nil
			})
		}()
	}
	wg.Wait()

	var out testDoc
	require.NoError(t, s.Load("counters", &out))
	assert.Equal(t, writers, out.Counter)
}
