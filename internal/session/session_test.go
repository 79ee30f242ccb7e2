package session

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/supportagent/internal/model"
)

func turns(n int) []model.Turn {
	out := make([]model.Turn, n)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range out {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		out[i] = model.Turn{Role: role, Content: fmt.Sprintf("m%d", i), Timestamp: base.Add(time.Duration(i) * time.Second)}
	}
	return out
}

func TestTrimKeepsMostRecent(t *testing.T) {
	in := turns(5)
	out := Trim(in, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "m2", out[0].Content)
	assert.Equal(t, "m4", out[2].Content)

	out[0].Content = "changed"
	assert.Equal(t, "m2", in[2].Content)

	assert.Len(t, Trim(in, 0), 5)
	assert.Len(t, Trim(in, 10), 5)
}

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	got, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Put(ctx, "a", turns(4)))
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, model.RoleAssistant, got[1].Role)
	assert.True(t, got[3].Timestamp.Equal(turns(4)[3].Timestamp))

	require.NoError(t, s.Put(ctx, "a", turns(9)))
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, "m3", got[0].Content)
	assert.Equal(t, "m8", got[5].Content)

	require.NoError(t, s.Put(ctx, "b", turns(2)))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	existed, err := s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, existed)

	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(6, time.Hour)
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(6, time.Hour)

	in := turns(2)
	require.NoError(t, s.Put(ctx, "a", in))
	in[0].Content = "mutated"

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got[1].Content = "mutated too"

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "m0", again[0].Content)
	assert.Equal(t, "m1", again[1].Content)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(6, 20*time.Millisecond)
	require.NoError(t, s.Put(ctx, "a", turns(2)))

	time.Sleep(50 * time.Millisecond)
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "sessions.db"), 6, time.Hour)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreExpires(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), 6, time.Hour)
	require.NoError(t, err)
	defer s.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Put(ctx, "a", turns(2)))

	now = now.Add(2 * time.Hour)
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	s, err := NewSQLiteStore(path, 6, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a", turns(2)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, 6, time.Hour)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "support:session:abc", redisKey("abc"))
}
