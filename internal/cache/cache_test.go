package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendermap/internal/model"
	"sendermap/internal/store"
	"sendermap/internal/treemap"
)

func testCache(t *testing.T) (*Cache, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

// brokenKV fails every operation.
type brokenKV struct{}

var errDisk = errors.New("disk on fire")

func (brokenKV) Get(context.Context, string) (string, bool, error) { return "", false, errDisk }
func (brokenKV) Set(context.Context, string, string) error         { return errDisk }
func (brokenKV) Remove(context.Context, string) error              { return errDisk }

func TestSenders_RoundTrip(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	assert.Nil(t, c.Senders(ctx))

	in := []model.Sender{
		{ID: "a@x.com", Name: "a@x.com", Size: 10, Domain: "x.com"},
		{ID: "b@y.com", Name: "b@y.com", Size: 3, Domain: "y.com"},
	}
	c.SaveSenders(ctx, in)
	assert.Equal(t, in, c.Senders(ctx))
}

func TestSenders_DropsMalformedEntries(t *testing.T) {
	c, s := testCache(t)
	ctx := context.Background()

	raw := `[
		{"id":"a","name":"a","size":"NaN"},
		{"id":"b","name":"b","size":5},
		{"id":"c","name":"c","size":0},
		{"id":"d","name":"d","size":-1},
		{"id":"e","name":"e","size":2.5},
		{"id":"f","name":"f"},
		{"id":"g","name":"g","size":"7"},
		null,
		42,
		{"id":"h","name":"h","size":1e1,"domain":"h.com","parent":""}
	]`
	require.NoError(t, s.Set(ctx, KeySenders, raw))

	assert.Equal(t, []model.Sender{
		{ID: "b", Name: "b", Size: 5},
		{ID: "h", Name: "h", Size: 10, Domain: "h.com"},
	}, c.Senders(ctx))
}

func TestSenders_NaNEntryNeverReachesGrouping(t *testing.T) {
	c, s := testCache(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, KeySenders, `[{"id":"bad","size":"NaN"},{"id":"ok","name":"ok","size":5}]`))

	got := treemap.Group(c.Senders(ctx), 0, model.ModeRegroup)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Key)
	assert.Equal(t, 5, got[0].Value)
}

func TestSenders_NothingValidIsNoData(t *testing.T) {
	c, s := testCache(t)
	ctx := context.Background()

	for _, raw := range []string{
		`[{"id":"a","size":0}]`,
		`[]`,
		`{"id":"a","size":3}`,
		`not json`,
		``,
	} {
		require.NoError(t, s.Set(ctx, KeySenders, raw))
		assert.Nil(t, c.Senders(ctx), "raw %q", raw)
	}
}

func TestSaveSenders_EmptyRunStoresEmptyList(t *testing.T) {
	c, s := testCache(t)
	ctx := context.Background()

	c.SaveSenders(ctx, nil)
	raw, ok, err := s.Get(ctx, KeySenders)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", raw)
}

func TestSettings(t *testing.T) {
	c, s := testCache(t)
	ctx := context.Background()

	assert.Equal(t, 0, c.Total(ctx))
	assert.Equal(t, 0, c.Cutoff(ctx))
	assert.Equal(t, model.ModeRegroup, c.Mode(ctx))

	c.SaveTotal(ctx, 120)
	c.SaveCutoff(ctx, 4)
	c.SaveMode(ctx, model.ModeHide)
	assert.Equal(t, 120, c.Total(ctx))
	assert.Equal(t, 4, c.Cutoff(ctx))
	assert.Equal(t, model.ModeHide, c.Mode(ctx))

	require.NoError(t, s.Set(ctx, KeyCutoff, "banana"))
	require.NoError(t, s.Set(ctx, KeyMode, "sideways"))
	assert.Equal(t, 0, c.Cutoff(ctx))
	assert.Equal(t, model.ModeRegroup, c.Mode(ctx))

	require.NoError(t, s.Set(ctx, KeyCutoff, "-3"))
	assert.Equal(t, 0, c.Cutoff(ctx))
}

func TestClear_KeepsSettings(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	c.SaveSenders(ctx, []model.Sender{{ID: "a", Name: "a", Size: 1}})
	c.SaveTotal(ctx, 1)
	c.SaveCutoff(ctx, 1)
	c.SaveMode(ctx, model.ModeHide)

	c.Clear(ctx)
	assert.Nil(t, c.Senders(ctx))
	assert.Equal(t, 0, c.Total(ctx))
	assert.Equal(t, 1, c.Cutoff(ctx))
	assert.Equal(t, model.ModeHide, c.Mode(ctx))
}

func TestBrokenStoreFallsBackToDefaults(t *testing.T) {
	c := New(brokenKV{})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		c.SaveSenders(ctx, []model.Sender{{ID: "a", Size: 1}})
		c.SaveTotal(ctx, 1)
		c.SaveCutoff(ctx, 1)
		c.SaveMode(ctx, model.ModeHide)
		c.Clear(ctx)
	})
	assert.Nil(t, c.Senders(ctx))
	assert.Equal(t, 0, c.Total(ctx))
	assert.Equal(t, 0, c.Cutoff(ctx))
	assert.Equal(t, model.ModeRegroup, c.Mode(ctx))
}
