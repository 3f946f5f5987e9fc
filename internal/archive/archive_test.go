package archive

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"fixity/internal/diff"
	"fixity/internal/digest"
	"fixity/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupArchive(t *testing.T, opts Options) *Archive {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := New(db, opts)
	require.NoError(t, err)
	return a
}

func bigSnapshot(n int) *snapshot.Snapshot {
	entries := make([]digest.Entry, n)
	for i := range entries {
		p := fmt.Sprintf("dir/file%05d.txt", i)
		entries[i] = digest.Entry{Path: p, Sum: digest.Sum([]byte(p))}
	}
	return snapshot.New(entries)
}

func TestNew_RequiresDB(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestArchive_Snapshots(t *testing.T) {
	a := setupArchive(t, Options{})

	t.Run("RecordAndGet", func(t *testing.T) {
		s := bigSnapshot(200)
		rec, err := a.Record("web", "/srv/web", []string{".git"}, "", s, diff.Report{})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.SnapshotID)

		got, gs, err := a.GetSnapshot(rec.SnapshotID)
		require.NoError(t, err)
		assert.Equal(t, "web", got.Name)
		assert.Equal(t, 200, got.Entries)
		assert.Less(t, got.Size, 200*(len("dir/file00000.txt")+66), "body should be compressed")
		assert.Equal(t, []string{".git"}, got.Excludes)
		assert.Equal(t, s.Entries(), gs.Entries())
	})

	t.Run("DecodesWhenNotCached", func(t *testing.T) {
		fresh, err := New(a.db, Options{CacheSize: 1})
		require.NoError(t, err)

		s := bigSnapshot(3)
		rec, err := a.Record("small", "/tmp/x", nil, "", s, diff.Report{})
		require.NoError(t, err)

		_, gs, err := fresh.GetSnapshot(rec.SnapshotID)
		require.NoError(t, err)
		assert.Equal(t, s.Entries(), gs.Entries())
	})

	t.Run("Latest", func(t *testing.T) {
		first, err := a.Record("db", "/srv/db", nil, "", bigSnapshot(1), diff.Report{})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
		second, err := a.Record("db", "/srv/db", nil, first.SnapshotID, bigSnapshot(2), diff.Report{})
		require.NoError(t, err)

		rec, s, err := a.Latest("db")
		require.NoError(t, err)
		assert.Equal(t, second.SnapshotID, rec.ID)
		assert.Equal(t, 2, s.Len())

		list, err := a.ListSnapshots("db")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.SnapshotID, list[0].ID)
		assert.Equal(t, second.SnapshotID, list[1].ID)

		all, err := a.ListSnapshots("")
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, _, err := a.Latest("nothing")
		assert.True(t, errors.Is(err, ErrNotFound))

		_, _, err = a.GetSnapshot("missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("NameRequired", func(t *testing.T) {
		_, err := a.Record("", "/", nil, "", snapshot.Empty(), diff.Report{})
		assert.Error(t, err)
	})
}

func TestArchive_Reports(t *testing.T) {
	a := setupArchive(t, Options{})

	r := diff.Report{Added: []string{"a"}, Modified: []string{"b"}}
	rec, err := a.Record("web", "/srv/web", nil, "", bigSnapshot(2), r)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Empty(t, rec.BaselineID)
	assert.Equal(t, diff.Stats{Added: 1, Modified: 1, Total: 2}, rec.Stats)

	got, err := a.GetReport(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Report, got.Report)
	assert.Equal(t, rec.Stats, got.Stats)
	assert.Equal(t, rec.SnapshotID, got.SnapshotID)

	_, err = a.Record("other", "/srv/other", nil, "", bigSnapshot(1), diff.Report{})
	require.NoError(t, err)

	list, err := a.ListReports("web")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)

	all, err := a.ListReports("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = a.GetReport("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestArchive_RecordIsAtomic(t *testing.T) {
	a := setupArchive(t, Options{})

	first, err := a.Record("web", "/srv/web", nil, "", bigSnapshot(1), diff.Report{Added: []string{"x"}})
	require.NoError(t, err)

	tests := []struct {
		name     string
		baseline string
	}{
		{"stale first run", ""},
		{"unknown baseline", "not-a-snapshot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Record("web", "/srv/web", nil, tt.baseline, bigSnapshot(5), diff.Report{Removed: []string{"y"}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConflict))

			rec, _, err := a.Latest("web")
			require.NoError(t, err)
			assert.Equal(t, first.SnapshotID, rec.ID)

			snaps, err := a.ListSnapshots("web")
			require.NoError(t, err)
			assert.Len(t, snaps, 1)

			reports, err := a.ListReports("web")
			require.NoError(t, err)
			require.Len(t, reports, 1)
			assert.Equal(t, first.ID, reports[0].ID)
		})
	}
}

func TestCompression(t *testing.T) {
	cm, err := newCompressionManager(DefaultCompressionOptions())
	require.NoError(t, err)

	small := []byte("tiny")
	assert.Equal(t, small, cm.compress(small))

	big := []byte(bigSnapshotText(500))
	packed := cm.compress(big)
	assert.Less(t, len(packed), len(big))

	out, err := cm.decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, big, out)

	out, err = cm.decompress(small)
	require.NoError(t, err)
	assert.Equal(t, small, out)
}

func bigSnapshotText(n int) string {
	var text string
	for _, e := range bigSnapshot(n).Entries() {
		text += e.String() + "\n"
	}
	return text
}
