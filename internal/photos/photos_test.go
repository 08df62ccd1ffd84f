package photos_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollbook/internal/model"
	"github.com/roach88/rollbook/internal/photos"
	"github.com/roach88/rollbook/internal/records"
	"github.com/roach88/rollbook/internal/testutil"
)

type fixture struct {
	records *records.Store
	photos  *photos.Store
	root    string
	dbPath  string
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, path := testutil.OpenDB(t, testutil.NewClock())
	root := filepath.Join(t.TempDir(), "photos")
	return fixture{
		records: records.NewStore(db, nil),
		photos:  photos.NewStore(db, root, nil),
		root:    root,
		dbPath:  path,
	}
}

func (f fixture) newRecord(t *testing.T) int64 {
	t.Helper()
	id, err := f.records.Create(context.Background(), model.Record{Name: "Pictured", Mobile: "0300"})
	require.NoError(t, err)
	return id
}

func uploads(n int, tag string) []*model.Upload {
	out := make([]*model.Upload, n)
	for i := range out {
		out[i] = &model.Upload{
			Name: fmt.Sprintf("%s-%d.jpg", tag, i+1),
			Data: []byte(fmt.Sprintf("%s image %d", tag, i+1)),
		}
	}
	return out
}

func orders(ps []model.Photo) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Order
	}
	return out
}

func TestReplaceAll_StoresFilesAndRows(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := f.newRecord(t)

	stored, err := f.photos.ReplaceAll(ctx, id, uploads(4, "front"))
	require.NoError(t, err)
	require.Len(t, stored, 4)

	for i, p := range stored {
		assert.Equal(t, i+1, p.Order)
		assert.Equal(t, id, p.RecordID)
		assert.Equal(t, fmt.Sprintf("front-%d.jpg", i+1), p.OriginalFilename)
		assert.Equal(t, f.photos.Dir(id), filepath.Dir(p.Path))

		data, err := os.ReadFile(p.Path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("front image %d", i+1), string(data))
	}

	listed, err := f.photos.ListForRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, orders(listed))
	for i := range listed {
		assert.Equal(t, stored[i].ID, listed[i].ID)
		assert.Equal(t, stored[i].Path, listed[i].Path)
		assert.True(t, stored[i].CreatedAt.Equal(listed[i].CreatedAt))
	}
}

func TestReplaceAll_SecondBatchLeavesOrphans(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := f.newRecord(t)

	first, err := f.photos.ReplaceAll(ctx, id, uploads(4, "first"))
	require.NoError(t, err)
	second, err := f.photos.ReplaceAll(ctx, id, uploads(2, "second"))
	require.NoError(t, err)

	listed, err := f.photos.ListForRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, orders(listed))
	assert.Equal(t, second[0].Path, listed[0].Path)
	assert.Equal(t, second[1].Path, listed[1].Path)

	// The replaced files are still on disk and nothing references them.
	orphans, err := f.photos.Orphans(ctx)
	require.NoError(t, err)
	var firstPaths []string
	for _, p := range first {
		_, statErr := os.Stat(p.Path)
		assert.NoError(t, statErr, "replaced file %s should remain", p.Path)
		firstPaths = append(firstPaths, p.Path)
	}
	assert.ElementsMatch(t, firstPaths, orphans)
}

func TestReplaceAll_NilEntriesKeepSlotNumbers(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := f.newRecord(t)

	batch := uploads(4, "gap")
	batch[0], batch[2] = nil, nil

	stored, err := f.photos.ReplaceAll(ctx, id, batch)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, orders(stored))
}

func TestReplaceAll_EmptyBatchClearsRows(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := f.newRecord(t)

	_, err := f.photos.ReplaceAll(ctx, id, uploads(3, "x"))
	require.NoError(t, err)
	stored, err := f.photos.ReplaceAll(ctx, id, nil)
	require.NoError(t, err)
	assert.Empty(t, stored)

	listed, err := f.photos.ListForRecord(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestReplaceAll_TooManyPhotos(t *testing.T) {
	f := setup(t)
	id := f.newRecord(t)

	_, err := f.photos.ReplaceAll(context.Background(), id, uploads(5, "many"))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	_, statErr := os.Stat(f.photos.Dir(id))
	assert.True(t, os.IsNotExist(statErr), "nothing should be written")
}

func TestReplaceAll_EmptyData(t *testing.T) {
	f := setup(t)
	id := f.newRecord(t)

	_, err := f.photos.ReplaceAll(context.Background(), id, []*model.Upload{{Name: "blank.jpg"}})
	assert.True(t, model.IsValidation(err))
}

func TestReplaceAll_UnknownRecordLeavesNoFiles(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.photos.ReplaceAll(ctx, 77, uploads(2, "ghost"))
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))

	_, statErr := os.Stat(f.photos.Dir(77))
	assert.True(t, os.IsNotExist(statErr), "written files and directory should be removed")
}

func TestReplaceAll_RejectedBatchKeepsPreviousRows(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := f.newRecord(t)

	before, err := f.photos.ReplaceAll(ctx, id, uploads(2, "keep"))
	require.NoError(t, err)

	_, err = f.photos.ReplaceAll(ctx, id, uploads(6, "rejected"))
	require.Error(t, err)

	listed, err := f.photos.ListForRecord(ctx, id)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, before[0].Path, listed[0].Path)
}

func TestReplaceAll_ExtensionFromOriginalName(t *testing.T) {
	f := setup(t)
	id := f.newRecord(t)

	stored, err := f.photos.ReplaceAll(context.Background(), id, []*model.Upload{
		{Name: "scan.PNG", Data: []byte("png")},
		{Name: "noext", Data: []byte("raw")},
	})
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(stored[0].Path))
	assert.Equal(t, ".jpg", filepath.Ext(stored[1].Path))
}

func TestListForRecord_ScopedToRecord(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a, b := f.newRecord(t), f.newRecord(t)

	_, err := f.photos.ReplaceAll(ctx, a, uploads(3, "a"))
	require.NoError(t, err)
	_, err = f.photos.ReplaceAll(ctx, b, uploads(1, "b"))
	require.NoError(t, err)

	listed, err := f.photos.ListForRecord(ctx, b)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "b-1.jpg", listed[0].OriginalFilename)
}

func TestCollectOrphans(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := f.newRecord(t)

	first, err := f.photos.ReplaceAll(ctx, id, uploads(3, "old"))
	require.NoError(t, err)
	current, err := f.photos.ReplaceAll(ctx, id, uploads(1, "new"))
	require.NoError(t, err)

	removed, err := f.photos.CollectOrphans(ctx)
	require.NoError(t, err)
	assert.Len(t, removed, 3)

	for _, p := range first {
		_, statErr := os.Stat(p.Path)
		assert.True(t, os.IsNotExist(statErr))
	}
	_, statErr := os.Stat(current[0].Path)
	assert.NoError(t, statErr, "referenced photo must survive")

	orphans, err := f.photos.Orphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestOrphans_MissingRoot(t *testing.T) {
	f := setup(t)
	orphans, err := f.photos.Orphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestPhotosSurviveReload(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := f.newRecord(t)

	stored, err := f.photos.ReplaceAll(ctx, id, uploads(2, "durable"))
	require.NoError(t, err)

	reloaded := photos.NewStore(testutil.OpenDBAt(t, f.dbPath, nil), f.root, nil)
	listed, err := reloaded.ListForRecord(ctx, id)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, stored[1].Path, listed[1].Path)
}

func TestCollectOrphans_RelativeRootFromAnotherDirectory(t *testing.T) {
	ctx := context.Background()
	db, _ := testutil.OpenDB(t, testutil.NewClock())
	recs := records.NewStore(db, nil)
	id, err := recs.Create(ctx, model.Record{Name: "Relative", Mobile: "0300"})
	require.NoError(t, err)

	base := t.TempDir()
	t.Chdir(base)
	stored, err := photos.NewStore(db, filepath.Join("data", "photos"), nil).ReplaceAll(ctx, id, uploads(2, "rel"))
	require.NoError(t, err)
	for _, p := range stored {
		assert.True(t, filepath.IsAbs(p.Path), "stored path %q", p.Path)
	}

	t.Chdir(t.TempDir())
	gc := photos.NewStore(db, filepath.Join(base, "data", "photos"), nil)
	removed, err := gc.CollectOrphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)

	for _, p := range stored {
		_, statErr := os.Stat(p.Path)
		assert.NoError(t, statErr, "referenced photo must survive")
	}
}
