package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/rollbook/internal/model"
	"github.com/roach88/rollbook/internal/testutil"
)

func newService(t *testing.T) (*Service, *observer.ObservedLogs) {
	t.Helper()
	db, _ := testutil.OpenDB(t, testutil.NewClock())
	core, logs := observer.New(zapcore.DebugLevel)
	return New(db, filepath.Join(t.TempDir(), "photos"), zap.New(core)), logs
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, logs := newService(t)

	ok := svc.Login(ctx, "admin", "admin123")
	require.True(t, ok.Success)
	assert.Equal(t, "admin", ok.User.Username)

	for _, tc := range [][2]string{{"admin", "wrong"}, {"ghost", "admin123"}} {
		res := svc.Login(ctx, tc[0], tc[1])
		assert.False(t, res.Success)
		assert.Nil(t, res.User)
		assert.Equal(t, model.InvalidCredentials, res.Message)
	}
	assert.Equal(t, 2, logs.FilterMessage("operation rejected").Len())
}

func TestCreateAndGetRecord(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	created := svc.CreateRecord(ctx, model.Record{Name: "Ayesha", Mobile: "0300", TotalAmount: 100})
	require.True(t, created.Success, created.Message)

	require.True(t, svc.AddPayment(ctx, created.ID, 30, "2024-01-10").Success)
	require.True(t, svc.AddPayment(ctx, created.ID, 20, "2024-02-10").Success)

	got := svc.GetRecord(ctx, created.ID)
	require.True(t, got.Success)
	require.NotNil(t, got.Record)
	assert.Equal(t, "Ayesha", got.Record.Name)
	require.Len(t, got.Payments, 2)
	assert.Equal(t, "2024-02-10", got.Payments[0].PaymentDate)
	assert.Equal(t, "50", got.Balance.Remaining.String())
}

func TestCreateRecord_ValidationMessage(t *testing.T) {
	svc, logs := newService(t)

	res := svc.CreateRecord(context.Background(), model.Record{Mobile: "0300"})
	assert.False(t, res.Success)
	assert.Zero(t, res.ID)
	assert.Equal(t, "name is required", res.Message)
	assert.Equal(t, 1, logs.FilterField(zap.String("op", "create-record")).Len())
}

func TestGetRecord_MissingIsAbsentNotFailure(t *testing.T) {
	res := mustService(t).GetRecord(context.Background(), 99)
	assert.True(t, res.Success)
	assert.Nil(t, res.Record)
	assert.Empty(t, res.Message)
}

func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)

	id := svc.CreateRecord(ctx, model.Record{Name: "Old", Mobile: "1"}).ID
	require.True(t, svc.UpdateRecord(ctx, id, model.Record{Name: "New", Mobile: "2"}).Success)
	assert.Equal(t, "New", svc.GetRecord(ctx, id).Record.Name)

	missing := svc.UpdateRecord(ctx, 99, model.Record{Name: "X", Mobile: "1"})
	assert.False(t, missing.Success)
	assert.NotEmpty(t, missing.Message)
}

func TestAddPayment_Rejections(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	id := svc.CreateRecord(ctx, model.Record{Name: "A", Mobile: "1"}).ID

	assert.False(t, svc.AddPayment(ctx, 99, 10, "2024-01-01").Success)
	assert.False(t, svc.AddPayment(ctx, id, 10, " ").Success)
	assert.True(t, svc.AddPayment(ctx, id, -5, "2024-01-01").Success)
}

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)

	empty := svc.DashboardStats(ctx)
	assert.Zero(t, empty.RecordCount)
	assert.NotNil(t, empty.RecentPayments)

	a := svc.CreateRecord(ctx, model.Record{Name: "A", Mobile: "1", TotalAmount: 100}).ID
	svc.CreateRecord(ctx, model.Record{Name: "B", Mobile: "2", TotalAmount: 50})
	for i := 0; i < 6; i++ {
		require.True(t, svc.AddPayment(ctx, a, 10, "2024-01-01").Success)
	}

	stats := svc.DashboardStats(ctx)
	assert.Equal(t, int64(2), stats.RecordCount)
	assert.Equal(t, 150.0, stats.TotalOwed)
	assert.Equal(t, 60.0, stats.TotalReceived)
	assert.Len(t, stats.RecentPayments, 5)
}

func TestListRecords_NewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	svc.CreateRecord(ctx, model.Record{Name: "First", Mobile: "1"})
	svc.CreateRecord(ctx, model.Record{Name: "Second", Mobile: "2"})

	list := svc.ListRecords(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Name)
}

func TestPhotos(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	id := svc.CreateRecord(ctx, model.Record{Name: "A", Mobile: "1"}).ID

	res := svc.ReplacePhotos(ctx, id, []*model.Upload{nil, {Name: "b.png", Data: []byte("png")}})
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Photos, 1)
	assert.Equal(t, 2, res.Photos[0].Order)

	listed := svc.ListPhotos(ctx, id)
	require.True(t, listed.Success)
	require.Len(t, listed.Photos, 1)
	data, err := os.ReadFile(listed.Photos[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	tooMany := svc.ReplacePhotos(ctx, id, make([]*model.Upload, 5))
	assert.False(t, tooMany.Success)
	assert.NotNil(t, tooMany.Photos)

	unknown := svc.ReplacePhotos(ctx, 99, []*model.Upload{{Name: "a.jpg", Data: []byte("x")}})
	assert.False(t, unknown.Success)
}

func TestOpen_CreatesDataDirectoryAndSeeds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	svc, err := Open(context.Background(), Config{
		DatabasePath: filepath.Join(dir, "rollbook.db"),
		PhotoRoot:    filepath.Join(dir, "photos"),
		Seed:         testutil.TestSeed(),
	})
	require.NoError(t, err)
	defer svc.Close()

	assert.FileExists(t, filepath.Join(dir, "rollbook.db"))
	assert.True(t, svc.Login(context.Background(), "admin", "admin123").Success)
}

func mustService(t *testing.T) *Service {
	t.Helper()
	svc, _ := newService(t)
	return svc
}
