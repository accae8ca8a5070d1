package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/testutil"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func sampleEntry() Entry {
	return Entry{
		TenantID:   "tnt_1",
		DriverID:   "drv_1",
		Category:   enum.ViolationOverSpeeding,
		Source:     enum.ViolationSourceEmail,
		SourceRef:  "msg-1@vendor",
		OccurredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		RawExcerpt: "Driver ID: DRV-1 overspeeding",
	}
}

func TestCreateIfAbsent_Idempotent(t *testing.T) {
	store := testutil.NewMemStore()
	l := New(getLogger(), store.Repositories().ViolationRepository)
	ctx := context.Background()

	first, created, err := l.CreateIfAbsent(ctx, sampleEntry())
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, first)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, enum.ViolationStatusPendingMatch, first.Status)

	second, created, err := l.CreateIfAbsent(ctx, sampleEntry())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	assert.Len(t, store.Violations(), 1)
}

func TestCreateIfAbsent_DifferentCategoryIsNewRecord(t *testing.T) {
	store := testutil.NewMemStore()
	l := New(getLogger(), store.Repositories().ViolationRepository)
	ctx := context.Background()

	_, created, err := l.CreateIfAbsent(ctx, sampleEntry())
	require.NoError(t, err)
	require.True(t, created)

	entry := sampleEntry()
	entry.Category = enum.ViolationSeatBelt
	_, created, err = l.CreateIfAbsent(ctx, entry)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Len(t, store.Violations(), 2)
}

func TestCreateIfAbsent_InsertConflictReturnsExisting(t *testing.T) {
	store := testutil.NewMemStore()
	repos := store.Repositories()
	l := New(getLogger(), repos.ViolationRepository)
	ctx := context.Background()

	// a concurrent writer commits the same key between the lookup and the insert
	fired := false
	var winner *models.Violation
	store.InsertHook = func(v *models.Violation) {
		if fired {
			return
		}
		fired = true
		w := *v
		w.ID = ""
		require.NoError(t, repos.ViolationRepository.Insert(ctx, &w))
		winner = &w
	}

	got, created, err := l.CreateIfAbsent(ctx, sampleEntry())

	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, winner)
	assert.Equal(t, winner.ID, got.ID)
	assert.Len(t, store.Violations(), 1)
}

func TestCreateIfAbsent_ConcurrentDuplicates(t *testing.T) {
	store := testutil.NewMemStore()
	l := New(getLogger(), store.Repositories().ViolationRepository)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	ids := map[string]struct{}{}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, created, err := l.CreateIfAbsent(ctx, sampleEntry())
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if created {
				createdCount++
			}
			if v != nil {
				ids[v.ID] = struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Len(t, ids, 1)
	assert.Len(t, store.Violations(), 1)
}

func TestCreateIfAbsent_Defaults(t *testing.T) {
	store := testutil.NewMemStore()
	l := New(getLogger(), store.Repositories().ViolationRepository)

	entry := sampleEntry()
	entry.Source = ""
	entry.OccurredAt = time.Time{}
	entry.Status = enum.ViolationStatusMatched

	v, created, err := l.CreateIfAbsent(context.Background(), entry)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enum.ViolationSourceEmail, v.Source)
	assert.Equal(t, enum.ViolationStatusMatched, v.Status)
	assert.False(t, v.OccurredAt.IsZero())
}

func TestCreateIfAbsent_Validation(t *testing.T) {
	l := New(getLogger(), testutil.NewMemStore().Repositories().ViolationRepository)
	ctx := context.Background()

	entry := sampleEntry()
	entry.TenantID = ""
	_, _, err := l.CreateIfAbsent(ctx, entry)
	assert.ErrorIs(t, err, coreerr.ErrTenantMissing)

	entry = sampleEntry()
	entry.Category = "Littering"
	_, _, err = l.CreateIfAbsent(ctx, entry)
	assert.ErrorIs(t, err, coreerr.ErrInvalidInput)

	entry = sampleEntry()
	entry.SourceRef = " "
	_, _, err = l.CreateIfAbsent(ctx, entry)
	assert.ErrorIs(t, err, coreerr.ErrInvalidInput)
}

func TestFindBySourceRef(t *testing.T) {
	store := testutil.NewMemStore()
	l := New(getLogger(), store.Repositories().ViolationRepository)
	ctx := context.Background()

	_, _, err := l.CreateIfAbsent(ctx, sampleEntry())
	require.NoError(t, err)

	found, err := l.FindBySourceRef(ctx, "tnt_1", "msg-1@vendor")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = l.FindBySourceRef(ctx, "tnt_2", "msg-1@vendor")
	require.NoError(t, err)
	assert.Empty(t, found)
}
