package storage_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"repo-scan/storage"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, *storage.Storage) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := &storage.Storage{DB: db}
	err = store.InitSchema(context.Background())
	require.NoError(t, err)

	return db, store
}

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestUpsertAndGetPackageScore(t *testing.T) {
	_, store := setupTestDB(t)

	score := storage.PackageScore{
		Name:                    "Flask",
		VulnerabilityPercentage: 25,
		SupplyChain:             1,
		CheckedAt:               now,
	}

	err := store.UpsertPackageScore(context.Background(), score)
	assert.NoError(t, err)

	got, err := store.GetPackageScore(context.Background(), "FLASK")
	require.NoError(t, err)
	assert.Equal(t, "flask", got.Name)
	assert.Equal(t, 25.0, got.VulnerabilityPercentage)
	assert.Equal(t, 1, got.SupplyChain)
	assert.True(t, now.Equal(got.CheckedAt))

	score.VulnerabilityPercentage = 50
	score.CodeInjection = 1
	require.NoError(t, store.UpsertPackageScore(context.Background(), score))

	got, err = store.GetPackageScore(context.Background(), "flask")
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.VulnerabilityPercentage)
	assert.Equal(t, 1, got.CodeInjection)
}

func TestGetPackageScore_NotFound(t *testing.T) {
	_, store := setupTestDB(t)

	_, err := store.GetPackageScore(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListPackageScores(t *testing.T) {
	_, store := setupTestDB(t)

	scores := []storage.PackageScore{
		{Name: "requests", VulnerabilityPercentage: 0, CheckedAt: now},
		{Name: "reqeusts", VulnerabilityPercentage: 100, CheckedAt: now},
		{Name: "flask", VulnerabilityPercentage: 50, CheckedAt: now},
	}
	require.NoError(t, store.UpsertPackageScores(context.Background(), scores))

	t.Run("list all", func(t *testing.T) {
		list, err := store.ListPackageScoresFiltered(context.Background(), "", nil)
		assert.NoError(t, err)
		assert.Len(t, list, 3)
		assert.Equal(t, "flask", list[0].Name)
	})

	t.Run("filter by name", func(t *testing.T) {
		list, err := store.ListPackageScoresFiltered(context.Background(), "REQ", nil)
		assert.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("filter by min percentage", func(t *testing.T) {
		min := 50.0
		list, err := store.ListPackageScoresFiltered(context.Background(), "", &min)
		assert.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("filter by name and min percentage", func(t *testing.T) {
		min := 50.0
		list, err := store.ListPackageScoresFiltered(context.Background(), "req", &min)
		assert.NoError(t, err)
		assert.Len(t, list, 1)
		assert.Equal(t, "reqeusts", list[0].Name)
	})
}

func TestDeletePackageScore(t *testing.T) {
	_, store := setupTestDB(t)

	require.NoError(t, store.UpsertPackageScore(context.Background(), storage.PackageScore{Name: "six", CheckedAt: now}))
	require.NoError(t, store.DeletePackageScore(context.Background(), "Six"))

	_, err := store.GetPackageScore(context.Background(), "six")
	assert.Error(t, err)
}

func TestGetFreshScores(t *testing.T) {
	_, store := setupTestDB(t)

	require.NoError(t, store.UpsertPackageScores(context.Background(), []storage.PackageScore{
		{Name: "flask", VulnerabilityPercentage: 25, CheckedAt: now},
		{Name: "django", VulnerabilityPercentage: 0, CheckedAt: now.Add(-48 * time.Hour)},
		{Name: "numpy", VulnerabilityPercentage: 0, CheckedAt: now},
	}))

	got, err := store.GetFreshScores(context.Background(), []string{"Flask", "django", "pandas"}, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 25.0, got["flask"].VulnerabilityPercentage)

	empty, err := store.GetFreshScores(context.Background(), nil, now)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPurgeBefore(t *testing.T) {
	_, store := setupTestDB(t)

	require.NoError(t, store.UpsertPackageScores(context.Background(), []storage.PackageScore{
		{Name: "old", CheckedAt: now.Add(-72 * time.Hour)},
		{Name: "older", CheckedAt: now.Add(-96 * time.Hour)},
		{Name: "new", CheckedAt: now},
	}))

	removed, err := store.PurgeBefore(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	list, err := store.ListPackageScoresFiltered(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "new", list[0].Name)
}
