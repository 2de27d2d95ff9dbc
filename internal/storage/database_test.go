package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/difflens/difflens/internal/azuredevops"
	"github.com/difflens/difflens/internal/config"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(config.DatabaseConfig{
		Type: DBTypeSQLite,
		DSN:  "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCapabilityRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	got, err := db.GetCapability(ctx, "https://tfs.example.com")
	require.NoError(t, err)
	require.Nil(t, got, "unknown origin should come back nil, not an error")

	cap := &azuredevops.Capability{
		Origin:       "https://tfs.example.com",
		APIVersion:   "5.0",
		VersionLabel: "Azure DevOps Server 2019",
		DetectedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, db.SaveCapability(ctx, cap))

	got, err = db.GetCapability(ctx, "https://tfs.example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "5.0", got.APIVersion)
	assert.Equal(t, "Azure DevOps Server 2019", got.VersionLabel)
}

func TestSaveCapabilityUpserts(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	origin := "https://dev.azure.com/fabrikam"
	for _, version := range []string{"6.0", "7.1"} {
		err := db.SaveCapability(ctx, &azuredevops.Capability{
			Origin:       origin,
			APIVersion:   version,
			VersionLabel: "Azure DevOps Services",
			DetectedAt:   time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	got, err := db.GetCapability(ctx, origin)
	require.NoError(t, err)
	assert.Equal(t, "7.1", got.APIVersion, "re-probe should replace the entry")

	var count int64
	require.NoError(t, db.DB().Model(&ServerCapability{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "one row per origin")
}

func TestReviewRecords(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for i, repo := range []string{"widgets", "gadgets", "sprockets"} {
		rec := &ReviewRecord{
			ID:            uuid.NewString(),
			Platform:      "github",
			Organization:  "octo",
			Repository:    repo,
			PullRequestID: 10 + i,
			FileCount:     2,
			TotalLines:    40,
			CreatedAt:     time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.SaveReviewRecord(ctx, rec))
	}

	records, err := db.ListReviewRecords(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "sprockets", records[0].Repository, "newest first")
}
