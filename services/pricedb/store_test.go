package pricedb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"pricewatch-backend/lib/testutil"
	"pricewatch-backend/services/pricedb/db"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) Store {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "pricedb",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	return NewStore(result.DB)
}

func testRecords() []PriceRecord {
	return []PriceRecord{
		{
			Major: "공통자재", Middle: "봉강", Sub: "철근",
			Specification: "D10, 0.560", Region: "서울",
			Date: "2023-05", Price: 1234, Unit: "원/톤", HasUnit: true,
		},
		{
			Major: "공통자재", Middle: "봉강", Sub: "철근",
			Specification: "D10, 0.560", Region: "부산",
			Date: "2023-05", Price: 1200, Unit: "원/톤", HasUnit: true,
		},
		{
			Major: "공통자재", Middle: "봉강", Sub: "철근",
			Specification: "D13, 0.995", Region: "서울",
			Date: "2023-05", Price: 1180,
		},
	}
}

func TestUpsertIdempotence(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := store.UpsertBatch(ctx, testRecords())
	require.NoError(t, err)

	count, err := store.Count(ctx, "공통자재", "", "")
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	// re-running the same extraction must not duplicate anything
	err = store.UpsertBatch(ctx, testRecords())
	require.NoError(t, err)

	count, err = store.Count(ctx, "공통자재", "", "")
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestUpsertSupersedesPrice(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	records := testRecords()
	require.NoError(t, store.UpsertBatch(ctx, records[:1]))

	updated := records[0]
	updated.Price = 1300
	require.NoError(t, store.UpsertBatch(ctx, []PriceRecord{updated}))

	count, err := store.Count(ctx, "", "", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	var price int64
	err = storeDB(store).QueryRowContext(ctx,
		`SELECT price FROM price_records WHERE specification = ? AND region = ?`,
		"D10, 0.560", "서울",
	).Scan(&price)
	require.NoError(t, err)
	require.Equal(t, int64(1300), price)
}

func TestEmptyBatchIsNoop(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.UpsertBatch(context.Background(), nil))

	count, err := store.Count(context.Background(), "", "", "")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestUnresolvedUnits(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, testRecords()))

	unresolved, err := store.UnresolvedUnits(ctx, "공통자재")
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, "D13, 0.995", unresolved[0].Specification)
}

func storeDB(s Store) *sql.DB {
	return s.db
}
