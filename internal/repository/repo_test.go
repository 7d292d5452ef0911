package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zeru/price-oracle/internal/models"
	"github.com/zeru/price-oracle/internal/repository"
	"github.com/zeru/price-oracle/internal/testutil"
	"github.com/zeru/price-oracle/internal/timeutil"
)

func TestPriceRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewPriceRepo(pool)
	ctx := context.Background()

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	// Unique token per run so reruns do not collide.
	token := fmt.Sprintf("0xtest%d", time.Now().UnixNano())
	network := "ethereum"
	day1 := timeutil.StartOfDayUTC(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC).Unix())
	day2 := day1 + 86400
	day3 := day2 + 86400

	for _, p := range []models.PricePoint{
		{Token: token, Network: network, Date: day1, Price: 10},
		{Token: token, Network: network, Date: day3, Price: 30},
	} {
		if err := repo.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	// Exact match
	got, err := repo.GetAt(ctx, token, network, day1)
	if err != nil {
		t.Fatalf("GetAt: %v", err)
	}
	if got == nil || got.Price != 10 {
		t.Fatalf("GetAt day1: got %+v, want price 10", got)
	}

	// Missing bucket is nil, not an error.
	got, err = repo.GetAt(ctx, token, network, day2)
	if err != nil {
		t.Fatalf("GetAt day2: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing bucket, got %+v", got)
	}

	// Bracketing lookups around mid-day2.
	mid := day2 + 43200
	before, err := repo.NearestBefore(ctx, token, network, mid)
	if err != nil {
		t.Fatalf("NearestBefore: %v", err)
	}
	after, err := repo.NearestAfter(ctx, token, network, mid)
	if err != nil {
		t.Fatalf("NearestAfter: %v", err)
	}
	if before == nil || before.Date != day1 {
		t.Fatalf("NearestBefore: got %+v, want day1", before)
	}
	if after == nil || after.Date != day3 {
		t.Fatalf("NearestAfter: got %+v, want day3", after)
	}

	// Strictness: a point at exactly ts is neither before nor after.
	before, err = repo.NearestBefore(ctx, token, network, day1)
	if err != nil {
		t.Fatalf("NearestBefore at day1: %v", err)
	}
	if before != nil {
		t.Fatalf("NearestBefore must be strict, got %+v", before)
	}

	// History ascending.
	hist, err := repo.History(ctx, token, network)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].Date != day1 || hist[1].Date != day3 {
		t.Fatalf("History: got %+v", hist)
	}
	t.Logf("History: %d rows", len(hist))
}

func TestPriceRepo_UpsertIsIdempotent(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewPriceRepo(pool)
	ctx := context.Background()

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	token := fmt.Sprintf("0xdup%d", time.Now().UnixNano())
	day := timeutil.StartOfDayUTC(time.Now().Unix())

	if err := repo.Upsert(ctx, models.PricePoint{Token: token, Network: "polygon", Date: day, Price: 1.11}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.Upsert(ctx, models.PricePoint{Token: token, Network: "polygon", Date: day, Price: 2.22}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	hist, err := repo.History(ctx, token, "polygon")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected exactly 1 row after double upsert, got %d", len(hist))
	}
	if hist[0].Price != 2.22 {
		t.Fatalf("expected latest price 2.22, got %f", hist[0].Price)
	}
}
