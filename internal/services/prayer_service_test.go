package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/hexpool"
	"github.com/tbourn/go-prayer-queue/internal/repo"
)

func seedQueue(t *testing.T, f *fixture, country string, people ...string) {
	t.Helper()
	f.rosters.rows[country] = names(people...)
	if _, err := f.queue.Reseed(context.Background()); err != nil {
		t.Fatalf("reseed: %v", err)
	}
}

func TestMarkPrayed_IsIdempotent(t *testing.T) {
	f := newFixture(t, israelOnly(nil, false), nil)
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")

	f.clock.Advance(time.Minute)
	snap, ok, err := f.prayer.MarkPrayed(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("first MarkPrayed: ok=%v err=%v", ok, err)
	}
	if snap.Status != domain.StatusQueued {
		t.Fatalf("snapshot must be the pre-transition row, got %s", snap.Status)
	}
	got := f.byName(t, "Alice", "israel")
	if got.Status != domain.StatusPrayed || !got.StatusTimestamp.Equal(f.clock.Now()) {
		t.Fatalf("after MarkPrayed: %+v", got)
	}

	snap, ok, err = f.prayer.MarkPrayed(ctx, a.ID)
	if err != nil || ok || snap != nil {
		t.Fatalf("second MarkPrayed: snap=%v ok=%v err=%v", snap, ok, err)
	}
	if n, _ := f.prayer.CountPrayed(ctx, ""); n != 1 {
		t.Fatalf("prayed = %d; want 1", n)
	}
}

func TestMarkPrayed_UnknownAndInvalidIDs(t *testing.T) {
	f := newFixture(t, israelOnly(nil, false), nil)
	ctx := context.Background()

	if _, _, err := f.prayer.MarkPrayed(ctx, 0); !errors.Is(err, ErrInvalidCandidateID) {
		t.Fatalf("id 0: %v", err)
	}
	if _, ok, err := f.prayer.MarkPrayed(ctx, 999); err != nil || ok {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}
	if _, ok, err := f.prayer.PutBack(ctx, 999, false); err != nil || ok {
		t.Fatalf("PutBack missing id: ok=%v err=%v", ok, err)
	}
}

func TestMarkPrayed_ConcurrentCallsChangeOnce(t *testing.T) {
	f := newFixture(t, israelOnly(nil, false), nil)
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	changed := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := f.prayer.MarkPrayed(context.Background(), a.ID)
			if err != nil {
				t.Errorf("MarkPrayed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if changed != 1 {
		t.Fatalf("changed = %d; want exactly 1", changed)
	}
}

func TestMarkPrayed_TimestampNeverGoesBackwards(t *testing.T) {
	f := newFixture(t, israelOnly(nil, false), nil)
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")

	f.clock.Advance(-time.Hour)
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}
	got := f.byName(t, "Alice", "israel")
	if got.StatusTimestamp.Before(got.InitialAddTimestamp) {
		t.Fatalf("status timestamp %v before initial add %v", got.StatusTimestamp, got.InitialAddTimestamp)
	}
}

func TestPutBack_NonRandomCountryClearsHex(t *testing.T) {
	f := newFixture(t, israelOnly(nil, false), nil)
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}
	// A stray hex from an earlier configuration is dropped on the way back.
	if err := f.db.Model(&domain.Candidate{}).Where("id = ?", a.ID).Update("hex_id", "7").Error; err != nil {
		t.Fatalf("set hex: %v", err)
	}

	f.clock.Advance(time.Minute)
	after, ok, err := f.prayer.PutBack(ctx, a.ID, false)
	if err != nil || !ok {
		t.Fatalf("PutBack: ok=%v err=%v", ok, err)
	}
	if after.Status != domain.StatusQueued || after.HexID != nil {
		t.Fatalf("after PutBack: %+v", after)
	}
	if got := f.byName(t, "Alice", "israel"); got.HexID != nil || !got.StatusTimestamp.Equal(f.clock.Now()) {
		t.Fatalf("stored: %+v", got)
	}

	// Second put back is a no-op.
	if _, ok, err := f.prayer.PutBack(ctx, a.ID, false); err != nil || ok {
		t.Fatalf("second PutBack: ok=%v err=%v", ok, err)
	}
}

func TestPutBack_KeepsFreeHex(t *testing.T) {
	f := newFixture(t, israelOnly(nil, true), cells{"israel": {"1", "2", "3"}})
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")
	held := *a.HexID
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}

	after, ok, err := f.prayer.PutBack(ctx, a.ID, false)
	if err != nil || !ok {
		t.Fatalf("PutBack: ok=%v err=%v", ok, err)
	}
	if after.HexID == nil || *after.HexID != held {
		t.Fatalf("hex = %v; want kept %s", after.HexID, held)
	}
	assertInvariants(t, f)
}

func TestPutBack_ReassignDrawsDifferentHex(t *testing.T) {
	f := newFixture(t, israelOnly(nil, true), cells{"israel": {"1", "2", "3"}})
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")
	held := *a.HexID
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}

	after, ok, err := f.prayer.PutBack(ctx, a.ID, true)
	if err != nil || !ok {
		t.Fatalf("PutBack: ok=%v err=%v", ok, err)
	}
	if after.HexID == nil || *after.HexID == held {
		t.Fatalf("hex = %v; want a new cell other than %s", after.HexID, held)
	}
	if got := f.byName(t, "Alice", "israel"); got.HexID == nil || *got.HexID != *after.HexID {
		t.Fatalf("stored hex %v, returned %v", got.HexID, after.HexID)
	}
	assertInvariants(t, f)
}

func TestPutBack_CellOffTheMapIsReplaced(t *testing.T) {
	f := newFixture(t, israelOnly(nil, true), cells{"israel": {"1", "2"}})
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice", "Bob")
	a := f.byName(t, "Alice", "israel")
	b := f.byName(t, "Bob", "israel")
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}
	// Alice's cell was dropped from the map after she was prayed for.
	if err := f.db.Model(&domain.Candidate{}).Where("id = ?", a.ID).Update("hex_id", "retired").Error; err != nil {
		t.Fatalf("retire cell: %v", err)
	}
	want := "1"
	if *b.HexID == "1" {
		want = "2"
	}

	after, ok, err := f.prayer.PutBack(ctx, a.ID, false)
	if err != nil || !ok {
		t.Fatalf("PutBack: ok=%v err=%v", ok, err)
	}
	if after.HexID == nil || *after.HexID != want {
		t.Fatalf("hex = %v; want the free cell %s", after.HexID, want)
	}
	assertInvariants(t, f)
}

func TestPutBack_StaleAvailabilityDrawsAnotherCell(t *testing.T) {
	f := newFixture(t, israelOnly(nil, true), cells{"israel": {"1", "2", "3"}})
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}
	// Alice lost her cell, and "1" went to someone queued after availability
	// was read.
	if err := f.db.Model(&domain.Candidate{}).Where("id = ?", a.ID).Update("hex_id", nil).Error; err != nil {
		t.Fatalf("clear hex: %v", err)
	}
	holder := &domain.Candidate{PersonName: "Holder", CountryCode: "israel", HexID: domain.StringPtr("1")}
	if _, err := repo.UpsertQueued(ctx, f.db, holder); err != nil {
		t.Fatalf("seed holder: %v", err)
	}

	f.prayer.Hex = staleCells{HexAllocator: f.prayer.Hex, free: []string{"1", "3"}}
	after, ok, err := f.prayer.PutBack(ctx, a.ID, false)
	if err != nil || !ok {
		t.Fatalf("PutBack: ok=%v err=%v", ok, err)
	}
	if after.HexID == nil || *after.HexID != "3" {
		t.Fatalf("hex = %v; want 3 after 1 was rejected", after.HexID)
	}
	assertInvariants(t, f)
}

func TestPutBack_StaleAvailabilityGivesUpWithoutCell(t *testing.T) {
	f := newFixture(t, israelOnly(nil, true), cells{"israel": {"1", "2"}})
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice", "Bob")
	a := f.byName(t, "Alice", "israel")
	b := f.byName(t, "Bob", "israel")
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}
	if err := f.db.Model(&domain.Candidate{}).Where("id = ?", a.ID).Update("hex_id", nil).Error; err != nil {
		t.Fatalf("clear hex: %v", err)
	}

	// Availability keeps offering Bob's cell.
	f.prayer.Hex = staleCells{HexAllocator: f.prayer.Hex, free: []string{*b.HexID}}
	after, ok, err := f.prayer.PutBack(ctx, a.ID, false)
	if err != nil || !ok {
		t.Fatalf("PutBack: ok=%v err=%v", ok, err)
	}
	if after.HexID != nil {
		t.Fatalf("hex = %s; want none", *after.HexID)
	}
	if got := f.byName(t, "Alice", "israel"); got.Status != domain.StatusQueued || got.HexID != nil {
		t.Fatalf("stored: %+v", got)
	}
	assertInvariants(t, f)
}

func TestPutBack_ExhaustedPoolLeavesNoHex(t *testing.T) {
	f := newFixture(t, israelOnly(nil, true), cells{"israel": {"1"}})
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice", "Bob")
	var holder, other *domain.Candidate
	for _, c := range f.all(t) {
		c := c
		if c.HexID != nil {
			holder = &c
		} else {
			other = &c
		}
	}
	if holder == nil || other == nil {
		t.Fatal("expected one candidate with the only cell and one without")
	}
	if _, ok, _ := f.prayer.MarkPrayed(ctx, other.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}

	after, ok, err := f.prayer.PutBack(ctx, other.ID, true)
	if err != nil || !ok {
		t.Fatalf("PutBack: ok=%v err=%v", ok, err)
	}
	if after.HexID != nil {
		t.Fatalf("hex = %s; want none when the pool is exhausted", *after.HexID)
	}
	assertInvariants(t, f)
}

func TestPutBack_NoGeometryKeepsHex(t *testing.T) {
	f := newFixture(t, israelOnly(nil, true), cells{"israel": {"9"}})
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}

	// The map file disappears between seeding and put back.
	f.prayer.Hex = hexpool.New(cells{}, seeded())

	after, ok, err := f.prayer.PutBack(ctx, a.ID, true)
	if err != nil || !ok {
		t.Fatalf("PutBack: ok=%v err=%v", ok, err)
	}
	if after.HexID == nil || *after.HexID != "9" {
		t.Fatalf("hex = %v; want the held cell kept", after.HexID)
	}
}

func TestPutBackByKey(t *testing.T) {
	f := newFixture(t, israelOnly(nil, false), nil)
	ctx := context.Background()
	seedQueue(t, f, "israel", "Alice")
	a := f.byName(t, "Alice", "israel")
	if _, ok, _ := f.prayer.MarkPrayed(ctx, a.ID); !ok {
		t.Fatal("MarkPrayed failed")
	}

	if _, _, err := f.prayer.PutBackByKey(ctx, domain.NaturalKey{CountryCode: "israel"}, false); !errors.Is(err, ErrEmptyIdentity) {
		t.Fatalf("empty name: %v", err)
	}
	if _, _, err := f.prayer.PutBackByKey(ctx, domain.NaturalKey{PersonName: "Alice", CountryCode: "mars"}, false); !errors.Is(err, ErrUnknownCountry) {
		t.Fatalf("unknown country: %v", err)
	}
	if _, ok, err := f.prayer.PutBackByKey(ctx, domain.NaturalKey{PersonName: "Nobody", CountryCode: "israel"}, false); err != nil || ok {
		t.Fatalf("unknown person: ok=%v err=%v", ok, err)
	}

	after, ok, err := f.prayer.PutBackByKey(ctx, domain.NaturalKey{PersonName: "  Alice ", CountryCode: "israel"}, false)
	if err != nil || !ok || after.ID != a.ID {
		t.Fatalf("PutBackByKey: after=%+v ok=%v err=%v", after, ok, err)
	}
}

func TestListsAndNextQueued(t *testing.T) {
	f := newFixture(t, domain.Countries{{Code: "israel"}, {Code: "iran"}}, nil)
	ctx := context.Background()

	if _, err := f.prayer.NextQueued(ctx); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("empty queue: %v", err)
	}
	if _, err := f.prayer.ListQueued(ctx, "mars"); !errors.Is(err, ErrUnknownCountry) {
		t.Fatalf("unknown country: %v", err)
	}

	f.rosters.rows["israel"] = names("A", "B")
	f.rosters.rows["iran"] = names("C")
	if _, err := f.queue.Reseed(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	queued, err := f.prayer.ListQueued(ctx, "")
	if err != nil || len(queued) != 3 {
		t.Fatalf("ListQueued: %d %v", len(queued), err)
	}
	head, err := f.prayer.NextQueued(ctx)
	if err != nil || head.ID != queued[0].ID {
		t.Fatalf("NextQueued = %+v, want head %d (%v)", head, queued[0].ID, err)
	}
	if iran, _ := f.prayer.ListQueued(ctx, "iran"); len(iran) != 1 || iran[0].PersonName != "C" {
		t.Fatalf("iran queue = %+v", iran)
	}

	for i, c := range queued[:2] {
		f.clock.Advance(time.Minute)
		if _, ok, _ := f.prayer.MarkPrayed(ctx, c.ID); !ok {
			t.Fatalf("MarkPrayed #%d failed", i)
		}
	}
	prayed, _ := f.prayer.ListPrayed(ctx, "")
	if len(prayed) != 2 || prayed[0].ID != queued[1].ID {
		t.Fatalf("prayed list must be most recent first: %+v", prayed)
	}

	n, last, err := f.prayer.PrayedStats(ctx, "")
	if err != nil || n != 2 || last == nil || !last.Equal(f.clock.Now()) {
		t.Fatalf("PrayedStats = %d %v %v", n, last, err)
	}
}
