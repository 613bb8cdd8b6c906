package cache

import (
	"context"
	"testing"
	"time"

	"carma_backend/internal/comparables/transport"
	"carma_backend/internal/events"
	"carma_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newCache(t *testing.T) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute, logger.Discard()), mr
}

func sampleResponse() transport.ComparablesResponse {
	return transport.ComparablesResponse{
		Target: transport.VehicleResponse{ID: "t", Make: "BMW", Model: "3 Series"},
		Candidates: []transport.CandidateResponse{
			{Rank: 1, Vehicle: transport.VehicleResponse{ID: "a"}, FinalScore: 0.91},
		},
		Metadata: transport.Metadata{Requested: 12, Returned: 1, TotalConsidered: 4},
	}
}

func store(t *testing.T, c *ResponseCache, scope Scope, requestKey string) {
	t.Helper()
	_, key, _ := c.Get(context.Background(), scope, requestKey)
	if key == "" {
		t.Fatalf("expected an entry key for %s/%s", scope.Make, scope.Model)
	}
	c.Set(context.Background(), key, sampleResponse())
}

func TestSetThenGet(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	scope := Scope{Make: "bmw", Model: "3 series"}

	_, key, ok := c.Get(ctx, scope, "t|12")
	if ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set(ctx, key, sampleResponse())

	got, _, ok := c.Get(ctx, scope, "t|12")
	if !ok {
		t.Fatalf("expected hit after set")
	}
	if got.Target.ID != "t" || len(got.Candidates) != 1 || got.Candidates[0].FinalScore != 0.91 {
		t.Fatalf("unexpected cached response %+v", got)
	}
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	scope := Scope{Make: "bmw", Model: "3 series"}

	store(t, c, scope, "t|12")
	mr.FastForward(2 * time.Minute)

	if _, _, ok := c.Get(ctx, scope, "t|12"); ok {
		t.Fatalf("expected entry to expire after ttl")
	}
}

func TestListingChangedInvalidatesSegmentOnly(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	bmw := Scope{Make: "bmw", Model: "3 series"}
	audi := Scope{Make: "audi", Model: "a4"}

	store(t, c, bmw, "t|12")
	store(t, c, audi, "x|12")

	err := c.Handle(ctx, events.ListingChanged{BaseEvent: events.NewBaseEvent(), ListingID: "a", Make: " BMW ", Model: "3  Series"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, ok := c.Get(ctx, bmw, "t|12"); ok {
		t.Fatalf("expected bmw segment to be invalidated")
	}
	if _, _, ok := c.Get(ctx, audi, "x|12"); !ok {
		t.Fatalf("expected audi segment to survive")
	}
}

func TestRedisOutageIsAMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	c := New(client, time.Minute, logger.Discard())
	ctx := context.Background()
	scope := Scope{Make: "bmw", Model: "3 series"}

	store(t, c, scope, "t|12")
	mr.Close()

	_, key, ok := c.Get(ctx, scope, "t|12")
	if ok {
		t.Fatalf("expected miss while redis is down")
	}
	if key != "" {
		t.Fatalf("expected no entry key while redis is down, got %q", key)
	}
	c.Set(ctx, key, sampleResponse())
}

func TestInvalidationDuringComputationOrphansResult(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	scope := Scope{Make: "bmw", Model: "3 series"}

	_, key, ok := c.Get(ctx, scope, "t|12")
	if ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := c.Invalidate(ctx, scope); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	c.Set(ctx, key, sampleResponse())

	if _, _, ok := c.Get(ctx, scope, "t|12"); ok {
		t.Fatalf("expected response computed before the invalidation to stay unreachable")
	}
}
