package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"carma_backend/internal/comparables/cache"
	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/normalize"
	"carma_backend/internal/comparables/profile"
	"carma_backend/internal/comparables/repository"
	"carma_backend/internal/comparables/transport"
	"carma_backend/internal/events"
	"carma_backend/platform/apperr"
	"carma_backend/platform/logger"
	"carma_backend/platform/validator"
)

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

func listing(id string, year int, km int64, price float64, fuel, gearbox string) domain.Listing {
	return domain.Listing{
		ID:               id,
		Make:             "BMW",
		Model:            "3 Series",
		RegistrationYear: intPtr(year),
		FuelType:         fuel,
		Transmission:     gearbox,
		BodyType:         "Sedan",
		ExteriorColor:    "Black",
		MileageKM:        int64Ptr(km),
		PriceEUR:         floatPtr(price),
		Available:        true,
	}
}

func bmwMarket() []domain.Listing {
	return []domain.Listing{
		listing("target", 2019, 60000, 25000, "Diesel", "Automatic"),
		listing("A", 2019, 58000, 23000, "Diesel", "Automatic"),
		listing("C", 2019, 62000, 25500, "Diesel", "Automatic"),
		listing("D", 2020, 50000, 26000, "Diesel", "Automatic"),
		listing("E", 2018, 70000, 27000, "Diesel", "Automatic"),
		listing("B", 2012, 180000, 9000, "Petrol", "Manual"),
		{ID: "golf", Make: "Volkswagen", Model: "Golf", RegistrationYear: intPtr(2019), MileageKM: int64Ptr(60000), PriceEUR: floatPtr(18000), Available: true},
	}
}

func newService(t *testing.T, listings ...domain.Listing) (*Service, *repository.Memory) {
	t.Helper()
	store := repository.NewMemory(normalize.New(), listings...)
	svc, err := New(store, profile.Default(), Options{DefaultCount: 12, MinPool: 5, MaxPool: 200}, validator.New(), logger.Discard())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func ids(resp transport.ComparablesResponse) []string {
	out := make([]string, len(resp.Candidates))
	for i, c := range resp.Candidates {
		out[i] = c.Vehicle.ID
	}
	return out
}

func assertCode(t *testing.T, err error, kind apperr.Kind, code string) {
	t.Helper()
	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected apperr.Error, got %v", err)
	}
	if e.Kind != kind || e.Code != code {
		t.Fatalf("expected kind %d code %s, got kind %d code %s", kind, code, e.Kind, e.Code)
	}
}

func TestCompareRanksRelevantFairPriceFirst(t *testing.T) {
	svc, _ := newService(t, bmwMarket()...)

	resp, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Candidates) != 5 {
		t.Fatalf("expected 5 candidates, got %v", ids(resp))
	}
	if resp.Candidates[0].Vehicle.ID != "A" {
		t.Fatalf("expected A first, got %v", ids(resp))
	}
	for i, c := range resp.Candidates {
		if c.Vehicle.ID == "target" || c.Vehicle.ID == "golf" {
			t.Fatalf("unexpected candidate %s", c.Vehicle.ID)
		}
		if c.Vehicle.Make != "BMW" || c.Vehicle.Model != "3 Series" {
			t.Fatalf("expected display make/model, got %s %s", c.Vehicle.Make, c.Vehicle.Model)
		}
		if c.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, c.Rank)
		}
		if i > 0 && c.FinalScore > resp.Candidates[i-1].FinalScore {
			t.Fatalf("expected non-increasing final scores, got %v", ids(resp))
		}
	}
	if resp.Metadata.FinalLevel != "make_model" || resp.Metadata.TotalConsidered != 5 || !resp.Metadata.PoolSatisfied {
		t.Fatalf("unexpected metadata %+v", resp.Metadata)
	}
	if resp.Metadata.Requested != 12 || resp.Metadata.Returned != 5 {
		t.Fatalf("expected requested 12 returned 5, got %d/%d", resp.Metadata.Requested, resp.Metadata.Returned)
	}
}

func TestCompareReportsSavingsAndIndicator(t *testing.T) {
	svc, _ := newService(t, bmwMarket()...)

	resp, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := resp.Candidates[0]
	if a.Savings == nil || *a.Savings != 2000 || a.SavingsPercent == nil || *a.SavingsPercent != 8 {
		t.Fatalf("expected savings 2000 (8%%), got %v %v", a.Savings, a.SavingsPercent)
	}
	if a.DealIndicator != round((a.DealScore-0.5)*2, 4) {
		t.Fatalf("expected indicator derived from deal score, got %.4f for %.4f", a.DealIndicator, a.DealScore)
	}
	for _, c := range resp.Candidates {
		if c.Vehicle.ID == "D" && c.Savings != nil {
			t.Fatalf("expected no savings for a dearer candidate, got %v", *c.Savings)
		}
	}
}

func TestCompareHonorsCountAndTopAlias(t *testing.T) {
	svc, _ := newService(t, bmwMarket()...)

	tests := []struct {
		name string
		req  transport.ComparablesRequest
		want int
	}{
		{"count", transport.ComparablesRequest{ID: "target", Count: intPtr(2)}, 2},
		{"top", transport.ComparablesRequest{ID: "target", Top: intPtr(3)}, 3},
		{"count wins", transport.ComparablesRequest{ID: "target", Count: intPtr(1), Top: intPtr(4)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Compare(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(resp.Candidates) != tt.want || resp.Metadata.Requested != tt.want {
				t.Fatalf("expected %d candidates, got %d (requested %d)", tt.want, len(resp.Candidates), resp.Metadata.Requested)
			}
		})
	}
}

func TestCompareInputErrors(t *testing.T) {
	withdrawn := listing("sold", 2019, 60000, 25000, "Diesel", "Automatic")
	withdrawn.Available = false
	noModel := listing("nomodel", 2019, 60000, 25000, "Diesel", "Automatic")
	noModel.Model = "  n/a "
	svc, _ := newService(t, append(bmwMarket(), withdrawn, noModel)...)

	tests := []struct {
		name string
		req  transport.ComparablesRequest
		kind apperr.Kind
		code string
	}{
		{"empty id", transport.ComparablesRequest{ID: "  "}, apperr.KindValidation, apperr.CodeInvalidListingID},
		{"count too large", transport.ComparablesRequest{ID: "target", Count: intPtr(51)}, apperr.KindValidation, apperr.CodeInvalidRequest},
		{"explicit zero count", transport.ComparablesRequest{ID: "target", Count: intPtr(0)}, apperr.KindValidation, apperr.CodeInvalidRequest},
		{"explicit zero top", transport.ComparablesRequest{ID: "target", Top: intPtr(0)}, apperr.KindValidation, apperr.CodeInvalidRequest},
		{"unknown", transport.ComparablesRequest{ID: "missing"}, apperr.KindNotFound, apperr.CodeTargetNotFound},
		{"withdrawn", transport.ComparablesRequest{ID: "sold"}, apperr.KindNotFound, apperr.CodeTargetNotFound},
		{"not comparable", transport.ComparablesRequest{ID: "nomodel"}, apperr.KindUnprocessable, apperr.CodeTargetNotComparable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Compare(context.Background(), tt.req)
			assertCode(t, err, tt.kind, tt.code)
		})
	}
}

func TestCompareStoreFailures(t *testing.T) {
	svc, store := newService(t, bmwMarket()...)

	store.Err = fmt.Errorf("%w: connection refused", repository.ErrUnavailable)
	_, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target"})
	assertCode(t, err, apperr.KindUnavailable, apperr.CodeUpstreamUnavailable)
	if e, _ := apperr.As(err); !e.Retryable() {
		t.Fatalf("expected retryable error")
	}

	store.Err = errors.New("corrupt row")
	_, err = svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target"})
	assertCode(t, err, apperr.KindInternal, apperr.CodeInternal)
}

func TestCompareCancelledContextIsUnavailable(t *testing.T) {
	svc, _ := newService(t, bmwMarket()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Compare(ctx, transport.ComparablesRequest{ID: "target"})
	assertCode(t, err, apperr.KindUnavailable, apperr.CodeUpstreamUnavailable)
}

// gatedStore holds GetByID until release is closed.
type gatedStore struct {
	*repository.Memory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return domain.Listing{}, ctx.Err()
	}
	return g.Memory.GetByID(ctx, id)
}

func TestCompareSharedCallSurvivesFirstCallerLeaving(t *testing.T) {
	store := &gatedStore{
		Memory:  repository.NewMemory(normalize.New(), bmwMarket()...),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, err := New(store, profile.Default(), Options{DefaultCount: 12, MinPool: 5, MaxPool: 200}, validator.New(), logger.Discard())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	req := transport.ComparablesRequest{ID: "target"}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Compare(firstCtx, req)
		firstErr <- err
	}()
	<-store.entered

	type result struct {
		resp transport.ComparablesResponse
		err  error
	}
	second := make(chan result, 1)
	go func() {
		resp, err := svc.Compare(context.Background(), req)
		second <- result{resp, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assertCode(t, err, apperr.KindUnavailable, apperr.CodeUpstreamUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the cancelled caller to return while the store is blocked")
	}

	close(store.release)
	select {
	case got := <-second:
		if got.err != nil {
			t.Fatalf("expected waiting caller to get the shared result, got %v", got.err)
		}
		if len(got.resp.Candidates) == 0 || got.resp.Candidates[0].Vehicle.ID != "A" {
			t.Fatalf("unexpected shared result %v", ids(got.resp))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiting caller never returned")
	}
}

func TestCompareWithoutPeersIsEmptySuccess(t *testing.T) {
	svc, _ := newService(t, bmwMarket()...)

	resp, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "golf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.NoResults() || resp.Target.ID != "golf" {
		t.Fatalf("expected empty result for golf, got %v", ids(resp))
	}
	if len(resp.Metadata.Attempts) == 0 {
		t.Fatalf("expected the relaxation trace in metadata")
	}

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ComparisonsServed != 1 || stats.NoResultsServed != 1 || stats.TotalAvailable != 7 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCompareIsDeterministic(t *testing.T) {
	svc, _ := newService(t, bmwMarket()...)

	first, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fmt.Sprint(ids(again)) != fmt.Sprint(ids(first)) {
			t.Fatalf("expected stable order %v, got %v", ids(first), ids(again))
		}
	}
}

func TestCompareKeepsCandidatesWithoutPower(t *testing.T) {
	market := bmwMarket()
	market[0].PowerKW = floatPtr(140)
	market[1].PowerRaw = "unknown"
	market[2].PowerKW = floatPtr(400)
	svc, _ := newService(t, market...)

	resp, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawA bool
	for _, c := range resp.Candidates {
		if c.Vehicle.ID == "A" {
			sawA = true
		}
	}
	if !sawA {
		t.Fatalf("expected A without power to stay in the pool, got %v", ids(resp))
	}
	if resp.Metadata.DataQualityWarnings == 0 {
		t.Fatalf("expected data quality warnings for missing power")
	}
}

type memoryCache struct {
	entries map[string]transport.ComparablesResponse
	gets    int
}

func (m *memoryCache) Get(_ context.Context, scope cache.Scope, key string) (transport.ComparablesResponse, cache.EntryKey, bool) {
	m.gets++
	entry := scope.Make + "/" + scope.Model + "/" + key
	resp, ok := m.entries[entry]
	return resp, cache.EntryKey(entry), ok
}

func (m *memoryCache) Set(_ context.Context, key cache.EntryKey, resp transport.ComparablesResponse) {
	m.entries[string(key)] = resp
}

func TestCompareUsesCacheAndPublishes(t *testing.T) {
	svc, _ := newService(t, bmwMarket()...)
	c := &memoryCache{entries: map[string]transport.ComparablesResponse{}}
	svc.SetCache(c)
	bus := events.NewInMemoryBus(logger.Discard())
	bus.Subscribe(events.ComparablesComputed{}.EventName(), svc.Stats())
	svc.SetEventBus(bus)

	first, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target", PreferredColor: "Black"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Compare(context.Background(), transport.ComparablesRequest{ID: "target", PreferredColor: " BLACK "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bus.Wait()

	if first.Metadata.Cached || !second.Metadata.Cached {
		t.Fatalf("expected miss then hit, got %v then %v", first.Metadata.Cached, second.Metadata.Cached)
	}
	if fmt.Sprint(ids(first)) != fmt.Sprint(ids(second)) {
		t.Fatalf("expected cached order to match")
	}
	if svc.Stats().Computed() != 1 {
		t.Fatalf("expected one computation, got %d", svc.Stats().Computed())
	}
	if served, _ := svc.Stats().Snapshot(); served != 2 {
		t.Fatalf("expected two served comparisons, got %d", served)
	}
}

func TestGetListingReturnsWithdrawnListing(t *testing.T) {
	sold := listing("sold", 2019, 60000, 25000, "Diesel", "Automatic")
	sold.Available = false
	sold.PriceEUR = nil
	sold.PriceRaw = "€ 24.900,-"
	svc, _ := newService(t, sold)

	v, err := svc.GetListing(context.Background(), "sold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Available || v.PriceEUR == nil || *v.PriceEUR != 24900 {
		t.Fatalf("expected normalized withdrawn listing, got %+v", v)
	}
	if v.FuelType != "Diesel" {
		t.Fatalf("expected display fuel type, got %q", v.FuelType)
	}

	_, err = svc.GetListing(context.Background(), "nope")
	assertCode(t, err, apperr.KindNotFound, apperr.CodeTargetNotFound)
}
