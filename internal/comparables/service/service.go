// Package service orchestrates a comparables search: resolve the target,
// retrieve a candidate pool, score, rank and shape the response.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carma_backend/internal/comparables/cache"
	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/filter"
	"carma_backend/internal/comparables/normalize"
	"carma_backend/internal/comparables/profile"
	"carma_backend/internal/comparables/ranking"
	"carma_backend/internal/comparables/repository"
	"carma_backend/internal/comparables/transport"
	"carma_backend/internal/events"
	"carma_backend/platform/apperr"
	"carma_backend/platform/logger"
	"carma_backend/platform/validator"

	"golang.org/x/sync/singleflight"
)

const (
	msgInvalidListingID   = "invalid listing id"
	msgInvalidRequest     = "invalid comparables request"
	msgTargetNotFound     = "listing not found"
	msgTargetIncomparable = "listing lacks make or model and cannot be compared"
	msgStoreUnavailable   = "listing store unavailable"
)

// ResponseCache is the optional cache of computed responses. Get returns the
// key a response computed after the lookup is stored under.
type ResponseCache interface {
	Get(ctx context.Context, scope cache.Scope, requestKey string) (transport.ComparablesResponse, cache.EntryKey, bool)
	Set(ctx context.Context, key cache.EntryKey, resp transport.ComparablesResponse)
}

// Options bounds requests and candidate pools.
type Options struct {
	DefaultCount int
	MinPool      int
	MaxPool      int
}

// query is a validated comparables request.
type query struct {
	id    string
	count int
	prefs domain.Preferences
}

// Service provides the comparables operations.
type Service struct {
	store      repository.Store
	normalizer *normalize.Normalizer
	planner    *filter.Planner
	aggregator *ranking.Aggregator
	val        *validator.Validator
	log        *logger.Logger
	cache      ResponseCache
	bus        events.Bus
	stats      *Stats
	group      singleflight.Group
	count      int
	now        func() time.Time
}

// New creates the comparables service from a validated ranking profile.
func New(store repository.Store, prof *profile.Profile, opts Options, val *validator.Validator, log *logger.Logger) (*Service, error) {
	aggregator, err := prof.Aggregator()
	if err != nil {
		return nil, fmt.Errorf("build ranking aggregator: %w", err)
	}
	normalizer := normalize.New()
	count := opts.DefaultCount
	if count < 1 || count > 50 {
		count = 12
	}

	return &Service{
		store:      store,
		normalizer: normalizer,
		planner: filter.NewPlanner(store, normalizer, filter.Config{
			Levels:     prof.Levels,
			MinResults: opts.MinPool,
			MaxPool:    opts.MaxPool,
		}),
		aggregator: aggregator,
		val:        val,
		log:        log,
		stats:      &Stats{},
		count:      count,
		now:        time.Now,
	}, nil
}

// SetCache enables response caching.
func (s *Service) SetCache(c ResponseCache) {
	s.cache = c
}

// SetEventBus enables publication of ComparablesComputed events.
func (s *Service) SetEventBus(bus events.Bus) {
	s.bus = bus
}

// Stats returns the engine counters.
func (s *Service) Stats() *Stats {
	return s.stats
}

// Compare returns the ranked comparables for the target listing. A search
// that finds no candidates is a successful, empty result. Identical
// concurrent requests share one computation; it outlives a caller that gives
// up so the callers still waiting get its result.
func (s *Service) Compare(ctx context.Context, req transport.ComparablesRequest) (transport.ComparablesResponse, error) {
	q, err := s.prepare(req)
	if err != nil {
		return transport.ComparablesResponse{}, err
	}
	if err := ctx.Err(); err != nil {
		return transport.ComparablesResponse{}, storeError("comparables.Compare", err)
	}

	key := requestKey(q)
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.compare(shared, q, key)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return transport.ComparablesResponse{}, storeError("comparables.Compare", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return transport.ComparablesResponse{}, res.Err
	}

	resp := res.Val.(transport.ComparablesResponse)
	s.stats.recordServed(resp.NoResults())
	return resp, nil
}

// GetListing returns the normalized view of a listing.
func (s *Service) GetListing(ctx context.Context, id string) (transport.VehicleResponse, error) {
	id = strings.TrimSpace(id)
	if err := s.val.Var(id, "required,listingid"); err != nil {
		return transport.VehicleResponse{}, apperr.Validation(msgInvalidListingID).WithCode(apperr.CodeInvalidListingID)
	}

	listing, err := s.load(ctx, id)
	if err != nil {
		return transport.VehicleResponse{}, err
	}
	return toVehicleResponse(s.normalizer.Normalize(listing)), nil
}

// GetStats returns store-wide and engine counters.
func (s *Service) GetStats(ctx context.Context) (transport.StatsResponse, error) {
	total, err := s.store.CountAvailable(ctx)
	if err != nil {
		return transport.StatsResponse{}, storeError("comparables.GetStats", err)
	}
	served, empty := s.stats.Snapshot()
	return transport.StatsResponse{
		TotalAvailable:    total,
		ComparisonsServed: served,
		NoResultsServed:   empty,
		Computed:          s.stats.Computed(),
		Timestamp:         s.now().UTC(),
	}, nil
}

func (s *Service) prepare(req transport.ComparablesRequest) (query, error) {
	req.ID = strings.TrimSpace(req.ID)
	if err := s.val.Var(req.ID, "required,listingid"); err != nil {
		return query{}, apperr.Validation(msgInvalidListingID).WithCode(apperr.CodeInvalidListingID)
	}
	if err := s.val.Struct(req); err != nil {
		return query{}, apperr.Validation(msgInvalidRequest).WithCode(apperr.CodeInvalidRequest).WithDetails(err.Error())
	}

	count := s.count
	if req.Top != nil {
		count = *req.Top
	}
	if req.Count != nil {
		count = *req.Count
	}

	return query{
		id:    req.ID,
		count: count,
		prefs: domain.Preferences{
			ExteriorColor: normalize.Categorical(req.PreferredColor),
			InteriorColor: normalize.Categorical(req.PreferredInteriorColor),
		},
	}, nil
}

func (s *Service) compare(ctx context.Context, q query, key string) (transport.ComparablesResponse, error) {
	target, err := s.resolve(ctx, q.id)
	if err != nil {
		return transport.ComparablesResponse{}, err
	}
	if !target.Comparable() {
		return transport.ComparablesResponse{}, apperr.Unprocessable(msgTargetIncomparable).
			WithCode(apperr.CodeTargetNotComparable).
			WithDetails(map[string]interface{}{"missingFields": target.Missing})
	}

	var entry cache.EntryKey
	if s.cache != nil {
		cached, k, ok := s.cache.Get(ctx, cache.Scope{Make: target.Make, Model: target.Model}, key)
		if ok {
			cached.Metadata.Cached = true
			return cached, nil
		}
		entry = k
	}

	plan, err := s.planner.Retrieve(ctx, target)
	if err != nil {
		return transport.ComparablesResponse{}, storeError("comparables.Compare", err)
	}

	scored, err := s.aggregator.Score(ctx, target, plan.Candidates, q.prefs)
	if err != nil {
		return transport.ComparablesResponse{}, storeError("comparables.Compare", err)
	}
	ranked := ranking.Rank(scored, q.count)

	resp := buildResponse(target, plan, scored, ranked, q.count, s.aggregator.Weights(), s.now().UTC())
	s.logOutcome(ctx, target, resp)

	if s.bus != nil {
		s.bus.Publish(ctx, events.ComparablesComputed{
			BaseEvent:      events.NewBaseEvent(),
			TargetID:       target.ID,
			Considered:     resp.Metadata.TotalConsidered,
			Returned:       resp.Metadata.Returned,
			FinalLevel:     resp.Metadata.FinalLevel,
			DataQualityHit: resp.Metadata.DataQualityWarnings,
		})
	}
	if s.cache != nil {
		s.cache.Set(ctx, entry, resp)
	}
	return resp, nil
}

func (s *Service) load(ctx context.Context, id string) (domain.Listing, error) {
	listing, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Listing{}, apperr.NotFound(msgTargetNotFound).WithCode(apperr.CodeTargetNotFound)
	}
	if err != nil {
		return domain.Listing{}, storeError("comparables.load", err)
	}
	return listing, nil
}

// resolve loads and normalizes a target. Withdrawn listings are not targets.
func (s *Service) resolve(ctx context.Context, id string) (domain.Vehicle, error) {
	listing, err := s.load(ctx, id)
	if err != nil {
		return domain.Vehicle{}, err
	}
	if !listing.Available {
		return domain.Vehicle{}, apperr.NotFound(msgTargetNotFound).WithCode(apperr.CodeTargetNotFound)
	}
	return s.normalizer.Normalize(listing), nil
}

func (s *Service) logOutcome(ctx context.Context, target domain.Vehicle, resp transport.ComparablesResponse) {
	log := s.log.WithContext(ctx)
	if resp.Metadata.DataQualityWarnings > 0 {
		log.Debug("comparables data quality warnings",
			"target_id", target.ID,
			"warnings", resp.Metadata.DataQualityWarnings,
			"target_missing", target.Missing,
		)
	}
	log.Info("comparables computed",
		"target_id", target.ID,
		"considered", resp.Metadata.TotalConsidered,
		"returned", resp.Metadata.Returned,
		"final_level", resp.Metadata.FinalLevel,
		"attempts", len(resp.Metadata.Attempts),
	)
}

// storeError maps store and cancellation failures to a retryable error.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Unavailable(msgStoreUnavailable, err).WithCode(apperr.CodeUpstreamUnavailable).WithOp(op)
	}
	return apperr.Wrap(apperr.KindInternal, "comparables failed", err).WithCode(apperr.CodeInternal).WithOp(op)
}

func requestKey(q query) string {
	return fmt.Sprintf("%s|%d|%s|%s", q.id, q.count, q.prefs.ExteriorColor, q.prefs.InteriorColor)
}
