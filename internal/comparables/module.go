// Package comparables provides the comparables bounded context module.
package comparables

import (
	"fmt"

	"carma_backend/internal/comparables/cache"
	"carma_backend/internal/comparables/handler"
	"carma_backend/internal/comparables/profile"
	"carma_backend/internal/comparables/repository"
	"carma_backend/internal/comparables/service"
	"carma_backend/internal/events"
	apphttp "carma_backend/internal/http"
	"carma_backend/platform/config"
	"carma_backend/platform/logger"
	"carma_backend/platform/validator"

	"github.com/redis/go-redis/v9"
)

// ModuleConfig is the configuration the comparables module reads.
type ModuleConfig interface {
	config.RankingConfig
	config.CacheConfig
}

// Module is the comparables bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	cache   *cache.ResponseCache
}

// NewModule creates and initializes the comparables module. rdb may be nil,
// in which case responses are not cached.
func NewModule(store repository.Store, rdb *redis.Client, bus events.Bus, val *validator.Validator, cfg ModuleConfig, log *logger.Logger) (*Module, error) {
	prof, err := profile.LoadAndValidate(cfg.GetRankingProfilePath())
	if err != nil {
		return nil, fmt.Errorf("load ranking profile: %w", err)
	}

	svc, err := service.New(store, prof, service.Options{
		DefaultCount: cfg.GetDefaultResultCount(),
		MinPool:      cfg.GetMinPoolSize(),
		MaxPool:      cfg.GetMaxPoolSize(),
	}, val, log)
	if err != nil {
		return nil, err
	}

	m := &Module{handler: handler.New(svc), service: svc}

	if rdb != nil && cfg.IsCacheEnabled() {
		m.cache = cache.New(rdb, cfg.GetCacheTTL(), log)
		svc.SetCache(m.cache)
	}
	if bus != nil {
		svc.SetEventBus(bus)
		bus.Subscribe(events.ComparablesComputed{}.EventName(), svc.Stats())
		if m.cache != nil {
			bus.Subscribe(events.ListingChanged{}.EventName(), m.cache)
		}
	}

	return m, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "comparables"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts comparables routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/comparables/:id", m.handler.Compare)
	ctx.V1.GET("/listings/:id", m.handler.GetListing)
	ctx.V1.GET("/listings/:id/comparables", m.handler.Compare)
	ctx.V1.GET("/stats", m.handler.Stats)
}
