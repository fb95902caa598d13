package circle

import (
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/iwvelando/cultist-circle/internal/catalog"
	"github.com/iwvelando/cultist-circle/internal/config"
	"go.uber.org/zap"
)

// Catalogs holds one cached catalog per game mode.
type Catalogs struct {
	byMode map[string]Catalog
	redis  *redis.Client
}

// NewCatalogs builds the remote catalogs described by cfg. Snapshots are
// shared through redis when an address is configured.
func NewCatalogs(logger *zap.Logger, cfg config.CatalogConfig, client *http.Client) *Catalogs {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Catalogs{byMode: make(map[string]Catalog, 2)}
	var cache catalog.Cache = catalog.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = catalog.NewRedisCache(c.redis, cfg.Redis.Prefix)
		logger.Info("sharing catalog snapshots through redis",
			zap.String("op", "circle.NewCatalogs"),
			zap.String("addr", cfg.Redis.Addr),
		)
	}

	pve := catalog.NewGraphQLSource(logger, client, cfg.GraphQLURL, catalog.ModePVE, cfg.IgnoredItems, cfg.RequestsPerMinute)
	c.byMode[catalog.ModePVE] = catalog.NewCachedSource(logger, pve, cache, catalog.ModePVE, cfg.CacheTTL)

	var pvp catalog.Source
	if cfg.UsesMarket() {
		pvp = catalog.NewMarketSource(logger, client, cfg.MarketURL, cfg.APIKey, cfg.MarketTags, cfg.IgnoredItems, cfg.RequestsPerMinute)
	} else {
		pvp = catalog.NewGraphQLSource(logger, client, cfg.GraphQLURL, catalog.ModePVP, cfg.IgnoredItems, cfg.RequestsPerMinute)
	}
	c.byMode[catalog.ModePVP] = catalog.NewCachedSource(logger, pvp, cache, catalog.ModePVP, cfg.CacheTTL)
	return c
}

// NewFileCatalogs serves a single on-disk snapshot for every game mode.
func NewFileCatalogs(logger *zap.Logger, path string) *Catalogs {
	source := catalog.FileSource{Path: path}
	return &Catalogs{byMode: map[string]Catalog{
		catalog.ModePVE: catalog.NewCachedSource(logger, source, nil, catalog.ModePVE, 0),
		catalog.ModePVP: catalog.NewCachedSource(logger, source, nil, catalog.ModePVP, 0),
	}}
}

// Mode returns the catalog for a game mode.
func (c *Catalogs) Mode(mode string) (Catalog, bool) {
	cat, ok := c.byMode[mode]
	return cat, ok
}

// Close releases the redis connection pool, if any.
func (c *Catalogs) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
