package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	catalogcache "charmstudio/internal/cache/catalog"
	"charmstudio/internal/gateway/config"
	catalogrepo "charmstudio/internal/gateway/repository/catalog"
	couponrepo "charmstudio/internal/gateway/repository/coupon"
	orderrepo "charmstudio/internal/gateway/repository/order"
	renderrepo "charmstudio/internal/gateway/repository/render"
)

type gatewayStores struct {
	catalog *catalogcache.CachedStore
	coupons couponrepo.Store
	orders  orderrepo.Store
	renders renderrepo.Store
	db      *sql.DB
}

func (s *gatewayStores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gatewayStores, error) {
	renders, err := chooseRenderStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	cacheCfg := catalogcache.DefaultCacheConfig()
	cacheCfg.TTL = cfg.CatalogCacheTTL

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		stores, err := initPostgresStores(ctx, dsn, cacheCfg, logger)
		if err != nil {
			return nil, err
		}
		stores.renders = renders
		return stores, nil
	}
	logger.Info("stores: using in-memory fallback (DATABASE_URL unset)")
	catalogStore := catalogrepo.NewSeededMemoryStore()
	return &gatewayStores{
		catalog: catalogcache.NewCachedStore(catalogStore, cacheCfg),
		coupons: couponrepo.NewSeededMemoryStore(),
		orders:  orderrepo.NewMemoryStore(catalogStore),
		renders: renders,
	}, nil
}

func initPostgresStores(ctx context.Context, dsn string, cacheCfg catalogcache.CacheConfig, logger *zap.Logger) (*gatewayStores, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach db: %w", err)
	}

	catalogStore := catalogrepo.NewPostgresStore(db)
	couponStore := couponrepo.NewPostgresStore(db)
	orderStore := orderrepo.NewPostgresStore(db)
	for name, ensure := range map[string]func(context.Context) error{
		"catalog": catalogStore.EnsureSchema,
		"coupon":  couponStore.EnsureSchema,
		"order":   orderStore.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure %s schema: %w", name, err)
		}
	}
	if err := seedIfEmpty(ctx, catalogStore, couponStore, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("stores: postgres")
	return &gatewayStores{
		catalog: catalogcache.NewCachedStore(catalogStore, cacheCfg),
		coupons: couponStore,
		orders:  orderStore,
		db:      db,
	}, nil
}

// seedIfEmpty loads the demo catalog into a fresh database.
func seedIfEmpty(ctx context.Context, cat catalogrepo.Store, coupons couponrepo.Store, logger *zap.Logger) error {
	charms, err := cat.Charms(ctx)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if len(charms) > 0 {
		return nil
	}
	for _, m := range catalogrepo.SeedModels() {
		if err := cat.UpsertModel(ctx, m); err != nil {
			return fmt.Errorf("seed model %s: %w", m.ID, err)
		}
	}
	for _, c := range catalogrepo.SeedCharms() {
		if err := cat.UpsertCharm(ctx, c); err != nil {
			return fmt.Errorf("seed charm %s: %w", c.ID, err)
		}
	}
	for _, c := range couponrepo.SeedCoupons() {
		if err := coupons.Upsert(ctx, c); err != nil {
			return fmt.Errorf("seed coupon %s: %w", c.Code, err)
		}
	}
	logger.Info("stores: seeded empty catalog")
	return nil
}

func chooseRenderStore(cfg *config.Config, logger *zap.Logger) (renderrepo.Store, error) {
	if cfg.Render.CanUseS3() {
		s3Cfg := renderrepo.S3Config{
			Endpoint:  cfg.Render.Endpoint,
			Region:    cfg.Render.Region,
			AccessKey: cfg.Render.AccessKey,
			SecretKey: cfg.Render.SecretKey,
			Bucket:    cfg.Render.Bucket,
			UseSSL:    cfg.Render.UseSSL,
		}
		store, err := renderrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize render s3 store: %w", err)
		}
		logger.Info("render store: s3", zap.String("bucket", s3Cfg.Bucket), zap.String("endpoint", s3Cfg.Endpoint))
		return store, nil
	}
	if cfg.Render.Enabled {
		logger.Info("render store: using in-memory fallback (s3 config incomplete)")
	}
	return renderrepo.NewMemoryStore(renderrepo.DefaultMemoryCapacity, "/api/renders/")
}
