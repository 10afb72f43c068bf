package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"charmstudio/internal/catalog"
	"charmstudio/internal/compose"
	"charmstudio/internal/editor"
	"charmstudio/internal/flow"
	"charmstudio/internal/gateway/config"
	"charmstudio/internal/gateway/handler"
	"charmstudio/internal/gateway/payment"
	"charmstudio/internal/gateway/server"
	"charmstudio/internal/gateway/service/checkout"
	"charmstudio/internal/llm"
)

type App struct {
	server *server.Server
	stores *gatewayStores
	llm    llm.Client
	log    *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Dependencies
	stores, err := initStores(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init stores: %w", err)
	}
	client, err := newLLMClient(ctx, cfg.LLM, logger)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to init llm client: %w", err)
	}
	seeds := catalog.DefaultSeeds()

	editorMgr, err := editor.NewManager(cfg.SessionCapacity, stores.catalog, logger)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	checkoutSvc := checkout.New(checkout.Deps{
		Catalog:    stores.catalog,
		Coupons:    stores.coupons,
		Orders:     stores.orders,
		Payments:   payment.NewManual(),
		Seeds:      seeds,
		Invalidate: stores.catalog.Invalidate,
		Logger:     logger,
	}, checkout.Config{
		Currency:   cfg.Shop.Currency,
		PointValue: cfg.Shop.PointValue,
		EarnRate:   cfg.Shop.EarnRate,
		Shipping: map[string]decimal.Decimal{
			checkout.ShippingStandard: cfg.Shop.ShippingStandard,
			checkout.ShippingExpress:  cfg.Shop.ShippingExpress,
		},
	})

	h := handler.New(handler.Deps{
		Catalog:  stores.catalog,
		Coupons:  stores.coupons,
		Editor:   editorMgr,
		Flows:    flow.New(client, logger),
		Composer: compose.New(client, compose.NewHTTPResolver(), logger),
		Renders:  stores.renders,
		Checkout: checkoutSvc,
		Seeds:    seeds,
		Logger:   logger,
	})

	// Routing & Server
	mux := server.NewMux(h, cfg.AdminUserIDs, logger)
	srv := server.New(cfg.Port, mux, logger)

	return &App{server: srv, stores: stores, llm: client, log: logger}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return errors.Join(
		a.server.Shutdown(ctx),
		a.llm.Close(),
		a.stores.Close(),
	)
}
