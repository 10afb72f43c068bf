// Package handler serves the storefront JSON API and the editor websocket.
package handler

import (
	"go.uber.org/zap"

	"charmstudio/internal/catalog"
	"charmstudio/internal/compose"
	"charmstudio/internal/editor"
	"charmstudio/internal/flow"
	catalogrepo "charmstudio/internal/gateway/repository/catalog"
	couponrepo "charmstudio/internal/gateway/repository/coupon"
	"charmstudio/internal/gateway/repository/render"
	"charmstudio/internal/gateway/service/checkout"
)

type Deps struct {
	Catalog  catalogrepo.Store
	Coupons  couponrepo.Store
	Editor   *editor.Manager
	Flows    *flow.Service
	Composer *compose.Service
	Renders  render.Store
	Checkout *checkout.Service
	Seeds    []catalog.TypeSeed
	Logger   *zap.Logger
}

// Handler holds every collaborator the HTTP surface needs.
type Handler struct {
	catalog  catalogrepo.Store
	coupons  couponrepo.Store
	editor   *editor.Manager
	flows    *flow.Service
	composer *compose.Service
	renders  render.Store
	checkout *checkout.Service
	seeds    []catalog.TypeSeed
	log      *zap.Logger
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Seeds == nil {
		d.Seeds = catalog.DefaultSeeds()
	}
	return &Handler{
		catalog:  d.Catalog,
		coupons:  d.Coupons,
		editor:   d.Editor,
		flows:    d.Flows,
		composer: d.Composer,
		renders:  d.Renders,
		checkout: d.Checkout,
		seeds:    d.Seeds,
		log:      d.Logger,
	}
}
