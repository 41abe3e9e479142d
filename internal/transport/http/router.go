package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries everything the HTTP surface needs. All services are
// consumed through the per-handler interfaces so tests can substitute fakes.
type RouterConfig struct {
	Logger      *slog.Logger
	Auth        Authenticator
	Metrics     *Metrics
	CORSOrigins []string
	BaseURL     string

	Organizers OrganizersService
	Events     EventsService
	Catalog    CatalogService
	Vouchers   VouchersService
	Discounts  DiscountsService
	GiftCards  GiftCardsService
	Positions  PositionsService
	Checkin    CheckinService
	Teams      TeamsService
	Webhooks   WebhooksService
	Exports    ExportsService

	MetricsHandler http.Handler
}

// NewRouter assembles the full handler chain: routing, token auth on the API
// subtree, CORS, request logging, metrics and panic recovery.
func NewRouter(cfg RouterConfig) http.Handler {
	sc := &scope{organizers: cfg.Organizers, events: cfg.Events}

	organizers := &organizersHandler{svc: cfg.Organizers, scope: sc}
	events := &eventsHandler{svc: cfg.Events, scope: sc}
	catalog := &catalogHandler{svc: cfg.Catalog, scope: sc}
	vouchers := &vouchersHandler{svc: cfg.Vouchers, scope: sc}
	discounts := &discountsHandler{svc: cfg.Discounts, scope: sc}
	giftCards := &giftCardsHandler{svc: cfg.GiftCards, scope: sc}
	positions := &positionsHandler{svc: cfg.Positions, scope: sc}
	checkinLists := &checkinListsHandler{svc: cfg.Checkin, scope: sc}
	teams := &teamsHandler{svc: cfg.Teams, scope: sc}
	webhooks := &webhooksHandler{svc: cfg.Webhooks, scope: sc}
	exports := &exportsHandler{svc: cfg.Exports, scope: sc, baseURL: cfg.BaseURL}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", HealthHandler)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// api wraps a handler with token authentication.
	api := func(h http.HandlerFunc) http.Handler {
		return RequireToken(cfg.Auth, h)
	}
	const base = "/api/v1/organizers"

	mux.Handle("GET "+base+"/{$}", api(organizers.list))
	mux.Handle("GET "+base+"/{organizer}/{$}", api(organizers.detail))
	mux.Handle("PATCH "+base+"/{organizer}/{$}", api(organizers.patch))

	mux.Handle("GET "+base+"/{organizer}/events/{$}", api(events.list))
	mux.Handle("POST "+base+"/{organizer}/events/{$}", api(events.create))
	mux.Handle("GET "+base+"/{organizer}/events/{event}/{$}", api(events.detail))
	mux.Handle("PATCH "+base+"/{organizer}/events/{event}/{$}", api(events.patch))
	mux.Handle("DELETE "+base+"/{organizer}/events/{event}/{$}", api(events.delete))

	const event = base + "/{organizer}/events/{event}"

	mux.Handle("GET "+event+"/subevents/{$}", api(events.listSubEvents))
	mux.Handle("POST "+event+"/subevents/{$}", api(events.createSubEvent))
	mux.Handle("GET "+event+"/subevents/{id}/{$}", api(events.subEventDetail))
	mux.Handle("PATCH "+event+"/subevents/{id}/{$}", api(events.patchSubEvent))
	mux.Handle("DELETE "+event+"/subevents/{id}/{$}", api(events.deleteSubEvent))

	mux.Handle("GET "+event+"/items/{$}", api(catalog.listItems))
	mux.Handle("POST "+event+"/items/{$}", api(catalog.createItem))
	mux.Handle("GET "+event+"/items/{id}/{$}", api(catalog.itemDetail))
	mux.Handle("PATCH "+event+"/items/{id}/{$}", api(catalog.patchItem))
	mux.Handle("DELETE "+event+"/items/{id}/{$}", api(catalog.deleteItem))

	mux.Handle("GET "+event+"/quotas/{$}", api(catalog.listQuotas))
	mux.Handle("POST "+event+"/quotas/{$}", api(catalog.createQuota))
	mux.Handle("GET "+event+"/quotas/{id}/{$}", api(catalog.quotaDetail))
	mux.Handle("PATCH "+event+"/quotas/{id}/{$}", api(catalog.patchQuota))
	mux.Handle("DELETE "+event+"/quotas/{id}/{$}", api(catalog.deleteQuota))
	mux.Handle("GET "+event+"/quotas/{id}/availability/{$}", api(catalog.quotaAvailability))

	mux.Handle("GET "+event+"/taxrules/{$}", api(catalog.listTaxRules))
	mux.Handle("POST "+event+"/taxrules/{$}", api(catalog.createTaxRule))
	mux.Handle("GET "+event+"/taxrules/{id}/{$}", api(catalog.taxRuleDetail))
	mux.Handle("PUT "+event+"/taxrules/{id}/{$}", api(catalog.putTaxRule))
	mux.Handle("PATCH "+event+"/taxrules/{id}/{$}", api(catalog.patchTaxRule))
	mux.Handle("DELETE "+event+"/taxrules/{id}/{$}", api(catalog.deleteTaxRule))

	mux.Handle("GET "+event+"/vouchers/{$}", api(vouchers.list))
	mux.Handle("POST "+event+"/vouchers/{$}", api(vouchers.create))
	mux.Handle("POST "+event+"/vouchers/batch_create/{$}", api(vouchers.batchCreate))
	mux.Handle("GET "+event+"/vouchers/{id}/{$}", api(vouchers.detail))
	mux.Handle("PATCH "+event+"/vouchers/{id}/{$}", api(vouchers.patch))
	mux.Handle("DELETE "+event+"/vouchers/{id}/{$}", api(vouchers.delete))

	mux.Handle("GET "+event+"/discounts/{$}", api(discounts.list))
	mux.Handle("POST "+event+"/discounts/{$}", api(discounts.create))
	mux.Handle("GET "+event+"/discounts/{id}/{$}", api(discounts.detail))
	mux.Handle("PATCH "+event+"/discounts/{id}/{$}", api(discounts.patch))
	mux.Handle("DELETE "+event+"/discounts/{id}/{$}", api(discounts.delete))
	mux.Handle("POST "+event+"/discounts/{id}/preview/{$}", api(discounts.preview))

	mux.Handle("GET "+event+"/orderpositions/{$}", api(positions.list))
	mux.Handle("POST "+event+"/orderpositions/{$}", api(positions.create))
	mux.Handle("GET "+event+"/orderpositions/{id}/{$}", api(positions.detail))
	mux.Handle("DELETE "+event+"/orderpositions/{id}/{$}", api(positions.delete))

	mux.Handle("GET "+event+"/checkinlists/{$}", api(checkinLists.list))
	mux.Handle("POST "+event+"/checkinlists/{$}", api(checkinLists.create))
	mux.Handle("GET "+event+"/checkinlists/{id}/{$}", api(checkinLists.detail))
	mux.Handle("PUT "+event+"/checkinlists/{id}/{$}", api(checkinLists.put))
	mux.Handle("PATCH "+event+"/checkinlists/{id}/{$}", api(checkinLists.patch))
	mux.Handle("DELETE "+event+"/checkinlists/{id}/{$}", api(checkinLists.delete))
	mux.Handle("GET "+event+"/checkinlists/{id}/status/{$}", api(checkinLists.status))
	mux.Handle("GET "+event+"/checkinlists/{id}/checkins/{$}", api(checkinLists.listCheckins))
	mux.Handle("POST "+event+"/checkinlists/{id}/positions/{secret}/redeem/{$}", api(checkinLists.redeem))

	mux.Handle("POST "+event+"/exports/{$}", api(exports.create))
	mux.Handle("GET "+event+"/exports/{id}/{$}", api(exports.detail))
	mux.Handle("GET "+event+"/exports/{id}/download/{$}", api(exports.download))

	mux.Handle("GET "+base+"/{organizer}/giftcards/{$}", api(giftCards.list))
	mux.Handle("POST "+base+"/{organizer}/giftcards/{$}", api(giftCards.create))
	mux.Handle("GET "+base+"/{organizer}/giftcards/{id}/{$}", api(giftCards.detail))
	mux.Handle("PATCH "+base+"/{organizer}/giftcards/{id}/{$}", api(giftCards.patch))
	mux.Handle("DELETE "+base+"/{organizer}/giftcards/{id}/{$}", api(giftCards.delete))
	mux.Handle("POST "+base+"/{organizer}/giftcards/{id}/transact/{$}", api(giftCards.transact))
	mux.Handle("GET "+base+"/{organizer}/giftcards/{id}/transactions/{$}", api(giftCards.listTransactions))

	mux.Handle("GET "+base+"/{organizer}/teams/{$}", api(teams.list))
	mux.Handle("POST "+base+"/{organizer}/teams/{$}", api(teams.create))
	mux.Handle("GET "+base+"/{organizer}/teams/{id}/{$}", api(teams.detail))
	mux.Handle("PATCH "+base+"/{organizer}/teams/{id}/{$}", api(teams.patch))
	mux.Handle("DELETE "+base+"/{organizer}/teams/{id}/{$}", api(teams.delete))
	mux.Handle("GET "+base+"/{organizer}/teams/{team}/tokens/{$}", api(teams.listTokens))
	mux.Handle("POST "+base+"/{organizer}/teams/{team}/tokens/{$}", api(teams.createToken))
	mux.Handle("DELETE "+base+"/{organizer}/teams/{team}/tokens/{id}/{$}", api(teams.revokeToken))

	mux.Handle("GET "+base+"/{organizer}/webhooks/{$}", api(webhooks.list))
	mux.Handle("POST "+base+"/{organizer}/webhooks/{$}", api(webhooks.create))
	mux.Handle("GET "+base+"/{organizer}/webhooks/{id}/{$}", api(webhooks.detail))
	mux.Handle("PUT "+base+"/{organizer}/webhooks/{id}/{$}", api(webhooks.put))
	mux.Handle("PATCH "+base+"/{organizer}/webhooks/{id}/{$}", api(webhooks.patch))
	mux.Handle("DELETE "+base+"/{organizer}/webhooks/{id}/{$}", api(webhooks.delete))

	mux.Handle("/", NotFoundHandler())

	var handler http.Handler = mux
	if cfg.Metrics != nil {
		handler = cfg.Metrics.Handler(mux)
	}
	handler = CORS(cfg.CORSOrigins, handler)
	handler = RequestLogger(handler, cfg.Logger)
	handler = Recover(handler, cfg.Logger)
	return handler
}
