package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Spok95/makerspace/internal/auth"
	"github.com/Spok95/makerspace/internal/catalog"
	"github.com/Spok95/makerspace/internal/clients"
	"github.com/Spok95/makerspace/internal/domain/usagelog"
	"github.com/Spok95/makerspace/internal/export"
	"github.com/Spok95/makerspace/internal/infra/payments"
)

type Deps struct {
	Log      *slog.Logger
	Auth     *auth.Service
	Clients  *clients.Registry
	Catalog  *catalog.Cache
	UsageLog *usagelog.Repo
	Payments *payments.Service
	Archive  export.Uploader // nil: выгрузка в хранилище выключена
	Location *time.Location
	Metrics  http.Handler // nil: /metrics не публикуется
}

type API struct {
	Deps
	now func() time.Time
}

func NewRouter(d Deps) http.Handler {
	a := &API{Deps: d, now: time.Now}
	if a.Location == nil {
		a.Location = time.UTC
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	mux.HandleFunc("POST /api/auth/signup", a.signUp)
	mux.HandleFunc("POST /api/auth/login", a.login)
	mux.HandleFunc("POST /api/auth/federated", a.federated)
	mux.Handle("POST /api/auth/logout", a.withClient(a.logout))

	mux.Handle("GET /api/catalog", a.withClient(a.getCatalog))
	mux.Handle("POST /api/catalog/refresh", a.withClient(a.refreshCatalog))
	mux.Handle("GET /api/inventory/low", a.withClient(a.lowStock))

	mux.Handle("POST /api/usage/quote", a.withClient(a.quote))
	mux.Handle("POST /api/usage/stage", a.withClient(a.stage))
	mux.Handle("GET /api/usage/pending", a.withClient(a.pending))
	mux.Handle("POST /api/usage/cancel", a.withClient(a.cancel))
	mux.Handle("POST /api/usage/commit", a.withClient(a.commit))
	mux.Handle("GET /api/usage/history", a.withClient(a.history))

	mux.Handle("GET /payments/confirm", payments.NewHandler(d.Log, d.Payments, d.Clients))

	mux.Handle("GET /api/export/inventory.csv", a.withClient(a.exportCSV))
	mux.Handle("GET /api/export/inventory.xlsx", a.withClient(a.exportXLSX))
	mux.Handle("POST /api/export/archive", a.withClient(a.archive))

	return a.logRequests(mux)
}
