package payments

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"github.com/Spok95/makerspace/internal/clients"
	"github.com/Spok95/makerspace/internal/usage"
)

type ClientLookup interface {
	Lookup(userID string) (*clients.Client, bool)
}

type Handler struct {
	log     *slog.Logger
	svc     *Service
	clients ClientLookup
}

func NewHandler(log *slog.Logger, svc *Service, clients ClientLookup) *Handler {
	return &Handler{log: log, svc: svc, clients: clients}
}

// ServeHTTP принимает сигнал «оплата прошла»:
// /payments/confirm?token=... -> коммитим ровно того кандидата, за которого платили.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		page(w, http.StatusBadRequest, "Payment failed", "missing token parameter")
		return
	}
	conf, err := h.svc.Verify(raw)
	if err != nil {
		page(w, http.StatusBadRequest, "Payment failed", "the payment link is invalid or has expired")
		return
	}

	c, ok := h.clients.Lookup(conf.UserID)
	if !ok {
		page(w, http.StatusGone, "Payment failed", "your session has ended, please register the usage again")
		return
	}

	res, err := c.Engine.CommitPending(r.Context(), conf.UsageID)
	if err != nil {
		h.log.Warn("payment confirmation not committed",
			"usage_id", conf.UsageID,
			"user_id", conf.UserID,
			"err", err,
		)
		status, msg := http.StatusInternalServerError, "could not record the usage, please try again"
		switch {
		case errors.Is(err, usage.ErrStaleCandidate), errors.Is(err, usage.ErrNoPendingUsage):
			status, msg = http.StatusConflict, "this payment is for a usage that is no longer pending"
		case errors.Is(err, usage.ErrInsufficientStock):
			status, msg = http.StatusConflict, "not enough material left in stock"
		case errors.Is(err, usage.ErrMaterialNotFound):
			status, msg = http.StatusConflict, "the material no longer exists"
		case errors.Is(err, usage.ErrNotAuthenticated):
			status, msg = http.StatusUnauthorized, "please sign in again"
		}
		page(w, status, "Payment not applied", msg)
		return
	}

	page(w, http.StatusOK, "Payment received",
		fmt.Sprintf("Paid %s %s. Recorded %s of %s, %s left in stock.",
			conf.Amount, conf.Currency,
			res.Entry.Amount.String(), res.Entry.MaterialName, res.NewStock.String()))
}

func page(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<html><body><h1>%s</h1><p>%s</p></body></html>",
		html.EscapeString(title), html.EscapeString(body))
}
