package http

import (
	"net/http"

	"github.com/Spok95/makerspace/internal/clients"
	"github.com/Spok95/makerspace/internal/domain/users"
	"github.com/Spok95/makerspace/internal/usage"
)

type commitResponse struct {
	Entry    entryDTO `json:"entry"`
	NewStock string   `json:"new_stock"`
}

// quote: цена для живого пересчёта в форме; слот не трогает.
func (a *API) quote(w http.ResponseWriter, r *http.Request, c *clients.Client, _ users.User) {
	var req stageRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := c.Engine.Quote(req.toUsage())
	if err != nil {
		a.writeError(w, err)
		return
	}
	dto := toPendingDTO(p)
	dto.ID = ""
	writeJSON(w, http.StatusOK, dto)
}

func (a *API) stage(w http.ResponseWriter, r *http.Request, c *clients.Client, u users.User) {
	var req stageRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := c.Engine.Stage(req.toUsage())
	if err != nil {
		a.writeError(w, err)
		return
	}
	dto := toPendingDTO(p)
	if dto.RequiresConfirmation {
		if dto.PaymentURL, err = a.Payments.PaymentURL(u.ID, p); err != nil {
			a.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (a *API) pending(w http.ResponseWriter, _ *http.Request, c *clients.Client, u users.User) {
	p, ok := c.Engine.Pending()
	if !ok {
		writeMessage(w, http.StatusNotFound, usage.ErrNoPendingUsage.Error())
		return
	}
	dto := toPendingDTO(p)
	if dto.RequiresConfirmation {
		var err error
		if dto.PaymentURL, err = a.Payments.PaymentURL(u.ID, p); err != nil {
			a.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (a *API) cancel(w http.ResponseWriter, _ *http.Request, c *clients.Client, _ users.User) {
	if err := c.Engine.Cancel(); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// commit коммитит сразу только бесплатное использование; платное ждёт
// подтверждения оплаты через /payments/confirm.
func (a *API) commit(w http.ResponseWriter, r *http.Request, c *clients.Client, u users.User) {
	p, ok := c.Engine.Pending()
	if !ok {
		a.writeError(w, usage.ErrNoPendingUsage)
		return
	}
	if usage.RequiresConfirmation(p) {
		link, err := a.Payments.PaymentURL(u.ID, p)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":       "payment confirmation required",
			"payment_url": link,
		})
		return
	}

	res, err := c.Engine.CommitPending(r.Context(), p.ID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse{Entry: toEntryDTO(res.Entry), NewStock: res.NewStock.String()})
}

func (a *API) history(w http.ResponseWriter, r *http.Request, _ *clients.Client, u users.User) {
	list, err := a.UsageLog.ListByUser(r.Context(), u.ID, 50)
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]entryDTO, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}
