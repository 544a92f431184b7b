package http

import (
	"fmt"
	"net/http"

	"github.com/Spok95/makerspace/internal/catalog"
	"github.com/Spok95/makerspace/internal/clients"
	"github.com/Spok95/makerspace/internal/domain/users"
	"github.com/Spok95/makerspace/internal/export"
)

type catalogResponse struct {
	Materials []materialDTO `json:"materials"`
	Machines  []machineDTO  `json:"machines"`
}

func snapshotResponse(s catalog.Snapshot) catalogResponse {
	return catalogResponse{Materials: toMaterialDTOs(s.Materials), Machines: toMachineDTOs(s.Machines)}
}

func (a *API) getCatalog(w http.ResponseWriter, _ *http.Request, _ *clients.Client, _ users.User) {
	writeJSON(w, http.StatusOK, snapshotResponse(a.Catalog.Snapshot()))
}

func (a *API) refreshCatalog(w http.ResponseWriter, r *http.Request, _ *clients.Client, _ users.User) {
	snap, err := a.Catalog.Refresh(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

func (a *API) lowStock(w http.ResponseWriter, _ *http.Request, _ *clients.Client, _ users.User) {
	writeJSON(w, http.StatusOK, toMaterialDTOs(a.Catalog.LowStock()))
}

func (a *API) exportCSV(w http.ResponseWriter, _ *http.Request, _ *clients.Client, _ users.User) {
	body, err := export.CSV(a.Catalog.Materials())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.attachment(w, "csv", export.ContentTypeCSV, body)
}

func (a *API) exportXLSX(w http.ResponseWriter, _ *http.Request, _ *clients.Client, _ users.User) {
	body, err := export.XLSX(a.Catalog.Materials())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.attachment(w, "xlsx", export.ContentTypeXLSX, body)
}

func (a *API) attachment(w http.ResponseWriter, ext, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.FileName(ext, a.now(), a.Location)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) archive(w http.ResponseWriter, r *http.Request, _ *clients.Client, u users.User) {
	if a.Archive == nil {
		writeMessage(w, http.StatusNotImplemented, "export archive is not configured")
		return
	}
	keys, err := export.Archive(r.Context(), a.Archive, a.Catalog.Materials(), a.now(), a.Location)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.Log.Info("inventory archived", "user_id", u.ID, "keys", keys)
	writeJSON(w, http.StatusCreated, map[string][]string{"keys": keys})
}
