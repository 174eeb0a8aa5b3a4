package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"channex_sync/internal/adapters/channex"
	"channex_sync/internal/app"
	"channex_sync/internal/domain"
)

type Handlers struct {
	Q       *app.QueryService
	S       *app.SyncService
	M       domain.MappingStore
	E       *app.EventService
	Workers int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1", func(r chi.Router) {
		r.Use(MaxBody(1 << 20))
		r.Get("/properties/{id}/room-search", h.searchRooms)

		r.Post("/sync/properties/{id}", h.syncProperty)
		r.Post("/sync/{entity}/{localID}", h.syncEntity)
		r.Get("/resolve/{entity}/{localID}", h.resolve)

		r.Get("/mappings/{entity}", h.listMappings)
		r.Get("/mappings/{entity}/{localID}", h.getMapping)
		r.Put("/mappings/{entity}/{localID}", h.putMapping)
		r.Delete("/mappings/{entity}/{localID}", h.deleteMapping)

		r.Post("/channex/events", h.channexEvent)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses. The detail is the
// message a dashboard would show the user.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *channex.APIError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrMappingNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrUnknownEntity), errors.Is(err, domain.ErrUnknownEvent):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrMissingParent), errors.Is(err, domain.ErrParentNotSynced):
		writeProblem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		writeProblem(w, http.StatusUnprocessableEntity, "Rejected by Channex", apiErr.Message)
	case errors.As(err, &apiErr), errors.Is(err, channex.ErrUnauthorized), errors.Is(err, channex.ErrForbidden):
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func entityParam(r *http.Request) (domain.EntityType, error) {
	return domain.ParseEntityType(chi.URLParam(r, "entity"))
}

// ---- room search ----

func (h *Handlers) searchRooms(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	rng, err := domain.ParseDateRange(qs.Get("start"), qs.Get("end"))
	if err != nil {
		writeError(w, err)
		return
	}

	ints := map[string]int{"adults": 1, "children": 0, "infants": 0, "rooms": 1}
	for k := range ints {
		v := qs.Get(k)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 99 {
			writeProblem(w, http.StatusBadRequest, "Invalid "+k, k+" must be an integer between 0 and 99")
			return
		}
		ints[k] = n
	}

	q := domain.SearchQuery{
		Range:     rng,
		Occupancy: domain.Occupancy{Adults: ints["adults"], Children: ints["children"], Infants: ints["infants"]},
		Rooms:     ints["rooms"],
	}
	var selected domain.SelectedRooms
	if sel := qs.Get("selected"); sel != "" {
		selected = app.ParseSelection(strings.Split(sel, ","))
	}

	res, err := h.Q.SearchRooms(r.Context(), chi.URLParam(r, "id"), q, selected)
	if err != nil {
		writeError(w, err)
		return
	}

	etag, body := calcETagAndBody(res)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write room search body")
	}
}

// ---- sync ----

func (h *Handlers) syncEntity(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.S.Sync(r.Context(), t, chi.URLParam(r, "localID"))
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Op == domain.OpCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *Handlers) syncProperty(w http.ResponseWriter, r *http.Request) {
	workers := h.Workers
	if v := r.URL.Query().Get("workers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 32 {
			writeProblem(w, http.StatusBadRequest, "Invalid workers", "workers must be an integer between 1 and 32")
			return
		}
		workers = n
	}
	rep, err := h.S.SyncProperty(r.Context(), chi.URLParam(r, "id"), workers)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if len(rep.Failures) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, rep)
}

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	e, err := h.S.Resolve(r.Context(), t, chi.URLParam(r, "localID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if e == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "no channex entity matches")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ---- mappings ----

func (h *Handlers) listMappings(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	all, err := h.M.All(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]domain.IDMapping, 0, len(all))
	for local, ext := range all {
		out = append(out, domain.IDMapping{EntityType: t, LocalID: local, ExternalID: ext})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalID < out[j].LocalID })
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getMapping(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	local := chi.URLParam(r, "localID")
	ext, err := h.M.Get(r.Context(), t, local)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.IDMapping{EntityType: t, LocalID: local, ExternalID: ext})
}

func (h *Handlers) putMapping(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var in struct {
		ExternalID string `json:"external_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected {\"external_id\": \"...\"}")
		return
	}
	local := chi.URLParam(r, "localID")
	if err := h.M.Set(r.Context(), t, local, strings.TrimSpace(in.ExternalID)); err != nil {
		writeError(w, err)
		return
	}
	log.Info().Str("entity", string(t)).Str("local_id", local).Str("external_id", in.ExternalID).Msg("mapping set manually")
	writeJSON(w, http.StatusOK, domain.IDMapping{EntityType: t, LocalID: local, ExternalID: strings.TrimSpace(in.ExternalID)})
}

func (h *Handlers) deleteMapping(w http.ResponseWriter, r *http.Request) {
	t, err := entityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.M.Clear(r.Context(), t, chi.URLParam(r, "localID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- webhooks ----

func (h *Handlers) channexEvent(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Body too large", err.Error())
		return
	}
	ev, err := domain.DecodeEvent(b)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.E.Handle(r.Context(), ev); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
