package accountmgr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// API is the HTTP admin surface for the account manager service.
type API struct {
	manager *Manager
}

func NewAPI(manager *Manager) *API {
	return &API{
		manager: manager,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", a.listAccounts)
		r.Get("/summary", a.listSummaries)
		r.Post("/fetch", a.fetchAccounts)
		r.Post("/cancel-all", a.cancelAll)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", a.getAccount)
			r.Get("/summary", a.getSummary)
			r.Post("/cancel", a.cancelAccount)
		})
	})
}

type fetchRequest struct {
	UserIDs []string `json:"user_ids"`
}

type fetchResponse struct {
	Requested int      `json:"requested"`
	Fetched   int      `json:"fetched"`
	Absent    []string `json:"absent"`
}

func (a *API) fetchAccounts(w http.ResponseWriter, r *http.Request) {
	req := fetchRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 {
		http.Error(w, "user_ids is required", http.StatusBadRequest)
		return
	}
	// Backends key customers by UUID; reject malformed ids before fan-out.
	for _, userID := range req.UserIDs {
		if _, err := uuid.Parse(userID); err != nil {
			http.Error(w, fmt.Sprintf("invalid user id %q", userID), http.StatusBadRequest)
			return
		}
	}

	results, err := a.manager.FetchAccounts(r.Context(), req.UserIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := fetchResponse{Requested: len(req.UserIDs), Absent: []string{}}
	for _, userID := range req.UserIDs {
		if account, ok := results[userID]; ok && account != nil {
			resp.Fetched++
		} else {
			resp.Absent = append(resp.Absent, userID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(a.manager.repo.List())
}

func (a *API) listSummaries(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(a.manager.Summaries())
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	account, err := a.manager.GetAccount(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(account)
}

func (a *API) getSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	account, err := a.manager.GetAccount(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(account.Summarize())
}

func (a *API) cancelAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	account, err := a.manager.GetAccount(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	a.manager.CancelAccount(r.Context(), account)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(account.Summarize())
}

func (a *API) cancelAll(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"

	if err := a.manager.CancelAll(r.Context(), refresh); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(a.manager.Summaries())
}
