package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/speedway/garage-engine/internal/fuel"
	"github.com/speedway/garage-engine/internal/garage"
	"github.com/speedway/garage-engine/internal/model"
)

// DepositRequest is the JSON body for POST /api/v1/garage/deposit.
// Amount is a decimal string of drops to keep full uint64 precision in
// JSON.
type DepositRequest struct {
	Owner    string `json:"owner"`
	Referrer string `json:"referrer"` // house identity for referral-less deposits
	Amount   string `json:"amount"`
}

// OwnerRequest is the JSON body for the owner-only operations.
type OwnerRequest struct {
	Owner string `json:"owner"`
}

// HandleDeposit handles POST /api/v1/garage/deposit.
func (s *Service) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	owner, err := model.ParseIdentity(req.Owner)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	referrer, err := model.ParseIdentity(req.Referrer)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := strconv.ParseUint(req.Amount, 10, 64)
	if err != nil {
		writeError(w, "amount must be a decimal string of drops", http.StatusBadRequest)
		return
	}

	event, err := s.Deposit(r.Context(), owner, referrer, amount)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HandleCompound handles POST /api/v1/garage/compound.
func (s *Service) HandleCompound(w http.ResponseWriter, r *http.Request) {
	s.handleOwnerOp(w, r, s.Compound)
}

// HandleWithdraw handles POST /api/v1/garage/withdraw.
func (s *Service) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleOwnerOp(w, r, s.Withdraw)
}

// HandleStashIn handles POST /api/v1/garage/stash.
func (s *Service) HandleStashIn(w http.ResponseWriter, r *http.Request) {
	s.handleOwnerOp(w, r, s.StashIn)
}

// HandleClaimToWallet handles POST /api/v1/garage/claim-wallet.
func (s *Service) HandleClaimToWallet(w http.ResponseWriter, r *http.Request) {
	s.handleOwnerOp(w, r, s.ClaimToWallet)
}

// HandleGetPosition handles GET /api/v1/garage/{owner}.
func (s *Service) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	owner, err := model.ParseIdentity(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := s.GetPosition(r.Context(), owner)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGetEvents handles GET /api/v1/garage/{owner}/events.
func (s *Service) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	owner, err := model.ParseIdentity(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.GetEvents(r.Context(), owner)
	if err != nil {
		writeOpError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleGetLedger handles GET /api/v1/ledger.
func (s *Service) HandleGetLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.GetLedger(r.Context())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (s *Service) handleOwnerOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, owner model.Identity) (*model.Event, error)) {
	var req OwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	owner, err := model.ParseIdentity(req.Owner)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := op(r.Context(), owner)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// writeOpError maps domain errors to HTTP statuses.
func writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, garage.ErrDepositBelowMinimum),
		errors.Is(err, garage.ErrInvalidReferrer),
		errors.Is(err, model.ErrInvalidIdentity):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, garage.ErrNotAuthorized):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, garage.ErrGarageRequired),
		errors.Is(err, garage.ErrReferrerNoGarage):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, garage.ErrExhausted),
		errors.Is(err, garage.ErrNoRewards),
		errors.Is(err, garage.ErrInsufficientPool):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, fuel.ErrOverflow):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
