package faucet_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/speedway/garage-engine/internal/model"
)

func newTestRouter(env *testEnv) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/garage/deposit", env.svc.HandleDeposit)
	r.Post("/garage/compound", env.svc.HandleCompound)
	r.Post("/garage/withdraw", env.svc.HandleWithdraw)
	r.Post("/garage/stash", env.svc.HandleStashIn)
	r.Post("/garage/claim-wallet", env.svc.HandleClaimToWallet)
	r.Get("/garage/{owner}", env.svc.HandleGetPosition)
	r.Get("/garage/{owner}/events", env.svc.HandleGetEvents)
	r.Get("/ledger", env.svc.HandleGetLedger)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleDeposit(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	env.mover.Fund(alice, 1000*f)

	w := postJSON(t, router, "/garage/deposit", map[string]string{
		"owner":    string(alice),
		"referrer": string(model.HouseIdentity),
		"amount":   strconv.FormatUint(1000*f, 10),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	var ev model.Event
	if err := json.NewDecoder(w.Body).Decode(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Op != model.OpDeposit || ev.NetAmount != 550*f {
		t.Errorf("event = %+v", ev)
	}
}

func TestHandleDepositBadIdentity(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)

	w := postJSON(t, router, "/garage/deposit", map[string]string{
		"owner":    "not-an-identity",
		"referrer": string(model.HouseIdentity),
		"amount":   "100",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleDepositBadAmount(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)

	w := postJSON(t, router, "/garage/deposit", map[string]string{
		"owner":    string(alice),
		"referrer": string(model.HouseIdentity),
		"amount":   "ten",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleCompoundNoGarage(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)

	w := postJSON(t, router, "/garage/compound", map[string]string{"owner": string(alice)})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleCompoundNoRewards(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	env.deposit(alice, model.HouseIdentity, 1000*f)

	w := postJSON(t, router, "/garage/compound", map[string]string{"owner": string(alice)})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestHandleGetPosition(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	env.deposit(alice, model.HouseIdentity, 1000*f)

	w := get(t, router, fmt.Sprintf("/garage/%s", alice))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var view struct {
		Owner          model.Identity `json:"owner"`
		TotalDeposited uint64         `json:"total_deposited"`
		Available      uint64         `json:"available"`
	}
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Owner != alice || view.TotalDeposited != 550*f || view.Available != 0 {
		t.Errorf("view = %+v", view)
	}

	if w := get(t, router, fmt.Sprintf("/garage/%s", bob)); w.Code != http.StatusNotFound {
		t.Fatalf("unknown owner status = %d, want 404", w.Code)
	}
}

func TestHandleGetEvents(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	env.deposit(alice, model.HouseIdentity, 1000*f)

	w := get(t, router, fmt.Sprintf("/garage/%s/events", alice))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var events []model.Event
	if err := json.NewDecoder(w.Body).Decode(&events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Op != model.OpDeposit {
		t.Errorf("events = %+v", events)
	}

	// Unknown owners get an empty list, not an error.
	w = get(t, router, fmt.Sprintf("/garage/%s/events", bob))
	if w.Code != http.StatusOK || w.Body.String() == "null\n" {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body)
	}
}

func TestHandleGetLedger(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	env.deposit(alice, model.HouseIdentity, 1000*f)

	w := get(t, router, "/ledger")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var l model.Ledger
	if err := json.NewDecoder(w.Body).Decode(&l); err != nil {
		t.Fatal(err)
	}
	if l.PoolBalance != 280*f || l.TotalLockedValue != 550*f {
		t.Errorf("ledger = %+v", l)
	}
}
