package provider_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alovak/accountflow/accountmgr/models"
	"github.com/alovak/accountflow/internal/provider"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *provider.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := provider.New(provider.Config{
		BaseURL:  srv.URL,
		Username: "ops-user",
		Password: "ops-pass",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func requireBasicAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	require.True(t, ok, "missing basic auth")
	require.Equal(t, "ops-user", user)
	require.Equal(t, "ops-pass", pass)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := provider.New(provider.Config{Username: "u", Password: "p"})
	require.Error(t, err)

	_, err = provider.New(provider.Config{BaseURL: "http://localhost"})
	require.Error(t, err)
}

func TestLinkedAccounts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/accounts/internal/v3/users/u1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"accounts":[
			{"providerId":"PAYMENT_RAIL","internalId":"r1"},
			{"providerId":"CARD_PROCESSOR","internalId":"a1"}
		]}`)
	})

	links, err := client.LinkedAccounts(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, provider.ProviderPaymentRail, links[0].ProviderID)
	require.Equal(t, "r1", links[0].InternalID)
	require.Equal(t, provider.ProviderCardProcessor, links[1].ProviderID)
}

func TestLinkedAccounts_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.LinkedAccounts(context.Background(), "u1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=502")
}

func TestCards(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		require.Equal(t, "/card-processor/cs/cards", r.URL.Path)
		require.Equal(t, "a1", r.URL.Query().Get("accountId"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"c1","status":"ACTIVE","cardType":"PHYSICAL"},
			{"id":"c2","status":"FROZEN","cardType":"VIRTUAL"}
		]`)
	})

	cards, err := client.Cards(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	require.Equal(t, models.StatusActive, cards[0].Status)
	require.Equal(t, models.CardTypeVirtual, cards[1].Type)
}

func TestCards_UnknownStatusFailsCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"c1","status":"MELTED","cardType":"PHYSICAL"}]`)
	})

	_, err := client.Cards(context.Background(), "a1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown card status")
}

func TestUpdateCardStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/card-processor/cs/cards/c1/status", r.URL.Path)

		var body struct {
			TargetStatus string `json:"targetStatus"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "FROZEN_PERMANENT", body.TargetStatus)
		w.WriteHeader(http.StatusOK)
	})

	err := client.UpdateCardStatus(context.Background(), "c1", models.StatusFrozenPermanent)
	require.NoError(t, err)
}

func TestDeleteCard(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/card-processor/cs/cards/c2", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteCard(context.Background(), "c2"))
}

func TestMobileAccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/operation-support/api/customer/isEnabled", r.URL.Path)

		var ids []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ids))
		require.Equal(t, []string{"u1", "u2"}, ids)

		io.WriteString(w, `[
			{"customerId":"u1","active":true},
			{"customerId":"u2","active":false}
		]`)
	})

	flags, err := client.MobileAccess(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"u1": true, "u2": false}, flags)
}

func TestLockMobileAccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/operation-support/api/customer/u1/lock-mobile-access", r.URL.Path)

		var body struct {
			Enabled bool `json:"enabled"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.False(t, body.Enabled)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.LockMobileAccess(context.Background(), "u1"))
}

func TestDeactivateRail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/operation-support/api/customer/u1/payment-rails/r1/deactivate", r.URL.Path)
		require.Equal(t, "FRAUD", r.URL.Query().Get("deactivationReason"))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.DeactivateRail(context.Background(), "u1", "r1"))
}

func TestDeactivateRail_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "locked out", http.StatusForbidden)
	})

	err := client.DeactivateRail(context.Background(), "u1", "r1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=403")
}
