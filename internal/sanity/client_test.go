package sanity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/damsblt/helvetiforma-sub003/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		Dataset: "production",
		Token:   "sk-test",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
	return client, srv
}

func queryResult(result any) []byte {
	body, _ := json.Marshal(map[string]any{"result": result})
	return body
}

func TestClient_GetContentItem(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an article document When fetched Then parsed with decimal price", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.URL.Path, "/data/query/production") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
				t.Errorf("auth header = %q", got)
			}
			if !strings.Contains(r.URL.RawQuery, "%24id") {
				t.Error("expected $id query parameter")
			}
			w.Write(queryResult(map[string]any{
				"_id": "p1", "title": "T", "slug": "intro",
				"accessLevel": "premium", "price": 25.00,
			}))
		})

		item, err := client.GetContentItem(ctx, "p1")

		if err != nil {
			t.Fatalf("GetContentItem failed: %v", err)
		}
		if item.ID != "p1" || item.Title != "T" || item.Slug != "intro" {
			t.Errorf("unexpected item %+v", item)
		}
		if !item.HasPrice || !item.Price.Equal(decimal.RequireFromString("25")) {
			t.Errorf("price = %s (hasPrice=%v), want 25", item.Price, item.HasPrice)
		}
		if !item.Sellable() {
			t.Error("premium priced item must be sellable")
		}
	})

	t.Run("Given a priceless members item When fetched Then not sellable", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write(queryResult(map[string]any{"_id": "p1", "title": "T", "accessLevel": "members"}))
		})

		item, err := client.GetContentItem(ctx, "p1")

		if err != nil {
			t.Fatalf("GetContentItem failed: %v", err)
		}
		if item.HasPrice || item.Sellable() {
			t.Errorf("item %+v must not be sellable", item)
		}
	})

	t.Run("Given a null result When fetched Then ErrNotFound", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result": null}`))
		})

		_, err := client.GetContentItem(ctx, "missing")

		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Given a 500 then success When fetched Then retried", func(t *testing.T) {
		attempts := 0
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			w.Write(queryResult(map[string]any{"_id": "p1", "title": "T", "accessLevel": "public"}))
		})

		item, err := client.GetContentItem(ctx, "p1")

		if err != nil {
			t.Fatalf("GetContentItem failed after retry: %v", err)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
		if item.ID != "p1" {
			t.Errorf("item = %+v", item)
		}
	})

	t.Run("Given a 400 When fetched Then fails fast without retry", func(t *testing.T) {
		attempts := 0
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			attempts++
			http.Error(w, "bad query", http.StatusBadRequest)
		})

		_, err := client.GetContentItem(ctx, "p1")

		if err == nil || core.IsTransient(err) {
			t.Errorf("expected non-retryable error, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})
}

func TestClient_PurchaseLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a create When recorded Then createIfNotExists mutation with derived doc id", func(t *testing.T) {
		var mutation map[string]any
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				json.NewDecoder(r.Body).Decode(&mutation)
				w.Write([]byte(`{"results": []}`))
				return
			}
			// Read-back by reference.
			w.Write(queryResult(map[string]any{
				"_id": "purchase-cs_1", "_type": "purchaseRecord",
				"userId": "u1", "contentItemId": "p1",
				"amount": 5, "paymentReference": "cs_1", "status": "completed",
			}))
		})

		rec, err := client.CreatePurchaseRecord(ctx, &core.PurchaseRecord{
			ID:               "ignored",
			UserID:           "u1",
			ContentItemID:    "p1",
			Amount:           decimal.RequireFromString("5.00"),
			PaymentReference: "cs_1",
			Status:           core.PurchaseCompleted,
			CreatedAt:        time.Now().UTC(),
		})

		if err != nil {
			t.Fatalf("CreatePurchaseRecord failed: %v", err)
		}
		if rec.ID != "purchase-cs_1" {
			t.Errorf("record id = %q, want purchase-cs_1", rec.ID)
		}

		muts, ok := mutation["mutations"].([]any)
		if !ok || len(muts) != 1 {
			t.Fatalf("unexpected mutation body %v", mutation)
		}
		create, ok := muts[0].(map[string]any)["createIfNotExists"].(map[string]any)
		if !ok {
			t.Fatal("expected a createIfNotExists mutation")
		}
		if create["_id"] != "purchase-cs_1" {
			t.Errorf("doc id = %v, want purchase-cs_1", create["_id"])
		}
		if create["_type"] != "purchaseRecord" {
			t.Errorf("doc type = %v, want purchaseRecord", create["_type"])
		}
	})

	t.Run("Given a recorded purchase When found by reference Then parsed", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write(queryResult(map[string]any{
				"_id": "purchase-cs_1", "_type": "purchaseRecord",
				"userId": "u1", "contentItemId": "p1",
				"amount": 5.0, "paymentReference": "cs_1", "status": "completed",
			}))
		})

		rec, err := client.FindPurchaseByReference(ctx, "cs_1")

		if err != nil {
			t.Fatalf("FindPurchaseByReference failed: %v", err)
		}
		if rec.UserID != "u1" || rec.ContentItemID != "p1" || rec.Status != core.PurchaseCompleted {
			t.Errorf("unexpected record %+v", rec)
		}
		if !rec.Amount.Equal(decimal.RequireFromString("5")) {
			t.Errorf("amount = %s, want 5", rec.Amount)
		}
	})

	t.Run("Given no record When searched by user and item Then ErrNotFound", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result": null}`))
		})

		_, err := client.FindCompletedPurchase(ctx, "u1", "p1")

		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
