// Package sanity implements the content store client: GROQ reads of
// content items and append-only writes to the canonical purchase ledger.
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/damsblt/helvetiforma-sub003/internal/core"
)

const (
	defaultAPIVersion = "2024-01-01"
	defaultTimeout    = 10 * time.Second
	maxRetries        = 3
	initialDelay      = 500 * time.Millisecond
)

// Config holds content store connection settings. No ambient client:
// every consumer constructs its own from injected configuration.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	// BaseURL overrides the derived https://<project>.api.sanity.io
	// endpoint, used by tests and self-hosted mirrors.
	BaseURL string
	Timeout time.Duration
}

// Client talks to the content store API.
type Client struct {
	cfg    Config
	base   string
	client *http.Client
}

// NewClient creates a content store client.
func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.sanity.io", cfg.ProjectID)
	}
	return &Client{
		cfg:    cfg,
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// contentItemDoc is the wire shape of an article document.
type contentItemDoc struct {
	ID          string      `json:"_id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	AccessLevel string      `json:"accessLevel"`
	Price       json.Number `json:"price"`
	UpdatedAt   time.Time   `json:"_updatedAt"`
}

// purchaseDoc is the wire shape of a purchase record document.
type purchaseDoc struct {
	ID               string      `json:"_id"`
	Type             string      `json:"_type"`
	UserID           string      `json:"userId"`
	ContentItemID    string      `json:"contentItemId"`
	Amount           json.Number `json:"amount"`
	PaymentReference string      `json:"paymentReference"`
	Status           string      `json:"status"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// GetContentItem implements core.ContentStore.
func (c *Client) GetContentItem(ctx context.Context, id string) (*core.ContentItem, error) {
	const query = `*[_type == "article" && _id == $id][0]{_id, title, "slug": slug.current, accessLevel, price, _updatedAt}`

	var doc *contentItemDoc
	if err := c.query(ctx, query, map[string]string{"$id": id}, &doc); err != nil {
		return nil, err
	}
	if doc == nil || doc.ID == "" {
		return nil, core.ErrNotFound
	}
	return itemFromDoc(doc)
}

// CreatePurchaseRecord implements core.ContentStore. The document ID is
// derived from the payment reference, so the store itself refuses a
// second record for the same payment (createIfNotExists).
func (c *Client) CreatePurchaseRecord(ctx context.Context, rec *core.PurchaseRecord) (*core.PurchaseRecord, error) {
	doc := purchaseDoc{
		ID:               purchaseDocID(rec.PaymentReference),
		Type:             "purchaseRecord",
		UserID:           rec.UserID,
		ContentItemID:    rec.ContentItemID,
		Amount:           json.Number(rec.Amount.String()),
		PaymentReference: rec.PaymentReference,
		Status:           rec.Status,
		CreatedAt:        rec.CreatedAt,
	}

	body := map[string]any{
		"mutations": []map[string]any{
			{"createIfNotExists": doc},
		},
	}
	if err := c.mutate(ctx, body); err != nil {
		return nil, err
	}

	// Read back the document that actually holds the ID: under a lost
	// race this returns the winner's record, which is the right answer.
	return c.FindPurchaseByReference(ctx, rec.PaymentReference)
}

// FindPurchaseByReference implements core.ContentStore.
func (c *Client) FindPurchaseByReference(ctx context.Context, paymentReference string) (*core.PurchaseRecord, error) {
	const query = `*[_type == "purchaseRecord" && paymentReference == $ref][0]`

	var doc *purchaseDoc
	if err := c.query(ctx, query, map[string]string{"$ref": paymentReference}, &doc); err != nil {
		return nil, err
	}
	if doc == nil || doc.ID == "" {
		return nil, core.ErrNotFound
	}
	return recordFromDoc(doc)
}

// FindCompletedPurchase implements core.ContentStore.
func (c *Client) FindCompletedPurchase(ctx context.Context, userID, contentItemID string) (*core.PurchaseRecord, error) {
	const query = `*[_type == "purchaseRecord" && userId == $user && contentItemId == $item && status == "completed"][0]`

	var doc *purchaseDoc
	params := map[string]string{"$user": userID, "$item": contentItemID}
	if err := c.query(ctx, query, params, &doc); err != nil {
		return nil, err
	}
	if doc == nil || doc.ID == "" {
		return nil, core.ErrNotFound
	}
	return recordFromDoc(doc)
}

func purchaseDocID(paymentReference string) string {
	return "purchase-" + paymentReference
}

func itemFromDoc(doc *contentItemDoc) (*core.ContentItem, error) {
	item := &core.ContentItem{
		ID:          doc.ID,
		Title:       doc.Title,
		Slug:        doc.Slug,
		AccessLevel: doc.AccessLevel,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.Price != "" {
		price, err := decimal.NewFromString(doc.Price.String())
		if err != nil {
			return nil, fmt.Errorf("content item %s has unparseable price %q: %w", doc.ID, doc.Price, err)
		}
		item.Price = price
		item.HasPrice = true
	}
	return item, nil
}

func recordFromDoc(doc *purchaseDoc) (*core.PurchaseRecord, error) {
	amount := decimal.Zero
	if doc.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(doc.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("purchase %s has unparseable amount %q: %w", doc.ID, doc.Amount, err)
		}
	}
	return &core.PurchaseRecord{
		ID:               doc.ID,
		UserID:           doc.UserID,
		ContentItemID:    doc.ContentItemID,
		Amount:           amount,
		PaymentReference: doc.PaymentReference,
		Status:           doc.Status,
		CreatedAt:        doc.CreatedAt,
	}, nil
}

// query runs a GROQ query. String params are passed as JSON-encoded
// $-prefixed URL parameters; out receives the "result" field.
func (c *Client) query(ctx context.Context, groq string, params map[string]string, out any) error {
	vals := url.Values{}
	vals.Set("query", groq)
	for k, v := range params {
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		vals.Set(k, string(encoded))
	}

	endpoint := fmt.Sprintf("%s/v%s/data/query/%s?%s", c.base, c.cfg.APIVersion, c.cfg.Dataset, vals.Encode())
	respBody, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode query response: %w", err)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func (c *Client) mutate(ctx context.Context, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v%s/data/mutate/%s", c.base, c.cfg.APIVersion, c.cfg.Dataset)
	if _, err := c.do(ctx, http.MethodPost, endpoint, payload); err != nil {
		return err
	}
	return nil
}

// do performs one request with retry on 429/5xx and exponential backoff.
// Client errors fail fast; exhausted retries surface as transient.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, core.ErrNotFound
		}

		lastErr = fmt.Errorf("content store API error (%d): %s", resp.StatusCode, truncate(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			continue
		}
		return nil, lastErr
	}
	return nil, core.Transient("content store "+method, lastErr)
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
