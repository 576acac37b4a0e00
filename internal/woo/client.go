// Package woo implements the legacy commerce backend client: product
// CRUD keyed by SKU, order mirroring, and the customer purchase
// predicate. Authenticated with a service consumer key/secret pair,
// never end-user credentials.
package woo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/damsblt/helvetiforma-sub003/internal/core"
)

const (
	apiPrefix      = "/wp-json/wc/v3"
	defaultTimeout = 15 * time.Second
	maxRetries     = 3
	initialDelay   = 500 * time.Millisecond

	// metaPaymentReference is the order meta key carrying the payment
	// processor's idempotency key on mirrored orders.
	metaPaymentReference = "_payment_reference"
)

// Config holds commerce backend connection settings.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
}

// Client talks to the commerce backend REST API.
type Client struct {
	cfg    Config
	base   string
	client *http.Client
}

// NewClient creates a commerce backend client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.BaseURL, "/") + apiPrefix,
		client: &http.Client{Timeout: timeout},
	}
}

// productWire is the backend's product shape. Prices travel as strings.
type productWire struct {
	ID               int64  `json:"id,omitempty"`
	Name             string `json:"name,omitempty"`
	SKU              string `json:"sku,omitempty"`
	Type             string `json:"type,omitempty"`
	RegularPrice     string `json:"regular_price,omitempty"`
	Status           string `json:"status,omitempty"`
	Virtual          bool   `json:"virtual,omitempty"`
	ShippingRequired bool   `json:"shipping_required,omitempty"`
}

type orderWire struct {
	ID        int64          `json:"id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Total     string         `json:"total,omitempty"`
	SetPaid   bool           `json:"set_paid,omitempty"`
	Billing   *billingWire   `json:"billing,omitempty"`
	LineItems []lineItemWire `json:"line_items,omitempty"`
	MetaData  []metaWire     `json:"meta_data,omitempty"`
}

type billingWire struct {
	Email string `json:"email"`
}

type lineItemWire struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total,omitempty"`
}

type metaWire struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FindProductBySKU implements core.CommerceBackend. SKU is unique in
// the backend, so the first hit is the product.
func (c *Client) FindProductBySKU(ctx context.Context, sku string) (*core.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/products", url.Values{"sku": {sku}}, nil)
	if err != nil {
		return nil, err
	}

	var products []productWire
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	if len(products) == 0 {
		return nil, core.ErrNotFound
	}
	return productFromWire(&products[0])
}

// CreateProduct implements core.CommerceBackend. Products are virtual
// and non-shippable: they sell access, not goods.
func (c *Client) CreateProduct(ctx context.Context, p *core.Product) (*core.Product, error) {
	payload, err := json.Marshal(productWire{
		Name:         p.Name,
		SKU:          p.SKU,
		Type:         "simple",
		RegularPrice: p.Price.StringFixed(2),
		Status:       "publish",
		Virtual:      true,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/products", nil, payload)
	if err != nil {
		return nil, err
	}

	var created productWire
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode created product: %w", err)
	}
	return productFromWire(&created)
}

// UpdateProduct implements core.CommerceBackend. Only the fields set in
// upd are sent, to avoid redundant writes.
func (c *Client) UpdateProduct(ctx context.Context, externalID string, upd core.ProductUpdate) (*core.Product, error) {
	fields := map[string]string{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Price != nil {
		fields["regular_price"] = upd.Price.StringFixed(2)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPut, "/products/"+externalID, nil, payload)
	if err != nil {
		return nil, err
	}

	var updated productWire
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, fmt.Errorf("failed to decode updated product: %w", err)
	}
	return productFromWire(&updated)
}

// CreateOrder implements core.CommerceBackend.
func (c *Client) CreateOrder(ctx context.Context, o *core.Order) (*core.Order, error) {
	productID, err := strconv.ParseInt(o.ProductID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", o.ProductID, err)
	}

	wire := orderWire{
		Status:  o.Status,
		SetPaid: true,
		Billing: &billingWire{Email: o.CustomerEmail},
		LineItems: []lineItemWire{
			{ProductID: productID, Quantity: 1, Total: o.Total.StringFixed(2)},
		},
	}
	if o.PaymentReference != "" {
		wire.MetaData = []metaWire{{Key: metaPaymentReference, Value: o.PaymentReference}}
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/orders", nil, payload)
	if err != nil {
		return nil, err
	}

	var created orderWire
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode created order: %w", err)
	}
	return orderFromWire(&created)
}

// FindOrderByReference implements core.CommerceBackend. The backend's
// search is full-text over order fields, so hits are re-checked against
// the payment reference meta key.
func (c *Client) FindOrderByReference(ctx context.Context, paymentReference string) (*core.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders", url.Values{"search": {paymentReference}}, nil)
	if err != nil {
		return nil, err
	}

	var orders []orderWire
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	for i := range orders {
		for _, m := range orders[i].MetaData {
			if m.Key == metaPaymentReference && m.Value == paymentReference {
				return orderFromWire(&orders[i])
			}
		}
	}
	return nil, core.ErrNotFound
}

// FindOrder implements core.CommerceBackend. The backend can filter
// orders by product but not by billing email, so email matching happens
// here.
func (c *Client) FindOrder(ctx context.Context, customerEmail, productID string) (*core.Order, error) {
	vals := url.Values{"product": {productID}, "status": {"completed"}}
	body, err := c.do(ctx, http.MethodGet, "/orders", vals, nil)
	if err != nil {
		return nil, err
	}

	var orders []orderWire
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	for i := range orders {
		if orders[i].Billing != nil && strings.EqualFold(orders[i].Billing.Email, customerEmail) {
			return orderFromWire(&orders[i])
		}
	}
	return nil, core.ErrNotFound
}

// HasPurchased implements core.CommerceBackend via the site's purchase
// predicate route. A 404 means the route is not installed; callers fall
// back to FindOrder.
func (c *Client) HasPurchased(ctx context.Context, customerEmail, productID string) (bool, error) {
	vals := url.Values{"email": {customerEmail}, "product_id": {productID}}
	body, err := c.do(ctx, http.MethodGet, "/customers/purchased", vals, nil)
	if err != nil {
		return false, err
	}

	var result struct {
		Purchased bool `json:"purchased"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("failed to decode purchase check: %w", err)
	}
	return result.Purchased, nil
}

func productFromWire(w *productWire) (*core.Product, error) {
	price := decimal.Zero
	if w.RegularPrice != "" {
		var err error
		price, err = decimal.NewFromString(w.RegularPrice)
		if err != nil {
			return nil, fmt.Errorf("product %d has unparseable price %q: %w", w.ID, w.RegularPrice, err)
		}
	}
	return &core.Product{
		ExternalID: strconv.FormatInt(w.ID, 10),
		SKU:        w.SKU,
		Name:       w.Name,
		Price:      price,
		Status:     w.Status,
	}, nil
}

func orderFromWire(w *orderWire) (*core.Order, error) {
	total := decimal.Zero
	if w.Total != "" {
		var err error
		total, err = decimal.NewFromString(w.Total)
		if err != nil {
			return nil, fmt.Errorf("order %d has unparseable total %q: %w", w.ID, w.Total, err)
		}
	}
	order := &core.Order{
		ExternalID: strconv.FormatInt(w.ID, 10),
		Total:      total,
		Status:     w.Status,
	}
	if w.Billing != nil {
		order.CustomerEmail = w.Billing.Email
	}
	if len(w.LineItems) > 0 {
		order.ProductID = strconv.FormatInt(w.LineItems[0].ProductID, 10)
	}
	for _, m := range w.MetaData {
		if m.Key == metaPaymentReference {
			order.PaymentReference = m.Value
		}
	}
	return order, nil
}

// do performs one authenticated request with retry on 429/5xx.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("consumer_key", c.cfg.ConsumerKey)
	query.Set("consumer_secret", c.cfg.ConsumerSecret)
	endpoint := c.base + path + "?" + query.Encode()

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

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return respBody, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, core.ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &core.AuthError{Reason: fmt.Sprintf("commerce backend rejected credentials (%d)", resp.StatusCode)}
		}

		lastErr = fmt.Errorf("commerce backend error (%d): %s", resp.StatusCode, truncate(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			continue
		}
		return nil, lastErr
	}
	return nil, core.Transient("commerce backend "+method+" "+path, lastErr)
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
