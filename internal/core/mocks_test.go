package core

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
)

// Common test errors
var (
	ErrMockContent  = errors.New("mock content store error")
	ErrMockCommerce = errors.New("mock commerce backend error")
)

// MockContentStore implements ContentStore with in-memory state and
// per-method error injection.
type MockContentStore struct {
	mu        sync.Mutex
	Items     map[string]*ContentItem
	Purchases []*PurchaseRecord

	GetErr           error
	CreateErr        error
	FindByRefErr     error
	FindCompletedErr error

	CreateCalls int
}

func NewMockContentStore() *MockContentStore {
	return &MockContentStore{Items: make(map[string]*ContentItem)}
}

func (m *MockContentStore) GetContentItem(ctx context.Context, id string) (*ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	item, ok := m.Items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item, nil
}

func (m *MockContentStore) CreatePurchaseRecord(ctx context.Context, rec *PurchaseRecord) (*PurchaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	// The real store deduplicates on the reference-derived document ID;
	// a lost race returns the winner's record.
	for _, p := range m.Purchases {
		if p.PaymentReference == rec.PaymentReference {
			return p, nil
		}
	}
	stored := *rec
	m.Purchases = append(m.Purchases, &stored)
	return &stored, nil
}

func (m *MockContentStore) FindPurchaseByReference(ctx context.Context, ref string) (*PurchaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByRefErr != nil {
		return nil, m.FindByRefErr
	}
	for _, p := range m.Purchases {
		if p.PaymentReference == ref {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockContentStore) FindCompletedPurchase(ctx context.Context, userID, contentItemID string) (*PurchaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindCompletedErr != nil {
		return nil, m.FindCompletedErr
	}
	for _, p := range m.Purchases {
		if p.UserID == userID && p.ContentItemID == contentItemID && p.Status == PurchaseCompleted {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// MockCommerceBackend implements CommerceBackend with in-memory
// products and orders.
type MockCommerceBackend struct {
	mu       sync.Mutex
	Products map[string]*Product // keyed by SKU
	Orders   []*Order
	nextID   int

	FindProductErr   error
	CreateProductErr error
	UpdateProductErr error
	CreateOrderErr   error
	FindOrderErr     error
	FindOrderRefErr  error
	HasPurchasedErr  error
	PurchasedResult  bool

	FindProductCalls   int
	CreateProductCalls int
	UpdateProductCalls int
	CreateOrderCalls   int
	HasPurchasedCalls  int
}

func NewMockCommerceBackend() *MockCommerceBackend {
	return &MockCommerceBackend{Products: make(map[string]*Product)}
}

func (m *MockCommerceBackend) FindProductBySKU(ctx context.Context, sku string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindProductCalls++
	if m.FindProductErr != nil {
		return nil, m.FindProductErr
	}
	p, ok := m.Products[sku]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *MockCommerceBackend) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateProductCalls++
	if m.CreateProductErr != nil {
		return nil, m.CreateProductErr
	}
	// SKU uniqueness is the backend's invariant; a second create for
	// the same SKU returns the existing product unchanged.
	if existing, ok := m.Products[p.SKU]; ok {
		copied := *existing
		return &copied, nil
	}
	m.nextID++
	stored := *p
	stored.ExternalID = strconv.Itoa(m.nextID)
	m.Products[p.SKU] = &stored
	copied := stored
	return &copied, nil
}

func (m *MockCommerceBackend) UpdateProduct(ctx context.Context, externalID string, upd ProductUpdate) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateProductCalls++
	if m.UpdateProductErr != nil {
		return nil, m.UpdateProductErr
	}
	for _, p := range m.Products {
		if p.ExternalID == externalID {
			if upd.Name != nil {
				p.Name = *upd.Name
			}
			if upd.Price != nil {
				p.Price = *upd.Price
			}
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockCommerceBackend) CreateOrder(ctx context.Context, o *Order) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateOrderCalls++
	if m.CreateOrderErr != nil {
		return nil, m.CreateOrderErr
	}
	m.nextID++
	stored := *o
	stored.ExternalID = strconv.Itoa(m.nextID)
	m.Orders = append(m.Orders, &stored)
	copied := stored
	return &copied, nil
}

func (m *MockCommerceBackend) FindOrderByReference(ctx context.Context, ref string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindOrderRefErr != nil {
		return nil, m.FindOrderRefErr
	}
	for _, o := range m.Orders {
		if o.PaymentReference == ref {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockCommerceBackend) FindOrder(ctx context.Context, customerEmail, productID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindOrderErr != nil {
		return nil, m.FindOrderErr
	}
	for _, o := range m.Orders {
		if o.CustomerEmail == customerEmail && o.ProductID == productID && o.Status == "completed" {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockCommerceBackend) HasPurchased(ctx context.Context, customerEmail, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HasPurchasedCalls++
	if m.HasPurchasedErr != nil {
		return false, m.HasPurchasedErr
	}
	return m.PurchasedResult, nil
}

// MockVerifier implements EventVerifier.
type MockVerifier struct {
	Event *PaymentEvent
	Err   error
}

func (m *MockVerifier) VerifyAndParse(payload []byte, sigHeader string) (*PaymentEvent, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Event, nil
}

// MockJournal implements Journal and records flags.
type MockJournal struct {
	mu      sync.Mutex
	Flagged []string // "ref: reason"
	Err     error
}

func (m *MockJournal) Flag(paymentReference, eventType, reason string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Flagged = append(m.Flagged, paymentReference+": "+reason)
	return nil
}

// makePremiumItem creates a premium content item with the given price.
func makePremiumItem(id, title string, price string) *ContentItem {
	p, _ := decimal.NewFromString(price)
	return &ContentItem{
		ID:          id,
		Title:       title,
		Slug:        id,
		AccessLevel: AccessPremium,
		Price:       p,
		HasPrice:    true,
	}
}
