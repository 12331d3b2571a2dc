// Package memory is an in-process StoreInterface used by tests and local runs.
// Transactions are fully serialized and work on a copy of the state that is
// swapped in only on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dixis-bulk-orders/models"
	"dixis-bulk-orders/repository"
)

// Operation names accepted by FailOn
const (
	OpLockBusinessAccount      = "LockBusinessAccount"
	OpUpdateOutstandingBalance = "UpdateOutstandingBalance"
	OpNextOrderSequence        = "NextOrderSequence"
	OpInsertOrder              = "InsertOrder"
	OpInsertOrderItem          = "InsertOrderItem"
	OpInsertBulkOrderDetail    = "InsertBulkOrderDetail"
	OpLockOrder                = "LockOrder"
	OpUpdateOrderStatus        = "UpdateOrderStatus"
	OpMarkOrderReconciled      = "MarkOrderReconciled"
	OpLockProduct              = "LockProduct"
	OpUpdateProductStock       = "UpdateProductStock"
	OpInsertStockAdjustment    = "InsertStockAdjustment"
	OpCommit                   = "Commit"
)

type state struct {
	nextID      int64
	accounts    map[int64]models.BusinessAccount
	products    map[int64]models.Product
	orders      map[int64]models.Order
	items       map[int64][]models.OrderItem
	details     map[int64]models.BulkOrderDetail
	adjustments []models.StockAdjustment
	sequences   map[string]int
}

func newState() *state {
	return &state{
		accounts:  make(map[int64]models.BusinessAccount),
		products:  make(map[int64]models.Product),
		orders:    make(map[int64]models.Order),
		items:     make(map[int64][]models.OrderItem),
		details:   make(map[int64]models.BulkOrderDetail),
		sequences: make(map[string]int),
	}
}

func (s *state) clone() *state {
	c := &state{
		nextID:      s.nextID,
		accounts:    make(map[int64]models.BusinessAccount, len(s.accounts)),
		products:    make(map[int64]models.Product, len(s.products)),
		orders:      make(map[int64]models.Order, len(s.orders)),
		items:       make(map[int64][]models.OrderItem, len(s.items)),
		details:     make(map[int64]models.BulkOrderDetail, len(s.details)),
		adjustments: append([]models.StockAdjustment(nil), s.adjustments...),
		sequences:   make(map[string]int, len(s.sequences)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]models.OrderItem(nil), v...)
	}
	for k, v := range s.details {
		c.details[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

func (s *state) newID() int64 {
	s.nextID++
	return s.nextID
}

type fault struct {
	nth   int
	calls int
	err   error
}

// Store is an in-memory StoreInterface
type Store struct {
	mu     sync.RWMutex
	state  *state
	faults map[string]*fault
	// Delay, when set, runs inside every transaction before fn; tests use it to widen race windows
	Delay time.Duration
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{state: newState(), faults: make(map[string]*fault)}
}

// Ensure Store implements StoreInterface
var _ repository.StoreInterface = (*Store)(nil)

// FailOn makes the nth call (1-based) of op inside transactions return err.
// Calls are counted across transactions until ClearFaults.
func (s *Store) FailOn(op string, nth int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{nth: nth, err: err}
}

// ClearFaults removes every injected fault
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]*fault)
}

// WithTx runs fn against a private copy of the state and publishes it only when
// fn returns nil and ctx is still live
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.TxInterface) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return fmt.Errorf("failed to start transaction: %w", ctx.Err())
		}
	}

	tx := &memTx{store: s, st: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.fail(OpCommit); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.state = tx.st
	return nil
}

// fail is called with s.mu held
func (s *Store) fail(op string) error {
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	f.calls++
	if f.calls == f.nth {
		return f.err
	}
	return nil
}

// AddAccount seeds a business account and returns it with its ID set
func (s *Store) AddAccount(account models.BusinessAccount) models.BusinessAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == 0 {
		account.ID = s.state.newID()
	}
	s.state.accounts[account.ID] = account
	return account
}

// AddProduct seeds a product and returns it with its ID set
func (s *Store) AddProduct(product models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == 0 {
		product.ID = s.state.newID()
	}
	s.state.products[product.ID] = product
	return product
}

// SeedOrder stores a committed order with its items, bypassing the pipeline
func (s *Store) SeedOrder(order models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == 0 {
		order.ID = s.state.newID()
	}
	items := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		item.OrderID = order.ID
		if item.ID == 0 {
			item.ID = s.state.newID()
		}
		items = append(items, item)
	}
	s.state.items[order.ID] = items
	if order.BulkDetail != nil {
		d := *order.BulkDetail
		d.OrderID = order.ID
		s.state.details[order.ID] = d
	}
	order.Items = nil
	order.BulkDetail = nil
	s.state.orders[order.ID] = order
	return s.state.assembleOrder(order)
}

// Counts reports how many orders, items and bulk details exist
func (s *Store) Counts() (orders, items, details int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.state.items {
		items += len(v)
	}
	return len(s.state.orders), items, len(s.state.details)
}

// Orders returns every stored order with items, ordered by ID
func (s *Store) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		out = append(out, s.state.assembleOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) assembleOrder(o models.Order) models.Order {
	items := s.items[o.ID]
	o.Items = make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if p, ok := s.products[item.ProductID]; ok {
			item.ProductSKU = p.SKU
			item.ProductName = p.Name
		}
		o.Items = append(o.Items, item)
	}
	if d, ok := s.details[o.ID]; ok {
		o.BulkDetail = &d
	}
	return o
}

func (s *Store) GetBusinessAccount(ctx context.Context, tenantID, accountID int64) (*models.BusinessAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.account(tenantID, accountID)
}

func (s *state) account(tenantID, accountID int64) (*models.BusinessAccount, error) {
	a, ok := s.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return nil, fmt.Errorf("business account %d: %w", accountID, repository.ErrNotFound)
	}
	return &a, nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, productID int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.product(tenantID, productID)
}

func (s *state) product(tenantID, productID int64) (*models.Product, error) {
	p, ok := s.products[productID]
	if !ok || p.TenantID != tenantID {
		return nil, fmt.Errorf("product %d: %w", productID, repository.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) FindProductBySKU(ctx context.Context, tenantID int64, sku string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.state.sortedProducts(tenantID) {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product sku %q: %w", sku, repository.ErrNotFound)
}

func (s *Store) FindProductByName(ctx context.Context, tenantID int64, name string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(name)
	for _, p := range s.state.sortedProducts(tenantID) {
		if p.IsActive && strings.Contains(strings.ToLower(p.Name), needle) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product name %q: %w", name, repository.ErrNotFound)
}

func (s *state) sortedProducts(tenantID int64) []models.Product {
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetOrder(ctx context.Context, tenantID, orderID int64) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.order(tenantID, orderID)
}

func (s *state) order(tenantID, orderID int64) (*models.Order, error) {
	o, ok := s.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, fmt.Errorf("order %d: %w", orderID, repository.ErrNotFound)
	}
	full := s.assembleOrder(o)
	return &full, nil
}

func (s *Store) ListActiveProducts(ctx context.Context, tenantID int64) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Product
	for _, p := range s.state.sortedProducts(tenantID) {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) UnitsSoldSince(ctx context.Context, tenantID int64, since time.Time) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sold := make(map[int64]int)
	for id, o := range s.state.orders {
		if o.TenantID != tenantID || o.Status == models.OrderStatusCancelled || o.CreatedAt.Before(since) {
			continue
		}
		for _, item := range s.state.items[id] {
			sold[item.ProductID] += item.Quantity
		}
	}
	return sold, nil
}

func (s *Store) ListStockAdjustments(ctx context.Context, tenantID, productID int64) ([]models.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StockAdjustment
	for _, adj := range s.state.adjustments {
		if adj.TenantID == tenantID && adj.ProductID == productID {
			out = append(out, adj)
		}
	}
	return out, nil
}

// memTx mutates a private copy of the store state
type memTx struct {
	store *Store
	st    *state
}

var _ repository.TxInterface = (*memTx)(nil)

func (t *memTx) LockBusinessAccount(ctx context.Context, tenantID, accountID int64) (*models.BusinessAccount, error) {
	if err := t.store.fail(OpLockBusinessAccount); err != nil {
		return nil, err
	}
	return t.st.account(tenantID, accountID)
}

func (t *memTx) UpdateOutstandingBalance(ctx context.Context, tenantID, accountID int64, balance decimal.Decimal) error {
	if err := t.store.fail(OpUpdateOutstandingBalance); err != nil {
		return err
	}
	a, err := t.st.account(tenantID, accountID)
	if err != nil {
		return err
	}
	a.OutstandingBalance = balance
	t.st.accounts[accountID] = *a
	return nil
}

func (t *memTx) NextOrderSequence(ctx context.Context, prefix, day string) (int, error) {
	if err := t.store.fail(OpNextOrderSequence); err != nil {
		return 0, err
	}
	key := prefix + "|" + day
	t.st.sequences[key]++
	return t.st.sequences[key], nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if err := t.store.fail(OpInsertOrder); err != nil {
		return err
	}
	for _, o := range t.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return fmt.Errorf("order number %s already taken: %w", order.OrderNumber, repository.ErrSerialization)
		}
	}
	order.ID = t.st.newID()
	stored := *order
	stored.Items = nil
	stored.BulkDetail = nil
	t.st.orders[order.ID] = stored
	return nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	if err := t.store.fail(OpInsertOrderItem); err != nil {
		return err
	}
	if _, ok := t.st.orders[item.OrderID]; !ok {
		return fmt.Errorf("order %d: %w", item.OrderID, repository.ErrNotFound)
	}
	item.ID = t.st.newID()
	t.st.items[item.OrderID] = append(t.st.items[item.OrderID], *item)
	return nil
}

func (t *memTx) InsertBulkOrderDetail(ctx context.Context, detail *models.BulkOrderDetail) error {
	if err := t.store.fail(OpInsertBulkOrderDetail); err != nil {
		return err
	}
	if _, ok := t.st.details[detail.OrderID]; ok {
		return fmt.Errorf("bulk detail for order %d already exists", detail.OrderID)
	}
	detail.ID = t.st.newID()
	t.st.details[detail.OrderID] = *detail
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, tenantID, orderID int64) (*models.Order, error) {
	if err := t.store.fail(OpLockOrder); err != nil {
		return nil, err
	}
	return t.st.order(tenantID, orderID)
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, tenantID, orderID int64, status string) error {
	if err := t.store.fail(OpUpdateOrderStatus); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return fmt.Errorf("order %d: %w", orderID, repository.ErrNotFound)
	}
	o.Status = status
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) MarkOrderReconciled(ctx context.Context, tenantID, orderID int64, at time.Time) error {
	if err := t.store.fail(OpMarkOrderReconciled); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return fmt.Errorf("order %d: %w", orderID, repository.ErrNotFound)
	}
	o.InventoryReconciledAt = &at
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) LockProduct(ctx context.Context, tenantID, productID int64) (*models.Product, error) {
	if err := t.store.fail(OpLockProduct); err != nil {
		return nil, err
	}
	return t.st.product(tenantID, productID)
}

func (t *memTx) UpdateProductStock(ctx context.Context, tenantID, productID int64, stock int) error {
	if err := t.store.fail(OpUpdateProductStock); err != nil {
		return err
	}
	p, err := t.st.product(tenantID, productID)
	if err != nil {
		return err
	}
	if stock < 0 {
		return fmt.Errorf("stock for product %d cannot be negative", productID)
	}
	p.Stock = stock
	t.st.products[productID] = *p
	return nil
}

func (t *memTx) InsertStockAdjustment(ctx context.Context, adj *models.StockAdjustment) error {
	if err := t.store.fail(OpInsertStockAdjustment); err != nil {
		return err
	}
	adj.ID = t.st.newID()
	t.st.adjustments = append(t.st.adjustments, *adj)
	return nil
}
