package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store implements repository.Store in memory. Transactions run one at a
// time and a failed transaction restores the state it started from.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	products    map[int64]domain.Product
	carts       map[uuid.UUID]*domain.Cart
	orders      map[int64]*domain.Order
	shipments   map[int64]*domain.Shipment
	outbox      []*domain.OutboxEvent
	nextOrderID int64
	nextItemID  int64
	nextEventID int64
}

func NewStore() *Store {
	return &Store{state: &state{
		products:  make(map[int64]domain.Product),
		carts:     make(map[uuid.UUID]*domain.Cart),
		orders:    make(map[int64]*domain.Order),
		shipments: make(map[int64]*domain.Shipment),
	}}
}

// SetProduct seeds or replaces a product row.
func (s *Store) SetProduct(id int64, name string, price decimal.Decimal, stock int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.products[id] = domain.Product{ID: id, Name: name, Price: price, Stock: stock, CreatedAt: time.Now().UTC()}
}

// Stock returns the ledger counter for a product, or -1 if it does not exist.
func (s *Store) Stock(id int64) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.products[id]
	if !ok {
		return -1
	}
	return p.Stock
}

func (s *Store) InTx(ctx context.Context, fn func(q repository.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.state.clone()
	if err := fn(&queries{st: s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (st *state) clone() *state {
	c := &state{
		products:    make(map[int64]domain.Product, len(st.products)),
		carts:       make(map[uuid.UUID]*domain.Cart, len(st.carts)),
		orders:      make(map[int64]*domain.Order, len(st.orders)),
		shipments:   make(map[int64]*domain.Shipment, len(st.shipments)),
		outbox:      make([]*domain.OutboxEvent, 0, len(st.outbox)),
		nextOrderID: st.nextOrderID,
		nextItemID:  st.nextItemID,
		nextEventID: st.nextEventID,
	}
	for id, p := range st.products {
		c.products[id] = p
	}
	for id, cart := range st.carts {
		c.carts[id] = cloneCart(cart)
	}
	for id, o := range st.orders {
		c.orders[id] = cloneOrder(o)
	}
	for id, sh := range st.shipments {
		cp := *sh
		c.shipments[id] = &cp
	}
	for _, e := range st.outbox {
		cp := *e
		c.outbox = append(c.outbox, &cp)
	}
	return c
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Lines = append([]domain.CartLine(nil), c.Lines...)
	return &cp
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}

type queries struct {
	st *state
}

func (q *queries) activeCart(userID string) *domain.Cart {
	for _, c := range q.st.carts {
		if c.UserID == userID && c.Active {
			return c
		}
	}
	return nil
}

func (q *queries) GetActiveCart(_ context.Context, userID string) (*domain.Cart, error) {
	c := q.activeCart(userID)
	if c == nil {
		return nil, repository.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (q *queries) LockActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return q.GetActiveCart(ctx, userID)
}

func (q *queries) GetOrCreateActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if c := q.activeCart(userID); c != nil {
		return cloneCart(c), nil
	}
	now := time.Now().UTC()
	c := &domain.Cart{ID: uuid.New(), UserID: userID, Active: true, CreatedAt: now, UpdatedAt: now}
	q.st.carts[c.ID] = c
	return cloneCart(c), nil
}

func (q *queries) UpsertCartLine(_ context.Context, cartID uuid.UUID, line domain.CartLine) error {
	c, ok := q.st.carts[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	if _, ok := q.st.products[line.ProductID]; !ok {
		return repository.ErrProductNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i].Quantity = line.Quantity
			c.Lines[i].UnitPrice = line.UnitPrice
			return nil
		}
	}
	c.Lines = append(c.Lines, line)
	sort.Slice(c.Lines, func(i, j int) bool { return c.Lines[i].ProductID < c.Lines[j].ProductID })
	return nil
}

func (q *queries) DeleteCartLine(_ context.Context, cartID uuid.UUID, productID int64) error {
	c, ok := q.st.carts[cartID]
	if !ok {
		return nil
	}
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
	return nil
}

func (q *queries) DeleteCartLines(_ context.Context, cartID uuid.UUID) error {
	if c, ok := q.st.carts[cartID]; ok {
		c.Lines = nil
	}
	return nil
}

func (q *queries) DeactivateCart(_ context.Context, cartID uuid.UUID) error {
	if c, ok := q.st.carts[cartID]; ok {
		c.Active = false
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (q *queries) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	p, ok := q.st.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (q *queries) LockStock(_ context.Context, productIDs []int64) (map[int64]int32, error) {
	stock := make(map[int64]int32, len(productIDs))
	for _, id := range productIDs {
		p, ok := q.st.products[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", repository.ErrProductNotFound, id)
		}
		stock[id] = p.Stock
	}
	return stock, nil
}

func (q *queries) AdjustStock(_ context.Context, productID int64, delta int32) error {
	p, ok := q.st.products[productID]
	if !ok {
		return fmt.Errorf("%w: %d", repository.ErrProductNotFound, productID)
	}
	if p.Stock+delta < 0 {
		return repository.ErrStockUnderflow
	}
	p.Stock += delta
	q.st.products[productID] = p
	return nil
}

func (q *queries) CreateOrder(_ context.Context, order *domain.Order) error {
	q.st.nextOrderID++
	order.ID = q.st.nextOrderID
	now := time.Now().UTC()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		q.st.nextItemID++
		order.Items[i].ID = q.st.nextItemID
		order.Items[i].OrderID = order.ID
	}
	q.st.orders[order.ID] = cloneOrder(order)
	return nil
}

func (q *queries) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := q.st.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (q *queries) LockOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return q.GetOrder(ctx, orderID)
}

func (q *queries) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	var orders []*domain.Order
	for _, o := range q.st.orders {
		if o.UserID == userID {
			orders = append(orders, cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (q *queries) UpdateOrderStatus(_ context.Context, orderID int64, status domain.OrderStatus, payment domain.PaymentStatus) error {
	o, ok := q.st.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status, o.PaymentStatus = status, payment
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (q *queries) SetPaymentReference(_ context.Context, orderID int64, reference string) error {
	o, ok := q.st.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentReference = reference
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (q *queries) MarkFulfilled(_ context.Context, orderID int64) (bool, error) {
	o, ok := q.st.orders[orderID]
	if !ok || o.Fulfilled {
		return false, nil
	}
	o.Fulfilled = true
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (q *queries) GetShipmentByOrder(_ context.Context, orderID int64) (*domain.Shipment, error) {
	s, ok := q.st.shipments[orderID]
	if !ok {
		return nil, repository.ErrShipmentNotFound
	}
	cp := *s
	return &cp, nil
}

func (q *queries) CreateShipment(_ context.Context, shipment *domain.Shipment) error {
	if _, ok := q.st.shipments[shipment.OrderID]; ok {
		return repository.ErrDuplicateShipment
	}
	if _, ok := q.st.orders[shipment.OrderID]; !ok {
		return repository.ErrOrderNotFound
	}
	cp := *shipment
	q.st.shipments[shipment.OrderID] = &cp
	return nil
}

func (q *queries) UpdateShipmentStatus(_ context.Context, orderID int64, status domain.DeliveryStatus) error {
	s, ok := q.st.shipments[orderID]
	if !ok {
		return repository.ErrShipmentNotFound
	}
	s.DeliveryStatus = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (q *queries) InsertOutboxEvent(_ context.Context, event *domain.OutboxEvent) (bool, error) {
	for _, e := range q.st.outbox {
		if e.EventID == event.EventID {
			return false, nil
		}
	}
	q.st.nextEventID++
	cp := *event
	cp.ID = q.st.nextEventID
	event.ID = cp.ID
	q.st.outbox = append(q.st.outbox, &cp)
	return true, nil
}

func (q *queries) GetUnprocessedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent
	for _, e := range q.st.outbox {
		if e.ProcessedAt != nil {
			continue
		}
		cp := *e
		events = append(events, &cp)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (q *queries) MarkEventAsProcessed(_ context.Context, id int64) error {
	for _, e := range q.st.outbox {
		if e.ID == id {
			now := time.Now().UTC()
			e.ProcessedAt = &now
			return nil
		}
	}
	return nil
}

var _ repository.Store = (*Store)(nil)
