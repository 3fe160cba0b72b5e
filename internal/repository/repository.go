package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrShipmentNotFound  = errors.New("shipment not found")
	ErrDuplicateShipment = errors.New("shipment already exists for order")
	ErrStockUnderflow    = errors.New("stock would go negative")
	ErrLockTimeout       = errors.New("lock wait timed out")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
	LockTimeout       time.Duration
}

// Queries is everything the services may do inside one transaction.
type Queries interface {
	GetActiveCart(ctx context.Context, userID string) (*domain.Cart, error)
	LockActiveCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetOrCreateActiveCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCartLine(ctx context.Context, cartID uuid.UUID, line domain.CartLine) error
	DeleteCartLine(ctx context.Context, cartID uuid.UUID, productID int64) error
	DeleteCartLines(ctx context.Context, cartID uuid.UUID) error
	DeactivateCart(ctx context.Context, cartID uuid.UUID) error

	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	// LockStock takes row locks in ascending id order and returns the current counters.
	LockStock(ctx context.Context, productIDs []int64) (map[int64]int32, error)
	AdjustStock(ctx context.Context, productID int64, delta int32) error

	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	LockOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus, payment domain.PaymentStatus) error
	SetPaymentReference(ctx context.Context, orderID int64, reference string) error
	// MarkFulfilled reports false when the marker was already set.
	MarkFulfilled(ctx context.Context, orderID int64) (bool, error)

	GetShipmentByOrder(ctx context.Context, orderID int64) (*domain.Shipment, error)
	CreateShipment(ctx context.Context, shipment *domain.Shipment) error
	UpdateShipmentStatus(ctx context.Context, orderID int64, status domain.DeliveryStatus) error

	// InsertOutboxEvent reports false when an event with the same event id exists.
	InsertOutboxEvent(ctx context.Context, event *domain.OutboxEvent) (bool, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Store runs fn in a single transaction. fn's error rolls everything back.
type Store interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}

type Repository struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return NewRepositoryFromDB(db, cred.LockTimeout), nil
}

func NewRepositoryFromDB(db *sql.DB, lockTimeout time.Duration) *Repository {
	return &Repository{db: db, lockTimeout: lockTimeout}
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if r.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(&queries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", mapError(err))
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

// mapError turns lock waits that hit lock_timeout into ErrLockTimeout.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03":
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		case "23514":
			if pqErr.Constraint == "products_stock_check" {
				return fmt.Errorf("%w: %v", ErrStockUnderflow, err)
			}
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
var _ Queries = (*queries)(nil)
