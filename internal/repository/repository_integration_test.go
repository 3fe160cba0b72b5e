package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *Repository {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
		LockTimeout:       2 * time.Second,
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))

	t.Cleanup(func() {
		_ = repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return repo
}

func seedProduct(t *testing.T, repo *Repository, name, price string, stock int) int64 {
	var id int64
	err := repo.db.QueryRow(`INSERT INTO products (name, price, stock) VALUES ($1, $2, $3) RETURNING id`,
		name, price, stock).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestIntegration_OneActiveCartPerUser(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.InTx(ctx, func(q Queries) error {
				c, err := q.GetOrCreateActiveCart(ctx, "u1")
				if err == nil {
					ids <- c.ID.String()
				}
				return err
			})
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

func TestIntegration_CartLinesAndOrder(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	pid := seedProduct(t, repo, "Widget", "15.00", 5)

	err := repo.InTx(ctx, func(q Queries) error {
		cart, err := q.GetOrCreateActiveCart(ctx, "u2")
		if err != nil {
			return err
		}
		line, _ := domain.NewCartLine(pid, 2, decimal.RequireFromString("15.00"))
		if err := q.UpsertCartLine(ctx, cart.ID, line); err != nil {
			return err
		}

		stock, err := q.LockStock(ctx, []int64{pid})
		if err != nil {
			return err
		}
		assert.Equal(t, int32(5), stock[pid])

		cart, err = q.GetActiveCart(ctx, "u2")
		if err != nil {
			return err
		}
		order := domain.NewOrder("u2", "u2@example.com", domain.ShippingDestination{
			FullName: "U Two", Address: "1 Main", City: "Lagos", Country: "NG",
		}, cart.Lines)
		if err := q.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := q.AdjustStock(ctx, pid, -2); err != nil {
			return err
		}
		if err := q.DeleteCartLines(ctx, cart.ID); err != nil {
			return err
		}
		return q.DeactivateCart(ctx, cart.ID)
	})
	require.NoError(t, err)

	err = repo.InTx(ctx, func(q Queries) error {
		_, err := q.GetActiveCart(ctx, "u2")
		assert.ErrorIs(t, err, ErrCartNotFound)

		orders, err := q.ListOrdersByUser(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.True(t, decimal.RequireFromString("30").Equal(orders[0].Total))
		require.Len(t, orders[0].Items, 1)

		p, err := q.GetProduct(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, int32(3), p.Stock)
		return nil
	})
	require.NoError(t, err)
}

func TestIntegration_StockNeverNegative(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	pid := seedProduct(t, repo, "Gadget", "5.00", 1)

	err := repo.InTx(ctx, func(q Queries) error {
		return q.AdjustStock(ctx, pid, -2)
	})
	assert.ErrorIs(t, err, ErrStockUnderflow)
}

func TestIntegration_OutboxUniqueEvent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	pid := seedProduct(t, repo, "Thing", "1.00", 1)

	err := repo.InTx(ctx, func(q Queries) error {
		order := domain.NewOrder("u3", "", domain.ShippingDestination{
			FullName: "U", Address: "A", City: "C", Country: "NG",
		}, []domain.CartLine{{ProductID: pid, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}})
		if err := q.CreateOrder(ctx, order); err != nil {
			return err
		}

		ev, _ := domain.NewFulfillmentEvent(order.ID)
		inserted, err := q.InsertOutboxEvent(ctx, ev)
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = q.InsertOutboxEvent(ctx, ev)
		require.NoError(t, err)
		assert.False(t, inserted)

		events, err := q.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		return q.MarkEventAsProcessed(ctx, events[0].ID)
	})
	require.NoError(t, err)
}
