package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*PostgresRepository, func()) {
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
	}

	repo, err := NewPostgresRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

// Postgres keeps microseconds; orders built for these tests stay on that grid.
func newStoredOrder(customerID string, createdAt time.Time) *domain.Order {
	return newPendingOrder(customerID, createdAt.Truncate(time.Microsecond))
}

func TestPostgres_CreateOrder_Success(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newStoredOrder("cust-1", baseTime)

	require.NoError(t, repo.CreateOrder(ctx, order))

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, order.CustomerID, fetched.CustomerID)
	assert.Equal(t, order.QRToken, fetched.QRToken)
	assert.Equal(t, order.Total, fetched.Total)
	assert.Equal(t, domain.OrderStatusPending, fetched.Status)
	assert.True(t, order.CreatedAt.Equal(fetched.CreatedAt))
	assert.True(t, order.ExpiresAt.Equal(fetched.ExpiresAt))
	assert.Nil(t, fetched.PickupTime)
	assert.Equal(t, order.Items, fetched.Items)

	byToken, err := repo.GetOrderByToken(ctx, order.QRToken)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byToken.ID)
}

func TestPostgres_CreateOrder_DuplicateToken(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	first := newStoredOrder("cust-1", baseTime)
	require.NoError(t, repo.CreateOrder(ctx, first))

	second := newStoredOrder("cust-2", baseTime)
	second.QRToken = first.QRToken
	assert.ErrorIs(t, repo.CreateOrder(ctx, second), ErrDuplicateToken)

	assert.ErrorIs(t, repo.CreateOrder(ctx, first), ErrDuplicateOrder)
}

func TestPostgres_GetOrder_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := repo.GetOrderByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = repo.GetOrderByToken(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPostgres_ListOrdersByCustomerID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order1 := newStoredOrder("cust-list", baseTime)
	order2 := newStoredOrder("cust-list", baseTime.Add(time.Minute))
	require.NoError(t, repo.CreateOrder(ctx, order1))
	require.NoError(t, repo.CreateOrder(ctx, order2))
	require.NoError(t, repo.CreateOrder(ctx, newStoredOrder("cust-other", baseTime)))

	orders, err := repo.ListOrdersByCustomerID(ctx, "cust-list")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, order2.ID, orders[0].ID)
	assert.Equal(t, order1.ID, orders[1].ID)
}

func TestPostgres_Transition_CompleteThenTerminal(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newStoredOrder("cust-1", baseTime)
	require.NoError(t, repo.CreateOrder(ctx, order))

	at := order.CreatedAt.Add(10 * time.Minute)
	updated, err := repo.Transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusCompleted, At: at})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, updated.Status)
	require.NotNil(t, updated.PickupTime)
	assert.True(t, at.Equal(*updated.PickupTime))

	_, err = repo.Transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusCompleted, At: at.Add(time.Minute)})
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = repo.Transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusNoShow, At: order.ExpiresAt.Add(time.Minute)})
	assert.ErrorIs(t, err, ErrStatusConflict)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderCompleted, events[0].EventType)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPostgres_Transition_Guards(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newStoredOrder("cust-1", baseTime)
	require.NoError(t, repo.CreateOrder(ctx, order))

	_, err := repo.Transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusCompleted, At: order.ExpiresAt})
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = repo.Transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusNoShow, At: order.ExpiresAt.Add(-time.Second)})
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = repo.Transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusCancelled, At: baseTime, RequesterID: "cust-2"})
	assert.ErrorIs(t, err, ErrStatusConflict)

	cancelled, err := repo.Transition(ctx, domain.Transition{OrderID: order.ID, To: domain.OrderStatusCancelled, At: order.CreatedAt.Add(time.Minute), RequesterID: "cust-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.PickupTime)
}

func TestPostgres_Transition_ConcurrentCompleteHasOneWinner(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newStoredOrder("cust-1", baseTime)
	require.NoError(t, repo.CreateOrder(ctx, order))

	const workers = 20
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Transition(ctx, domain.Transition{
				OrderID: order.ID,
				To:      domain.OrderStatusCompleted,
				At:      order.CreatedAt.Add(5 * time.Minute),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrStatusConflict)
	}
	assert.Equal(t, 1, wins)

	events, err := repo.GetUnprocessedEvents(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPostgres_ListExpiredPending(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	expired := newStoredOrder("cust-1", baseTime)
	fresh := newStoredOrder("cust-2", baseTime.Add(20*time.Minute))
	require.NoError(t, repo.CreateOrder(ctx, expired))
	require.NoError(t, repo.CreateOrder(ctx, fresh))

	orders, err := repo.ListExpiredPending(ctx, baseTime.Add(35*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, expired.ID, orders[0].ID)
}
