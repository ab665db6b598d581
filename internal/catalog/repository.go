// Package catalog is the read side of the menu the order factory prices against.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

var ErrProductNotFound = errors.New("product not found")

// Catalog is the collaborator the order factory resolves products against.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one connection keeps ":memory:" databases visible to every query
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

// RunMigrations brings the menu schema up to date and seeds the house menu.
func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{MigrationsTable: "catalog_schema_migrations"})
	if err != nil {
		return fmt.Errorf("catalog migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("catalog migrations from %s: %w", migrationsPath, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply catalog migrations: %w", err)
	}
	if version, dirty, err := m.Version(); err == nil {
		slog.Info("catalog schema ready", "version", version, "dirty", dirty)
	}
	return nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, name, description, base_price_cents, sugar_levels, ice_levels, created_at
		FROM products
		WHERE active = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, p := range products {
		if err := r.loadOptions(ctx, p); err != nil {
			return nil, err
		}
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, description, base_price_cents, sugar_levels, ice_levels, created_at
		FROM products
		WHERE id = $1 AND active = 1
	`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadOptions(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// loadOptions fills sizes and add-ons. Each result set is closed before the next query
// because the pool holds a single connection.
func (r *Repository) loadOptions(ctx context.Context, p *domain.Product) error {
	sizeRows, err := r.db.QueryContext(ctx,
		`SELECT size, modifier_cents FROM product_sizes WHERE product_id = $1 ORDER BY modifier_cents, size`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query sizes for product %d: %w", p.ID, err)
	}
	for sizeRows.Next() {
		var (
			size     string
			modifier int64
		)
		if err := sizeRows.Scan(&size, &modifier); err != nil {
			sizeRows.Close()
			return fmt.Errorf("failed to scan size: %w", err)
		}
		p.Sizes = append(p.Sizes, domain.SizeOption{Size: domain.Size(size), Modifier: domain.Money(modifier)})
	}
	if err := sizeRows.Err(); err != nil {
		sizeRows.Close()
		return fmt.Errorf("row iteration error: %w", err)
	}
	sizeRows.Close()

	addOnRows, err := r.db.QueryContext(ctx,
		`SELECT id, name, price_cents FROM product_add_ons WHERE product_id = $1 ORDER BY id`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query add-ons for product %d: %w", p.ID, err)
	}
	defer addOnRows.Close()
	for addOnRows.Next() {
		var (
			a     domain.AddOn
			price int64
		)
		if err := addOnRows.Scan(&a.ID, &a.Name, &price); err != nil {
			return fmt.Errorf("failed to scan add-on: %w", err)
		}
		a.Price = domain.Money(price)
		p.AddOns = append(p.AddOns, a)
	}
	if err := addOnRows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p         domain.Product
		basePrice int64
		sugar     string
		ice       string
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &basePrice, &sugar, &ice, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	p.BasePrice = domain.Money(basePrice)
	for _, level := range splitList(sugar) {
		p.SugarLevels = append(p.SugarLevels, domain.SugarLevel(level))
	}
	for _, level := range splitList(ice) {
		p.IceLevels = append(p.IceLevels, domain.IceLevel(level))
	}

	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	p.CreatedAt = created
	return &p, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
