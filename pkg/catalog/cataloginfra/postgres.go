// Package cataloginfra provides the product repository implementations:
// Postgres with jsonb media collections for production, and an in-memory
// repository for tests.
package cataloginfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SchemaDDL documents the products table this repository expects. It is
// applied out of band by the deployment's migration step.
const SchemaDDL = `
CREATE TABLE IF NOT EXISTS products (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    model       TEXT NOT NULL DEFAULT '',
    brand       TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    sku         TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    price       NUMERIC NOT NULL DEFAULT 0,
    discount    NUMERIC NOT NULL DEFAULT 0,
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    banner      JSONB NOT NULL DEFAULT '[]'::jsonb,
    images      JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS products_sku_idx ON products (sku) WHERE sku <> '';
`

const productColumns = "id, name, model, brand, category, sku, state, type, description, price, discount, active, banner, images, created_at, updated_at"

// PostgresRepository implements catalog.ProductRepository on Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgres creates a Postgres-backed product repository.
func NewPostgres(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func columnFor(role catalog.MediaRole) (string, error) {
	switch role {
	case catalog.RoleBanner:
		return "banner", nil
	case catalog.RoleImage:
		return "images", nil
	}
	return "", catalog.NewInvalidRole(role)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	err := r.db.GetContext(ctx, &p, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, catalog.NewStoreError(err)
	}
	return &p, nil
}

func (r *PostgresRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	var p catalog.Product
	err := r.db.GetContext(ctx, &p, "SELECT "+productColumns+" FROM products WHERE sku = $1", sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, catalog.NewStoreError(err)
	}
	return &p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, product *catalog.Product) (*catalog.Product, error) {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Banner == nil {
		product.Banner = catalog.MediaAssetList{}
	}
	if product.Images == nil {
		product.Images = catalog.MediaAssetList{}
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :name, :model, :brand, :category, :sku, :state, :type, :description,
		        :price, :discount, :active, :banner, :images, :created_at, :updated_at)`,
		product)
	if err != nil {
		return nil, catalog.NewStoreError(err)
	}
	return product, nil
}

func (r *PostgresRepository) UpdateScalars(ctx context.Context, id string, patch catalog.ScalarPatch) error {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Model != nil {
		set("model", *patch.Model)
	}
	if patch.Brand != nil {
		set("brand", *patch.Brand)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.State != nil {
		set("state", *patch.State)
	}
	if patch.Type != nil {
		set("type", *patch.Type)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.Discount != nil {
		set("discount", *patch.Discount)
	}
	if patch.Active != nil {
		set("active", *patch.Active)
	}
	if len(sets) == 0 {
		return nil
	}
	set("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return catalog.NewStoreError(err)
	}
	return r.requireRow(res, id)
}

// AppendMediaAsset concatenates the asset onto the jsonb collection on the
// server side, so concurrent appends to the same product all land.
func (r *PostgresRepository) AppendMediaAsset(ctx context.Context, id string, role catalog.MediaRole, asset catalog.MediaAsset) error {
	col, err := columnFor(role)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(catalog.MediaAssetList{asset})
	if err != nil {
		return catalog.NewStoreError(err)
	}

	query := fmt.Sprintf(
		"UPDATE products SET %s = %s || $1::jsonb, updated_at = $2 WHERE id = $3",
		col, col)
	res, err := r.db.ExecContext(ctx, query, payload, time.Now().UTC(), id)
	if err != nil {
		return catalog.NewStoreError(err)
	}
	return r.requireRow(res, id)
}

// SwapMediaCollection replaces the collection only when its stored value
// still equals what the caller read. Comparing the whole jsonb value means
// a concurrent rewrite is caught even when it left the length unchanged,
// such as a default flip racing a remove plus append. A lost race surfaces
// as a merge conflict so the caller can re-read and retry.
func (r *PostgresRepository) SwapMediaCollection(ctx context.Context, id string, role catalog.MediaRole, assets catalog.MediaAssetList, expected catalog.MediaAssetList) error {
	col, err := columnFor(role)
	if err != nil {
		return err
	}

	if assets == nil {
		assets = catalog.MediaAssetList{}
	}
	if expected == nil {
		expected = catalog.MediaAssetList{}
	}
	payload, err := json.Marshal(assets)
	if err != nil {
		return catalog.NewStoreError(err)
	}
	guard, err := json.Marshal(expected)
	if err != nil {
		return catalog.NewStoreError(err)
	}

	query := fmt.Sprintf(
		"UPDATE products SET %s = $1::jsonb, updated_at = $2 WHERE id = $3 AND %s = $4::jsonb",
		col, col)
	res, err := r.db.ExecContext(ctx, query, payload, time.Now().UTC(), id, guard)
	if err != nil {
		return catalog.NewStoreError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return catalog.NewStoreError(err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", id); err != nil {
		return catalog.NewStoreError(err)
	}
	if !exists {
		return catalog.NewProductNotFound(id)
	}
	return catalog.NewMergeConflict(id, role)
}

func (r *PostgresRepository) ReplaceImagesAndPrice(ctx context.Context, id string, images catalog.MediaAssetList, price *float64) error {
	if images == nil {
		images = catalog.MediaAssetList{}
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return catalog.NewStoreError(err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET images = $1::jsonb, price = COALESCE($2, price), updated_at = $3
		WHERE id = $4`,
		payload, price, time.Now().UTC(), id)
	if err != nil {
		return catalog.NewStoreError(err)
	}
	return r.requireRow(res, id)
}

func (r *PostgresRepository) requireRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return catalog.NewStoreError(err)
	}
	if rows == 0 {
		return catalog.NewProductNotFound(id)
	}
	return nil
}
