package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/therealutkarshpriyadarshi/seatback/internal/database"
	"github.com/therealutkarshpriyadarshi/seatback/pkg/models"
)

// ErrAssetNotFound is returned when no catalog record matches the lookup
var ErrAssetNotFound = errors.New("asset not found")

// Repository provides catalog operations backed by Postgres.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// CreateAsset creates a new asset record
func (r *Repository) CreateAsset(ctx context.Context, asset *models.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	if asset.Status == "" {
		asset.Status = models.AssetStatusInactive
	}

	query := `
		INSERT INTO assets (id, path, kind, status, size, codec, width, height, duration, bitrate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		asset.ID, asset.Path, asset.Kind, asset.Status, asset.Size,
		asset.Codec, asset.Width, asset.Height, asset.Duration, asset.Bitrate,
	).Scan(&asset.CreatedAt, &asset.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetAsset retrieves an asset by ID
func (r *Repository) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	query := `
		SELECT id, path, kind, status, size, codec, width, height, duration, bitrate,
		       created_at, updated_at
		FROM assets
		WHERE id = $1
	`
	return r.scanAsset(r.db.Pool.QueryRow(ctx, query, id))
}

// GetAssetByPath retrieves an asset by its root-relative content path
func (r *Repository) GetAssetByPath(ctx context.Context, relPath string) (*models.Asset, error) {
	query := `
		SELECT id, path, kind, status, size, codec, width, height, duration, bitrate,
		       created_at, updated_at
		FROM assets
		WHERE path = $1
	`
	return r.scanAsset(r.db.Pool.QueryRow(ctx, query, relPath))
}

// ListAssets retrieves assets of a kind with pagination; an empty kind lists
// everything.
func (r *Repository) ListAssets(ctx context.Context, kind string, limit, offset int) ([]*models.Asset, error) {
	query := `
		SELECT id, path, kind, status, size, codec, width, height, duration, bitrate,
		       created_at, updated_at
		FROM assets
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := r.scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

// UpdateAssetMedia refreshes the probed media facts on an existing record
func (r *Repository) UpdateAssetMedia(ctx context.Context, assetID string, info *models.MediaInfo) error {
	query := `
		UPDATE assets
		SET size = $2, codec = $3, width = $4, height = $5, duration = $6,
		    bitrate = $7, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		assetID, info.Size, info.Codec, info.Width, info.Height, info.Duration, info.Bitrate,
	)
	if err != nil {
		return fmt.Errorf("failed to update asset media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", assetID, ErrAssetNotFound)
	}

	return nil
}

// SetAssetStatus flips an asset between active and inactive. In-flight
// sessions keep their handle; only new delivery requests observe the change.
func (r *Repository) SetAssetStatus(ctx context.Context, assetID, status string) error {
	query := `UPDATE assets SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, assetID, status)
	if err != nil {
		return fmt.Errorf("failed to set asset status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", assetID, ErrAssetNotFound)
	}

	return nil
}

// DeleteAsset removes an asset record
func (r *Repository) DeleteAsset(ctx context.Context, assetID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, assetID)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", assetID, ErrAssetNotFound)
	}

	return nil
}

func (r *Repository) scanAsset(row pgx.Row) (*models.Asset, error) {
	var asset models.Asset

	err := row.Scan(
		&asset.ID, &asset.Path, &asset.Kind, &asset.Status, &asset.Size,
		&asset.Codec, &asset.Width, &asset.Height, &asset.Duration, &asset.Bitrate,
		&asset.CreatedAt, &asset.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}

	return &asset, nil
}
