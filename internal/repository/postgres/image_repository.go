package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

const imageColumns = `
	id, original_filename, original_path, path, format, size,
	width, height, version, transformations, status,
	error_message, created_at, updated_at, committed_at`

type imageRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewImageRepository(db *dbpg.DB, strategy retry.Strategy) domain.ImageRepository {
	return &imageRepository{
		db:       db,
		strategy: strategy,
	}
}

func (r *imageRepository) Create(ctx context.Context, image *domain.Image) error {
	query := `
		INSERT INTO images (` + imageColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		image.ID,
		image.OriginalFilename,
		image.OriginalPath,
		image.Path,
		string(image.Format),
		image.Size,
		image.Width,
		image.Height,
		image.Version,
		image.Transformations,
		string(image.Status),
		nullString(image.ErrorMessage),
		image.CreatedAt,
		image.UpdatedAt,
		image.CommittedAt,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", image.ID).Msg("failed to create image")
		return fmt.Errorf("create image: %w", err)
	}

	zlog.Logger.Info().Str("image_id", image.ID).Msg("image created successfully")
	return nil
}

func (r *imageRepository) FindByID(ctx context.Context, id string) (*domain.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	img, err := scanImage(r.db.Master.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrImageNotFound
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to find image")
		return nil, fmt.Errorf("find image: %w", err)
	}
	return img, nil
}

func (r *imageRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = $1`

	result, err := r.db.ExecWithRetry(ctx, r.strategy, query, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to delete image")
		return fmt.Errorf("delete image: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrImageNotFound
	}

	zlog.Logger.Info().Str("image_id", id).Msg("image deleted successfully")
	return nil
}

func (r *imageRepository) List(ctx context.Context, limit, offset int) ([]*domain.Image, error) {
	query := `
		SELECT ` + imageColumns + `
		FROM images
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list images")
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return images, nil
}

func (r *imageRepository) UpdateStatus(ctx context.Context, id string, status domain.ImageStatus, errMsg string) error {
	query := `
		UPDATE images
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecWithRetry(ctx, r.strategy, query, id, string(status), nullString(errMsg))
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to update status")
		return fmt.Errorf("update status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// UpdateCommitted swaps in the new version and records its steps in one
// transaction, guarded by the version the commit started from.
func (r *imageRepository) UpdateCommitted(ctx context.Context, image *domain.Image, expectedVersion int64, steps []domain.Descriptor) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE images
		SET path = $2,
		    format = $3,
		    size = $4,
		    width = $5,
		    height = $6,
		    version = $7,
		    transformations = $8,
		    status = $9,
		    error_message = NULL,
		    updated_at = $10,
		    committed_at = $11
		WHERE id = $1 AND version = $12
	`,
		image.ID,
		image.Path,
		string(image.Format),
		image.Size,
		image.Width,
		image.Height,
		image.Version,
		image.Transformations,
		string(image.Status),
		image.UpdatedAt,
		image.CommittedAt,
		expectedVersion,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", image.ID).Msg("failed to update committed image")
		return fmt.Errorf("update committed image: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM images WHERE id = $1`, image.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrImageNotFound
		}
		if err != nil {
			return fmt.Errorf("read image version: %w", err)
		}
		zlog.Logger.Warn().
			Str("image_id", image.ID).
			Int64("expected_version", expectedVersion).
			Int64("current_version", current).
			Msg("commit lost a version race")
		return domain.ErrVersionConflict
	}

	appliedAt := time.Now()
	if image.CommittedAt != nil {
		appliedAt = *image.CommittedAt
	}
	for seq, step := range steps {
		params, err := json.Marshal(step.Params())
		if err != nil {
			return fmt.Errorf("encode step %d: %w", seq, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO image_transformations (image_id, version, seq, kind, parameters, applied_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, image.ID, image.Version, seq, string(step.Kind()), string(params), appliedAt); err != nil {
			return fmt.Errorf("record step %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	zlog.Logger.Info().
		Str("image_id", image.ID).
		Int64("version", image.Version).
		Int("steps", len(steps)).
		Msg("committed image version stored")
	return nil
}

func (r *imageRepository) Transformations(ctx context.Context, id string) ([]domain.AppliedTransformation, error) {
	query := `
		SELECT image_id, version, seq, kind, parameters, applied_at
		FROM image_transformations
		WHERE image_id = $1
		ORDER BY version, seq
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to list transformations")
		return nil, fmt.Errorf("list transformations: %w", err)
	}
	defer rows.Close()

	var out []domain.AppliedTransformation
	for rows.Next() {
		var (
			t      domain.AppliedTransformation
			kind   string
			params []byte
		)
		if err := rows.Scan(&t.ImageID, &t.Version, &t.Seq, &kind, &params, &t.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan transformation: %w", err)
		}
		t.Descriptor, err = domain.DecodeDescriptor(domain.Kind(kind), params)
		if err != nil {
			return nil, fmt.Errorf("decode transformation %d/%d: %w", t.Version, t.Seq, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner) (*domain.Image, error) {
	var (
		img         domain.Image
		format      string
		errorMsg    sql.NullString
		committedAt sql.NullTime
	)
	err := row.Scan(
		&img.ID,
		&img.OriginalFilename,
		&img.OriginalPath,
		&img.Path,
		&format,
		&img.Size,
		&img.Width,
		&img.Height,
		&img.Version,
		&img.Transformations,
		&img.Status,
		&errorMsg,
		&img.CreatedAt,
		&img.UpdatedAt,
		&committedAt,
	)
	if err != nil {
		return nil, err
	}

	img.Format = domain.Format(format)
	if errorMsg.Valid {
		img.ErrorMessage = errorMsg.String
	}
	if committedAt.Valid {
		img.CommittedAt = &committedAt.Time
	}
	return &img, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
