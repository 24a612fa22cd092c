package meal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ImageHash calculates the SHA256 hash of the image data.
func ImageHash(imageData []byte) string {
	hash := sha256.Sum256(imageData)
	return hex.EncodeToString(hash[:])
}

// Store caches photo analyses by image hash so a repeated scan of the same
// photo does not reach the AI service again.
type Store interface {
	GetAnalysisByImageHash(ctx context.Context, imageHash string) (*Analysis, error)
	SaveAnalysis(ctx context.Context, analysis *Analysis) error
	GetRejection(ctx context.Context, imageHash string) (string, error)
	SaveRejection(ctx context.Context, imageHash, reason string) error
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to dataSourceName and creates the cache tables.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newPostgresStore(db)
}

func newPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS meal_analyses (
		image_hash TEXT PRIMARY KEY,
		dish_name TEXT NOT NULL,
		calories DOUBLE PRECISION NOT NULL,
		protein DOUBLE PRECISION NOT NULL,
		carbs DOUBLE PRECISION NOT NULL,
		fat DOUBLE PRECISION NOT NULL,
		ingredients JSONB NOT NULL,
		serving_size TEXT,
		healthiness INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create meal_analyses table: %w", err)
	}

	// Photos the AI service judged not to be food.
	schema = `
	CREATE TABLE IF NOT EXISTS rejected_images (
		image_hash TEXT PRIMARY KEY,
		reason TEXT
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create rejected_images table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// analysisRow mirrors meal_analyses; ingredients are stored as JSONB.
type analysisRow struct {
	Analysis
	IngredientsJSON []byte `db:"ingredients"`
}

// GetAnalysisByImageHash retrieves a cached analysis, or nil when there is none.
func (s *PostgresStore) GetAnalysisByImageHash(ctx context.Context, imageHash string) (*Analysis, error) {
	var row analysisRow
	err := s.db.GetContext(ctx, &row,
		"SELECT image_hash, dish_name, calories, protein, carbs, fat, ingredients, serving_size, healthiness FROM meal_analyses WHERE image_hash = $1",
		imageHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis by hash: %w", err)
	}

	a := row.Analysis
	if err := json.Unmarshal(row.IngredientsJSON, &a.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	return &a, nil
}

// SaveAnalysis upserts an analysis keyed by its image hash.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *Analysis) error {
	if a.ImageHash == "" {
		return errors.New("analysis has no image hash")
	}
	ingredientsJSON, err := json.Marshal(a.Ingredients)
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO meal_analyses (image_hash, dish_name, calories, protein, carbs, fat, ingredients, serving_size, healthiness) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (image_hash) DO UPDATE SET dish_name = $2, calories = $3, protein = $4, carbs = $5, fat = $6, ingredients = $7, serving_size = $8, healthiness = $9",
		a.ImageHash,
		a.DishName,
		a.Calories,
		a.Protein,
		a.Carbs,
		a.Fat,
		ingredientsJSON,
		a.ServingSize,
		a.Healthiness,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// GetRejection returns why an image was rejected, or "" if it never was.
func (s *PostgresStore) GetRejection(ctx context.Context, imageHash string) (string, error) {
	var reason string
	err := s.db.QueryRowContext(ctx, "SELECT reason FROM rejected_images WHERE image_hash = $1", imageHash).Scan(&reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get rejection by hash: %w", err)
	}
	return reason, nil
}

// SaveRejection records that an image is not food.
func (s *PostgresStore) SaveRejection(ctx context.Context, imageHash, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rejected_images (image_hash, reason) VALUES ($1, $2) ON CONFLICT (image_hash) DO UPDATE SET reason = $2",
		imageHash,
		reason,
	)
	if err != nil {
		return fmt.Errorf("failed to save rejection: %w", err)
	}
	return nil
}
