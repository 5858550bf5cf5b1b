// Package database persists discovered locations in SQLite. Accepted
// candidates land here with status "pending" and move to "approved" or
// "rejected" through moderation.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"discoveryserver/types"

	_ "github.com/mattn/go-sqlite3"
)

// LocationDB wraps the locations database connection.
type LocationDB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// NewLocationDB opens (and if needed creates) the locations database at
// dbPath. In-memory paths get a single connection so every statement
// sees the same database.
func NewLocationDB(dbPath string) (*LocationDB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open locations database: %w", err)
	}

	if isInMemory(dbPath) {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		// SQLite handles many concurrent writers poorly.
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(3)
	}
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping locations database: %w", err)
	}

	// WAL lets readers proceed while a discovery run is writing.
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		slog.Warn("failed to enable WAL mode", "error", err)
	}

	if err := initLocationSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize location schema: %w", err)
	}

	return &LocationDB{
		conn:   conn,
		logger: slog.Default().With("component", "location_db"),
	}, nil
}

func isInMemory(dbPath string) bool {
	return dbPath == ":memory:" ||
		(strings.HasPrefix(dbPath, "file:") && strings.Contains(dbPath, "mode=memory"))
}

func initLocationSchema(db *sql.DB) error {
	createLocations := `
	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		latitude REAL,
		longitude REAL,
		phone TEXT,
		website TEXT,
		description TEXT,
		cuisine TEXT DEFAULT '[]',
		rating REAL,
		review_count INTEGER,
		service_type TEXT,
		price_display TEXT,
		price_min INTEGER,
		price_max INTEGER,
		price_currency TEXT,
		discovery_source TEXT NOT NULL,
		source_url TEXT,
		discovered_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		confidence REAL,
		is_valid INTEGER,
		validation_issues TEXT DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`

	createStatusIndex := `
	CREATE INDEX IF NOT EXISTS idx_locations_status ON locations(status)`

	if _, err := db.Exec(createLocations); err != nil {
		return fmt.Errorf("failed to create locations table: %w", err)
	}
	if _, err := db.Exec(createStatusIndex); err != nil {
		return fmt.Errorf("failed to create status index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *LocationDB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the connection is alive.
func (db *LocationDB) Ping() error {
	return db.conn.Ping()
}

// SaveCandidates inserts accepted candidates in one transaction.
// Records whose ID already exists are skipped rather than overwritten;
// moderation state must not be reset by a rediscovery.
func (db *LocationDB) SaveCandidates(ctx context.Context, candidates []types.LocationCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO locations (
			id, name, address, latitude, longitude, phone, website,
			description, cuisine, rating, review_count, service_type,
			price_display, price_min, price_max, price_currency,
			discovery_source, source_url, discovered_at, status,
			confidence, is_valid, validation_issues
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		cuisine, err := json.Marshal(c.Cuisine)
		if err != nil {
			return fmt.Errorf("failed to marshal cuisine for %s: %w", c.ID, err)
		}

		var lat, lng interface{}
		if c.Coordinates != nil {
			lat, lng = c.Coordinates.Lat, c.Coordinates.Lng
		}

		var confidence, isValid interface{}
		issues := []byte("[]")
		if c.Validation != nil {
			confidence = c.Validation.Confidence
			isValid = c.Validation.IsValid
			if issues, err = json.Marshal(c.Validation.Issues); err != nil {
				return fmt.Errorf("failed to marshal issues for %s: %w", c.ID, err)
			}
		}

		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Name, c.Address, lat, lng, c.Phone, c.Website,
			c.Description, string(cuisine), c.Rating, c.ReviewCount, c.ServiceType,
			c.PriceInfo.Display, c.PriceInfo.PriceMin, c.PriceInfo.PriceMax, c.PriceInfo.Currency,
			string(c.DiscoverySource), c.SourceURL, c.DiscoveredAt.UTC(), string(c.Status),
			confidence, isValid, string(issues),
		); err != nil {
			return fmt.Errorf("failed to insert location %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit locations: %w", err)
	}

	db.logger.Info("saved discovered locations", "count", len(candidates))
	return nil
}

// ListApproved returns the moderated dataset new discoveries are
// deduplicated against.
func (db *LocationDB) ListApproved(ctx context.Context) ([]types.LocationCandidate, error) {
	return db.listByStatus(ctx, string(types.StatusApproved))
}

// ListByStatus returns locations in the given moderation state, newest
// first.
func (db *LocationDB) ListByStatus(ctx context.Context, status types.CandidateStatus) ([]types.LocationCandidate, error) {
	return db.listByStatus(ctx, string(status))
}

func (db *LocationDB) listByStatus(ctx context.Context, status string) ([]types.LocationCandidate, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, address, latitude, longitude, phone, website,
			description, cuisine, rating, review_count, service_type,
			price_display, price_min, price_max, price_currency,
			discovery_source, source_url, discovered_at, status,
			confidence, is_valid, validation_issues
		FROM locations WHERE status = ? ORDER BY discovered_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []types.LocationCandidate
	for rows.Next() {
		candidate, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, candidate)
	}
	return locations, rows.Err()
}

// GetByID looks a location up; sql.ErrNoRows when absent.
func (db *LocationDB) GetByID(ctx context.Context, id string) (types.LocationCandidate, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, address, latitude, longitude, phone, website,
			description, cuisine, rating, review_count, service_type,
			price_display, price_min, price_max, price_currency,
			discovery_source, source_url, discovered_at, status,
			confidence, is_valid, validation_issues
		FROM locations WHERE id = ?`, id)
	return scanLocation(row)
}

// UpdateStatus moves a location through moderation. Returns
// sql.ErrNoRows for an unknown id.
func (db *LocationDB) UpdateStatus(ctx context.Context, id string, status types.CandidateStatus) error {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE locations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update location status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns how many locations sit in each moderation state.
func (db *LocationDB) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM locations GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count locations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (types.LocationCandidate, error) {
	var c types.LocationCandidate
	var (
		address, phone, website, description      sql.NullString
		serviceType, priceDisplay, priceCurrency  sql.NullString
		sourceURL, cuisineJSON, issuesJSON, state string
		lat, lng, rating                          sql.NullFloat64
		priceMin, priceMax, reviewCount           sql.NullInt64
		confidence                                sql.NullFloat64
		isValid                                   sql.NullBool
		source                                    string
	)

	err := row.Scan(
		&c.ID, &c.Name, &address, &lat, &lng, &phone, &website,
		&description, &cuisineJSON, &rating, &reviewCount, &serviceType,
		&priceDisplay, &priceMin, &priceMax, &priceCurrency,
		&source, &sourceURL, &c.DiscoveredAt, &state,
		&confidence, &isValid, &issuesJSON,
	)
	if err != nil {
		return types.LocationCandidate{}, err
	}

	c.Address = address.String
	c.Phone = phone.String
	c.Website = website.String
	c.Description = description.String
	c.ServiceType = serviceType.String
	c.SourceURL = sourceURL
	c.DiscoverySource = types.DiscoverySource(source)
	c.Status = types.CandidateStatus(state)

	if lat.Valid && lng.Valid {
		c.Coordinates = &types.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	if rating.Valid {
		c.Rating = &rating.Float64
	}
	if reviewCount.Valid {
		count := int(reviewCount.Int64)
		c.ReviewCount = &count
	}

	c.PriceInfo.Display = priceDisplay.String
	c.PriceInfo.Currency = priceCurrency.String
	if priceMin.Valid {
		c.PriceInfo.PriceMin = &priceMin.Int64
	}
	if priceMax.Valid {
		c.PriceInfo.PriceMax = &priceMax.Int64
	}

	if err := json.Unmarshal([]byte(cuisineJSON), &c.Cuisine); err != nil {
		return types.LocationCandidate{}, fmt.Errorf("failed to parse cuisine for %s: %w", c.ID, err)
	}

	if confidence.Valid {
		validation := types.ValidationResult{Confidence: confidence.Float64}
		if err := json.Unmarshal([]byte(issuesJSON), &validation.Issues); err != nil {
			return types.LocationCandidate{}, fmt.Errorf("failed to parse issues for %s: %w", c.ID, err)
		}
		validation.IsValid = isValid.Valid && isValid.Bool
		c.Validation = &validation
	}

	return c, nil
}
