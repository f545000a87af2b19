package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"leadsweep/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL DEFAULT '',
		price_text TEXT NOT NULL DEFAULT '',
		beds_text TEXT NOT NULL DEFAULT '',
		detail_url TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		region_label TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		source TEXT NOT NULL,
		contact_fetch_attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id UUID PRIMARY KEY,
		agent_id TEXT UNIQUE,
		phone_number TEXT NOT NULL,
		name TEXT,
		company TEXT,
		license_number TEXT,
		type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS listing_contacts (
		listing_id UUID NOT NULL REFERENCES listings(id),
		contact_id UUID NOT NULL REFERENCES contacts(id),
		linked_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (listing_id, contact_id)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id BIGSERIAL PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		listings_found INTEGER NOT NULL DEFAULT 0,
		listings_created INTEGER NOT NULL DEFAULT 0,
		listings_existing INTEGER NOT NULL DEFAULT 0,
		listings_skipped INTEGER NOT NULL DEFAULT 0,
		listings_rejected INTEGER NOT NULL DEFAULT 0,
		contact_attempts INTEGER NOT NULL DEFAULT 0,
		contacts_created INTEGER NOT NULL DEFAULT 0,
		contacts_linked INTEGER NOT NULL DEFAULT 0,
		errors_count INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone_number);
	CREATE INDEX IF NOT EXISTS idx_listings_attempts ON listings(contact_fetch_attempts) WHERE detail_url <> '';
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =============================================================================
// Listings
// =============================================================================

func (s *PostgresStore) CreateListing(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (
			id, external_id, address, price_text, beds_text, detail_url, postal_code,
			region_label, status, priority, source, contact_fetch_attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.ExternalID, l.Address, l.PriceText, l.BedsText, l.DetailURL, l.PostalCode,
		l.RegionLabel, l.Status, l.Priority, l.Source, l.ContactFetchAttempts, l.CreatedAt, l.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) FindListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error) {
	query := `
		SELECT id, external_id, address, price_text, beds_text, detail_url, postal_code,
			region_label, status, priority, source, contact_fetch_attempts, created_at, updated_at
		FROM listings WHERE external_id = $1`

	var l models.Listing
	err := s.pool.QueryRow(ctx, query, externalID).Scan(
		&l.ID, &l.ExternalID, &l.Address, &l.PriceText, &l.BedsText, &l.DetailURL, &l.PostalCode,
		&l.RegionLabel, &l.Status, &l.Priority, &l.Source, &l.ContactFetchAttempts, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) IncrementContactAttempts(ctx context.Context, listingID uuid.UUID) (int, error) {
	query := `
		UPDATE listings
		SET contact_fetch_attempts = contact_fetch_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING contact_fetch_attempts`

	var attempts int
	if err := s.pool.QueryRow(ctx, query, listingID).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

func (s *PostgresStore) SelectListingsEligibleForContactFetch(ctx context.Context, limit, maxAttempts int) ([]models.Listing, error) {
	query := `
		SELECT l.id, l.external_id, l.address, l.price_text, l.beds_text, l.detail_url, l.postal_code,
			l.region_label, l.status, l.priority, l.source, l.contact_fetch_attempts, l.created_at, l.updated_at
		FROM listings l
		WHERE l.contact_fetch_attempts < $2
			AND l.detail_url <> ''
			AND NOT EXISTS (SELECT 1 FROM listing_contacts lc WHERE lc.listing_id = l.id)
		ORDER BY l.created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(
			&l.ID, &l.ExternalID, &l.Address, &l.PriceText, &l.BedsText, &l.DetailURL, &l.PostalCode,
			&l.RegionLabel, &l.Status, &l.Priority, &l.Source, &l.ContactFetchAttempts, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// =============================================================================
// Contacts
// =============================================================================

func (s *PostgresStore) CreateContact(ctx context.Context, c *models.Contact) error {
	query := `
		INSERT INTO contacts (id, agent_id, phone_number, name, company, license_number, type, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.AgentID, c.PhoneNumber, c.Name, c.Company, c.LicenseNumber, c.Type, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

const contactColumns = `id, COALESCE(agent_id, ''), phone_number, COALESCE(name, ''),
	COALESCE(company, ''), COALESCE(license_number, ''), type, created_at, updated_at`

func scanContact(row pgx.Row) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(
		&c.ID, &c.AgentID, &c.PhoneNumber, &c.Name,
		&c.Company, &c.LicenseNumber, &c.Type, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) FindContactByAgentID(ctx context.Context, agentID string) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE agent_id = $1`
	return scanContact(s.pool.QueryRow(ctx, query, agentID))
}

func (s *PostgresStore) FindContactByPhone(ctx context.Context, phone string) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE phone_number = $1 ORDER BY created_at LIMIT 1`
	return scanContact(s.pool.QueryRow(ctx, query, phone))
}

// BackfillContactFields fills previously-null descriptive fields from c.
// Non-null columns are left alone; identity keys are never touched.
func (s *PostgresStore) BackfillContactFields(ctx context.Context, c *models.Contact) error {
	query := `
		UPDATE contacts SET
			name = COALESCE(name, NULLIF($2, '')),
			company = COALESCE(company, NULLIF($3, '')),
			license_number = COALESCE(license_number, NULLIF($4, '')),
			updated_at = NOW()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, c.ID, c.Name, c.Company, c.LicenseNumber)
	return err
}

func (s *PostgresStore) LinkContactToListing(ctx context.Context, listingID, contactID uuid.UUID) error {
	query := `
		INSERT INTO listing_contacts (listing_id, contact_id, linked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (listing_id, contact_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, listingID, contactID)
	return err
}

func (s *PostgresStore) ListContactsForListing(ctx context.Context, listingID uuid.UUID) ([]models.Contact, error) {
	query := `
		SELECT c.id, COALESCE(c.agent_id, ''), c.phone_number, COALESCE(c.name, ''),
			COALESCE(c.company, ''), COALESCE(c.license_number, ''), c.type, c.created_at, c.updated_at
		FROM contacts c
		JOIN listing_contacts lc ON lc.contact_id = c.id
		WHERE lc.listing_id = $1
		ORDER BY lc.linked_at`

	rows, err := s.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(
			&c.ID, &c.AgentID, &c.PhoneNumber, &c.Name,
			&c.Company, &c.LicenseNumber, &c.Type, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// =============================================================================
// Runs
// =============================================================================

func (s *PostgresStore) CreateRun(ctx context.Context, r *models.Run) error {
	query := `INSERT INTO runs (started_at, status) VALUES ($1, $2) RETURNING id`
	return s.pool.QueryRow(ctx, query, r.StartedAt, r.Status).Scan(&r.ID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, r *models.Run) error {
	query := `
		UPDATE runs SET
			finished_at = $2,
			status = $3,
			listings_found = $4,
			listings_created = $5,
			listings_existing = $6,
			listings_skipped = $7,
			listings_rejected = $8,
			contact_attempts = $9,
			contacts_created = $10,
			contacts_linked = $11,
			errors_count = $12,
			notes = $13
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.FinishedAt, r.Status,
		r.ListingsFound, r.ListingsCreated, r.ListingsExisting, r.ListingsSkipped, r.ListingsRejected,
		r.ContactAttempts, r.ContactsCreated, r.ContactsLinked, r.ErrorsCount, r.Notes,
	)
	return err
}
