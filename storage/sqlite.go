package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"leadsweep/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
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
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		agent_id TEXT UNIQUE,
		phone_number TEXT NOT NULL,
		name TEXT,
		company TEXT,
		license_number TEXT,
		type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS listing_contacts (
		listing_id TEXT NOT NULL REFERENCES listings(id),
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		linked_at DATETIME NOT NULL,
		PRIMARY KEY (listing_id, contact_id)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
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
	CREATE INDEX IF NOT EXISTS idx_listings_attempts ON listings(contact_fetch_attempts);
	`
	_, err := s.db.Exec(schema)
	return err
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// =============================================================================
// Listings
// =============================================================================

func (s *SQLiteStore) CreateListing(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (
			id, external_id, address, price_text, beds_text, detail_url, postal_code,
			region_label, status, priority, source, contact_fetch_attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		l.ID.String(), l.ExternalID, l.Address, l.PriceText, l.BedsText, l.DetailURL, l.PostalCode,
		l.RegionLabel, l.Status, l.Priority, l.Source, l.ContactFetchAttempts, l.CreatedAt, l.UpdatedAt,
	)
	if isConstraintViolation(err) {
		return ErrDuplicate
	}
	return err
}

func scanListingRow(row interface{ Scan(...any) error }) (*models.Listing, error) {
	var l models.Listing
	var id string
	err := row.Scan(
		&id, &l.ExternalID, &l.Address, &l.PriceText, &l.BedsText, &l.DetailURL, &l.PostalCode,
		&l.RegionLabel, &l.Status, &l.Priority, &l.Source, &l.ContactFetchAttempts, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStore) FindListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error) {
	query := `
		SELECT id, external_id, address, price_text, beds_text, detail_url, postal_code,
			region_label, status, priority, source, contact_fetch_attempts, created_at, updated_at
		FROM listings WHERE external_id = ?`

	l, err := scanListingRow(s.db.QueryRowContext(ctx, query, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *SQLiteStore) IncrementContactAttempts(ctx context.Context, listingID uuid.UUID) (int, error) {
	update := `
		UPDATE listings
		SET contact_fetch_attempts = contact_fetch_attempts + 1, updated_at = ?
		WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, update, time.Now().UTC(), listingID.String()); err != nil {
		return 0, err
	}

	var attempts int
	err := s.db.QueryRowContext(ctx,
		`SELECT contact_fetch_attempts FROM listings WHERE id = ?`, listingID.String(),
	).Scan(&attempts)
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (s *SQLiteStore) SelectListingsEligibleForContactFetch(ctx context.Context, limit, maxAttempts int) ([]models.Listing, error) {
	query := `
		SELECT l.id, l.external_id, l.address, l.price_text, l.beds_text, l.detail_url, l.postal_code,
			l.region_label, l.status, l.priority, l.source, l.contact_fetch_attempts, l.created_at, l.updated_at
		FROM listings l
		WHERE l.contact_fetch_attempts < ?
			AND l.detail_url <> ''
			AND NOT EXISTS (SELECT 1 FROM listing_contacts lc WHERE lc.listing_id = l.id)
		ORDER BY l.created_at
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListingRow(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// =============================================================================
// Contacts
// =============================================================================

func (s *SQLiteStore) CreateContact(ctx context.Context, c *models.Contact) error {
	query := `
		INSERT INTO contacts (id, agent_id, phone_number, name, company, license_number, type, created_at, updated_at)
		VALUES (?, NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		c.ID.String(), c.AgentID, c.PhoneNumber, c.Name, c.Company, c.LicenseNumber, c.Type, c.CreatedAt, c.UpdatedAt,
	)
	if isConstraintViolation(err) {
		return ErrDuplicate
	}
	return err
}

func scanContactRow(row interface{ Scan(...any) error }) (*models.Contact, error) {
	var c models.Contact
	var id string
	err := row.Scan(
		&id, &c.AgentID, &c.PhoneNumber, &c.Name,
		&c.Company, &c.LicenseNumber, &c.Type, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) FindContactByAgentID(ctx context.Context, agentID string) (*models.Contact, error) {
	query := `
		SELECT id, COALESCE(agent_id, ''), phone_number, COALESCE(name, ''),
			COALESCE(company, ''), COALESCE(license_number, ''), type, created_at, updated_at
		FROM contacts WHERE agent_id = ?`

	c, err := scanContactRow(s.db.QueryRowContext(ctx, query, agentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) FindContactByPhone(ctx context.Context, phone string) (*models.Contact, error) {
	query := `
		SELECT id, COALESCE(agent_id, ''), phone_number, COALESCE(name, ''),
			COALESCE(company, ''), COALESCE(license_number, ''), type, created_at, updated_at
		FROM contacts WHERE phone_number = ? ORDER BY created_at LIMIT 1`

	c, err := scanContactRow(s.db.QueryRowContext(ctx, query, phone))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// BackfillContactFields fills previously-null descriptive fields from c.
// Non-null columns are left alone; identity keys are never touched.
func (s *SQLiteStore) BackfillContactFields(ctx context.Context, c *models.Contact) error {
	query := `
		UPDATE contacts SET
			name = COALESCE(name, NULLIF(?, '')),
			company = COALESCE(company, NULLIF(?, '')),
			license_number = COALESCE(license_number, NULLIF(?, '')),
			updated_at = ?
		WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query, c.Name, c.Company, c.LicenseNumber, time.Now().UTC(), c.ID.String())
	return err
}

func (s *SQLiteStore) LinkContactToListing(ctx context.Context, listingID, contactID uuid.UUID) error {
	query := `
		INSERT OR IGNORE INTO listing_contacts (listing_id, contact_id, linked_at)
		VALUES (?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, listingID.String(), contactID.String(), time.Now().UTC())
	return err
}

func (s *SQLiteStore) ListContactsForListing(ctx context.Context, listingID uuid.UUID) ([]models.Contact, error) {
	query := `
		SELECT c.id, COALESCE(c.agent_id, ''), c.phone_number, COALESCE(c.name, ''),
			COALESCE(c.company, ''), COALESCE(c.license_number, ''), c.type, c.created_at, c.updated_at
		FROM contacts c
		JOIN listing_contacts lc ON lc.contact_id = c.id
		WHERE lc.listing_id = ?
		ORDER BY lc.linked_at`

	rows, err := s.db.QueryContext(ctx, query, listingID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContactRow(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(ctx context.Context, r *models.Run) error {
	query := `INSERT INTO runs (started_at, status) VALUES (?, ?)`

	result, err := s.db.ExecContext(ctx, query, r.StartedAt, r.Status)
	if err != nil {
		return err
	}
	r.ID, err = result.LastInsertId()
	return err
}

func (s *SQLiteStore) FinishRun(ctx context.Context, r *models.Run) error {
	query := `
		UPDATE runs SET
			finished_at = ?,
			status = ?,
			listings_found = ?,
			listings_created = ?,
			listings_existing = ?,
			listings_skipped = ?,
			listings_rejected = ?,
			contact_attempts = ?,
			contacts_created = ?,
			contacts_linked = ?,
			errors_count = ?,
			notes = ?
		WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query,
		r.FinishedAt, r.Status,
		r.ListingsFound, r.ListingsCreated, r.ListingsExisting, r.ListingsSkipped, r.ListingsRejected,
		r.ContactAttempts, r.ContactsCreated, r.ContactsLinked, r.ErrorsCount, r.Notes,
		r.ID,
	)
	return err
}
