package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"leadsweep/models"
)

// ErrDuplicate reports a unique-constraint violation on create. Callers treat
// it as "the row already exists", not as a failure; it is how a lookup racing
// a concurrent create resolves.
var ErrDuplicate = errors.New("duplicate key")

// Store is the persistence boundary of the pipeline. Find operations return
// (nil, nil) when no row matches. All operations are individually atomic;
// nothing here requires a multi-statement transaction.
type Store interface {
	FindListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error)
	CreateListing(ctx context.Context, l *models.Listing) error
	IncrementContactAttempts(ctx context.Context, listingID uuid.UUID) (int, error)
	SelectListingsEligibleForContactFetch(ctx context.Context, limit, maxAttempts int) ([]models.Listing, error)

	FindContactByAgentID(ctx context.Context, agentID string) (*models.Contact, error)
	FindContactByPhone(ctx context.Context, phone string) (*models.Contact, error)
	CreateContact(ctx context.Context, c *models.Contact) error
	BackfillContactFields(ctx context.Context, c *models.Contact) error
	LinkContactToListing(ctx context.Context, listingID, contactID uuid.UUID) error
	ListContactsForListing(ctx context.Context, listingID uuid.UUID) ([]models.Contact, error)

	CreateRun(ctx context.Context, r *models.Run) error
	FinishRun(ctx context.Context, r *models.Run) error

	Close() error
}
