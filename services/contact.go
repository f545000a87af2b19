package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"leadsweep/models"
	"leadsweep/storage"
)

type ReconcileOutcome string

const (
	ReconcileLinked  ReconcileOutcome = "linked"
	ReconcileCreated ReconcileOutcome = "created"
)

type ReconcileResult struct {
	Outcome   ReconcileOutcome
	ContactID uuid.UUID
}

// ContactService resolves extractor candidates against stored contacts.
type ContactService struct {
	store storage.Store
}

func NewContactService(store storage.Store) *ContactService {
	return &ContactService{store: store}
}

// Reconcile links candidate to the listing, matching an existing contact by
// agent id first, then by normalized phone, creating one only when neither
// key matches. Linking an already-linked pair is not an error. A phone match
// backfills descriptive fields that are still null, never overwriting.
func (s *ContactService) Reconcile(ctx context.Context, candidate models.CandidateContact, listingID uuid.UUID) (ReconcileResult, error) {
	if candidate.PhoneNumber == "" {
		return ReconcileResult{}, fmt.Errorf("candidate for listing %s has no phone number", listingID)
	}

	if candidate.AgentID != "" {
		found, err := s.store.FindContactByAgentID(ctx, candidate.AgentID)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("find contact by agent id %s: %w", candidate.AgentID, err)
		}
		if found != nil {
			if err := s.store.LinkContactToListing(ctx, listingID, found.ID); err != nil {
				return ReconcileResult{}, fmt.Errorf("link contact %s: %w", found.ID, err)
			}
			return ReconcileResult{Outcome: ReconcileLinked, ContactID: found.ID}, nil
		}
	}

	found, err := s.store.FindContactByPhone(ctx, candidate.PhoneNumber)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("find contact by phone %s: %w", candidate.PhoneNumber, err)
	}
	if found != nil {
		update := *found
		update.Name = candidate.Name
		update.Company = candidate.Company
		update.LicenseNumber = candidate.LicenseNumber
		if err := s.store.BackfillContactFields(ctx, &update); err != nil {
			return ReconcileResult{}, fmt.Errorf("backfill contact %s: %w", found.ID, err)
		}
		if err := s.store.LinkContactToListing(ctx, listingID, found.ID); err != nil {
			return ReconcileResult{}, fmt.Errorf("link contact %s: %w", found.ID, err)
		}
		return ReconcileResult{Outcome: ReconcileLinked, ContactID: found.ID}, nil
	}

	contactType := candidate.Type
	if contactType == "" {
		contactType = models.ContactTypeAgent
	}

	now := time.Now().UTC()
	contact := &models.Contact{
		ID:            uuid.New(),
		AgentID:       candidate.AgentID,
		PhoneNumber:   candidate.PhoneNumber,
		Name:          candidate.Name,
		Company:       candidate.Company,
		LicenseNumber: candidate.LicenseNumber,
		Type:          contactType,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.CreateContact(ctx, contact)
	if err == storage.ErrDuplicate {
		// Another writer claimed the agent id; resolve to that row.
		found, err = s.store.FindContactByAgentID(ctx, candidate.AgentID)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("refetch contact %s: %w", candidate.AgentID, err)
		}
		if found == nil {
			return ReconcileResult{}, fmt.Errorf("contact %s: duplicate on create but not found", candidate.AgentID)
		}
		if err := s.store.LinkContactToListing(ctx, listingID, found.ID); err != nil {
			return ReconcileResult{}, fmt.Errorf("link contact %s: %w", found.ID, err)
		}
		return ReconcileResult{Outcome: ReconcileLinked, ContactID: found.ID}, nil
	}
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("create contact %s: %w", candidate.PhoneNumber, err)
	}

	if err := s.store.LinkContactToListing(ctx, listingID, contact.ID); err != nil {
		return ReconcileResult{}, fmt.Errorf("link contact %s: %w", contact.ID, err)
	}
	return ReconcileResult{Outcome: ReconcileCreated, ContactID: contact.ID}, nil
}
