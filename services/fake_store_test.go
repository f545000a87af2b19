package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"leadsweep/models"
	"leadsweep/storage"
)

// fakeStore is an in-memory storage.Store for exercising service paths that
// are awkward to produce with a real database, like create races.
type fakeStore struct {
	listings map[string]*models.Listing
	contacts map[uuid.UUID]*models.Contact
	links    map[uuid.UUID][]uuid.UUID
	runs     map[int64]*models.Run

	nextRunID int64

	// raceListing and raceContact, when set, are inserted during the next
	// create before it fails with ErrDuplicate, simulating a concurrent
	// writer landing between lookup and create.
	raceListing *models.Listing
	raceContact *models.Contact
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings: make(map[string]*models.Listing),
		contacts: make(map[uuid.UUID]*models.Contact),
		links:    make(map[uuid.UUID][]uuid.UUID),
		runs:     make(map[int64]*models.Run),
	}
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) CreateListing(_ context.Context, l *models.Listing) error {
	if f.raceListing != nil {
		race := f.raceListing
		f.raceListing = nil
		f.listings[race.ExternalID] = race
	}
	if _, ok := f.listings[l.ExternalID]; ok {
		return storage.ErrDuplicate
	}
	copied := *l
	f.listings[l.ExternalID] = &copied
	return nil
}

func (f *fakeStore) FindListingByExternalID(_ context.Context, externalID string) (*models.Listing, error) {
	l, ok := f.listings[externalID]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (f *fakeStore) IncrementContactAttempts(_ context.Context, listingID uuid.UUID) (int, error) {
	for _, l := range f.listings {
		if l.ID == listingID {
			l.ContactFetchAttempts++
			return l.ContactFetchAttempts, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) SelectListingsEligibleForContactFetch(_ context.Context, limit, maxAttempts int) ([]models.Listing, error) {
	var eligible []models.Listing
	for _, l := range f.listings {
		if l.ContactFetchAttempts >= maxAttempts || l.DetailURL == "" {
			continue
		}
		if len(f.links[l.ID]) > 0 {
			continue
		}
		eligible = append(eligible, *l)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].CreatedAt.Before(eligible[j].CreatedAt) })
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func (f *fakeStore) CreateContact(_ context.Context, c *models.Contact) error {
	if f.raceContact != nil {
		race := f.raceContact
		f.raceContact = nil
		f.contacts[race.ID] = race
		return storage.ErrDuplicate
	}
	if c.AgentID != "" {
		for _, existing := range f.contacts {
			if existing.AgentID == c.AgentID {
				return storage.ErrDuplicate
			}
		}
	}
	copied := *c
	f.contacts[c.ID] = &copied
	return nil
}

func (f *fakeStore) FindContactByAgentID(_ context.Context, agentID string) (*models.Contact, error) {
	if agentID == "" {
		return nil, nil
	}
	for _, c := range f.contacts {
		if c.AgentID == agentID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindContactByPhone(_ context.Context, phone string) (*models.Contact, error) {
	var found *models.Contact
	for _, c := range f.contacts {
		if c.PhoneNumber != phone {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

func (f *fakeStore) BackfillContactFields(_ context.Context, c *models.Contact) error {
	stored, ok := f.contacts[c.ID]
	if !ok {
		return nil
	}
	if stored.Name == "" {
		stored.Name = c.Name
	}
	if stored.Company == "" {
		stored.Company = c.Company
	}
	if stored.LicenseNumber == "" {
		stored.LicenseNumber = c.LicenseNumber
	}
	return nil
}

func (f *fakeStore) LinkContactToListing(_ context.Context, listingID, contactID uuid.UUID) error {
	for _, linked := range f.links[listingID] {
		if linked == contactID {
			return nil
		}
	}
	f.links[listingID] = append(f.links[listingID], contactID)
	return nil
}

func (f *fakeStore) ListContactsForListing(_ context.Context, listingID uuid.UUID) ([]models.Contact, error) {
	var contacts []models.Contact
	for _, id := range f.links[listingID] {
		if c, ok := f.contacts[id]; ok {
			contacts = append(contacts, *c)
		}
	}
	return contacts, nil
}

func (f *fakeStore) CreateRun(_ context.Context, r *models.Run) error {
	f.nextRunID++
	r.ID = f.nextRunID
	copied := *r
	f.runs[r.ID] = &copied
	return nil
}

func (f *fakeStore) FinishRun(_ context.Context, r *models.Run) error {
	copied := *r
	f.runs[r.ID] = &copied
	return nil
}
