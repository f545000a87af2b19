package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"leadsweep/backoff"
	"leadsweep/budget"
	"leadsweep/config"
	"leadsweep/extract"
	"leadsweep/models"
	"leadsweep/proxy"
	"leadsweep/services"
	"leadsweep/storage"
)

// RunOptions narrows a run to part of the pipeline. The zero value runs
// everything: region ingestion followed by a contact resolution sweep.
type RunOptions struct {
	ListingsOnly bool
	ContactsOnly bool
	SkipContacts bool

	// ExternalIDs bypasses the eligibility query and resolves contacts for
	// exactly these stored listings.
	ExternalIDs []string
}

// Summary is what one run accomplished.
type Summary struct {
	ListingsFound    int
	ListingsCreated  int
	ListingsExisting int
	ListingsSkipped  int
	ListingsRejected int
	ContactAttempts  int
	ContactsCreated  int
	ContactsLinked   int
	Errors           int
	Elapsed          time.Duration
}

// Pipeline drives one acquisition run: page through each region's search
// results, upsert listings, then resolve selling-agent contacts for listings
// that still need them. All pacing goes through the budget controller, so a
// run winds down cleanly when its wall-clock allowance ends.
type Pipeline struct {
	cfg      *config.Config
	store    storage.Store
	source   SourceClient
	gateway  *GatewayClient
	pool     *proxy.Pool
	listings *services.ListingService
	contacts *services.ContactService
	archiver *storage.SnapshotArchiver
	policy   backoff.Policy
}

// NewPipeline wires the full acquisition flow. The listing state filter is
// derived from the configured regions.
func NewPipeline(cfg *config.Config, store storage.Store, source SourceClient, gateway *GatewayClient, pool *proxy.Pool) *Pipeline {
	states := make([]string, 0, len(cfg.Regions))
	for _, r := range cfg.Regions {
		states = append(states, r.State)
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		source:   source,
		gateway:  gateway,
		pool:     pool,
		listings: services.NewListingService(store, states),
		contacts: services.NewContactService(store),
		policy:   backoff.Default(),
	}
}

// SetArchiver enables snapshot archival for detail pages that yielded no
// contact candidates.
func (p *Pipeline) SetArchiver(a *storage.SnapshotArchiver) {
	p.archiver = a
}

// Run executes the phases selected by opts and records the run in the store.
// Failures on individual listings and contacts are counted, logged and
// skipped; only a store failure at a phase boundary fails the run itself.
func (p *Pipeline) Run(ctx context.Context, ctrl *budget.Controller, opts RunOptions) (*Summary, error) {
	s := &Summary{}

	run := &models.Run{StartedAt: time.Now().UTC(), Status: models.RunStatusRunning}
	if err := p.store.CreateRun(ctx, run); err != nil {
		log.Printf("Warning: could not record run start: %v", err)
		run = nil
	}

	var runErr error

	if len(opts.ExternalIDs) > 0 {
		p.resolveDirect(ctx, ctrl, opts.ExternalIDs, s)
	} else {
		if !opts.ContactsOnly {
			p.runListingsPhase(ctx, ctrl, s)
		}
		if !opts.ListingsOnly && !opts.SkipContacts {
			runErr = p.runContactsPhase(ctx, ctrl, s)
		}
	}

	s.Elapsed = ctrl.Elapsed()

	if run != nil {
		run.Status = models.RunStatusCompleted
		if runErr != nil {
			run.Status = models.RunStatusFailed
		} else if ctrl.IsExhausted() {
			run.Status = models.RunStatusStopped
		}
		now := time.Now().UTC()
		run.FinishedAt = &now
		run.ListingsFound = s.ListingsFound
		run.ListingsCreated = s.ListingsCreated
		run.ListingsExisting = s.ListingsExisting
		run.ListingsSkipped = s.ListingsSkipped
		run.ListingsRejected = s.ListingsRejected
		run.ContactAttempts = s.ContactAttempts
		run.ContactsCreated = s.ContactsCreated
		run.ContactsLinked = s.ContactsLinked
		run.ErrorsCount = s.Errors
		if notes, err := json.Marshal(s); err == nil {
			run.Notes = string(notes)
		}
		if err := p.store.FinishRun(ctx, run); err != nil {
			log.Printf("Warning: could not record run finish: %v", err)
		}
	}

	log.Printf("Run finished in %s: %d found, %d created, %d existing, %d skipped, %d rejected, %d contact attempts, %d contacts created, %d linked, %d errors",
		s.Elapsed.Round(time.Second), s.ListingsFound, s.ListingsCreated, s.ListingsExisting,
		s.ListingsSkipped, s.ListingsRejected, s.ContactAttempts, s.ContactsCreated,
		s.ContactsLinked, s.Errors)

	return s, runErr
}

func (p *Pipeline) runListingsPhase(ctx context.Context, ctrl *budget.Controller, s *Summary) {
	if len(p.cfg.Regions) == 0 {
		log.Printf("Warning: no regions configured, skipping listing ingestion")
		return
	}

	for i, region := range p.cfg.Regions {
		if ctrl.IsExhausted() {
			log.Printf("Budget exhausted before region %s", region.Name)
			return
		}
		if i > 0 && !p.pause(ctrl, p.cfg.Pipeline.RegionDelayMin, p.cfg.Pipeline.RegionDelayMax) {
			return
		}
		if err := p.scrapeRegion(ctx, ctrl, region, s); err != nil {
			log.Printf("Warning: region %s: %v", region.Name, err)
			s.Errors++
		}
	}
}

func (p *Pipeline) scrapeRegion(ctx context.Context, ctrl *budget.Controller, region config.Region, s *Summary) error {
	log.Printf("Region %s: starting ingestion", region.Name)

	for page := 1; ; page++ {
		if ctrl.IsExhausted() {
			log.Printf("Region %s: budget exhausted at page %d", region.Name, page)
			return nil
		}

		results, err := p.source.FetchPage(ctx, region, page)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		if len(results) == 0 {
			log.Printf("Region %s: page %d empty, done", region.Name, page)
			return nil
		}

		for _, raw := range results {
			if ctrl.IsExhausted() {
				return nil
			}
			if limit := p.cfg.Pipeline.MaxListings; limit > 0 && s.ListingsFound >= limit {
				log.Printf("Region %s: listing cap %d reached", region.Name, limit)
				return nil
			}
			s.ListingsFound++
			p.ingestListing(ctx, raw, s)
			if !p.pause(ctrl, p.cfg.Pipeline.ListingDelayMin, p.cfg.Pipeline.ListingDelayMax) {
				return nil
			}
		}

		if p.cfg.Source.PageSize > 0 && len(results) < p.cfg.Source.PageSize {
			log.Printf("Region %s: page %d partial (%d results), done", region.Name, page, len(results))
			return nil
		}
	}
}

func (p *Pipeline) ingestListing(ctx context.Context, raw models.RawListing, s *Summary) {
	res, err := p.listings.UpsertListing(ctx, raw)
	if err != nil {
		log.Printf("Warning: upsert listing: %v", err)
		s.Errors++
		return
	}

	switch res.Outcome {
	case services.UpsertCreated:
		s.ListingsCreated++
		p.ingestStructuredContacts(ctx, raw, res.ListingID, s)
	case services.UpsertExists:
		s.ListingsExisting++
	case services.UpsertSkipped:
		s.ListingsSkipped++
	case services.UpsertRejected:
		s.ListingsRejected++
	}
}

// ingestStructuredContacts reconciles contacts the search payload carried
// inline. Those ride along for free and do not consume a fetch attempt.
func (p *Pipeline) ingestStructuredContacts(ctx context.Context, raw models.RawListing, listingID uuid.UUID, s *Summary) {
	for _, candidate := range extract.Contacts(extract.Input{Payload: raw}) {
		p.reconcile(ctx, candidate, listingID, s)
	}
}

func (p *Pipeline) runContactsPhase(ctx context.Context, ctrl *budget.Controller, s *Summary) error {
	if ctrl.IsExhausted() {
		log.Printf("Budget exhausted before contact resolution")
		return nil
	}

	pc := p.cfg.Pipeline
	listings, err := p.store.SelectListingsEligibleForContactFetch(ctx, pc.ContactBatchLimit, pc.MaxContactAttempts)
	if err != nil {
		return fmt.Errorf("select eligible listings: %w", err)
	}
	if len(listings) == 0 {
		log.Printf("No listings need contact resolution")
		return nil
	}
	log.Printf("Resolving contacts for %d listings", len(listings))

	for i := range listings {
		if ctrl.IsExhausted() {
			log.Printf("Budget exhausted after %d of %d listings", i, len(listings))
			return nil
		}
		if i > 0 {
			if pc.ContactBatchSize > 0 && i%pc.ContactBatchSize == 0 {
				if !ctrl.Sleep(pc.ContactBatchDelay) {
					return nil
				}
			} else if !p.pause(ctrl, pc.ContactDelayMin, pc.ContactDelayMax) {
				return nil
			}
		}
		p.resolveListingContacts(ctx, ctrl, &listings[i], s)
	}

	return nil
}

// resolveDirect resolves contacts for explicitly named listings. Attempts
// are still recorded against each listing's ceiling.
func (p *Pipeline) resolveDirect(ctx context.Context, ctrl *budget.Controller, externalIDs []string, s *Summary) {
	for i, externalID := range externalIDs {
		if ctrl.IsExhausted() {
			log.Printf("Budget exhausted after %d of %d listings", i, len(externalIDs))
			return
		}
		if i > 0 && !p.pause(ctrl, p.cfg.Pipeline.ContactDelayMin, p.cfg.Pipeline.ContactDelayMax) {
			return
		}

		listing, err := p.store.FindListingByExternalID(ctx, externalID)
		if err != nil {
			log.Printf("Warning: find listing %s: %v", externalID, err)
			s.Errors++
			continue
		}
		if listing == nil {
			log.Printf("Warning: listing %s not found", externalID)
			s.Errors++
			continue
		}
		p.resolveListingContacts(ctx, ctrl, listing, s)
	}
}

// resolveListingContacts spends one attempt on listing. The attempt is
// recorded before the fetch so an interrupted run still counts it against
// the ceiling.
func (p *Pipeline) resolveListingContacts(ctx context.Context, ctrl *budget.Controller, listing *models.Listing, s *Summary) {
	attempts, err := p.store.IncrementContactAttempts(ctx, listing.ID)
	if err != nil {
		log.Printf("Warning: increment attempts for %s: %v", listing.ExternalID, err)
		s.Errors++
		return
	}
	s.ContactAttempts++

	log.Printf("Resolving contacts for %s (attempt %d/%d)", listing.ExternalID, attempts, p.cfg.Pipeline.MaxContactAttempts)

	if listing.DetailURL == "" {
		log.Printf("Warning: listing %s has no detail URL", listing.ExternalID)
		return
	}

	html, err := p.fetchDetailPage(ctx, ctrl, listing.DetailURL)
	if err != nil {
		log.Printf("Warning: fetch %s: %v", listing.DetailURL, err)
		s.Errors++
		return
	}
	if html == "" {
		return
	}

	candidates := extract.Contacts(extract.Input{HTML: html})
	if len(candidates) == 0 {
		log.Printf("No contacts found for %s", listing.ExternalID)
		p.archiveSnapshot(ctx, listing.ExternalID, attempts, html)
		return
	}

	for _, candidate := range candidates {
		p.reconcile(ctx, candidate, listing.ID, s)
	}
}

func (p *Pipeline) reconcile(ctx context.Context, candidate models.CandidateContact, listingID uuid.UUID, s *Summary) {
	res, err := p.contacts.Reconcile(ctx, candidate, listingID)
	if err != nil {
		log.Printf("Warning: reconcile contact %s: %v", candidate.PhoneNumber, err)
		s.Errors++
		return
	}
	switch res.Outcome {
	case services.ReconcileCreated:
		s.ContactsCreated++
	case services.ReconcileLinked:
		s.ContactsLinked++
	}
}

// fetchDetailPage retries through the gateway with backoff, rotating the
// proxy session before every retry. An empty page with a nil error means
// the budget ran out mid-retry.
func (p *Pipeline) fetchDetailPage(ctx context.Context, ctrl *budget.Controller, pageURL string) (string, error) {
	session, _, err := p.pool.Pick()
	if err != nil {
		session = ""
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctrl.IsExhausted() {
			return "", nil
		}

		html, err := p.gateway.FetchRendered(ctx, pageURL, session)
		if err == nil {
			return html, nil
		}
		lastErr = err

		class := ClassifyError(err)
		delay, retry := p.policy.Delay(attempt, class)
		if !retry || attempt >= p.cfg.Pipeline.MaxFetchRetries {
			return "", lastErr
		}

		if next, _, rerr := p.pool.Rotate(session); rerr == nil {
			session = next
			if class == backoff.ClassBlocked {
				log.Printf("Blocked upstream, rotated to session %s", session)
			}
		}
		if !ctrl.Sleep(delay) {
			return "", lastErr
		}
	}
}

func (p *Pipeline) archiveSnapshot(ctx context.Context, externalID string, attempt int, html string) {
	if p.archiver == nil {
		return
	}
	key, err := p.archiver.Save(ctx, externalID, attempt, []byte(html))
	if err != nil {
		log.Printf("Warning: archive snapshot for %s: %v", externalID, err)
		return
	}
	log.Printf("Archived zero-candidate page for %s at %s", externalID, key)
}

func (p *Pipeline) pause(ctrl *budget.Controller, min, max time.Duration) bool {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	return ctrl.Sleep(d)
}
