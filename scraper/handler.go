package scraper

import (
	"context"
	"log"

	"leadsweep/config"
	"leadsweep/models"
	"leadsweep/proxy"
)

// SourceClient fetches one page of raw listing records for a region. An
// empty page marks the end of pagination.
type SourceClient interface {
	Name() string
	FetchPage(ctx context.Context, region config.Region, page int) ([]models.RawListing, error)
}

func NewSourceClient(cfg *config.Config, pool *proxy.Pool) SourceClient {
	if cfg.Source.Handler != "" && cfg.Source.Handler != "search-api" {
		log.Printf("Warning: unknown source handler %q, using search-api", cfg.Source.Handler)
	}
	return NewSearchClient(cfg.Source, pool)
}
