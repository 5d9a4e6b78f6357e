package valueset

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

// Expander retrieves the complete expansion of a value set URL, typically
// from a remote terminology server.
type Expander interface {
	ExpandValueSet(ctx context.Context, valueSetURL string) (*fhir.ValueSet, error)
}

// Service orchestrates value set synchronization: expand a value set to its
// complete code list, then insert the codes the table does not yet hold.
type Service struct {
	repo     CodesRepository
	expander Expander
	resolver *Resolver
	log      zerolog.Logger
}

// NewService creates a sync service.
func NewService(repo CodesRepository, expander Expander, resolver *Resolver, log zerolog.Logger) *Service {
	return &Service{repo: repo, expander: expander, resolver: resolver, log: log}
}

// SyncResult records the outcome for one value set within a run.
type SyncResult struct {
	URL      string `json:"url"`
	Version  string `json:"version,omitempty"`
	Inserted int64  `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// SyncRun is the outcome of one synchronization request.
type SyncRun struct {
	ID      uuid.UUID    `json:"id"`
	Results []SyncResult `json:"results"`
	Failed  int          `json:"failed"`
}

// Resolver exposes the service's package-backed resolver.
func (s *Service) Resolver() *Resolver { return s.resolver }

// SyncURLs expands each value set URL through the terminology service and
// inserts its codes. Failures are recorded per URL; the run continues with
// the remaining value sets.
func (s *Service) SyncURLs(ctx context.Context, urls []string) *SyncRun {
	run := &SyncRun{ID: uuid.New()}
	s.log.Info().Str("run_id", run.ID.String()).Int("value_sets", len(urls)).Msg("starting value set sync")

	for _, url := range urls {
		run.Results = append(run.Results, s.syncOne(ctx, url))
	}
	for _, res := range run.Results {
		if res.Error != "" {
			run.Failed++
		}
	}

	s.log.Info().
		Str("run_id", run.ID.String()).
		Int("value_sets", len(urls)).
		Int("failed", run.Failed).
		Msg("value set sync finished")
	return run
}

// SyncPackage expands and inserts every value set referenced by the package:
// its own value sets plus the ones its structure definitions bind.
func (s *Service) SyncPackage(ctx context.Context, pkg *fhir.Package) (*SyncRun, error) {
	var urls []string
	for vs, err := range s.resolver.ValueSetsFromFHIRPackage(pkg) {
		if err != nil {
			return nil, err
		}
		url := vs.URL
		if vs.Version != "" {
			url = url + "|" + vs.Version
		}
		urls = append(urls, url)
	}
	return s.SyncURLs(ctx, urls), nil
}

func (s *Service) syncOne(ctx context.Context, url string) SyncResult {
	plainURL, version := fhir.ParseURLVersion(url)
	result := SyncResult{URL: plainURL, Version: version}

	expanded, err := s.expander.ExpandValueSet(ctx, url)
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("expansion failed")
		result.Error = err.Error()
		return result
	}

	inserted, err := s.repo.InsertNewCodes(ctx, expanded)
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("insert failed")
		result.Error = err.Error()
		return result
	}

	result.Inserted = inserted
	return result
}
