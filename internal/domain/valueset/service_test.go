package valueset

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

type fakeRepo struct {
	inserted   []*fhir.ValueSet
	insertErr  error
	rowsPerVS  int64
	countTotal int64
}

func (f *fakeRepo) InsertNewCodes(_ context.Context, vs *fhir.ValueSet) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, vs)
	return f.rowsPerVS, nil
}

func (f *fakeRepo) CountCodes(context.Context, string) (int64, error) {
	return f.countTotal, nil
}

type stubExpander struct {
	byURL map[string]*fhir.ValueSet
	errs  map[string]error
	calls []string
}

func (s *stubExpander) ExpandValueSet(_ context.Context, url string) (*fhir.ValueSet, error) {
	s.calls = append(s.calls, url)
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	vs, ok := s.byURL[url]
	if !ok {
		return nil, errors.New("no stub for " + url)
	}
	return vs, nil
}

func expandedFor(url, version string) *fhir.ValueSet {
	return &fhir.ValueSet{
		URL:     url,
		Version: version,
		Expansion: fhir.Expansion{
			Contains: []fhir.Contains{{System: "s", Code: "c"}},
		},
	}
}

func TestSyncURLs_InsertsExpandedCodes(t *testing.T) {
	repo := &fakeRepo{rowsPerVS: 3}
	exp := &stubExpander{byURL: map[string]*fhir.ValueSet{
		"http://hl7.org/vs/a": expandedFor("http://hl7.org/vs/a", "1"),
		"http://hl7.org/vs/b": expandedFor("http://hl7.org/vs/b", ""),
	}}
	svc := NewService(repo, exp, NewResolver(mapLookup{}), zerolog.Nop())

	run := svc.SyncURLs(context.Background(), []string{"http://hl7.org/vs/a", "http://hl7.org/vs/b"})

	if run.Failed != 0 {
		t.Errorf("expected no failures, got %d", run.Failed)
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}
	for _, res := range run.Results {
		if res.Inserted != 3 {
			t.Errorf("result %s: expected 3 inserted, got %d", res.URL, res.Inserted)
		}
	}
	if len(repo.inserted) != 2 {
		t.Errorf("expected 2 inserts, got %d", len(repo.inserted))
	}
}

func TestSyncURLs_ContinuesPastFailures(t *testing.T) {
	repo := &fakeRepo{rowsPerVS: 1}
	exp := &stubExpander{
		byURL: map[string]*fhir.ValueSet{
			"http://hl7.org/vs/ok": expandedFor("http://hl7.org/vs/ok", ""),
		},
		errs: map[string]error{
			"http://hl7.org/vs/broken": errors.New("server exploded"),
		},
	}
	svc := NewService(repo, exp, NewResolver(mapLookup{}), zerolog.Nop())

	run := svc.SyncURLs(context.Background(), []string{"http://hl7.org/vs/broken", "http://hl7.org/vs/ok"})

	if run.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", run.Failed)
	}
	if run.Results[0].Error == "" {
		t.Error("expected first result to record the error")
	}
	if run.Results[1].Error != "" || run.Results[1].Inserted != 1 {
		t.Errorf("expected second result to succeed, got %+v", run.Results[1])
	}
}

func TestSyncURLs_SplitsVersionSuffix(t *testing.T) {
	repo := &fakeRepo{rowsPerVS: 1}
	exp := &stubExpander{byURL: map[string]*fhir.ValueSet{
		"http://hl7.org/vs/a|2.1": expandedFor("http://hl7.org/vs/a", "2.1"),
	}}
	svc := NewService(repo, exp, NewResolver(mapLookup{}), zerolog.Nop())

	run := svc.SyncURLs(context.Background(), []string{"http://hl7.org/vs/a|2.1"})

	if run.Results[0].URL != "http://hl7.org/vs/a" {
		t.Errorf("unexpected result url: %q", run.Results[0].URL)
	}
	if run.Results[0].Version != "2.1" {
		t.Errorf("unexpected result version: %q", run.Results[0].Version)
	}
	// The expander receives the full canonical including the version.
	if exp.calls[0] != "http://hl7.org/vs/a|2.1" {
		t.Errorf("unexpected expander call: %q", exp.calls[0])
	}
}

func TestSyncPackage_ExpandsDiscoveredValueSets(t *testing.T) {
	vsOwn := &fhir.ValueSet{URL: "http://hl7.org/vs/own", Version: "3"}
	vsBound := &fhir.ValueSet{URL: "http://hl7.org/vs/bound"}

	resolver := NewResolver(mapLookup{
		"http://hl7.org/vs/bound": vsBound,
	})
	pkg := &fhir.Package{
		ValueSets: []*fhir.ValueSet{vsOwn},
		StructureDefinitions: []*fhir.StructureDefinition{{
			Snapshot: fhir.ElementList{Element: []fhir.Element{
				{Path: "X.code", Binding: bindingTo("http://hl7.org/vs/bound")},
			}},
		}},
	}

	repo := &fakeRepo{rowsPerVS: 2}
	exp := &stubExpander{byURL: map[string]*fhir.ValueSet{
		"http://hl7.org/vs/own|3":  expandedFor("http://hl7.org/vs/own", "3"),
		"http://hl7.org/vs/bound":  expandedFor("http://hl7.org/vs/bound", ""),
	}}
	svc := NewService(repo, exp, resolver, zerolog.Nop())

	run, err := svc.SyncPackage(context.Background(), pkg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}
	// Versioned canonical is passed through for the package's own copy.
	if exp.calls[0] != "http://hl7.org/vs/own|3" {
		t.Errorf("unexpected first expansion call: %q", exp.calls[0])
	}
}

func TestSyncPackage_PropagatesResolutionError(t *testing.T) {
	resolver := NewResolver(mapLookup{})
	pkg := &fhir.Package{
		StructureDefinitions: []*fhir.StructureDefinition{{
			Snapshot: fhir.ElementList{Element: []fhir.Element{
				{Path: "X.code", Binding: bindingTo("http://hl7.org/vs/missing")},
			}},
		}},
	}
	svc := NewService(&fakeRepo{}, &stubExpander{}, resolver, zerolog.Nop())

	_, err := svc.SyncPackage(context.Background(), pkg)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
