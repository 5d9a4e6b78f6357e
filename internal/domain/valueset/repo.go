package valueset

import (
	"context"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

// CodesRepository persists expanded value set codes.
type CodesRepository interface {
	// InsertNewCodes writes the value set's codes that are not already in
	// the table and returns the number of rows inserted.
	InsertNewCodes(ctx context.Context, vs *fhir.ValueSet) (int64, error)
	// CountCodes returns the number of stored codes for a value set URI.
	CountCodes(ctx context.Context, valueSetURI string) (int64, error)
}
