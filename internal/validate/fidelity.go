package validate

import (
	"context"

	"db-siard/internal/schema"
	"db-siard/internal/siard"
)

// structureFidelity compares the declared structure with a reference taken
// from the source database.
type structureFidelity struct{ base }

func (v *structureFidelity) Validate(ctx context.Context) (Outcome, error) {
	out := Outcome{Passed: true}
	db, err := v.env.Declared()
	if err != nil {
		out.fail("F_1-1", siard.MetadataXML, "descriptor does not decode: %v", err)
		return out, nil
	}
	for _, d := range schema.Compare(v.env.Opts.Reference, db) {
		out.fail("F_1-1", d.Path, "%s", d.Message)
	}
	return out, nil
}
