package project

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"docflow/internal/extractor"
)

// ExtractResult pairs each scanned unit with its record or its isolated
// parse failure.
type ExtractResult struct {
	Records     []*extractor.StructuralRecord
	ParseErrors []*extractor.ParseError
}

// ExtractAll runs structural extraction over all units in parallel.
// Extraction is CPU-bound with no shared mutable state: each unit writes
// into its own slot, and results are merged afterwards. A ParseError for
// one unit never aborts its siblings.
func ExtractAll(ctx context.Context, ext *extractor.Extractor, units []SourceUnit) (*ExtractResult, error) {
	records := make([]*extractor.StructuralRecord, len(units))
	parseErrs := make([]*extractor.ParseError, len(units))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, unit := range units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := ext.Extract(unit.Path, unit.Content)
			if err != nil {
				var pe *extractor.ParseError
				if errors.As(err, &pe) {
					parseErrs[i] = pe
					return nil
				}
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ExtractResult{}
	for i := range units {
		if records[i] != nil {
			result.Records = append(result.Records, records[i])
		}
		if parseErrs[i] != nil {
			result.ParseErrors = append(result.ParseErrors, parseErrs[i])
		}
	}
	return result, nil
}
