package jobs

import (
	"context"
	"errors"
	"fmt"

	"govai/internal/analyzer"
	"govai/internal/prompt"
)

// ErrNoAPIKey is the job error when the analysis provider has no key.
var ErrNoAPIKey = errors.New("AMBIENT_API_KEY is not set")

// Analyzer is the part of analyzer.Analyzer a job needs.
type Analyzer interface {
	Analyze(ctx context.Context, url string, principles any) (*analyzer.Result, error)
}

// AnalysisRunner runs jobs through a. Principles sent with the request win
// when they are a JSON object or array; otherwise they are loaded from
// principlesPath. A nil analyzer means no API key was configured.
func AnalysisRunner(a Analyzer, principlesPath string) Runner {
	return func(ctx context.Context, url string, override any) (map[string]any, error) {
		if a == nil {
			return nil, ErrNoAPIKey
		}
		principles := override
		switch override.(type) {
		case map[string]any, []any:
		default:
			loaded, err := prompt.LoadPrinciples(principlesPath)
			if errors.Is(err, prompt.ErrNoPrinciples) {
				return nil, fmt.Errorf("%s not found. Create it or pass principles in request body", principlesPath)
			}
			if err != nil {
				return nil, err
			}
			principles = loaded
		}
		res, err := a.Analyze(ctx, url, principles)
		if err != nil {
			return nil, err
		}
		return res.Report, nil
	}
}
