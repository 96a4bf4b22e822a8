package capture

import (
	"github.com/abdul-hamid-achik/restbench/packages/assertions"
	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
)

type Extractor struct {
	eval *assertions.Evaluator
}

func NewExtractor(resp *ingest.Response, req *inherit.EffectiveRequest) *Extractor {
	return &Extractor{eval: assertions.NewEvaluator(resp, assertions.WithRequest(req))}
}

// Extract returns the value of c's subject. Scalars come back as strings,
// numbers and bools; objects and arrays as decoded JSON.
func (e *Extractor) Extract(c collection.Capture) (any, bool) {
	v, err := e.eval.Subject(c.Subject)
	if err != nil || v.IsNull() {
		return nil, false
	}
	return v.Interface(), true
}

func ExtractAll(resp *ingest.Response, req *inherit.EffectiveRequest, captures []collection.Capture) map[string]any {
	if resp == nil || len(captures) == 0 {
		return nil
	}
	extractor := NewExtractor(resp, req)
	results := make(map[string]any)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}
