package serp

import "context"

const placeholderURL = "https://example.com"

// Placeholder stands in for a real search backend. It ignores the query
// and always returns the same two results without any network call.
type Placeholder struct{}

func (Placeholder) Name() string { return ProviderPlaceholder }

func (Placeholder) Search(_ context.Context, _ Query) ([]Result, error) {
	return []Result{
		{Title: "Fake result 1", URL: placeholderURL},
		{Title: "Fake result 2", URL: placeholderURL},
	}, nil
}
