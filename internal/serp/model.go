package serp

// DefaultLanguage is used when a query does not name a language.
const DefaultLanguage = "it"

// Query is a single name lookup. It lives for one call only.
type Query struct {
	Name     string
	Language string
}

// Result is one organic search hit.
type Result struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Response echoes the query that produced it alongside the ordered results.
type Response struct {
	Input    string   `json:"input"`
	Language string   `json:"language"`
	Results  []Result `json:"results"`
}

// NewResponse wraps results for q. Results keep the given order and are
// never nil, so they always encode as a JSON array.
func NewResponse(q Query, results []Result) *Response {
	if results == nil {
		results = []Result{}
	}
	return &Response{
		Input:    q.Name,
		Language: q.Language,
		Results:  results,
	}
}
