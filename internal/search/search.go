package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	SourceDB  string `json:"db"`
	Snippet   string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Status string // empty = all partitions
	Limit  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Record is the data we index for a submission.
type Record struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	SourceDB  string `json:"db"`
	IDType    string `json:"idType"`
}

const defaultLimit = 20

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}
