package core

// QueryHit is one ranked match from the evidence index.
type QueryHit struct {
	EvidenceID int64   `json:"evidence_id"`
	SourceType string  `json:"source_type"`
	SourceRef  string  `json:"source_ref"`
	StartMs    int64   `json:"start_ms"`
	EndMs      *int64  `json:"end_ms"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
	Citation   string  `json:"citation"`
}

// QueryResult is the full response for one query.
type QueryResult struct {
	AssetID string     `json:"asset_id"`
	Query   string     `json:"query"`
	Hits    []QueryHit `json:"hits"`
	Total   int        `json:"total"`
}

// EvidenceItem is one hit resolved back to its full source record.
type EvidenceItem struct {
	SourceType string  `json:"source_type"`
	SourceRef  string  `json:"source_ref"`
	StartMs    int64   `json:"start_ms"`
	EndMs      *int64  `json:"end_ms"`
	Text       string  `json:"text"`
	Citation   string  `json:"citation"`
	Score      float64 `json:"score"`
}

// EvidencePack is the assembled context block for a query.
type EvidencePack struct {
	AssetID string         `json:"asset_id"`
	Query   string         `json:"query"`
	Items   []EvidenceItem `json:"items"`
	Errors  []string       `json:"errors,omitempty"`
}
