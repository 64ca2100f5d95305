package dto

// SyncPricesRequest selects the agreements of a price sync run.
// An empty list syncs every agreement of the configured products.
type SyncPricesRequest struct {
	AgreementIDs []string `json:"agreement_ids"`
	DryRun       bool     `json:"dry_run"`
	Allow3YC     bool     `json:"allow_3yc"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
