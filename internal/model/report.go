package model

import "time"

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Fetched         int       `json:"fetched"`
	Skipped         int       `json:"skipped"`
	Tombstoned      int       `json:"tombstoned"`
	Ingested        int       `json:"ingested"`
	Failed          int       `json:"failed"`
	ItemsCreated    int       `json:"items_created"`
	ItemsSuperseded int       `json:"items_superseded"`
	ItemsDiscarded  int       `json:"items_discarded"`
	Watermark       time.Time `json:"watermark"`
}
