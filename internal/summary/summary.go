package summary

/*
The summary is the record of what a refresh run produced. It is persisted next
to the data files so consumers can check freshness and completeness without
parsing the payloads.
*/

import (
	"fmt"
	"time"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Summary is persisted as update_info.json.
type Summary struct {
	LastUpdate   time.Time `json:"last_update"`
	TotalFiles   int       `json:"total_files"`
	SuccessFiles int       `json:"success_files"`
	TotalRecords int       `json:"total_records"`
	Files        []string  `json:"files"`
	APIStatus    string    `json:"api_status"`
}

// New builds the summary for one run. files lists every configured filename in
// order, regardless of which fetches succeeded. The API status is "success"
// whenever at least one fetch succeeded; only an all-failure run is "failed".
func New(now time.Time, files []string, successFiles int, totalRecords int) *Summary {
	status := StatusFailed
	if successFiles > 0 {
		status = StatusSuccess
	}

	return &Summary{
		LastUpdate:   now.UTC(),
		TotalFiles:   len(files),
		SuccessFiles: successFiles,
		TotalRecords: totalRecords,
		Files:        files,
		APIStatus:    status,
	}
}

// Text renders the 3-line plain text report persisted as last_update.txt.
func (s *Summary) Text() string {
	return fmt.Sprintf(
		"Last updated: %s UTC\nSuccess: %d/%d files\nTotal records: %d\n",
		s.LastUpdate.UTC().Format("2006-01-02 15:04:05"),
		s.SuccessFiles,
		s.TotalFiles,
		s.TotalRecords,
	)
}
