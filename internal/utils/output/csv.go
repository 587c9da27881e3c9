package output

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/cvscout/cvscout/pkg/models"
)

var csvHeader = []string{
	"rank", "external_id", "name", "profile_url", "location",
	"current_job_title", "salary", "match_percentage", "skills",
	"last_viewed", "profile_updated", "summary",
}

// SaveCSV writes candidate records to a CSV file. Returns an error on failure.
func SaveCSV(records []models.CandidateRecord, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, rec := range records {
		match := ""
		if rec.MatchPercentage != nil {
			match = strconv.Itoa(*rec.MatchPercentage)
		}
		row := []string{
			strconv.Itoa(rec.SearchRank),
			rec.ExternalID,
			rec.Name,
			rec.ProfileURL,
			rec.Location,
			rec.CurrentJobTitle,
			rec.SalaryText,
			match,
			strings.Join(rec.Skills, "; "),
			rec.LastViewedAt,
			rec.ProfileUpdatedAt,
			rec.Summary,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}
