package output

import (
	"encoding/json"
	"os"

	"github.com/cvscout/cvscout/pkg/models"
)

// SaveJSON writes an indented JSON export of the candidate records to filepath.
func SaveJSON(records []models.CandidateRecord, filepath string) error {
	content, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, content, 0644)
}
