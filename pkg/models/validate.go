package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the query against its declared constraints plus the
// invariants the struct tags cannot express.
func (q *SearchQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid search query: %w", err)
	}
	for _, kw := range q.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("invalid search query: blank keyword")
		}
	}
	if q.SalaryMax > 0 && q.SalaryMin > q.SalaryMax {
		return fmt.Errorf("invalid search query: salary_min %d exceeds salary_max %d", q.SalaryMin, q.SalaryMax)
	}
	return nil
}

// Normalized returns a copy with defaults applied for optional fields.
func (q SearchQuery) Normalized() SearchQuery {
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if q.MaxPages <= 0 {
		q.MaxPages = DefaultMaxPages
	}
	return q
}
