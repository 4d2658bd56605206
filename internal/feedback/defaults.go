package feedback

import (
	"strings"

	"github.com/vijay-prabhu/jobrank/internal/database"
)

type polarity struct {
	feedbackType database.FeedbackType
	weight       float64
}

// defaultPolarities maps well-known board columns to their feedback.
// Keys are lowercase.
var defaultPolarities = map[string]polarity{
	"for application":     {database.FeedbackPositive, 1.0},
	"applied":             {database.FeedbackPositive, 0.8},
	"interview":           {database.FeedbackPositive, 1.0},
	"offer":               {database.FeedbackPositive, 1.0},
	"rejected by company": {database.FeedbackNeutral, 0},
	"rejected by me":      {database.FeedbackNegative, 1.0},
	"not interested":      {database.FeedbackNegative, 0.8},
	"to apply":            {database.FeedbackNeutral, 0},
	"new":                 {database.FeedbackNeutral, 0},
}

// DefaultPolarity returns the feedback type and weight for a column name.
// Unknown columns are neutral.
func DefaultPolarity(columnName string) (database.FeedbackType, float64) {
	if p, ok := defaultPolarities[strings.ToLower(strings.TrimSpace(columnName))]; ok {
		return p.feedbackType, p.weight
	}
	return database.FeedbackNeutral, 0
}
