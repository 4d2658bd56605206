package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/ranking"
)

// Formats accepted by Output
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// JSONTo writes data as indented JSON to the given writer
func JSONTo(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// JSONLinesTo writes each element of a slice as one compact JSON line, and
// anything else as a single line
func JSONLinesTo(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	items, ok := rows(data)
	if !ok {
		return encoder.Encode(data)
	}
	for _, item := range items {
		if err := encoder.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func rows(data interface{}) ([]interface{}, bool) {
	var items []interface{}
	switch v := data.(type) {
	case []database.DuplicateLink:
		for _, x := range v {
			items = append(items, x)
		}
	case []database.FeedbackConfig:
		for _, x := range v {
			items = append(items, x)
		}
	case []database.KeywordWeight:
		for _, x := range v {
			items = append(items, x)
		}
	case []database.PipelineRun:
		for _, x := range v {
			items = append(items, x)
		}
	case *ranking.BatchResult:
		for _, x := range v.Results {
			items = append(items, x)
		}
	default:
		return nil, false
	}
	return items, true
}

// Output writes data to stdout in the specified format
func Output(format string, data interface{}) error {
	return OutputTo(os.Stdout, format, data)
}

// OutputTo writes data to w in the specified format
func OutputTo(w io.Writer, format string, data interface{}) error {
	switch format {
	case FormatJSON:
		return JSONTo(w, data)
	case FormatJSONL:
		return JSONLinesTo(w, data)
	case FormatTable, "":
		return TableTo(w, data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
