package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return formatCSV(r)
	case "", "text":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatJSON(r *Result) (string, error) {
	doc := struct {
		Images      []Item  `json:"images"`
		Summary     Summary `json:"summary"`
		DurationMS  int64   `json:"duration_ms"`
		Interrupted bool    `json:"interrupted,omitempty"`
	}{
		Images:      r.Items,
		Summary:     r.Summary(),
		DurationMS:  r.Duration.Milliseconds(),
		Interrupted: r.Interrupted,
	}
	if doc.Images == nil {
		doc.Images = []Item{}
	}
	bts, err := json.MarshalIndent(doc, "", "  ")
	return string(bts), err
}

func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	rows := [][]string{{"file", "status", "payload", "code_type", "content_kind", "error_kind", "error", "duration_ms"}}
	for _, it := range r.Items {
		o := it.Outcome
		status := o.Status.String()
		errText := o.ErrorReason
		if it.Err != "" {
			status = "skipped"
			errText = it.Err
		}
		rows = append(rows, []string{
			it.File, status, o.Payload, o.CodeType, o.ContentKind, o.ErrorKind, errText,
			strconv.FormatInt(o.DurationMS, 10),
		})
	}
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

func formatText(r *Result) string {
	var output strings.Builder
	for i, it := range r.Items {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", it.File))
		if it.Err != "" {
			output.WriteString(fmt.Sprintf("skipped: %s\n", it.Err))
			continue
		}
		o := it.Outcome
		switch {
		case o.Payload != "":
			output.WriteString(fmt.Sprintf("%s [%s/%s]\n", o.Payload, o.CodeType, o.ContentKind))
		case o.Notice != nil:
			output.WriteString(fmt.Sprintf("%s: %s\n", o.Status, o.Notice.String()))
		default:
			output.WriteString(o.Status.String() + "\n")
		}
	}
	return output.String()
}
