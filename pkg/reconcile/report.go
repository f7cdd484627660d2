package reconcile

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"
)

// Report is the result of comparing one entity class across the stores.
type Report struct {
	EntityClass   EntityClass `json:"entity_class"`
	DocumentCount int64       `json:"document_count"`
	GraphCount    int64       `json:"graph_count"`
	Consistent    bool        `json:"consistent"`
	Detail        string      `json:"detail"`
	// Error is set when a count could not be read.
	Error              string    `json:"error,omitempty"`
	PendingDeadLetters int64     `json:"pending_dead_letters"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// Drift is the number of entities the graph store is missing. It is negative
// when the graph holds more than the document store.
func (r Report) Drift() int64 {
	return r.DocumentCount - r.GraphCount
}

func (r Report) status() string {
	switch {
	case r.Error != "":
		return "error: " + r.Error
	case r.Consistent:
		return "consistent"
	default:
		return fmt.Sprintf("drift %+d", r.Drift())
	}
}

// Render writes the report as one line.
func (r Report) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s: %s (%s)\n", r.EntityClass, r.status(), r.Detail)
	return err
}

// RenderReports writes reports as an aligned table.
func RenderReports(w io.Writer, reports []Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tDOCUMENT\tGRAPH\tDLQ\tSTATUS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.EntityClass, count(r, r.DocumentCount), count(r, r.GraphCount), r.PendingDeadLetters, r.status())
	}
	return tw.Flush()
}

func count(r Report, n int64) string {
	if r.Error != "" {
		return "-"
	}
	return strconv.FormatInt(n, 10)
}
