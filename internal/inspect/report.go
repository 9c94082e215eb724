package inspect

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Markdown renders the summary report.
func Markdown(p Profile) string {
	var b strings.Builder
	b.WriteString("# Dataset Summary Report\n\n")
	fmt.Fprintf(&b, "- **Shape:** %d rows × %d columns\n", p.Rows, p.Columns)
	if p.Locations > 0 {
		fmt.Fprintf(&b, "- **Locations:** %d\n", p.Locations)
	}
	b.WriteString("\n")

	b.WriteString("## Columns\n\n")
	b.WriteString("| Column | Type | Missing | Missing (%) | Distinct | Min | Max | Mean |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---:|---:|\n")
	for _, f := range p.Fields {
		fmt.Fprintf(&b, "| %s | %s | %d | %.2f | %d | %s | %s | %s |\n",
			escape(f.Name), f.Type, f.Missing, f.MissingPct, f.Distinct,
			optional(f.Min), optional(f.Max), optional(f.Mean))
	}
	b.WriteString("\n")

	if p.DateColumn != "" && !p.From.IsZero() {
		b.WriteString("## Date Range\n\n")
		fmt.Fprintf(&b, "- `%s`: %s → %s\n", p.DateColumn,
			p.From.Format(time.RFC3339), p.To.Format(time.RFC3339))
	}
	return b.String()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
