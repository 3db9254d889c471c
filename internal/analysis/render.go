package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// Render projects a validated result into markdown. The generation
// timestamp is the result's own analysis_timestamp when set, otherwise now.
func Render(res domain.AnalysisResult, now time.Time) string {
	ts := res.AnalysisTimestamp
	if ts == "" {
		ts = now.UTC().Format(time.RFC3339)
	}

	lines := []string{
		fmt.Sprintf("### Verdict: **%s**", res.Verdict),
		fmt.Sprintf("- Confidence: **%.1f%%**", res.ConfidencePct),
		"- Generated at: " + ts,
		"",
		"#### Summary",
		strings.TrimSpace(res.Summary),
		"",
		"#### Key Drivers",
	}

	if len(res.KeyDrivers) == 0 {
		lines = append(lines, "- No salient drivers found.")
	}
	limit := 3
	if res.Mode() == string(domain.DepthDeep) {
		limit = 5
	}
	for i, d := range res.KeyDrivers {
		if i == limit {
			break
		}
		refs := "n/a"
		if len(d.SourceIDs) > 0 {
			refs = strings.Join(d.SourceIDs, ", ")
		}
		lines = append(lines, fmt.Sprintf("- %s _(sources: %s)_", d.Text, refs))
	}

	lines = append(lines, "", "#### Risks / Uncertainty")
	if len(res.UncertaintyFactors) == 0 {
		lines = append(lines, "- Uncertainty not specified.")
	}
	for _, item := range res.UncertaintyFactors {
		lines = append(lines, "- "+item)
	}

	if len(res.NextSteps) > 0 {
		lines = append(lines, "", "#### Next Steps")
		for _, step := range res.NextSteps {
			lines = append(lines, "- "+step)
		}
	}

	lines = append(lines, "", "#### Sources")
	for _, typ := range domain.SourceTypeOrder {
		var group []string
		for _, s := range res.Sources {
			if s.Type == typ {
				group = append(group, fmt.Sprintf("  - [%s](%s) (%s)", s.Title, s.URL, s.Sentiment))
			}
		}
		if len(group) == 0 {
			continue
		}
		lines = append(lines, "- **"+strings.ToUpper(string(typ))+"**")
		lines = append(lines, group...)
	}

	return strings.Join(lines, "\n")
}
