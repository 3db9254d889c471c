package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// Request bundles the immutable inputs of one analysis.
type Request struct {
	Market      domain.MarketSnapshot
	Context     domain.EvidenceContext
	Signals     []domain.SignalRecord
	Depth       domain.Depth
	Perspective domain.Perspective
}

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Messages converts the prompt into chat messages.
func (p Prompt) Messages() []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: p.System},
		{Role: domain.RoleUser, Content: p.User},
	}
}

const (
	systemQuick = "You are Polyseek, a rigorous prediction market analyst. " +
		"Analyze the market data, comments and external signals you are given, follow the instructions exactly and cite source IDs. " +
		"Respond with JSON only, no prose, no code fences."
	systemDeep = "You are Polyseek, a rigorous prediction market analyst running a multi-stage deep analysis. " +
		"Analyze the market data, comments and external signals you are given, follow the instructions of the current stage exactly and cite source IDs. " +
		"Respond with JSON only, no prose, no code fences."

	commentExcerpt  = 200
	critiqueSignals = 10
	critiqueTitle   = 60
)

const resultSchema = `Respond with a JSON object containing EXACTLY these fields:
- verdict: "YES" | "NO" | "UNCERTAIN" (required)
- confidence_pct: number between 0 and 100 (required)
- summary: string describing the analysis (required)
- key_drivers: array of objects, each with "text" (string) and "source_ids" (array of strings), at most %d items (required)
- uncertainty_factors: array of strings (required)
- next_steps: optional array of strings
- sources: array of objects, each with "id" (string), "title" (string), "url" (string), "type" ("market"|"comment"|"sns"|"news"), "sentiment" ("pro"|"con"|"neutral") and optional "timestamp" (string) (required)

CRITICAL REQUIREMENTS:
- Return one JSON object carrying ALL required fields; never a partial or differently shaped response
- key_drivers items are objects with "text" and "source_ids", never bare strings
- sources[].type is exactly one of "market", "comment", "sns" or "news"
- Include at least one source
- If the evidence is insufficient the verdict MUST be UNCERTAIN
`

const resultExample = `Example (follow this structure exactly):
{
  "verdict": "UNCERTAIN",
  "confidence_pct": 50.0,
  "summary": "Concise analysis summary",
  "key_drivers": [
    {"text": "Driver description", "source_ids": ["SRC1", "SRC2"]}
  ],
  "uncertainty_factors": ["Factor 1"],
  "next_steps": ["Optional step 1"],
  "sources": [
    {"id": "SRC1", "title": "Source title", "url": "https://...", "type": "market", "sentiment": "neutral"}
  ]
}
`

// BuildQuick builds the single-call prompt of quick mode.
func BuildQuick(req Request) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, resultSchema, 3)
	b.WriteString("\n")
	writeMarket(&b, req.Market, req.Context, true)
	b.WriteString("\nOperating mode:\n")
	fmt.Fprintf(&b, "- Depth: %s\n", req.Depth)
	fmt.Fprintf(&b, "- Perspective: %s\n", req.Perspective)
	b.WriteString("\nPlatform comments:\n")
	writeComments(&b, req.Context.Comments)
	b.WriteString("\nExternal signals:\n")
	writeSignals(&b, req.Signals)
	b.WriteString(`
Instructions:
1. Weigh BOTH pro and con evidence. The devils_advocate perspective requires at least two counter arguments.
2. Use the current YES price as the prior probability and adjust it with likelihood-style reasoning.
3. Cite source IDs in key_drivers, using the IDs provided or synthetic ones for generated sources.
4. Always include at least one uncertainty factor.
5. Format key_drivers as [{"text": "...", "source_ids": ["SRC1"]}].
6. Format sources as [{"id": "SRC1", "title": "...", "url": "...", "type": "market", "sentiment": "neutral"}].

`)
	b.WriteString(resultExample)
	b.WriteString("\nReturn the complete JSON object with verdict, confidence_pct, summary, key_drivers, uncertainty_factors and sources.\n")
	return Prompt{System: systemQuick, User: b.String()}
}

// BuildPlan builds the first deep-mode stage prompt.
func BuildPlan(req Request) Prompt {
	var b strings.Builder
	b.WriteString("Stage 1 of 4: plan a deep analysis of this prediction market.\n\n")
	writeMarket(&b, req.Market, req.Context, false)
	fmt.Fprintf(&b, "- External signals: %d external signals available\n", len(req.Signals))
	b.WriteString(`
Respond with a JSON object of this shape:
{
  "analysis_plan": ["Step 1: Analyze market fundamentals", "Step 2: Evaluate external evidence", "Step 3: Assess uncertainty factors"],
  "key_questions": ["What are the main factors driving this market?", "What evidence supports YES vs NO?"],
  "information_gaps": ["Missing data about X", "Need more information about Y"]
}
`)
	return Prompt{System: systemDeep, User: b.String()}
}

// BuildCritique builds the second deep-mode stage prompt from the plan.
func BuildCritique(req Request, plan domain.StageArtifact) Prompt {
	var b strings.Builder
	b.WriteString("Stage 2 of 4: critically evaluate the analysis plan for this prediction market.\n\n")
	fmt.Fprintf(&b, "Market: %s\n", req.Market.Title)
	b.WriteString("Current plan:\n")
	b.WriteString(indentJSON(plan))
	b.WriteString("\n\nAvailable signals:\n")
	if len(req.Signals) == 0 {
		b.WriteString("No external signals available.\n")
	}
	for i, s := range req.Signals {
		if i == critiqueSignals {
			break
		}
		fmt.Fprintf(&b, "- %s:%s [%s] %s\n", s.Kind, s.Provider, s.Sentiment, truncate(s.Title, critiqueTitle))
	}
	b.WriteString(`
Identify:
1. Gaps in the analysis
2. Missing information that should be gathered
3. Potential biases or assumptions
4. Areas that need deeper investigation

Respond with a JSON object of this shape:
{
  "gaps": ["Gap 1: Missing information about X"],
  "follow_up_queries": ["Additional search query 1"],
  "biases": ["Potential bias 1"],
  "recommendations": ["Recommendation 1"]
}
`)
	return Prompt{System: systemDeep, User: b.String()}
}

// BuildFinal builds the last deep-mode stage prompt from the plan, the
// critique and the consolidated evidence.
func BuildFinal(req Request, plan, critique domain.StageArtifact) Prompt {
	var b strings.Builder
	b.WriteString("Stage 4 of 4: perform the FINAL comprehensive analysis of this prediction market.\n")
	b.WriteString("An analysis plan was created, critically evaluated, and the evidence was consolidated.\n\n")
	writeMarket(&b, req.Market, req.Context, true)
	b.WriteString("\nAnalysis plan:\n")
	b.WriteString(indentJSON(plan.List("analysis_plan")))
	b.WriteString("\n\nCritique findings:\n")
	b.WriteString(indentJSON(map[string][]string{
		"gaps":            critique.List("gaps"),
		"recommendations": critique.List("recommendations"),
	}))
	b.WriteString("\n\nPlatform comments:\n")
	writeComments(&b, req.Context.Comments)
	b.WriteString("\nExternal signals (including follow-up research):\n")
	writeSignals(&b, req.Signals)
	b.WriteString("\nOperating mode:\n")
	b.WriteString("- Depth: deep\n")
	fmt.Fprintf(&b, "- Perspective: %s\n\n", req.Perspective)
	b.WriteString(`Consider the plan, the critique findings, all available evidence, both pro and con arguments, and the uncertainty factors.
This is a DEEP analysis: be thorough and cite source IDs in key_drivers.

`)
	fmt.Fprintf(&b, resultSchema, 5)
	b.WriteString("\n")
	b.WriteString(resultExample)
	return Prompt{System: systemDeep, User: b.String()}
}

func writeMarket(b *strings.Builder, m domain.MarketSnapshot, ctx domain.EvidenceContext, full bool) {
	rules := ctx.Rules
	if rules == "" {
		rules = m.Rules
	}
	if rules == "" {
		rules = "N/A"
	}
	b.WriteString("Market:\n")
	fmt.Fprintf(b, "- Title: %s\n", m.Title)
	fmt.Fprintf(b, "- Category: %s\n", orNA(m.Category))
	fmt.Fprintf(b, "- Deadline UTC: %s\n", formatTime(m.Deadline))
	fmt.Fprintf(b, "- Prices: YES=%s NO=%s\n", formatFloat(m.Prices.Yes), formatFloat(m.Prices.No))
	if full {
		fmt.Fprintf(b, "- Liquidity: %s\n", formatFloat(m.Liquidity))
		fmt.Fprintf(b, "- Volume 24h: %s\n", formatFloat(m.Volume24h))
	}
	fmt.Fprintf(b, "- Resolution rules: %s\n", rules)
}

func writeComments(b *strings.Builder, comments []domain.Comment) {
	if len(comments) == 0 {
		b.WriteString("No on-platform discussion available.\n")
		return
	}
	for _, c := range comments {
		fmt.Fprintf(b, "- (%s) [%s] %s\n", c.Sentiment, c.ID, truncate(c.Body, commentExcerpt))
	}
}

func writeSignals(b *strings.Builder, signals []domain.SignalRecord) {
	if len(signals) == 0 {
		b.WriteString("No external signals were retrieved.\n")
		return
	}
	for _, s := range signals {
		fmt.Fprintf(b, "- %s:%s [%s] (%s) %s\n", s.Kind, s.Provider, s.Sentiment, s.URL, s.Title)
	}
}

func indentJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

func formatFloat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.UTC().Format(time.RFC3339)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
