package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// Sentinel source ids used by synthesized results.
const (
	SourceParseError  = "SRC_PARSE_ERROR"
	SourceFormatError = "SRC_FORMAT_ERROR"
	SourceError       = "SRC_ERROR"
	SourceFallback    = "SRC_FALLBACK"
)

// OutcomeKind tells how a document was obtained from raw completion text.
type OutcomeKind int

const (
	// OutcomeParsed means the text (minus an optional code fence) was valid JSON.
	OutcomeParsed OutcomeKind = iota
	// OutcomeRepaired means the document was recovered by substring
	// extraction, trailing-comma removal, span scanning or brace completion.
	OutcomeRepaired
	// OutcomeFallback means nothing usable was found and a synthesized
	// document was returned instead.
	OutcomeFallback
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeParsed:
		return "parsed"
	case OutcomeRepaired:
		return "repaired"
	default:
		return "fallback"
	}
}

// Outcome is the result of extraction. Document is never nil.
type Outcome struct {
	Kind     OutcomeKind
	Document domain.Document
}

// resultKeys are the fields a document must carry to count as an analysis.
var resultKeys = []string{"verdict", "confidence_pct", "summary", "key_drivers", "sources"}

// Extract maps raw completion text to the best analysis document it can
// recover. It never fails: when every repair attempt is exhausted the
// outcome carries a SRC_PARSE_ERROR fallback document.
func Extract(raw string) Outcome {
	doc, kind, partial := cascade(raw, resultKeys)
	if doc != nil {
		return Outcome{Kind: kind, Document: doc}
	}
	return Outcome{Kind: OutcomeFallback, Document: parseFallback(raw, partial)}
}

// ExtractArtifact runs the same repair cascade without requiring any keys and
// converts the document to a stage artifact. An unparseable response yields
// an empty artifact.
func ExtractArtifact(raw string) (domain.StageArtifact, OutcomeKind) {
	doc, kind, _ := cascade(raw, nil)
	if doc == nil {
		return domain.StageArtifact{}, OutcomeFallback
	}
	return toArtifact(doc), kind
}

// cascade tries each repair step in order and returns the first object that
// carries every required key. partial is the first object that parsed but
// lacked keys.
func cascade(raw string, required []string) (doc domain.Document, kind OutcomeKind, partial domain.Document) {
	text := stripFence(strings.TrimSpace(raw))

	seen := make(map[string]bool)
	try := func(candidate string) bool {
		if seen[candidate] {
			return false
		}
		seen[candidate] = true
		d, ok := parseObject(candidate)
		if !ok {
			return false
		}
		if hasKeys(d, required) {
			doc = d
			return true
		}
		if partial == nil {
			partial = d
		}
		return false
	}

	if try(text) {
		return doc, OutcomeParsed, nil
	}

	first, last := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		sub := text[first : last+1]
		if try(sub) || try(stripTrailingCommas(sub)) {
			return doc, OutcomeRepaired, nil
		}
	} else if try(stripTrailingCommas(text)) {
		return doc, OutcomeRepaired, nil
	}

	for _, span := range objectSpans(text) {
		if try(span) || try(stripTrailingCommas(span)) {
			return doc, OutcomeRepaired, nil
		}
	}

	for _, candidate := range completions(text) {
		if try(candidate) || try(stripTrailingCommas(candidate)) {
			return doc, OutcomeRepaired, nil
		}
	}

	// Retry from each later brace in case an unclosed one in leading prose
	// kept the answer from ever closing at the top level.
	braces := laterBraces(text)
	for _, at := range braces {
		if span, ok := spanAt(text, at); ok {
			if try(span) || try(stripTrailingCommas(span)) {
				return doc, OutcomeRepaired, nil
			}
		}
	}
	for _, at := range braces {
		for _, candidate := range completions(text[at:]) {
			if try(candidate) || try(stripTrailingCommas(candidate)) {
				return doc, OutcomeRepaired, nil
			}
		}
	}

	return nil, OutcomeFallback, partial
}

// stripFence removes one leading ``` or ```json line and one trailing ```.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

func parseObject(s string) (domain.Document, bool) {
	if s == "" {
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil || doc == nil {
		return nil, false
	}
	return domain.Document(doc), true
}

func hasKeys(doc domain.Document, keys []string) bool {
	return len(missingKeys(doc, keys)) == 0
}

func missingKeys(doc domain.Document, keys []string) []string {
	var missing []string
	for _, k := range keys {
		if _, ok := doc[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func parseFallback(raw string, partial domain.Document) domain.Document {
	excerpt := truncate(raw, 300)
	summary := "Failed to parse the model response as JSON. Raw response (first 300 chars): " + excerpt
	if partial != nil {
		summary = fmt.Sprintf("Model response was missing required fields (%s). Raw response (first 300 chars): %s",
			strings.Join(missingKeys(partial, resultKeys), ", "), excerpt)
	}
	return sentinelDocument(sentinel{
		summary:     summary,
		driver:      "Model response could not be parsed",
		uncertainty: "Parsing of the model response failed",
		sourceID:    SourceParseError,
		sourceTitle: "Parse Error",
	})
}

type sentinel struct {
	summary     string
	driver      string
	uncertainty string
	sourceID    string
	sourceTitle string
	sourceURL   string
}

// sentinelDocument builds an UNCERTAIN document citing a single sentinel
// source. It always passes validation.
func sentinelDocument(s sentinel) domain.Document {
	return domain.Document{
		"verdict":        string(domain.VerdictUncertain),
		"confidence_pct": 50.0,
		"summary":        s.summary,
		"key_drivers": []any{
			map[string]any{"text": s.driver, "source_ids": []any{s.sourceID}},
		},
		"uncertainty_factors": []any{s.uncertainty},
		"sources": []any{
			map[string]any{
				"id":        s.sourceID,
				"title":     s.sourceTitle,
				"url":       s.sourceURL,
				"type":      string(domain.SourceNews),
				"sentiment": string(domain.SentimentNeutral),
			},
		},
	}
}

// toArtifact keeps list and string values. Non-string list items are
// rendered as compact JSON.
func toArtifact(doc domain.Document) domain.StageArtifact {
	out := make(domain.StageArtifact, len(doc))
	for key, value := range doc {
		switch v := value.(type) {
		case string:
			out[key] = []string{v}
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, itemString(item))
			}
			out[key] = items
		}
	}
	return out
}

func itemString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
