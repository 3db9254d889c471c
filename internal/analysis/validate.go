package analysis

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const maxSources = 10

// Validator turns an extracted document into a strict AnalysisResult.
type Validator struct {
	validate *validator.Validate
}

// NewValidator constructs a Validator whose field errors are reported with
// their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate normalizes doc and enforces the result invariants. Any violation
// is returned as a *domain.SchemaError.
func (v *Validator) Validate(doc domain.Document) (domain.AnalysisResult, error) {
	var res domain.AnalysisResult

	verdict, err := requiredString(doc, "verdict")
	if err != nil {
		return res, err
	}
	res.Verdict = domain.Verdict(strings.ToUpper(strings.TrimSpace(verdict)))

	conf, err := confidence(doc["confidence_pct"])
	if err != nil {
		return res, err
	}
	res.ConfidencePct = conf

	if res.Summary, err = requiredString(doc, "summary"); err != nil {
		return res, err
	}
	if res.KeyDrivers, err = drivers(doc["key_drivers"]); err != nil {
		return res, err
	}
	if res.UncertaintyFactors, err = stringList("uncertainty_factors", doc["uncertainty_factors"]); err != nil {
		return res, err
	}
	if res.UncertaintyFactors == nil {
		res.UncertaintyFactors = []string{}
	}
	if raw, ok := doc["next_steps"]; ok && raw != nil {
		if res.NextSteps, err = stringList("next_steps", raw); err != nil {
			return res, err
		}
	}
	if res.Sources, err = sources(doc["sources"]); err != nil {
		return res, err
	}
	if len(res.Sources) == 0 {
		res.Sources = []domain.Source{{
			ID:        SourceFallback,
			Title:     "Analysis based on market data",
			URL:       "",
			Type:      domain.SourceMarket,
			Sentiment: domain.SentimentNeutral,
		}}
	}
	if len(res.Sources) > maxSources {
		res.Sources = res.Sources[:maxSources]
	}

	if ts, ok := doc["analysis_timestamp"].(string); ok {
		res.AnalysisTimestamp = ts
	}
	if md, ok := doc["metadata"].(map[string]any); ok {
		res.Metadata = make(map[string]any, len(md))
		for k, val := range md {
			res.Metadata[k] = val
		}
	}

	if err := v.validate.Struct(res); err != nil {
		return domain.AnalysisResult{}, schemaErrorFrom(err)
	}

	res.ConfidencePct = math.Round(res.ConfidencePct*10) / 10
	return res, nil
}

func schemaErrorFrom(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "AnalysisResult.")
		reason := fmt.Sprintf("failed %q", fe.Tag())
		if fe.Param() != "" {
			reason = fmt.Sprintf("failed %q (%s)", fe.Tag(), fe.Param())
		}
		return &domain.SchemaError{Field: field, Reason: fmt.Sprintf("%s: got %v", reason, fe.Value())}
	}
	return &domain.SchemaError{Field: "result", Reason: err.Error()}
}

func requiredString(doc domain.Document, key string) (string, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return "", &domain.SchemaError{Field: key, Reason: "required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &domain.SchemaError{Field: key, Reason: fmt.Sprintf("expected string, got %T", raw)}
	}
	return s, nil
}

// confidence accepts a JSON number or a numeric string.
func confidence(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err != nil {
			return 0, &domain.SchemaError{Field: "confidence_pct", Reason: fmt.Sprintf("not a number: %q", v)}
		}
		return f, nil
	case nil:
		return 0, &domain.SchemaError{Field: "confidence_pct", Reason: "required"}
	default:
		return 0, &domain.SchemaError{Field: "confidence_pct", Reason: fmt.Sprintf("expected number, got %T", raw)}
	}
}

func stringList(field string, raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &domain.SchemaError{Field: field, Reason: fmt.Sprintf("expected list, got %T", raw)}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, &domain.SchemaError{Field: fmt.Sprintf("%s[%d]", field, i), Reason: fmt.Sprintf("expected string, got %T", item)}
		}
		out = append(out, s)
	}
	return out, nil
}

// drivers accepts objects {text, source_ids} and bare strings.
func drivers(raw any) ([]domain.Driver, error) {
	if raw == nil {
		return []domain.Driver{}, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &domain.SchemaError{Field: "key_drivers", Reason: fmt.Sprintf("expected list, got %T", raw)}
	}
	out := make([]domain.Driver, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("key_drivers[%d]", i)
		switch d := item.(type) {
		case string:
			out = append(out, domain.Driver{Text: d, SourceIDs: []string{}})
		case map[string]any:
			text, err := requiredString(domain.Document(d), "text")
			if err != nil {
				return nil, &domain.SchemaError{Field: field + ".text", Reason: err.(*domain.SchemaError).Reason}
			}
			ids, err := stringList(field+".source_ids", d["source_ids"])
			if err != nil {
				return nil, err
			}
			out = append(out, domain.Driver{Text: text, SourceIDs: dedupe(ids)})
		default:
			return nil, &domain.SchemaError{Field: field, Reason: fmt.Sprintf("expected object, got %T", item)}
		}
	}
	return out, nil
}

func sources(raw any) ([]domain.Source, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &domain.SchemaError{Field: "sources", Reason: fmt.Sprintf("expected list, got %T", raw)}
	}
	out := make([]domain.Source, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		field := fmt.Sprintf("sources[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &domain.SchemaError{Field: field, Reason: fmt.Sprintf("expected object, got %T", item)}
		}
		id := scalarString(m["id"])
		if id == "" {
			return nil, &domain.SchemaError{Field: field + ".id", Reason: "required"}
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		typ, _ := m["type"].(string)
		src := domain.Source{
			ID:        id,
			Title:     scalarString(m["title"]),
			URL:       scalarString(m["url"]),
			Type:      domain.SourceType(typ),
			Sentiment: sentiment(m["sentiment"]),
		}
		if ts, ok := m["timestamp"].(string); ok {
			src.Timestamp = ts
		}
		out = append(out, src)
	}
	return out, nil
}

// sentiment lowercases the tag and maps anything unknown to neutral.
func sentiment(raw any) domain.Sentiment {
	s, _ := raw.(string)
	switch domain.Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case domain.SentimentPro:
		return domain.SentimentPro
	case domain.SentimentCon:
		return domain.SentimentCon
	default:
		return domain.SentimentNeutral
	}
}

func scalarString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
