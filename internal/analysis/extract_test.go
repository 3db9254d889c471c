package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const validJSON = `{"verdict":"YES","confidence_pct":60,"summary":"s","key_drivers":[],"sources":[]}`

func TestExtractParsesPlainJSON(t *testing.T) {
	out := Extract(validJSON)
	require.Equal(t, OutcomeParsed, out.Kind)
	require.Equal(t, "YES", out.Document["verdict"])
	require.Equal(t, 60.0, out.Document["confidence_pct"])
}

func TestExtractStripsFence(t *testing.T) {
	plain := Extract(validJSON)
	for _, in := range []string{
		"```json\n" + validJSON + "\n```",
		"```\n" + validJSON + "\n```",
		"  ```json\n" + validJSON + "```  ",
	} {
		out := Extract(in)
		require.Equal(t, OutcomeParsed, out.Kind, in)
		require.Equal(t, plain.Document, out.Document, in)
	}
}

func TestExtractRepairsTrailingComma(t *testing.T) {
	in := `{"verdict":"YES","confidence_pct":60,"summary":"s","key_drivers":[],"sources":[],}`
	out := Extract(in)
	require.Equal(t, OutcomeRepaired, out.Kind)
	require.Equal(t, Extract(validJSON).Document, out.Document)
}

func TestExtractFindsObjectInProse(t *testing.T) {
	in := "Here is my analysis:\n" + validJSON + "\nLet me know if you need more."
	out := Extract(in)
	require.Equal(t, OutcomeRepaired, out.Kind)
	require.Equal(t, "YES", out.Document["verdict"])
}

func TestExtractScansSpans(t *testing.T) {
	in := `Draft {"note": "ignore me"} then final {"verdict":"NO","confidence_pct":30,"summary":"x","key_drivers":[],"sources":[]} done {"trailer": 1}`
	out := Extract(in)
	require.Equal(t, OutcomeRepaired, out.Kind)
	require.Equal(t, "NO", out.Document["verdict"])
}

func TestExtractCompletesTruncatedObject(t *testing.T) {
	in := `{"verdict":"UNCERTAIN","confidence_pct":45,"summary":"cut off","key_drivers":[{"text":"a","source_ids":["S1"]}],"sources":[{"id":"S1","title":"t","url":"","type":"news","sentiment":"neutral"}`
	out := Extract(in)
	require.Equal(t, OutcomeRepaired, out.Kind)
	require.Equal(t, "UNCERTAIN", out.Document["verdict"])
	require.Len(t, out.Document["sources"], 1)
}

func TestExtractCompletesOpenString(t *testing.T) {
	in := `{"verdict":"YES","confidence_pct":70,"key_drivers":[],"sources":[],"summary":"truncated mid`
	out := Extract(in)
	require.Equal(t, OutcomeRepaired, out.Kind)
	require.Equal(t, "truncated mid", out.Document["summary"])
}

func TestExtractFallback(t *testing.T) {
	in := "I cannot help with that request."
	out := Extract(in)
	require.Equal(t, OutcomeFallback, out.Kind)
	require.Equal(t, "UNCERTAIN", out.Document["verdict"])
	require.Equal(t, 50.0, out.Document["confidence_pct"])
	require.Contains(t, out.Document["summary"], in)

	res, err := NewValidator().Validate(out.Document)
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	require.Equal(t, SourceParseError, res.Sources[0].ID)
	require.Equal(t, domain.SourceNews, res.Sources[0].Type)
	require.Equal(t, []string{SourceParseError}, res.KeyDrivers[0].SourceIDs)
}

func TestExtractFallbackNamesMissingKeys(t *testing.T) {
	out := Extract(`{"verdict":"YES"}`)
	require.Equal(t, OutcomeFallback, out.Kind)
	summary := out.Document["summary"].(string)
	require.Contains(t, summary, "confidence_pct")
	require.Contains(t, summary, "sources")
}

func TestExtractFallbackTruncatesRaw(t *testing.T) {
	raw := make([]rune, 500)
	for i := range raw {
		raw[i] = 'x'
	}
	out := Extract(string(raw))
	summary := out.Document["summary"].(string)
	require.Contains(t, summary, string(raw[:300]))
	require.NotContains(t, summary, string(raw[:301]))
}

func TestExtractArtifact(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.StageArtifact
		kind OutcomeKind
	}{
		{
			name: "plan",
			raw:  `{"analysis_plan":["a","b"],"key_questions":["q"]}`,
			want: domain.StageArtifact{"analysis_plan": {"a", "b"}, "key_questions": {"q"}},
			kind: OutcomeParsed,
		},
		{
			name: "fenced with prose values",
			raw:  "```json\n{\"gaps\":[\"g1\", 2],\"note\":\"single\",\"depth\":3}\n```",
			want: domain.StageArtifact{"gaps": {"g1", "2"}, "note": {"single"}},
			kind: OutcomeParsed,
		},
		{
			name: "garbage",
			raw:  "no plan today",
			want: domain.StageArtifact{},
			kind: OutcomeFallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind := ExtractArtifact(tt.raw)
			require.Equal(t, tt.kind, kind)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestObjectSpansIgnoresBracesInStrings(t *testing.T) {
	spans := objectSpans(`say "hi" {"a":"}{"} and {"b":[1,{"c":2}]}`)
	require.Equal(t, []string{`{"a":"}{"}`, `{"b":[1,{"c":2}]}`}, spans)
}

func TestCompletions(t *testing.T) {
	require.Nil(t, completions(`{"a":1}`))
	require.Equal(t, []string{`{"a":[1,{"b":2}]}`, `{"a":[1,{"b":2}}]`}, completions(`{"a":[1,{"b":2`))
	require.Equal(t, []string{`{"a":null}`}, completions(`{"a":`))
}

func TestExtractSkipsStrayBraceBeforeAnswer(t *testing.T) {
	out := Extract("My reasoning {draft is incomplete. Final answer:\n" + validJSON)
	require.Equal(t, OutcomeRepaired, out.Kind)
	require.Equal(t, "YES", out.Document["verdict"])
	require.Equal(t, "s", out.Document["summary"])
}

func TestExtractKeepsCommasInsideStrings(t *testing.T) {
	raw := `Answer: {"verdict":"YES","confidence_pct":60,"summary":"prices [a, ] rose","key_drivers":[],"sources":[],}`
	out := Extract(raw)
	require.Equal(t, OutcomeRepaired, out.Kind)
	require.Equal(t, "prices [a, ] rose", out.Document["summary"])
}

func TestExtractDropsTruncatedKey(t *testing.T) {
	raw := `{"verdict":"NO","confidence_pct":30,"summary":"s","key_drivers":[],"sources":[],"next_st`
	out := Extract(raw)
	require.Equal(t, OutcomeRepaired, out.Kind)
	require.Equal(t, "NO", out.Document["verdict"])
	require.NotContains(t, out.Document, "next_st")
}

func TestStripTrailingCommas(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":[1,2,],}`, `{"a":[1,2]}`},
		{"{\"a\":1 ,\n }", "{\"a\":1 \n }"},
		{`{"s":"x, }","t":"y,]"}`, `{"s":"x, }","t":"y,]"}`},
		{`{"s":"q\", ]",}`, `{"s":"q\", ]"}`},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, stripTrailingCommas(tt.in))
	}
}

func TestCompletionsInsideString(t *testing.T) {
	require.Equal(t,
		[]string{`{"a":[],"nex"}`, `{"a":[]}`},
		completions(`{"a":[],"nex`))
	require.Equal(t,
		[]string{`{"a":["x","y"]}`, `{"a":["x","y"}]`, `{"a":["x"]}`, `{"a":["x"}]`},
		completions(`{"a":["x","y`))
}
