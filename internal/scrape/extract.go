package scrape

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const minCommentChars = 15

var (
	mentionPattern = regexp.MustCompile(`@[\w:-]+`)
	proWords       = []string{"yes", "win", "likely", "bull"}
	conWords       = []string{"no", "lose", "unlikely", "bear"}
)

// extractRules returns the resolution criteria, trying the dedicated
// resolution element, then the paragraph after a "resolution" heading, then
// the meta description.
func extractRules(doc *html.Node) string {
	if n := findFirst(doc, func(n *html.Node) bool {
		return attrVal(n, "data-testid") == "resolution-criteria"
	}); n != nil {
		return readable(n)
	}

	heading := findFirst(doc, func(n *html.Node) bool {
		return isTag(n, "h2", "h3") && strings.Contains(strings.ToLower(nodeText(n)), "resolution")
	})
	if heading != nil {
		// The first <p> after the heading in document order.
		var para *html.Node
		seen := false
		walk(doc, func(n *html.Node) bool {
			if n == heading {
				seen = true
				return true
			}
			if seen && isTag(n, "p") && !within(n, heading) {
				para = n
				return false
			}
			return true
		})
		if para != nil {
			return readable(para)
		}
	}

	if meta := findFirst(doc, func(n *html.Node) bool {
		return isTag(n, "meta") && attrVal(n, "name") == "description"
	}); meta != nil {
		return attrVal(meta, "content")
	}
	return ""
}

func within(n, ancestor *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func isCommentNode(n *html.Node) bool {
	return strings.Contains(attrVal(n, "data-testid"), "comment") ||
		strings.Contains(attrVal(n, "class"), "Comment")
}

// extractComments collects comment candidates in document order.
func extractComments(doc *html.Node, maxComments, maxChars int) []domain.Comment {
	comments := make([]domain.Comment, 0)
	walk(doc, func(n *html.Node) bool {
		if len(comments) >= maxComments {
			return false
		}
		if n.Type != html.ElementNode || !isCommentNode(n) {
			return true
		}

		text := nodeText(n)
		if len([]rune(text)) < minCommentChars {
			return true
		}

		var author string
		if a := findFirst(n, func(c *html.Node) bool {
			return c != n && strings.Contains(strings.ToLower(attrVal(c, "data-testid")), "author")
		}); a != nil {
			author = nodeText(a)
		}

		body := truncate(text, maxChars)
		comments = append(comments, domain.Comment{
			ID:           uuid.NewString(),
			Author:       anonymize(author),
			Body:         body,
			Sentiment:    heuristicSentiment(body, proWords, conWords),
			MentionRatio: mentionRatio(body),
		})
		return true
	})
	return comments
}

// heuristicSentiment compares the number of pro and con keywords present in
// text.
func heuristicSentiment(text string, pro, con []string) domain.Sentiment {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), notWordRune) {
		words[w] = struct{}{}
	}
	score := func(list []string) int {
		n := 0
		for _, w := range list {
			if _, ok := words[w]; ok {
				n++
			}
		}
		return n
	}

	proScore, conScore := score(pro), score(con)
	switch {
	case proScore > conScore:
		return domain.SentimentPro
	case conScore > proScore:
		return domain.SentimentCon
	default:
		return domain.SentimentNeutral
	}
}

func notWordRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'' || r > 127)
}

func mentionRatio(text string) float64 {
	mentions := len(mentionPattern.FindAllString(text, -1))
	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	return min(1.0, float64(mentions)/float64(words))
}

func anonymize(author string) string {
	if author == "" {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(author))
	return fmt.Sprintf("user_%04d", h.Sum32()%10000)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
