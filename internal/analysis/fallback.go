package analysis

import (
	"github.com/alanyoungcy/polyseek/internal/domain"
)

const sourceOffline = "SRC_OFFLINE"

// formatFallback replaces a deep-mode final document that fails validation.
func formatFallback() domain.Document {
	return sentinelDocument(sentinel{
		summary:     "The model returned an invalid response structure. Unable to complete the analysis.",
		driver:      "Model response format error",
		uncertainty: "Model response did not match the expected format",
		sourceID:    SourceFormatError,
		sourceTitle: "Format Error",
	})
}

// errorDocument reports a completion failure. It is validated like any other
// result before it leaves the orchestrator.
func errorDocument(depth domain.Depth, err error) domain.Document {
	if depth == "" {
		depth = domain.DepthQuick
	}
	doc := sentinelDocument(sentinel{
		summary:     "Analysis could not be completed: " + err.Error(),
		driver:      "Text-generation backend call failed",
		uncertainty: "Analysis was interrupted by an upstream error",
		sourceID:    SourceError,
		sourceTitle: "Analysis Error",
	})
	doc["metadata"] = map[string]any{
		"mode":    string(depth),
		"error":   true,
		"message": err.Error(),
	}
	return doc
}

func offlineDocument(marketURL string) domain.Document {
	doc := sentinelDocument(sentinel{
		summary:     "Offline mode stub analysis. Configure completion credentials for real results.",
		driver:      "Offline environment cannot fetch live data.",
		uncertainty: "No external data available in offline mode.",
		sourceID:    sourceOffline,
		sourceTitle: "Offline Stub",
		sourceURL:   marketURL,
	})
	doc["metadata"] = map[string]any{"offline": true}
	return doc
}
