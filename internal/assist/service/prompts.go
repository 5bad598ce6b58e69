package service

import (
	"fmt"
	"strings"

	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
)

// featureSpec fixes the generation parameters per feature. Classification-like
// features run at low temperature with tight output caps; free-form text gets
// more room.
type featureSpec struct {
	slot        assistdomain.Slot // empty when the feature does not cache
	temperature float64
	maxTokens   int64
	system      string
}

var featureSpecs = map[assistdomain.Feature]featureSpec{
	assistdomain.FeatureSummary: {
		slot:        assistdomain.SlotSummary,
		temperature: 0.7,
		maxTokens:   512,
		system:      "You are an assistant for an issue tracker. Summarize the issue below in two or three sentences for a busy engineer. Reply with the summary only.",
	},
	assistdomain.FeatureSuggestion: {
		slot:        assistdomain.SlotSuggestion,
		temperature: 0.7,
		maxTokens:   1024,
		system:      "You are an assistant for an issue tracker. Suggest a concrete approach to fix the issue below: likely cause first, then steps. Reply with the suggestion only.",
	},
	assistdomain.FeatureDigest: {
		slot:        assistdomain.SlotDigest,
		temperature: 0.6,
		maxTokens:   768,
		system:      "You are an assistant for an issue tracker. Digest the discussion below: key points, decisions, and open questions, as a short bullet list.",
	},
	assistdomain.FeatureLabels: {
		temperature: 0.2,
		maxTokens:   128,
		system:      "You are a classifier for an issue tracker. Pick the labels that apply to the issue below from the allowed list. Reply with a JSON array of label strings and nothing else.",
	},
	assistdomain.FeatureDuplicates: {
		temperature: 0.2,
		maxTokens:   256,
		system:      "You are a classifier for an issue tracker. Compare the issue below against the candidate issues and identify likely duplicates. Reply with a JSON array of candidate issue ids and nothing else; reply [] when none match.",
	},
}

func buildPrompt(feature assistdomain.Feature, issue *issuedomain.Issue, comments []issuedomain.Comment, peers []issuedomain.Issue) string {
	var b strings.Builder

	switch feature {
	case assistdomain.FeatureDigest:
		fmt.Fprintf(&b, "Issue: %s\n\nDiscussion:\n", issue.Title)
		for i, comment := range comments {
			fmt.Fprintf(&b, "%d. %s\n", i+1, comment.Body)
		}
	case assistdomain.FeatureLabels:
		fmt.Fprintf(&b, "Allowed labels: %s\n\n", strings.Join(allowedLabels, ", "))
		fmt.Fprintf(&b, "Title: %s\nDescription:\n%s\n", issue.Title, issue.Description)
	case assistdomain.FeatureDuplicates:
		fmt.Fprintf(&b, "Issue %s: %s\n%s\n\nCandidates:\n", issue.ID, issue.Title, issue.Description)
		for _, peer := range peers {
			fmt.Fprintf(&b, "- id %s: %s\n", peer.ID, peer.Title)
		}
	default:
		fmt.Fprintf(&b, "Title: %s\nDescription:\n%s\n", issue.Title, issue.Description)
	}

	return b.String()
}

// allowedLabels is the fixed label vocabulary offered to the classifier.
var allowedLabels = []string{
	"bug", "feature", "documentation", "performance",
	"security", "ui", "backend", "infrastructure", "question",
}
