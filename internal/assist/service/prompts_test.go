package service

import (
	"testing"

	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_PerFeatureInputs(t *testing.T) {
	issue := &issuedomain.Issue{
		ID:          42,
		Title:       "search results are stale",
		Description: "the index lags behind writes by several minutes",
	}
	comments := []issuedomain.Comment{
		{Body: "seen after the last deploy"},
		{Body: "indexer queue is backed up"},
	}
	peers := []issuedomain.Issue{
		{ID: 43, Title: "search index delay"},
	}

	summary := buildPrompt(assistdomain.FeatureSummary, issue, nil, nil)
	assert.Contains(t, summary, issue.Title)
	assert.Contains(t, summary, issue.Description)

	digest := buildPrompt(assistdomain.FeatureDigest, issue, comments, nil)
	assert.Contains(t, digest, "seen after the last deploy")
	assert.Contains(t, digest, "indexer queue is backed up")
	// The digest is built from discussion, not the description.
	assert.NotContains(t, digest, issue.Description)

	labels := buildPrompt(assistdomain.FeatureLabels, issue, nil, nil)
	assert.Contains(t, labels, "Allowed labels:")
	assert.Contains(t, labels, "bug")

	duplicates := buildPrompt(assistdomain.FeatureDuplicates, issue, nil, peers)
	assert.Contains(t, duplicates, "search index delay")
	assert.Contains(t, duplicates, "43")
}

func TestFeatureSpecsCoverEveryFeature(t *testing.T) {
	for _, feature := range []assistdomain.Feature{
		assistdomain.FeatureSummary,
		assistdomain.FeatureSuggestion,
		assistdomain.FeatureLabels,
		assistdomain.FeatureDuplicates,
		assistdomain.FeatureDigest,
	} {
		spec, ok := featureSpecs[feature]
		assert.True(t, ok, "missing featureSpec for %s", feature)
		assert.NotEmpty(t, spec.system)
		assert.Positive(t, spec.maxTokens)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`["bug"]`, `["bug"]`},
		{"```json\n[\"bug\"]\n```", `["bug"]`},
		{"```\n[\"bug\"]\n```", `["bug"]`},
		{"  [\"bug\"]  ", `["bug"]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFences(tt.in))
	}
}
