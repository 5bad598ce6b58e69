package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	assistrepo "github.com/smallbiznis/beacon/internal/assist/repository"
	"github.com/smallbiznis/beacon/internal/clock"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	issuerepo "github.com/smallbiznis/beacon/internal/issue/repository"
	issueservice "github.com/smallbiznis/beacon/internal/issue/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// -- Mocks --

type generatorMock struct {
	mock.Mock
}

func (m *generatorMock) Generate(ctx context.Context, cfg assistdomain.GenerationConfig) (string, error) {
	args := m.Called(ctx, cfg)
	return args.String(0), args.Error(1)
}

// -- Fixture --

type gatewayFixture struct {
	svc      assistdomain.Service
	issues   issuedomain.Service
	ledger   assistdomain.Ledger
	store    assistdomain.ArtifactStore
	gen      *generatorMock
	clk      *clock.FakeClock
	node     *snowflake.Node
	userID   snowflake.ID
	issueRec *issuedomain.Issue
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	db := newTestDB(t,
		&issuedomain.Issue{}, &issuedomain.Comment{},
		&assistdomain.UsageDay{}, &assistdomain.UsageEvent{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	store := assistrepo.ProvideArtifactStore(db, clk)
	ledger := assistrepo.ProvideLedger(db, node, clk)
	issues := issueservice.New(issueservice.ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      issuerepo.Provide(db),
		Artifacts: store,
	})

	gen := new(generatorMock)
	svc := New(ServiceParam{
		Cfg:       quotaTestConfig(),
		Log:       zap.NewNop(),
		Clock:     clk,
		Ledger:    ledger,
		Artifacts: store,
		Generator: gen,
		Issues:    issues,
	})

	userID := node.Generate()
	issueRec, err := issues.Create(context.Background(), userID.String(), issuedomain.CreateIssueRequest{
		ProjectID:   node.Generate().String(),
		Title:       "checkout button unresponsive",
		Description: "clicking the checkout button does nothing when the cart holds more than ten items",
	})
	require.NoError(t, err)

	return &gatewayFixture{
		svc:      svc,
		issues:   issues,
		ledger:   ledger,
		store:    store,
		gen:      gen,
		clk:      clk,
		node:     node,
		userID:   userID,
		issueRec: issueRec,
	}
}

func (f *gatewayFixture) generate(feature assistdomain.Feature) (*assistdomain.Result, error) {
	return f.svc.Generate(context.Background(), assistdomain.GenerateRequest{
		UserID:  f.userID.String(),
		IssueID: f.issueRec.ID.String(),
		Feature: feature,
	})
}

func (f *gatewayFixture) dailyCount(t *testing.T) int {
	t.Helper()
	rec, err := f.ledger.GetOrCreateToday(context.Background(), f.userID)
	require.NoError(t, err)
	return rec.Count
}

// -- Tests --

func TestGenerate_ServedFreshThenCached(t *testing.T) {
	f := newGatewayFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("users cannot check out large carts", nil).Once()

	result, err := f.generate(assistdomain.FeatureSummary)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, "users cannot check out large carts", result.Content)
	require.NotNil(t, result.Remaining)
	assert.Equal(t, 4, result.Remaining.Minute)
	assert.Equal(t, 99, result.Remaining.Daily)
	assert.Equal(t, 1, f.dailyCount(t))

	// The second request is served from the slot: no generator call, no charge.
	f.clk.Advance(time.Second)
	cached, err := f.generate(assistdomain.FeatureSummary)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, result.Content, cached.Content)
	require.NotNil(t, cached.CachedAt)
	assert.Nil(t, cached.Remaining)
	assert.Equal(t, 1, f.dailyCount(t))

	f.gen.AssertExpectations(t)
}

func TestGenerate_ValidationFailureMutatesNothing(t *testing.T) {
	f := newGatewayFixture(t)

	short, err := f.issues.Create(context.Background(), f.userID.String(), issuedomain.CreateIssueRequest{
		ProjectID:   f.node.Generate().String(),
		Title:       "crash",
		Description: "it broke",
	})
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), assistdomain.GenerateRequest{
		UserID:  f.userID.String(),
		IssueID: short.ID.String(),
		Feature: assistdomain.FeatureSummary,
	})
	assert.ErrorIs(t, err, assistdomain.ErrInputTooShort)
	assert.Equal(t, 0, f.dailyCount(t))
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_DailyQuotaExceeded(t *testing.T) {
	f := newGatewayFixture(t)

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, err := f.ledger.Increment(ctx, f.userID, assistdomain.FeatureSummary)
		require.NoError(t, err)
	}
	// Old enough that only the daily limit can deny.
	f.clk.Advance(2 * time.Minute)

	_, err := f.generate(assistdomain.FeatureSummary)
	var quotaErr *assistdomain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "day", quotaErr.Window)
	assert.Equal(t, 0, quotaErr.RemainingDaily)
	// Denial consumed nothing.
	assert.Equal(t, 100, f.dailyCount(t))
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_MinuteQuotaExceeded(t *testing.T) {
	f := newGatewayFixture(t)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.ledger.Increment(ctx, f.userID, assistdomain.FeatureSummary)
		require.NoError(t, err)
	}

	_, err := f.generate(assistdomain.FeatureSummary)
	var quotaErr *assistdomain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "minute", quotaErr.Window)
	assert.Equal(t, 95, quotaErr.RemainingDaily)
	assert.True(t, quotaErr.ResetAt.Equal(f.clk.Now().Add(time.Minute)))
}

func TestGenerate_UpstreamFailureConsumesNoQuota(t *testing.T) {
	f := newGatewayFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model overloaded"))

	_, err := f.generate(assistdomain.FeatureSummary)
	var upstream *assistdomain.UpstreamError
	require.ErrorAs(t, err, &upstream)

	assert.Equal(t, 0, f.dailyCount(t))

	// Nothing was cached either.
	artifact, readErr := f.store.Read(context.Background(), f.issueRec.ID, assistdomain.SlotSummary)
	require.NoError(t, readErr)
	assert.Nil(t, artifact)
}

func TestGenerate_BlankOutputConsumesNoQuota(t *testing.T) {
	f := newGatewayFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("   \n\t  ", nil).Once()

	_, err := f.generate(assistdomain.FeatureSummary)
	var upstream *assistdomain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 0, f.dailyCount(t))

	// The slot pair stayed empty: no content, no cached_at.
	issue, err := f.issues.GetByID(context.Background(), f.issueRec.ID.String())
	require.NoError(t, err)
	assert.Nil(t, issue.AISummary)
	assert.Nil(t, issue.AISummaryCachedAt)
}

func TestGenerate_DigestNeedsEnoughDiscussion(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	addComment := func(body string) {
		_, err := f.issues.AddComment(ctx, f.userID.String(), issuedomain.AddCommentRequest{
			IssueID: f.issueRec.ID.String(),
			Body:    body,
		})
		require.NoError(t, err)
	}

	addComment("reproduced on staging")
	addComment("only happens with more than ten items")

	_, err := f.generate(assistdomain.FeatureDigest)
	assert.ErrorIs(t, err, assistdomain.ErrNotEnoughEntries)
	assert.Equal(t, 0, f.dailyCount(t))

	addComment("fix shipped behind a flag")

	f.gen.On("Generate", mock.Anything, mock.Anything).Return("- reproduced; cart size is the trigger", nil).Once()
	result, err := f.generate(assistdomain.FeatureDigest)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, f.dailyCount(t))
}

func TestGenerate_CommentInvalidatesDigestOnly(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	for _, body := range []string{"first report", "confirmed on two browsers", "root cause found"} {
		_, err := f.issues.AddComment(ctx, f.userID.String(), issuedomain.AddCommentRequest{
			IssueID: f.issueRec.ID.String(),
			Body:    body,
		})
		require.NoError(t, err)
	}

	f.gen.On("Generate", mock.Anything, mock.Anything).Return("generated text", nil)

	_, err := f.generate(assistdomain.FeatureSummary)
	require.NoError(t, err)
	_, err = f.generate(assistdomain.FeatureDigest)
	require.NoError(t, err)

	// A new comment clears the digest slot and leaves the summary alone.
	_, err = f.issues.AddComment(ctx, f.userID.String(), issuedomain.AddCommentRequest{
		IssueID: f.issueRec.ID.String(),
		Body:    "one more data point",
	})
	require.NoError(t, err)

	digest, err := f.store.Read(ctx, f.issueRec.ID, assistdomain.SlotDigest)
	require.NoError(t, err)
	assert.Nil(t, digest)

	summary, err := f.store.Read(ctx, f.issueRec.ID, assistdomain.SlotSummary)
	require.NoError(t, err)
	assert.NotNil(t, summary)
}

func TestGenerate_LabelsOutputNormalized(t *testing.T) {
	f := newGatewayFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).
		Return("```json\n[\"bug\", \"ui\"]\n```", nil).Once()

	result, err := f.generate(assistdomain.FeatureLabels)
	require.NoError(t, err)
	assert.Equal(t, `["bug","ui"]`, result.Content)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, f.dailyCount(t))
}

func TestGenerate_LabelsGarbageOutputIsUpstreamFailure(t *testing.T) {
	f := newGatewayFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).
		Return("I think the labels should be bug and ui", nil).Once()

	_, err := f.generate(assistdomain.FeatureLabels)
	var upstream *assistdomain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 0, f.dailyCount(t))
}

func TestGenerate_InvalidUser(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.svc.Generate(context.Background(), assistdomain.GenerateRequest{
		UserID:  "not-a-user",
		IssueID: f.issueRec.ID.String(),
		Feature: assistdomain.FeatureSummary,
	})
	assert.ErrorIs(t, err, assistdomain.ErrInvalidUser)
}

func TestGenerate_UnknownIssue(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.svc.Generate(context.Background(), assistdomain.GenerateRequest{
		UserID:  f.userID.String(),
		IssueID: f.node.Generate().String(),
		Feature: assistdomain.FeatureSummary,
	})
	assert.ErrorIs(t, err, issuedomain.ErrNotFound)
}

func TestQuota_ReportsWithoutConsuming(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Increment(ctx, f.userID, assistdomain.FeatureSummary)
	require.NoError(t, err)

	decision, err := f.svc.Quota(ctx, f.userID.String())
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 4, decision.RemainingMinute)
	assert.Equal(t, 99, decision.RemainingDaily)

	// Asking again changes nothing.
	decision, err = f.svc.Quota(ctx, f.userID.String())
	require.NoError(t, err)
	assert.Equal(t, 99, decision.RemainingDaily)
}
