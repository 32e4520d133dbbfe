package newsvote

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create an engine over a temp store with the given policy
func createTestEngine(t *testing.T, policy Policy) (*Engine, *Store) {
	store := createTestStore(t)
	engine, err := NewEngine(store, policy)
	require.NoError(t, err, "should create engine")
	return engine, store
}

// Test helper: submit a pending article
func submitTestArticle(t *testing.T, engine *Engine, headline string) *Article {
	article, created, err := engine.Submit(headline, "Body of "+headline, "Test Author")
	require.NoError(t, err, "should submit article")
	require.True(t, created, "article should be newly created")
	return article
}

// TestPolicyValidate rejects inconsistent policies
func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		expectErr bool
	}{
		{
			name:      "default policy is valid",
			policy:    DefaultPolicy(),
			expectErr: false,
		},
		{
			name:      "zero min votes",
			policy:    Policy{MinVotes: 0, ApproveThreshold: 75, RejectThreshold: 75},
			expectErr: true,
		},
		{
			name:      "approve threshold at 50 allows conflicting decisions",
			policy:    Policy{MinVotes: 3, ApproveThreshold: 50, RejectThreshold: 75},
			expectErr: true,
		},
		{
			name:      "reject threshold above 100",
			policy:    Policy{MinVotes: 3, ApproveThreshold: 75, RejectThreshold: 101},
			expectErr: true,
		},
		{
			name:      "tight but valid thresholds",
			policy:    Policy{MinVotes: 1, ApproveThreshold: 50.1, RejectThreshold: 50.1},
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.expectErr {
				assert.Error(t, err, "policy should be rejected")
			} else {
				assert.NoError(t, err, "policy should be accepted")
			}
		})
	}
}

// TestSubmit_EmptyHeadline rejects blank submissions
func TestSubmit_EmptyHeadline(t *testing.T) {
	engine, _ := createTestEngine(t, DefaultPolicy())

	_, _, err := engine.Submit("", "some body", "author")
	require.Error(t, err, "empty headline should be rejected")
	assert.Equal(t, KindValidation, KindOf(err), "should be a validation error")

	_, _, err = engine.Submit("   ", "some body", "author")
	require.Error(t, err, "whitespace headline should be rejected")

	_, _, err = engine.Submit("headline", "", "author")
	require.Error(t, err, "empty body should be rejected")
	assert.Equal(t, KindValidation, KindOf(err), "should be a validation error")
}

// TestSubmit_StartsPending verifies the initial lifecycle state
func TestSubmit_StartsPending(t *testing.T) {
	engine, _ := createTestEngine(t, DefaultPolicy())

	article := submitTestArticle(t, engine, "Fresh Article")
	assert.Equal(t, StatePending, article.State, "new article starts pending")
	assert.NotEqual(t, uuid.Nil, article.ID, "article gets an id")
}

// TestSubmit_IdenticalContentReturnsExisting verifies resubmission idempotence
func TestSubmit_IdenticalContentReturnsExisting(t *testing.T) {
	engine, _ := createTestEngine(t, DefaultPolicy())

	first := submitTestArticle(t, engine, "Duplicate Candidate")

	second, created, err := engine.Submit("Duplicate Candidate", "Body of Duplicate Candidate", "Test Author")
	require.NoError(t, err, "resubmission should not error")
	assert.False(t, created, "no new article should be created")
	assert.Equal(t, first.ID, second.ID, "existing article should be returned")
}

// TestSubmit_ConcurrentIdenticalSubmissions verifies that simultaneous
// submissions of the same content all resolve to one article: whichever
// insert loses the race picks up the winner instead of surfacing a storage
// error.
func TestSubmit_ConcurrentIdenticalSubmissions(t *testing.T) {
	const submitters = 10

	engine, store := createTestEngine(t, DefaultPolicy())

	var wg sync.WaitGroup
	articles := make([]*Article, submitters)
	createds := make([]bool, submitters)
	errs := make([]error, submitters)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			articles[n], createds[n], errs[n] = engine.Submit("Raced Story", "Same body.", "Same Author")
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i := 0; i < submitters; i++ {
		require.NoError(t, errs[i], "submission %d should succeed", i)
		require.NotNil(t, articles[i], "submission %d should return an article", i)
		assert.Equal(t, articles[0].ID, articles[i].ID, "every caller gets the same article")
		if createds[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount, "exactly one submission creates the article")

	count, err := store.CountByState(StatePending)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "one pending article exists")
}

// TestCastVote_ThresholdApproves covers the canonical approval scenario:
// MinVotes=3, ApproveThreshold=66, votes approve/approve/disapprove.
func TestCastVote_ThresholdApproves(t *testing.T) {
	engine, _ := createTestEngine(t, Policy{
		MinVotes:         3,
		ApproveThreshold: 66,
		RejectThreshold:  66,
	})
	article := submitTestArticle(t, engine, "Approvable Article")

	result, err := engine.CastVote(article.ID, "alice", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatePending, result.Article.State, "one vote is below the minimum")
	assert.Equal(t, 100.0, result.ApprovalRate)

	result, err = engine.CastVote(article.ID, "bob", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatePending, result.Article.State, "two votes are still below the minimum")

	result, err = engine.CastVote(article.ID, "carol", ActionDisapprove)
	require.NoError(t, err)
	assert.Equal(t, StateApproved, result.Article.State, "2/3 approval crosses the 66% threshold")
	assert.InDelta(t, 66.7, result.ApprovalRate, 0.01, "rate is rounded to one decimal")
	assert.NotNil(t, result.Article.DecidedAt, "decision time is recorded")
}

// TestCastVote_ThresholdDisapproves covers the symmetric rejection path
func TestCastVote_ThresholdDisapproves(t *testing.T) {
	engine, _ := createTestEngine(t, Policy{
		MinVotes:         3,
		ApproveThreshold: 66,
		RejectThreshold:  66,
	})
	article := submitTestArticle(t, engine, "Rejectable Article")

	_, err := engine.CastVote(article.ID, "alice", ActionDisapprove)
	require.NoError(t, err)
	_, err = engine.CastVote(article.ID, "bob", ActionDisapprove)
	require.NoError(t, err)

	result, err := engine.CastVote(article.ID, "carol", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StateDisapproved, result.Article.State, "2/3 disapproval crosses the threshold")
	assert.InDelta(t, 33.3, result.ApprovalRate, 0.01)
}

// TestCastVote_BelowMinimumStaysPending verifies the vote-count floor
func TestCastVote_BelowMinimumStaysPending(t *testing.T) {
	engine, _ := createTestEngine(t, Policy{
		MinVotes:         5,
		ApproveThreshold: 66,
		RejectThreshold:  66,
	})
	article := submitTestArticle(t, engine, "Underfunded Article")

	// Unanimous approval, but only four voters
	for i := 0; i < 4; i++ {
		result, err := engine.CastVote(article.ID, fmt.Sprintf("voter-%d", i), ActionApprove)
		require.NoError(t, err)
		assert.Equal(t, StatePending, result.Article.State,
			"article stays pending below the minimum vote count regardless of rate")
		assert.Equal(t, 100.0, result.ApprovalRate)
	}
}

// TestCastVote_DuplicateVoter verifies first-vote-wins
func TestCastVote_DuplicateVoter(t *testing.T) {
	engine, store := createTestEngine(t, DefaultPolicy())
	article := submitTestArticle(t, engine, "Contested Article")

	_, err := engine.CastVote(article.ID, "alice", ActionApprove)
	require.NoError(t, err, "first vote should succeed")

	_, err = engine.CastVote(article.ID, "alice", ActionApprove)
	require.Error(t, err, "second vote by the same voter should be rejected")
	assert.Equal(t, KindDuplicateVote, KindOf(err), "should be a duplicate_vote error")

	// The tally still reflects exactly one vote
	tally, err := store.Tally(article.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Total(), "tally unchanged by the rejected vote")
}

// TestCastVote_UnknownArticle verifies not_found
func TestCastVote_UnknownArticle(t *testing.T) {
	engine, _ := createTestEngine(t, DefaultPolicy())

	_, err := engine.CastVote(uuid.New(), "alice", ActionApprove)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err), "should be a not_found error")
}

// TestCastVote_TerminalArticle verifies terminal articles accept no votes
func TestCastVote_TerminalArticle(t *testing.T) {
	engine, _ := createTestEngine(t, Policy{
		MinVotes:         1,
		ApproveThreshold: 51,
		RejectThreshold:  51,
	})
	article := submitTestArticle(t, engine, "Fast-Tracked Article")

	result, err := engine.CastVote(article.ID, "alice", ActionApprove)
	require.NoError(t, err)
	require.Equal(t, StateApproved, result.Article.State, "single vote decides with MinVotes=1")

	_, err = engine.CastVote(article.ID, "bob", ActionApprove)
	require.Error(t, err, "approved article should accept no votes")
	assert.Equal(t, KindNotVotable, KindOf(err), "should be article_not_votable")
}

// TestCastVote_EmptyVoter rejects blank identities
func TestCastVote_EmptyVoter(t *testing.T) {
	engine, _ := createTestEngine(t, DefaultPolicy())
	article := submitTestArticle(t, engine, "Anonymous Target")

	_, err := engine.CastVote(article.ID, "  ", ActionApprove)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err), "blank voter should be a validation error")
}

// TestCastVote_UnknownAction rejects actions outside the approve/disapprove
// vocabulary before they reach the ledger
func TestCastVote_UnknownAction(t *testing.T) {
	engine, store := createTestEngine(t, DefaultPolicy())
	article := submitTestArticle(t, engine, "Strictly Voted Article")

	_, err := engine.CastVote(article.ID, "alice", Action("maybe"))
	require.Error(t, err, "unrecognized action should be rejected")
	assert.Equal(t, KindValidation, KindOf(err), "should be a validation error")

	// The rejected action must not occupy alice's slot in the ledger
	voted, err := store.HasVoted(article.ID, "alice")
	require.NoError(t, err)
	assert.False(t, voted, "no vote should be recorded")

	result, err := engine.CastVote(article.ID, "alice", ActionApprove)
	require.NoError(t, err, "a valid vote should still be accepted")
	assert.Equal(t, 1, result.Tally.Total(), "only the valid vote counts")
}

// TestCastVote_ConcurrentVoters verifies that concurrent votes on one article
// are all counted exactly once: no vote reads a stale tally and overwrites
// another.
func TestCastVote_ConcurrentVoters(t *testing.T) {
	const voters = 20

	engine, store := createTestEngine(t, Policy{
		MinVotes:         voters + 1, // keep the article pending throughout
		ApproveThreshold: 75,
		RejectThreshold:  75,
	})
	article := submitTestArticle(t, engine, "Contended Article")

	var wg sync.WaitGroup
	errs := make([]error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = engine.CastVote(article.ID, fmt.Sprintf("voter-%d", n), ActionApprove)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "vote %d should succeed", i)
	}

	tally, err := store.Tally(article.ID)
	require.NoError(t, err)
	assert.Equal(t, voters, tally.Approvals, "every concurrent vote counts exactly once")
}

// TestCastVote_StateNeverReverses walks an article to a terminal state and
// confirms no path leads back
func TestCastVote_StateNeverReverses(t *testing.T) {
	engine, store := createTestEngine(t, Policy{
		MinVotes:         2,
		ApproveThreshold: 51,
		RejectThreshold:  51,
	})
	article := submitTestArticle(t, engine, "One-Way Article")

	_, err := engine.CastVote(article.ID, "alice", ActionDisapprove)
	require.NoError(t, err)
	result, err := engine.CastVote(article.ID, "bob", ActionDisapprove)
	require.NoError(t, err)
	require.Equal(t, StateDisapproved, result.Article.State)

	// Further votes are rejected and the stored state is unchanged
	_, err = engine.CastVote(article.ID, "carol", ActionApprove)
	require.Error(t, err)

	got, err := store.GetArticle(article.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDisapproved, got.State, "terminal state is permanent")
}

// TestApprovalRate reports zero-and-undefined with no votes
func TestApprovalRate(t *testing.T) {
	engine, _ := createTestEngine(t, DefaultPolicy())
	article := submitTestArticle(t, engine, "Unrated Article")

	rate, ok, err := engine.ApprovalRate(article.ID)
	require.NoError(t, err)
	assert.False(t, ok, "no votes means the rate is undefined")
	assert.Equal(t, 0.0, rate, "undefined rate reports as zero")

	_, err = engine.CastVote(article.ID, "alice", ActionApprove)
	require.NoError(t, err)
	_, err = engine.CastVote(article.ID, "bob", ActionDisapprove)
	require.NoError(t, err)

	rate, ok, err = engine.ApprovalRate(article.ID)
	require.NoError(t, err)
	assert.True(t, ok, "rate is defined once votes exist")
	assert.Equal(t, 50.0, rate, "one of two votes approves")
}

// TestApprovalRate_UnknownArticle propagates not_found
func TestApprovalRate_UnknownArticle(t *testing.T) {
	engine, _ := createTestEngine(t, DefaultPolicy())

	_, _, err := engine.ApprovalRate(uuid.New())
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

// TestTallyRate_Rounding verifies consistent one-decimal rounding
func TestTallyRate_Rounding(t *testing.T) {
	tests := []struct {
		name     string
		tally    Tally
		expected float64
		defined  bool
	}{
		{"no votes", Tally{}, 0, false},
		{"all approve", Tally{Approvals: 3}, 100, true},
		{"all disapprove", Tally{Disapprovals: 2}, 0, true},
		{"two thirds", Tally{Approvals: 2, Disapprovals: 1}, 66.7, true},
		{"one third", Tally{Approvals: 1, Disapprovals: 2}, 33.3, true},
		{"one sixth", Tally{Approvals: 1, Disapprovals: 5}, 16.7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := tt.tally.Rate()
			assert.Equal(t, tt.defined, ok)
			assert.InDelta(t, tt.expected, rate, 0.001)
		})
	}
}
