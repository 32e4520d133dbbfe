package newsvote

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Policy holds the moderation thresholds. These are configuration, not
// constants: moderation policy changes independently of code.
type Policy struct {
	// MinVotes is the minimum number of counted votes before a terminal
	// transition is considered. Below this the article stays pending no
	// matter what the rate says.
	MinVotes int

	// ApproveThreshold is the approval-rate percentage at or above which a
	// pending article (with at least MinVotes votes) becomes approved.
	ApproveThreshold float64

	// RejectThreshold is the disapproval-rate percentage at or above which a
	// pending article (with at least MinVotes votes) becomes disapproved.
	RejectThreshold float64
}

// DefaultPolicy returns the default moderation policy.
func DefaultPolicy() Policy {
	return Policy{
		MinVotes:         3,
		ApproveThreshold: 75,
		RejectThreshold:  75,
	}
}

// Validate checks that the policy is internally consistent. Both thresholds
// must exceed 50 so that approval and rejection can never both be satisfied
// by the same tally.
func (p Policy) Validate() error {
	if p.MinVotes < 1 {
		return fmt.Errorf("min_votes must be at least 1, got %d", p.MinVotes)
	}
	if p.ApproveThreshold <= 50 || p.ApproveThreshold > 100 {
		return fmt.Errorf("approve_threshold must be in (50, 100], got %g", p.ApproveThreshold)
	}
	if p.RejectThreshold <= 50 || p.RejectThreshold > 100 {
		return fmt.Errorf("reject_threshold must be in (50, 100], got %g", p.RejectThreshold)
	}
	return nil
}

// Engine applies the article lifecycle state machine. All mutations of a
// given article are serialized through a per-article lock, so two concurrent
// votes can never both read the pre-vote tally. Votes on different articles
// proceed in parallel; no code path holds two article locks at once.
type Engine struct {
	store  *Store
	policy Policy

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewEngine creates a moderation engine over the given store.
func NewEngine(store *Store, policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid moderation policy: %w", err)
	}

	return &Engine{
		store:  store,
		policy: policy,
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

// Policy returns the engine's moderation policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// articleLock returns the mutex guarding one article's mutation path.
func (e *Engine) articleLock(id uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// Submit validates and inserts a new article in the pending state. Submitting
// content identical to an existing article returns that article instead of
// creating a second pending copy, which makes submission idempotent under
// client retries. The second return is false when an existing article was
// returned.
func (e *Engine) Submit(headline, body, author string) (*Article, bool, error) {
	if strings.TrimSpace(headline) == "" {
		return nil, false, NewError(KindValidation, "headline must not be empty")
	}
	if strings.TrimSpace(body) == "" {
		return nil, false, NewError(KindValidation, "body must not be empty")
	}

	existing, err := e.store.GetArticleByContentHash(ContentHash(headline, body, author))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	article := &Article{
		ID:        uuid.New(),
		Headline:  headline,
		Body:      body,
		Author:    author,
		State:     StatePending,
		CreatedAt: time.Now(),
	}

	if err := e.store.InsertArticle(article); err != nil {
		// Two identical submissions can race past the hash lookup; the
		// loser's insert hits the content-hash constraint. Resolve it to
		// the idempotent outcome: return the article that won.
		if errors.Is(err, errDuplicateContent) {
			winner, lookupErr := e.store.GetArticleByContentHash(ContentHash(headline, body, author))
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	return article, true, nil
}

// VoteResult is the outcome of a cast vote: the article as it stands after
// the vote (possibly transitioned to a terminal state) and the recomputed
// approval rate.
type VoteResult struct {
	Article      *Article `json:"article"`
	Tally        Tally    `json:"tally"`
	ApprovalRate float64  `json:"approval_rate"`
}

// CastVote records one voter's verdict on a pending article, recomputes the
// tally, and applies the threshold policy. It fails with not_found for an
// unknown article, article_not_votable for a terminal one, and duplicate_vote
// when this voter already has a counted vote. Votes on the same article are
// processed one at a time.
func (e *Engine) CastVote(articleID uuid.UUID, voter string, action Action) (*VoteResult, error) {
	if strings.TrimSpace(voter) == "" {
		return nil, NewError(KindValidation, "voter identity must not be empty")
	}
	if action != ActionApprove && action != ActionDisapprove {
		// An unrecognized action must never reach the ledger, where it
		// would occupy the voter's slot without counting toward either
		// tally column.
		return nil, NewError(KindValidation, "unknown vote action %q", action)
	}

	lock := e.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	article, err := e.store.GetArticle(articleID)
	if err != nil {
		return nil, err
	}
	if article.State.IsTerminal() {
		return nil, NewError(KindNotVotable, "article %s is %s and no longer accepts votes", articleID, article.State)
	}

	vote := &Vote{
		ArticleID: articleID,
		Voter:     voter,
		Action:    action,
		CastAt:    time.Now(),
	}
	if err := e.store.InsertVote(vote); err != nil {
		return nil, err
	}

	tally, err := e.store.Tally(articleID)
	if err != nil {
		return nil, err
	}

	if next, decided := e.decide(tally); decided {
		now := time.Now()
		if err := e.store.UpdateState(articleID, StatePending, next, now); err != nil {
			return nil, err
		}
		article.State = next
		article.DecidedAt = &now
	}

	rate, _ := tally.Rate()
	return &VoteResult{
		Article:      article,
		Tally:        tally,
		ApprovalRate: rate,
	}, nil
}

// decide applies the threshold policy to a tally. It returns the terminal
// state to transition to, or decided=false when the article should stay
// pending.
func (e *Engine) decide(tally Tally) (next State, decided bool) {
	if tally.Total() < e.policy.MinVotes {
		return "", false
	}

	rate, ok := tally.Rate()
	if !ok {
		return "", false
	}

	if rate >= e.policy.ApproveThreshold {
		return StateApproved, true
	}
	if 100-rate >= e.policy.RejectThreshold {
		return StateDisapproved, true
	}
	return "", false
}

// ApprovalRate reports an article's current approval rate. The second return
// is false when the article has no votes yet.
func (e *Engine) ApprovalRate(articleID uuid.UUID) (float64, bool, error) {
	if _, err := e.store.GetArticle(articleID); err != nil {
		return 0, false, err
	}

	tally, err := e.store.Tally(articleID)
	if err != nil {
		return 0, false, err
	}

	rate, ok := tally.Rate()
	return rate, ok, nil
}
