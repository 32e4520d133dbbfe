package newsvote

import (
	"time"

	"github.com/google/uuid"
)

// Query limits follow the listing defaults used across the API: callers get
// 50 items unless they ask for more, and never more than 1000.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// readRetries bounds the best-effort retry loop around storage reads.
const readRetries = 3

// QueryService is the read-only view over the article store. Listing and
// search return approved articles only; pending and disapproved content is
// reachable solely through the moderation views.
type QueryService struct {
	store *Store

	// retryDelay is the pause between read retries. Tests shrink it.
	retryDelay time.Duration
}

// NewQueryService creates a query service over the given store.
func NewQueryService(store *Store) *QueryService {
	return &QueryService{
		store:      store,
		retryDelay: 100 * time.Millisecond,
	}
}

// Page is a paginated listing result.
type Page struct {
	Results []Article `json:"results"`
	Total   int       `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
}

// PendingArticle is a pending article together with its live tally, as shown
// on the verification view.
type PendingArticle struct {
	Article
	Tally        Tally   `json:"tally"`
	ApprovalRate float64 `json:"approval_rate"`
}

// clampLimit normalizes a caller-supplied page size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// withRetry runs a storage read, retrying transient failures a bounded number
// of times before surfacing the last error.
func (q *QueryService) withRetry(read func() error) error {
	var err error
	for attempt := 0; attempt < readRetries; attempt++ {
		if err = read(); err == nil {
			return nil
		}
		// Domain conditions like not_found are not transient; only raw
		// storage failures are worth another attempt.
		if KindOf(err) != KindStorageUnavailable {
			return err
		}
		if attempt < readRetries-1 {
			time.Sleep(q.retryDelay)
		}
	}
	return err
}

// ListApproved returns approved articles, most recent first.
func (q *QueryService) ListApproved(limit, offset int) (*Page, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	var articles []Article
	var total int
	err := q.withRetry(func() error {
		var err error
		if articles, err = q.store.ListByState(StateApproved, limit, offset); err != nil {
			return err
		}
		total, err = q.store.CountByState(StateApproved)
		return err
	})
	if err != nil {
		return nil, err
	}

	if articles == nil {
		articles = []Article{}
	}
	return &Page{Results: articles, Total: total, Limit: limit, Offset: offset}, nil
}

// Search returns approved articles matching the term, most recent first. An
// empty term matches nothing.
func (q *QueryService) Search(term string, limit, offset int) (*Page, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	if term == "" {
		return &Page{Results: []Article{}, Limit: limit, Offset: offset}, nil
	}

	var articles []Article
	var total int
	err := q.withRetry(func() error {
		var err error
		if articles, err = q.store.SearchApproved(term, limit, offset); err != nil {
			return err
		}
		total, err = q.store.CountSearchApproved(term)
		return err
	})
	if err != nil {
		return nil, err
	}

	if articles == nil {
		articles = []Article{}
	}
	return &Page{Results: articles, Total: total, Limit: limit, Offset: offset}, nil
}

// ListPending returns pending articles with their tallies, most recent first.
// This backs the verification view where moderators pick articles to vote on.
func (q *QueryService) ListPending(limit, offset int) ([]PendingArticle, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	var articles []Article
	err := q.withRetry(func() error {
		var err error
		articles, err = q.store.ListByState(StatePending, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}

	pending := make([]PendingArticle, 0, len(articles))
	for _, article := range articles {
		var tally Tally
		err := q.withRetry(func() error {
			var err error
			tally, err = q.store.Tally(article.ID)
			return err
		})
		if err != nil {
			return nil, err
		}

		rate, _ := tally.Rate()
		pending = append(pending, PendingArticle{
			Article:      article,
			Tally:        tally,
			ApprovalRate: rate,
		})
	}

	return pending, nil
}

// CountPending returns the number of articles awaiting moderation.
func (q *QueryService) CountPending() (int, error) {
	var total int
	err := q.withRetry(func() error {
		var err error
		total, err = q.store.CountByState(StatePending)
		return err
	})
	return total, err
}

// GetArticle returns a single article by id, any state.
func (q *QueryService) GetArticle(id uuid.UUID) (*Article, error) {
	var article *Article
	err := q.withRetry(func() error {
		var err error
		article, err = q.store.GetArticle(id)
		return err
	})
	return article, err
}
