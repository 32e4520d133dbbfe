package newsvote

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// errDuplicateContent reports an article insert that collided with an
// existing row's content hash. The caller resolves it by fetching the
// article that already holds the content.
var errDuplicateContent = errors.New("article with identical content already exists")

// Store persists articles and their votes using SQLite. The votes table is
// append-only and carries a UNIQUE(article_id, voter) index, so the
// duplicate-vote invariant holds at the data layer even if the process
// restarts mid-flight.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// concurrent statements from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		headline TEXT NOT NULL,
		body TEXT NOT NULL,
		author TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		decided_at TEXT
	);

	CREATE TABLE IF NOT EXISTS votes (
		article_id TEXT NOT NULL,
		voter TEXT NOT NULL,
		action TEXT NOT NULL,
		cast_at TEXT NOT NULL,
		UNIQUE (article_id, voter)
	);

	CREATE INDEX IF NOT EXISTS idx_articles_state ON articles (state, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertArticle inserts a new article row.
func (s *Store) InsertArticle(article *Article) error {
	query := `
		INSERT INTO articles (id, headline, body, author, content_hash, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		article.ID.String(),
		article.Headline,
		article.Body,
		article.Author,
		ContentHash(article.Headline, article.Body, article.Author),
		string(article.State),
		formatTime(&article.CreatedAt),
	)
	if err != nil {
		// A content-hash collision means an identical article landed
		// first; that is a dedupe outcome, not a storage failure.
		if isUniqueViolation(err) && strings.Contains(err.Error(), "articles.content_hash") {
			return errDuplicateContent
		}
		return WrapError(KindStorageUnavailable, err, "failed to insert article")
	}

	return nil
}

// GetArticle retrieves an article by ID. Returns a not_found error when no
// row exists.
func (s *Store) GetArticle(id uuid.UUID) (*Article, error) {
	query := `
		SELECT id, headline, body, author, state, created_at, decided_at
		FROM articles
		WHERE id = ?
	`

	article, err := s.scanArticle(s.db.QueryRow(query, id.String()))
	if err == sql.ErrNoRows {
		return nil, NewError(KindNotFound, "article %s not found", id)
	}
	if err != nil {
		return nil, WrapError(KindStorageUnavailable, err, "failed to query article")
	}

	return article, nil
}

// GetArticleByContentHash finds an article with identical content, if one has
// been submitted before.
func (s *Store) GetArticleByContentHash(hash string) (*Article, error) {
	query := `
		SELECT id, headline, body, author, state, created_at, decided_at
		FROM articles
		WHERE content_hash = ?
	`

	article, err := s.scanArticle(s.db.QueryRow(query, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(KindStorageUnavailable, err, "failed to query article by hash")
	}

	return article, nil
}

// ListByState lists articles in the given state, most recent first.
func (s *Store) ListByState(state State, limit, offset int) ([]Article, error) {
	query := `
		SELECT id, headline, body, author, state, created_at, decided_at
		FROM articles
		WHERE state = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(query, string(state), limit, offset)
	if err != nil {
		return nil, WrapError(KindStorageUnavailable, err, "failed to query articles")
	}
	defer rows.Close()

	return s.collectArticles(rows)
}

// CountByState returns the number of articles in the given state.
func (s *Store) CountByState(state State) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM articles WHERE state = ?", string(state)).Scan(&count)
	if err != nil {
		return 0, WrapError(KindStorageUnavailable, err, "failed to count articles")
	}
	return count, nil
}

// SearchApproved finds approved articles whose headline or body contains the
// term, case-insensitively, most recent first. Only approved articles are
// ever matched; pending and disapproved content must not leak through the
// search path.
func (s *Store) SearchApproved(term string, limit, offset int) ([]Article, error) {
	query := `
		SELECT id, headline, body, author, state, created_at, decided_at
		FROM articles
		WHERE state = ? AND (headline LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\')
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	pattern := "%" + escapeLike(term) + "%"
	rows, err := s.db.Query(query, string(StateApproved), pattern, pattern, limit, offset)
	if err != nil {
		return nil, WrapError(KindStorageUnavailable, err, "failed to search articles")
	}
	defer rows.Close()

	return s.collectArticles(rows)
}

// CountSearchApproved returns the number of approved articles matching the
// term, so paginated search can report the full match count.
func (s *Store) CountSearchApproved(term string) (int, error) {
	query := `
		SELECT COUNT(*) FROM articles
		WHERE state = ? AND (headline LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\')
	`

	pattern := "%" + escapeLike(term) + "%"
	var count int
	err := s.db.QueryRow(query, string(StateApproved), pattern, pattern).Scan(&count)
	if err != nil {
		return 0, WrapError(KindStorageUnavailable, err, "failed to count search matches")
	}
	return count, nil
}

// UpdateState moves an article to a new state. The WHERE clause requires the
// expected current state, so a lost race surfaces as zero rows affected
// instead of silently overwriting a terminal decision.
func (s *Store) UpdateState(id uuid.UUID, from, to State, decidedAt time.Time) error {
	query := `
		UPDATE articles SET state = ?, decided_at = ?
		WHERE id = ? AND state = ?
	`

	result, err := s.db.Exec(query, string(to), formatTime(&decidedAt), id.String(), string(from))
	if err != nil {
		return WrapError(KindStorageUnavailable, err, "failed to update article state")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return WrapError(KindStorageUnavailable, err, "failed to get rows affected")
	}
	if rows == 0 {
		return NewError(KindNotVotable, "article %s is not in state %s", id, from)
	}

	return nil
}

// InsertVote appends a vote to the ledger. A second vote by the same voter on
// the same article violates the unique index and is reported as
// duplicate_vote.
func (s *Store) InsertVote(vote *Vote) error {
	query := `
		INSERT INTO votes (article_id, voter, action, cast_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		vote.ArticleID.String(),
		vote.Voter,
		string(vote.Action),
		formatTime(&vote.CastAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return NewError(KindDuplicateVote, "voter %s already voted on article %s", vote.Voter, vote.ArticleID)
		}
		return WrapError(KindStorageUnavailable, err, "failed to insert vote")
	}

	return nil
}

// HasVoted reports whether the voter already has a counted vote on the
// article. The ledger, not any in-memory state, answers this question.
func (s *Store) HasVoted(articleID uuid.UUID, voter string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM votes WHERE article_id = ? AND voter = ?",
		articleID.String(), voter,
	).Scan(&count)
	if err != nil {
		return false, WrapError(KindStorageUnavailable, err, "failed to query votes")
	}
	return count > 0, nil
}

// Tally returns the vote counts for an article.
func (s *Store) Tally(articleID uuid.UUID) (Tally, error) {
	query := `
		SELECT
			COUNT(CASE WHEN action = 'approve' THEN 1 END),
			COUNT(CASE WHEN action = 'disapprove' THEN 1 END)
		FROM votes
		WHERE article_id = ?
	`

	var tally Tally
	err := s.db.QueryRow(query, articleID.String()).Scan(&tally.Approvals, &tally.Disapprovals)
	if err != nil {
		return Tally{}, WrapError(KindStorageUnavailable, err, "failed to tally votes")
	}

	return tally, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanArticle.
type scanner interface {
	Scan(dest ...any) error
}

// scanArticle reads one article row.
func (s *Store) scanArticle(row scanner) (*Article, error) {
	var article Article
	var idStr, stateStr, createdAtStr string
	var decidedAtStr sql.NullString

	err := row.Scan(
		&idStr, &article.Headline, &article.Body, &article.Author,
		&stateStr, &createdAtStr, &decidedAtStr,
	)
	if err != nil {
		return nil, err
	}

	article.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse article id %q: %w", idStr, err)
	}
	article.State = State(stateStr)
	article.CreatedAt = parseTime(createdAtStr)
	if decidedAtStr.Valid {
		t := parseTime(decidedAtStr.String)
		article.DecidedAt = &t
	}

	return &article, nil
}

// collectArticles reads all article rows.
func (s *Store) collectArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		article, err := s.scanArticle(rows)
		if err != nil {
			return nil, WrapError(KindStorageUnavailable, err, "failed to scan article")
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(KindStorageUnavailable, err, "failed to read article rows")
	}

	return articles, nil
}

// isUniqueViolation recognizes a SQLite unique-constraint failure without
// depending on driver error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// escapeLike escapes LIKE metacharacters in a user-supplied search term.
func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
