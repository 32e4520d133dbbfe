package newsvote

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"

	"github.com/google/uuid"
)

// State describes where an article is in its moderation lifecycle. Articles
// start as pending and move to exactly one of the terminal states; a terminal
// article never transitions again and never accepts further votes.
type State string

const (
	StatePending     State = "pending"
	StateApproved    State = "approved"
	StateDisapproved State = "disapproved"
)

// IsTerminal returns true for states that accept no further votes.
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateDisapproved
}

// Action is a single voter's verdict on a pending article.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionDisapprove Action = "disapprove"
)

// ParseAction validates a user-supplied action string.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionApprove, ActionDisapprove:
		return Action(s), true
	default:
		return "", false
	}
}

// Article represents a submitted news article. Headline, body, and author are
// immutable after submission; only the moderation engine changes State.
type Article struct {
	ID        uuid.UUID  `json:"id"`
	Headline  string     `json:"headline"`
	Body      string     `json:"body"`
	Author    string     `json:"author"`
	State     State      `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// Vote is one voter's recorded verdict. Votes are append-only: once cast they
// are never updated or removed, and at most one vote per (article, voter)
// pair is ever counted.
type Vote struct {
	ArticleID uuid.UUID `json:"article_id"`
	Voter     string    `json:"voter"`
	Action    Action    `json:"action"`
	CastAt    time.Time `json:"cast_at"`
}

// Tally holds the vote counts for one article.
type Tally struct {
	Approvals    int `json:"approvals"`
	Disapprovals int `json:"disapprovals"`
}

// Total returns the number of counted votes.
func (t Tally) Total() int {
	return t.Approvals + t.Disapprovals
}

// Rate returns the approval rate as a percentage rounded to one decimal
// place. The second return is false when no votes have been cast, in which
// case the rate is reported as 0.
func (t Tally) Rate() (float64, bool) {
	total := t.Total()
	if total == 0 {
		return 0, false
	}
	rate := float64(t.Approvals) / float64(total) * 100
	return math.Round(rate*10) / 10, true
}

// ContentHash derives a stable fingerprint for an article's immutable
// content. Resubmissions of identical content map to the same hash, which is
// how the intake recognizes an article it has already seen.
func ContentHash(headline, body, author string) string {
	h := sha256.New()
	h.Write([]byte(headline))
	h.Write([]byte{0})
	h.Write([]byte(body))
	h.Write([]byte{0})
	h.Write([]byte(author))
	return hex.EncodeToString(h.Sum(nil))
}
