package review

import (
	"slices"

	"github.com/sells-group/connect-cli/internal/model"
)

// Queue is the ordered working set of one review session. The cursor always
// points at a valid index unless the queue is empty.
type Queue struct {
	cards  []model.PendingCard
	cursor int
}

// NewQueue orders cards by scan time, oldest first. Ties keep input order.
func NewQueue(cards []model.PendingCard) *Queue {
	cs := slices.Clone(cards)
	slices.SortStableFunc(cs, func(a, b model.PendingCard) int {
		return a.ScannedAt.Compare(b.ScannedAt)
	})
	return &Queue{cards: cs}
}

// Len returns the number of cards left.
func (q *Queue) Len() int { return len(q.cards) }

// Empty reports whether nothing is left to review.
func (q *Queue) Empty() bool { return len(q.cards) == 0 }

// Cursor returns the current index, or -1 when empty.
func (q *Queue) Cursor() int {
	if q.Empty() {
		return -1
	}
	return q.cursor
}

// Current returns the card under the cursor.
func (q *Queue) Current() (model.PendingCard, bool) {
	if q.Empty() {
		return model.PendingCard{}, false
	}
	return q.cards[q.cursor], true
}

// Seek moves the cursor to i.
func (q *Queue) Seek(i int) error {
	if i < 0 || i >= len(q.cards) {
		return ErrIndexOutOfRange
	}
	q.cursor = i
	return nil
}

// RemoveCurrent drops the card under the cursor and clamps the cursor to
// min(cursor, len-1), so the card that followed the removed one becomes
// current.
func (q *Queue) RemoveCurrent() (model.PendingCard, bool) {
	if q.Empty() {
		return model.PendingCard{}, false
	}
	removed := q.cards[q.cursor]
	q.cards = slices.Delete(q.cards, q.cursor, q.cursor+1)
	q.cursor = min(q.cursor, len(q.cards)-1)
	if q.cursor < 0 {
		q.cursor = 0
	}
	return removed, true
}

// IDs returns the card ids in queue order.
func (q *Queue) IDs() []string {
	out := make([]string, 0, len(q.cards))
	for _, c := range q.cards {
		out = append(out, c.ID)
	}
	return out
}
