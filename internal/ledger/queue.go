package ledger

import "github.com/vadiminshakov/binstatement/internal/domain"

const compactThreshold = 64

// lotQueue FIFO deque of lots. Popped slots are reclaimed once they dominate the backing slice.
type lotQueue struct {
	items []domain.Lot
	head  int
}

func (q *lotQueue) push(lot domain.Lot) {
	q.items = append(q.items, lot)
}

func (q *lotQueue) empty() bool {
	return q.head >= len(q.items)
}

func (q *lotQueue) front() *domain.Lot {
	return &q.items[q.head]
}

func (q *lotQueue) pop() {
	q.items[q.head] = domain.Lot{}
	q.head++
	if q.head >= compactThreshold && q.head*2 >= len(q.items) {
		q.items = append([]domain.Lot(nil), q.items[q.head:]...)
		q.head = 0
	}
}

func (q *lotQueue) snapshot() []domain.Lot {
	out := make([]domain.Lot, len(q.items)-q.head)
	copy(out, q.items[q.head:])
	return out
}
