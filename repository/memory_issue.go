package repository

import (
	"context"
	"sync"
	"sync/atomic"

	"civicsync/models"
)

// MemoryIssueRepository keeps the collection as an immutable snapshot.
// Writers are serialized and publish a new slice in which exactly one record
// differs; readers load the current snapshot without locking and never see a
// half-applied mutation.
type MemoryIssueRepository struct {
	mu   sync.Mutex
	snap atomic.Pointer[[]models.Issue]
}

func NewMemoryIssueRepository(seed ...models.Issue) *MemoryIssueRepository {
	r := &MemoryIssueRepository{}
	initial := make([]models.Issue, 0, len(seed))
	for _, issue := range seed {
		initial = append(initial, issue.Clone())
	}
	r.snap.Store(&initial)
	return r
}

func (r *MemoryIssueRepository) snapshot() []models.Issue {
	return *r.snap.Load()
}

func (r *MemoryIssueRepository) List(ctx context.Context) ([]models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := r.snapshot()
	out := make([]models.Issue, len(snap))
	for i, issue := range snap {
		out[i] = issue.Clone()
	}
	return out, nil
}

func (r *MemoryIssueRepository) ListByCreator(ctx context.Context, userID string) ([]models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []models.Issue{}
	for _, issue := range r.snapshot() {
		if issue.CreatedByID == userID {
			out = append(out, issue.Clone())
		}
	}
	return out, nil
}

func (r *MemoryIssueRepository) Get(ctx context.Context, id string) (models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return models.Issue{}, err
	}
	for _, issue := range r.snapshot() {
		if issue.ID == id {
			return issue.Clone(), nil
		}
	}
	return models.Issue{}, ErrNotFound
}

func (r *MemoryIssueRepository) Insert(ctx context.Context, issue models.Issue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	for _, existing := range cur {
		if existing.ID == issue.ID {
			return ErrDuplicate
		}
	}
	next := make([]models.Issue, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, issue.Clone())
	r.snap.Store(&next)
	return nil
}

func (r *MemoryIssueRepository) Update(ctx context.Context, id string, mutate Mutator) (models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return models.Issue{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	idx := -1
	for i := range cur {
		if cur[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Issue{}, ErrNotFound
	}

	updated := cur[idx].Clone()
	if err := mutate(&updated); err != nil {
		return models.Issue{}, err
	}
	updated.ID = id
	updated.Version = cur[idx].Version + 1

	next := make([]models.Issue, len(cur))
	copy(next, cur)
	next[idx] = updated
	r.snap.Store(&next)
	return updated.Clone(), nil
}
