package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"civicsync/apperr"
	"civicsync/metrics"
	"civicsync/models"
	"civicsync/repository"
	"civicsync/utils"

	"go.uber.org/zap"
)

// IssueDraft is the content submitted when reporting an issue.
type IssueDraft struct {
	Title       string
	Description string
	ImageURL    *string
	Category    string
	Location    *models.Location
}

// IssueStore owns the issue collection. Writes are stamped with the identity
// of the bound session; use WithIdentity to get a handle for another session.
type IssueStore struct {
	repo     repository.IssueRepository
	identity Identity
	ids      *utils.IDGenerator
	now      func() time.Time
	latency  time.Duration
	policy   TransitionPolicy
	log      *zap.Logger
	inflight *atomic.Int32
}

type Option func(*IssueStore)

func WithLatency(d time.Duration) Option {
	return func(s *IssueStore) { s.latency = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *IssueStore) { s.now = now }
}

func WithIDs(ids *utils.IDGenerator) Option {
	return func(s *IssueStore) { s.ids = ids }
}

func WithTransitionPolicy(p TransitionPolicy) Option {
	return func(s *IssueStore) { s.policy = p }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *IssueStore) { s.log = log }
}

func NewIssueStore(repo repository.IssueRepository, identity Identity, opts ...Option) *IssueStore {
	s := &IssueStore{
		repo:     repo,
		identity: identity,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		log:      zap.NewNop(),
		inflight: new(atomic.Int32),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = utils.MustIDGenerator(1)
	}
	return s
}

// WithIdentity returns a handle on the same collection bound to another
// session.
func (s *IssueStore) WithIdentity(identity Identity) *IssueStore {
	cp := *s
	cp.identity = identity
	cp.inflight = new(atomic.Int32)
	return &cp
}

// IsLoading is true while any operation on this handle is in flight.
func (s *IssueStore) IsLoading() bool {
	return s.inflight.Load() > 0
}

func (s *IssueStore) begin(ctx context.Context) (func(), error) {
	s.inflight.Add(1)
	done := func() { s.inflight.Add(-1) }
	if err := roundTrip(ctx, s.latency); err != nil {
		done()
		return nil, err
	}
	return done, nil
}

func (s *IssueStore) actor(action string) (models.User, error) {
	if s.identity != nil {
		if user, ok := s.identity.CurrentUser(); ok {
			return user, nil
		}
	}
	return models.User{}, apperr.AuthenticationRequired("User must be authenticated to %s", action)
}

// touch advances UpdatedAt, keeping it strictly increasing even when the
// clock has not moved since the previous write.
func (s *IssueStore) touch(issue *models.Issue) {
	now := s.now()
	if !now.After(issue.UpdatedAt) {
		now = issue.UpdatedAt.Add(time.Millisecond)
	}
	issue.UpdatedAt = now
}

func notFound(id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Issue %s not found", id)
	}
	return err
}

func (s *IssueStore) ListAll(ctx context.Context) ([]models.Issue, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	issues, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

func (s *IssueStore) ListByCreator(ctx context.Context, userID string) ([]models.Issue, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	issues, err := s.repo.ListByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list issues for %s: %w", userID, err)
	}
	return issues, nil
}

// ListMine lists the issues created by the bound identity; it is empty when
// no one is signed in.
func (s *IssueStore) ListMine(ctx context.Context) ([]models.Issue, error) {
	user, err := s.actor("list their issues")
	if err != nil {
		return []models.Issue{}, nil
	}
	return s.ListByCreator(ctx, user.ID)
}

func (s *IssueStore) GetByID(ctx context.Context, id string) (models.Issue, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return models.Issue{}, err
	}
	defer done()

	issue, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Issue{}, notFound(id, err)
	}
	return issue, nil
}

// Create files a new pending issue on behalf of the current identity.
func (s *IssueStore) Create(ctx context.Context, draft IssueDraft) (models.Issue, error) {
	issue, err := s.create(ctx, draft)
	metrics.ObserveIssueOperation("create", resultOf(err))
	if err != nil {
		return models.Issue{}, err
	}
	s.log.Info("issue created",
		zap.String("issue_id", issue.ID),
		zap.String("created_by", issue.CreatedByID),
		zap.String("category", issue.Category),
	)
	return issue, nil
}

func (s *IssueStore) create(ctx context.Context, draft IssueDraft) (models.Issue, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return models.Issue{}, err
	}
	defer done()

	user, err := s.actor("create an issue")
	if err != nil {
		return models.Issue{}, err
	}
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return models.Issue{}, apperr.Validation("title is required")
	}

	category := strings.TrimSpace(draft.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	location := models.Location{}
	if draft.Location != nil {
		location = *draft.Location
	}

	now := s.now()
	issue := models.Issue{
		ID:            s.ids.NewIssueID(),
		Title:         title,
		Description:   strings.TrimSpace(draft.Description),
		ImageURL:      draft.ImageURL,
		Location:      location,
		Status:        models.Pending,
		CreatedByID:   user.ID,
		CreatedByName: user.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
		Upvotes:       []string{},
		Comments:      []models.Comment{},
		Category:      category,
	}
	if err := s.repo.Insert(ctx, issue); err != nil {
		return models.Issue{}, fmt.Errorf("insert issue: %w", err)
	}
	return issue, nil
}

// SetStatus moves an issue to the given status. Under StrictTransitions only
// start, resolve and reopen are accepted.
func (s *IssueStore) SetStatus(ctx context.Context, id string, status models.IssueStatus) (models.Issue, error) {
	issue, err := s.setStatus(ctx, id, status)
	metrics.ObserveIssueOperation("set_status", resultOf(err))
	if err != nil {
		return models.Issue{}, err
	}
	s.log.Info("issue status updated", zap.String("issue_id", id), zap.String("status", string(status)))
	return issue, nil
}

func (s *IssueStore) setStatus(ctx context.Context, id string, status models.IssueStatus) (models.Issue, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return models.Issue{}, err
	}
	defer done()

	if _, ok := models.ParseStatus(string(status)); !ok {
		return models.Issue{}, apperr.Validation("Invalid status %q", status)
	}
	issue, err := s.repo.Update(ctx, id, func(issue *models.Issue) error {
		if s.policy == StrictTransitions && !CanTransition(issue.Status, status) {
			return apperr.InvalidTransition("Cannot move issue from %s to %s", issue.Status, status)
		}
		issue.Status = status
		s.touch(issue)
		return nil
	})
	if err != nil {
		return models.Issue{}, notFound(id, err)
	}
	return issue, nil
}

// Assign records who is handling an issue, replacing any earlier assignee.
func (s *IssueStore) Assign(ctx context.Context, id, assigneeID, assigneeName string) (models.Issue, error) {
	issue, err := s.assign(ctx, id, assigneeID, assigneeName)
	metrics.ObserveIssueOperation("assign", resultOf(err))
	if err != nil {
		return models.Issue{}, err
	}
	s.log.Info("issue assigned", zap.String("issue_id", id), zap.String("assignee_id", assigneeID))
	return issue, nil
}

func (s *IssueStore) assign(ctx context.Context, id, assigneeID, assigneeName string) (models.Issue, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return models.Issue{}, err
	}
	defer done()

	if strings.TrimSpace(assigneeID) == "" {
		return models.Issue{}, apperr.Validation("assignee id is required")
	}
	issue, err := s.repo.Update(ctx, id, func(issue *models.Issue) error {
		issue.AssignedToID = &assigneeID
		issue.AssignedToName = &assigneeName
		s.touch(issue)
		return nil
	})
	if err != nil {
		return models.Issue{}, notFound(id, err)
	}
	return issue, nil
}

// AddComment appends a comment by the current identity.
func (s *IssueStore) AddComment(ctx context.Context, id, text string) (models.Issue, error) {
	issue, err := s.addComment(ctx, id, text)
	metrics.ObserveIssueOperation("add_comment", resultOf(err))
	if err != nil {
		return models.Issue{}, err
	}
	s.log.Debug("comment added", zap.String("issue_id", id), zap.Int("comments", len(issue.Comments)))
	return issue, nil
}

func (s *IssueStore) addComment(ctx context.Context, id, text string) (models.Issue, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return models.Issue{}, err
	}
	defer done()

	user, err := s.actor("add a comment")
	if err != nil {
		return models.Issue{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Issue{}, apperr.Validation("comment text is required")
	}

	issue, err := s.repo.Update(ctx, id, func(issue *models.Issue) error {
		comment := models.Comment{
			ID:         s.ids.NewCommentID(),
			Text:       text,
			UserID:     user.ID,
			UserName:   user.Name,
			UserAvatar: user.Avatar,
			CreatedAt:  s.now(),
		}
		issue.Comments = append(issue.Comments, comment)
		s.touch(issue)
		return nil
	})
	if err != nil {
		return models.Issue{}, notFound(id, err)
	}
	return issue, nil
}

// ToggleUpvote adds userID to the issue's upvotes, or removes it when
// already present. Upvotes do not count as content changes, so UpdatedAt is
// left alone.
func (s *IssueStore) ToggleUpvote(ctx context.Context, id, userID string) (models.Issue, error) {
	issue, err := s.toggleUpvote(ctx, id, userID)
	metrics.ObserveIssueOperation("toggle_upvote", resultOf(err))
	if err != nil {
		return models.Issue{}, err
	}
	return issue, nil
}

func (s *IssueStore) toggleUpvote(ctx context.Context, id, userID string) (models.Issue, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return models.Issue{}, err
	}
	defer done()

	if _, err := s.actor("upvote"); err != nil {
		return models.Issue{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return models.Issue{}, apperr.Validation("user id is required")
	}
	issue, err := s.repo.Update(ctx, id, func(issue *models.Issue) error {
		issue.ToggleUpvote(userID)
		return nil
	})
	if err != nil {
		return models.Issue{}, notFound(id, err)
	}
	return issue, nil
}
