package appeal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/modguard/internal/domain"
	"github.com/xela07ax/modguard/internal/redact"
	"go.uber.org/zap"
)

type fakeAppealRepo struct {
	appeals     map[string]*domain.Appeal
	latest      map[string]*domain.Appeal
	resolveCall int
	insertErr   error
}

func newFakeAppealRepo() *fakeAppealRepo {
	return &fakeAppealRepo{
		appeals: make(map[string]*domain.Appeal),
		latest:  make(map[string]*domain.Appeal),
	}
}

func (f *fakeAppealRepo) InsertAppeal(_ context.Context, a domain.Appeal) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := a
	f.appeals[a.ID] = &cp
	f.latest[a.Identity] = &cp
	return nil
}

func (f *fakeAppealRepo) GetAppealByID(_ context.Context, id string) (*domain.Appeal, error) {
	return f.appeals[id], nil
}

func (f *fakeAppealRepo) LatestAppealByIdentity(_ context.Context, identity string) (*domain.Appeal, error) {
	return f.latest[identity], nil
}

func (f *fakeAppealRepo) ResolveAppeal(_ context.Context, id string, status domain.AppealStatus, reviewerID, note string) (string, error) {
	f.resolveCall++
	a, ok := f.appeals[id]
	if !ok || a.Status != domain.AppealPending {
		return "", domain.ErrNotFound
	}
	a.Status = status
	a.ReviewerID = &reviewerID
	a.ReviewerNote = &note
	return a.Identity, nil
}

func (f *fakeAppealRepo) FindAppeals(_ context.Context, status domain.AppealStatus, limit int) ([]*domain.Appeal, error) {
	out := make([]*domain.Appeal, 0)
	for _, a := range f.appeals {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeLifter struct {
	lifted []string
	err    error
}

func (f *fakeLifter) Lift(_ context.Context, identity string) error {
	if f.err != nil {
		return f.err
	}
	f.lifted = append(f.lifted, identity)
	return nil
}

func newTestService(repo Repository, lifter BanLifter) *Service {
	return NewService(repo, lifter, redact.New(), zap.NewNop())
}

func TestCreateValidation(t *testing.T) {
	s := newTestService(newFakeAppealRepo(), &fakeLifter{})

	_, err := s.Create(context.Background(), "", "please unban me")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Create(context.Background(), "user-1", "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateRedactsMessage(t *testing.T) {
	repo := newFakeAppealRepo()
	s := newTestService(repo, &fakeLifter{})

	a, err := s.Create(context.Background(), "user-1", "contact me at user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "contact me at [email]", a.Message)
	assert.Equal(t, domain.AppealPending, a.Status)
	assert.Equal(t, a.Message, repo.appeals[a.ID].Message, "raw message must not be persisted")
}

func TestCreateRateLimit(t *testing.T) {
	assert := assert.New(t)
	repo := newFakeAppealRepo()
	s := newTestService(repo, &fakeLifter{})

	// Свежая апелляция 3 дня назад — лимит действует независимо от исхода
	repo.latest["user-1"] = &domain.Appeal{
		Identity:  "user-1",
		Status:    domain.AppealDenied,
		CreatedAt: time.Now().Add(-3 * 24 * time.Hour),
	}
	_, err := s.Create(context.Background(), "user-1", "try again")
	assert.ErrorIs(err, domain.ErrRateLimited)

	// 8 дней назад — окно прошло
	repo.latest["user-1"].CreatedAt = time.Now().Add(-8 * 24 * time.Hour)
	_, err = s.Create(context.Background(), "user-1", "try again")
	assert.NoError(err)
}

func TestResolveInvalidDecisionBeforeAnyMutation(t *testing.T) {
	repo := newFakeAppealRepo()
	s := newTestService(repo, &fakeLifter{})

	err := s.Resolve(context.Background(), "id-1", "maybe", "rev-1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)
	assert.Zero(t, repo.resolveCall, "invalid decision must be rejected before touching storage")
}

func TestResolveApprovedLiftsBan(t *testing.T) {
	assert := assert.New(t)
	repo := newFakeAppealRepo()
	lifter := &fakeLifter{}
	s := newTestService(repo, lifter)

	a, err := s.Create(context.Background(), "user-1", "i promise to behave")
	require.NoError(t, err)

	require.NoError(t, s.Resolve(context.Background(), a.ID, "approved", "rev-1", "fair enough"))
	assert.Equal([]string{"user-1"}, lifter.lifted)
	assert.Equal(domain.AppealApproved, repo.appeals[a.ID].Status)
}

func TestResolveDeniedKeepsBan(t *testing.T) {
	repo := newFakeAppealRepo()
	lifter := &fakeLifter{}
	s := newTestService(repo, lifter)

	a, err := s.Create(context.Background(), "user-1", "unban me")
	require.NoError(t, err)

	require.NoError(t, s.Resolve(context.Background(), a.ID, "denied", "rev-1", "no"))
	assert.Empty(t, lifter.lifted)
	assert.Equal(t, domain.AppealDenied, repo.appeals[a.ID].Status)
}

func TestResolveDoubleDecision(t *testing.T) {
	repo := newFakeAppealRepo()
	s := newTestService(repo, &fakeLifter{})

	a, err := s.Create(context.Background(), "user-1", "unban me")
	require.NoError(t, err)

	require.NoError(t, s.Resolve(context.Background(), a.ID, "denied", "rev-1", ""))

	// Повторное решение отклоняется: терминальный статус неизменяем
	err = s.Resolve(context.Background(), a.ID, "approved", "rev-2", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.AppealDenied, repo.appeals[a.ID].Status)
}

func TestGetMissingAppeal(t *testing.T) {
	s := newTestService(newFakeAppealRepo(), &fakeLifter{})

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateStorageFailure(t *testing.T) {
	repo := newFakeAppealRepo()
	repo.insertErr = errors.New("disk full")
	s := newTestService(repo, &fakeLifter{})

	_, err := s.Create(context.Background(), "user-1", "message")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
