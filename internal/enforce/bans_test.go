package enforce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/modguard/internal/domain"
	"go.uber.org/zap"
)

type fakeBanRepo struct {
	bans    map[string]*domain.BanRecord
	getErr  error
	deletes []string
}

func newFakeBanRepo() *fakeBanRepo {
	return &fakeBanRepo{bans: make(map[string]*domain.BanRecord)}
}

func (f *fakeBanRepo) GetBan(_ context.Context, identity string) (*domain.BanRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.bans[identity], nil
}

func (f *fakeBanRepo) UpsertBan(_ context.Context, rec domain.BanRecord) error {
	f.bans[rec.Identity] = &rec
	return nil
}

func (f *fakeBanRepo) DeleteBan(_ context.Context, identity string) error {
	delete(f.bans, identity)
	f.deletes = append(f.deletes, identity)
	return nil
}

func (f *fakeBanRepo) DeleteExpiredBans(_ context.Context, now time.Time) (int64, error) {
	var removed int64
	for id, rec := range f.bans {
		if rec.Expired(now) {
			delete(f.bans, id)
			removed++
		}
	}
	return removed, nil
}

type stubState struct{ enabled bool }

func (s stubState) Enabled() bool { return s.enabled }

func TestGetStatusNoRecord(t *testing.T) {
	l := NewLifecycle(newFakeBanRepo(), stubState{enabled: true}, nil, zap.NewNop())

	st := l.GetStatus(context.Background(), "user-1")
	assert.True(t, st.Allowed)
	assert.Empty(t, st.Status)
}

func TestGetStatusActiveBan(t *testing.T) {
	assert := assert.New(t)
	repo := newFakeBanRepo()
	l := NewLifecycle(repo, stubState{enabled: true}, nil, zap.NewNop())

	until := time.Now().Add(time.Hour)
	repo.bans["user-1"] = &domain.BanRecord{
		Identity: "user-1",
		Status:   domain.BanStatusCooldown,
		Until:    &until,
		Reason:   "matched category profanity (L1)",
	}

	st := l.GetStatus(context.Background(), "user-1")
	assert.False(st.Allowed)
	assert.Equal(domain.BanStatusCooldown, st.Status)
	require.NotNil(t, st.Until)
	assert.Equal(until, *st.Until)
}

func TestGetStatusLazyExpiry(t *testing.T) {
	assert := assert.New(t)
	repo := newFakeBanRepo()
	l := NewLifecycle(repo, stubState{enabled: true}, nil, zap.NewNop())

	past := time.Now().Add(-time.Minute)
	repo.bans["user-1"] = &domain.BanRecord{
		Identity: "user-1",
		Status:   domain.BanStatusSuspended,
		Until:    &past,
	}

	st := l.GetStatus(context.Background(), "user-1")
	assert.True(st.Allowed, "expired ban must not block")
	assert.Contains(repo.deletes, "user-1", "expired record is removed on read")
}

func TestGetStatusPermanentBanNeverExpires(t *testing.T) {
	repo := newFakeBanRepo()
	l := NewLifecycle(repo, stubState{enabled: true}, nil, zap.NewNop())

	repo.bans["user-1"] = &domain.BanRecord{
		Identity: "user-1",
		Status:   domain.BanStatusBanned,
		Until:    nil, // перманентно
	}

	st := l.GetStatus(context.Background(), "user-1")
	assert.False(t, st.Allowed)
	assert.Equal(t, domain.BanStatusBanned, st.Status)
	assert.Nil(t, st.Until)
}

func TestGetStatusEnforcementDisabled(t *testing.T) {
	repo := newFakeBanRepo()
	// Запись есть, но рубильник выключен — в хранилище даже не ходим
	repo.getErr = errors.New("must not be called")
	l := NewLifecycle(repo, stubState{enabled: false}, nil, zap.NewNop())

	st := l.GetStatus(context.Background(), "user-1")
	assert.True(t, st.Allowed)
}

func TestGetStatusFailOpen(t *testing.T) {
	assert := assert.New(t)
	repo := newFakeBanRepo()
	repo.getErr = errors.New("storage down")
	l := NewLifecycle(repo, stubState{enabled: true}, nil, zap.NewNop())

	failOpens := 0
	l.OnFailOpen(func() { failOpens++ })

	st := l.GetStatus(context.Background(), "user-1")
	assert.True(st.Allowed, "storage failure degrades to allow")
	assert.Equal(1, failOpens)
}

func TestApplyAndLift(t *testing.T) {
	assert := assert.New(t)
	repo := newFakeBanRepo()
	l := NewLifecycle(repo, stubState{enabled: true}, nil, zap.NewNop())

	dur := 7 * 24 * time.Hour
	require.NoError(t, l.Apply(context.Background(), "user-1", domain.ActionSuspend, &dur, "repeat L2"))

	rec := repo.bans["user-1"]
	require.NotNil(t, rec)
	assert.Equal(domain.BanStatusSuspended, rec.Status)
	require.NotNil(t, rec.Until)

	// Перманентная мера: duration == nil -> Until == nil
	require.NoError(t, l.Apply(context.Background(), "user-1", domain.ActionBan, nil, "L3"))
	assert.Nil(repo.bans["user-1"].Until)

	// Снятие идемпотентно
	require.NoError(t, l.Lift(context.Background(), "user-1"))
	require.NoError(t, l.Lift(context.Background(), "user-1"))
	assert.Nil(repo.bans["user-1"])
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	assert := assert.New(t)
	repo := newFakeBanRepo()
	l := NewLifecycle(repo, stubState{enabled: true}, nil, zap.NewNop())

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	repo.bans["expired"] = &domain.BanRecord{Identity: "expired", Until: &past}
	repo.bans["active"] = &domain.BanRecord{Identity: "active", Until: &future}
	repo.bans["permanent"] = &domain.BanRecord{Identity: "permanent"}

	removed, err := l.Sweep(context.Background())
	assert.NoError(err)
	assert.Equal(int64(1), removed)
	assert.Nil(repo.bans["expired"])
	assert.NotNil(repo.bans["active"])
	assert.NotNil(repo.bans["permanent"])
}
