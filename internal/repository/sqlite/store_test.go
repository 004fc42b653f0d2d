package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/modguard/internal/audit"
	"github.com/xela07ax/modguard/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestCountInfractionsSinceStrictBound(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	insert := func(identity string, sev domain.Severity, ts time.Time) {
		require.NoError(t, store.InsertInfraction(ctx, domain.InfractionRecord{
			ID: uuid.New().String(), Identity: identity, Severity: sev,
			Category: "profanity", Timestamp: ts,
		}))
	}

	insert("u", domain.SeverityL1, base.Add(-2*time.Hour))
	insert("u", domain.SeverityL1, base.Add(-time.Hour))
	insert("u", domain.SeverityL1, base)
	insert("u", domain.SeverityL2, base) // другая ступень не считается
	insert("v", domain.SeverityL1, base) // другой identity не считается

	// Граница строгая: запись ровно в since выпадает из окна
	n, err := store.CountInfractionsSince(ctx, "u", domain.SeverityL1, base.Add(-time.Hour))
	assert.NoError(err)
	assert.Equal(1, n)

	n, err = store.CountInfractionsSince(ctx, "u", domain.SeverityL1, base.Add(-3*time.Hour))
	assert.NoError(err)
	assert.Equal(3, n)
}

func TestBanUpsertKeepsSingleRecord(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	until := time.Now().Add(time.Hour).UTC()
	require.NoError(t, store.UpsertBan(ctx, domain.BanRecord{
		Identity: "u", Status: domain.BanStatusCooldown, Until: &until, LastUpdated: time.Now(),
	}))

	// Повторный upsert того же identity перезаписывает, а не дублирует
	require.NoError(t, store.UpsertBan(ctx, domain.BanRecord{
		Identity: "u", Status: domain.BanStatusBanned, Until: nil, LastUpdated: time.Now(),
	}))

	rec, err := store.GetBan(ctx, "u")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(domain.BanStatusBanned, rec.Status)
	assert.Nil(rec.Until)

	n, err := store.CountActiveBans(ctx, time.Now())
	assert.NoError(err)
	assert.Equal(int64(1), n)
}

func TestGetBanMissing(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.GetBan(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDeleteExpiredBans(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	require.NoError(t, store.UpsertBan(ctx, domain.BanRecord{Identity: "expired", Status: domain.BanStatusCooldown, Until: &past}))
	require.NoError(t, store.UpsertBan(ctx, domain.BanRecord{Identity: "active", Status: domain.BanStatusSuspended, Until: &future}))
	require.NoError(t, store.UpsertBan(ctx, domain.BanRecord{Identity: "permanent", Status: domain.BanStatusBanned}))

	removed, err := store.DeleteExpiredBans(ctx, now)
	assert.NoError(err)
	assert.Equal(int64(1), removed)

	rec, _ := store.GetBan(ctx, "active")
	assert.NotNil(rec)
	rec, _ = store.GetBan(ctx, "permanent")
	assert.NotNil(rec, "permanent bans are never swept")
}

func TestResolveAppealDoubleDecision(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	a := domain.Appeal{
		ID: uuid.New().String(), Identity: "u", Message: "unban me",
		Status: domain.AppealPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, store.InsertAppeal(ctx, a))

	identity, err := store.ResolveAppeal(ctx, a.ID, domain.AppealApproved, "rev-1", "ok")
	require.NoError(t, err)
	assert.Equal("u", identity)

	// Условный UPDATE по pending: второе решение не проходит
	_, err = store.ResolveAppeal(ctx, a.ID, domain.AppealDenied, "rev-2", "no")
	assert.ErrorIs(err, domain.ErrNotFound)

	got, err := store.GetAppealByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(domain.AppealApproved, got.Status)
	require.NotNil(t, got.ReviewerID)
	assert.Equal("rev-1", *got.ReviewerID)
}

func TestLatestAppealByIdentity(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.LatestAppealByIdentity(ctx, "u")
	assert.NoError(err)
	assert.Nil(got, "no appeals yet")

	old := domain.Appeal{ID: uuid.New().String(), Identity: "u", Message: "first",
		Status: domain.AppealDenied, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := domain.Appeal{ID: uuid.New().String(), Identity: "u", Message: "second",
		Status: domain.AppealPending, CreatedAt: time.Now()}
	require.NoError(t, store.InsertAppeal(ctx, old))
	require.NoError(t, store.InsertAppeal(ctx, fresh))

	got, err = store.LatestAppealByIdentity(ctx, "u")
	require.NoError(t, err)
	assert.Equal(fresh.ID, got.ID)
}

func TestAuditWriteBatchAndFetch(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	entries := []audit.Entry{
		{EventID: uuid.New().String(), Identity: "u", Category: "spam", Severity: "L1",
			ActionTaken: "none", ContentFingerprint: audit.Fingerprint("a"), Timestamp: time.Now().Add(-time.Minute)},
		{EventID: uuid.New().String(), Identity: "u", Category: "hate_speech", Severity: "L2",
			ActionTaken: "suspend", ContentFingerprint: audit.Fingerprint("b"), Timestamp: time.Now()},
		{EventID: uuid.New().String(), Identity: "v", Category: "spam", Severity: "L1",
			ActionTaken: "none", ContentFingerprint: audit.Fingerprint("c"), Timestamp: time.Now()},
	}
	require.NoError(t, store.WriteBatch(ctx, entries))

	got, err := store.FetchEntries(ctx, "u", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Свежие записи первыми
	assert.Equal("hate_speech", got[0].Category)

	all, err := store.FetchEntries(ctx, "", 10)
	assert.NoError(err)
	assert.Len(all, 3)
}
