package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/modguard/internal/audit"
	"github.com/xela07ax/modguard/internal/classify"
	"github.com/xela07ax/modguard/internal/domain"
	"github.com/xela07ax/modguard/internal/enforce"
	"github.com/xela07ax/modguard/internal/ledger"
	"github.com/xela07ax/modguard/internal/policy"
	"github.com/xela07ax/modguard/internal/redact"
	"github.com/xela07ax/modguard/internal/repository/sqlite"
	"go.uber.org/zap"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureAudit) WriteBatch(_ context.Context, entries []audit.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entries...)
	return nil
}

type toggleState struct {
	mu      sync.Mutex
	enabled bool
}

func (s *toggleState) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *toggleState) set(v bool) {
	s.mu.Lock()
	s.enabled = v
	s.mu.Unlock()
}

type coreFixture struct {
	core  *Core
	trail *audit.Trail
	sink  *captureAudit
	state *toggleState
	bans  *enforce.Lifecycle
}

// newCoreFixture собирает ядро на встроенном sqlite (":memory:") —
// полный путь от классификации до персистентности, без моков хранилища.
func newCoreFixture(t *testing.T, enforcement bool) *coreFixture {
	t.Helper()
	logger := zap.NewNop()

	store, err := sqlite.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)

	sink := &captureAudit{}
	trail := audit.NewTrail(sink, logger, 1000, 10*time.Millisecond)
	trail.Start()
	t.Cleanup(trail.Stop)

	state := &toggleState{enabled: enforcement}
	bans := enforce.NewLifecycle(store, state, nil, logger)

	core := NewCore(
		classify.New(classify.DefaultRules),
		redact.New(),
		ledger.New(store, logger),
		trail,
		policy.DefaultTable,
		bans,
		state,
		NewMetrics(nil),
		logger,
	)

	return &coreFixture{core: core, trail: trail, sink: sink, state: state, bans: bans}
}

func (f *coreFixture) auditEntries() []audit.Entry {
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	out := make([]audit.Entry, len(f.sink.entries))
	copy(out, f.sink.entries)
	return out
}

func TestCheckContentValidation(t *testing.T) {
	f := newCoreFixture(t, true)

	_, err := f.core.CheckContent(context.Background(), "", "some text")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.core.CheckContent(context.Background(), "user-1", "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckContentCleanText(t *testing.T) {
	f := newCoreFixture(t, true)

	v, err := f.core.CheckContent(context.Background(), "user-1", "have a wonderful day")
	require.NoError(t, err)
	assert.False(t, v.Flagged)
	assert.Empty(t, v.Action)

	st := f.core.Status(context.Background(), "user-1")
	assert.True(t, st.Allowed)
}

func TestCheckContentL3FirstHitPermanentBan(t *testing.T) {
	assert := assert.New(t)
	f := newCoreFixture(t, true)
	ctx := context.Background()

	v, err := f.core.CheckContent(ctx, "user-1", "i will kill you")
	require.NoError(t, err)
	assert.True(v.Flagged)
	assert.Equal("violent_threat", v.Category)
	assert.Equal(domain.SeverityL3, v.Severity)
	assert.Equal(domain.ActionBan, v.Action)
	assert.Zero(v.DurationMs, "permanent ban carries no duration")

	st := f.core.Status(ctx, "user-1")
	assert.False(st.Allowed)
	assert.Equal(domain.BanStatusBanned, st.Status)
	assert.Nil(st.Until)
}

func TestCheckContentL1Progression(t *testing.T) {
	assert := assert.New(t)
	f := newCoreFixture(t, true)
	ctx := context.Background()

	// Первые два L1 в окне — ниже порога, мер нет
	for i := 0; i < 2; i++ {
		v, err := f.core.CheckContent(ctx, "user-1", "you are an idiot")
		require.NoError(t, err)
		assert.True(v.Flagged)
		assert.Empty(v.Action)
		assert.True(f.core.Status(ctx, "user-1").Allowed)
	}

	// Третье — порог L1, cooldown на час
	v, err := f.core.CheckContent(ctx, "user-1", "you are an idiot")
	require.NoError(t, err)
	assert.Equal(domain.ActionCooldown, v.Action)
	assert.Equal(time.Hour.Milliseconds(), v.DurationMs)

	st := f.core.Status(ctx, "user-1")
	assert.False(st.Allowed)
	assert.Equal(domain.BanStatusCooldown, st.Status)
	require.NotNil(t, st.Until)
}

func TestCheckContentSeveritiesDoNotMix(t *testing.T) {
	assert := assert.New(t)
	f := newCoreFixture(t, true)
	ctx := context.Background()

	// Два L1 + один L2: ни один из порогов (3 и 2) не достигнут
	_, err := f.core.CheckContent(ctx, "user-1", "you are an idiot")
	require.NoError(t, err)
	_, err = f.core.CheckContent(ctx, "user-1", "stupid moron")
	require.NoError(t, err)
	v, err := f.core.CheckContent(ctx, "user-1", "subhuman")
	require.NoError(t, err)

	assert.Equal(domain.SeverityL2, v.Severity)
	assert.Empty(v.Action, "counters of different severities are independent")
	assert.True(f.core.Status(ctx, "user-1").Allowed)
}

func TestCheckContentL2RepeatSuspends(t *testing.T) {
	assert := assert.New(t)
	f := newCoreFixture(t, true)
	ctx := context.Background()

	v, err := f.core.CheckContent(ctx, "user-1", "you are subhuman")
	require.NoError(t, err)
	assert.Equal(domain.SeverityL2, v.Severity)
	assert.Empty(v.Action, "first L2 in window stays below the threshold")

	v, err = f.core.CheckContent(ctx, "user-1", "go back to your country")
	require.NoError(t, err)
	assert.Equal(domain.ActionSuspend, v.Action)
	assert.Equal((7 * 24 * time.Hour).Milliseconds(), v.DurationMs)

	st := f.core.Status(ctx, "user-1")
	assert.False(st.Allowed)
	assert.Equal(domain.BanStatusSuspended, st.Status)
	require.NotNil(t, st.Until)
	assert.WithinDuration(time.Now().Add(7*24*time.Hour), *st.Until, time.Minute)
}

func TestCheckContentEnforcementDisabled(t *testing.T) {
	assert := assert.New(t)
	f := newCoreFixture(t, false)
	ctx := context.Background()

	// Второе hate_speech достигает порога L2
	_, err := f.core.CheckContent(ctx, "user-1", "subhuman")
	require.NoError(t, err)
	v, err := f.core.CheckContent(ctx, "user-1", "go back to your country")
	require.NoError(t, err)

	// Вердикт несет вычисленную меру, но ничего не персистится
	assert.Equal(domain.ActionSuspend, v.Action)
	assert.Equal((7 * 24 * time.Hour).Milliseconds(), v.DurationMs)

	st := f.core.Status(ctx, "user-1")
	assert.True(st.Allowed, "disabled enforcement never blocks")

	// Нарушения при этом засчитаны: включаем рубильник и добиваем порог
	f.state.set(true)
	v, err = f.core.CheckContent(ctx, "user-1", "subhuman")
	require.NoError(t, err)
	assert.Equal(domain.ActionSuspend, v.Action)
	assert.False(f.core.Status(ctx, "user-1").Allowed)
}

func TestCheckContentAuditEntries(t *testing.T) {
	assert := assert.New(t)
	f := newCoreFixture(t, true)
	ctx := context.Background()

	raw := "i will kill you, write me at killer@example.com"
	v, err := f.core.CheckContent(ctx, "user-1", raw)
	require.NoError(t, err)

	// Чистый текст событий аудита не порождает
	_, err = f.core.CheckContent(ctx, "user-2", "nice weather today")
	require.NoError(t, err)

	var entries []audit.Entry
	assert.Eventually(func() bool {
		entries = f.auditEntries()
		return len(entries) == 1
	}, time.Second, 10*time.Millisecond)

	e := entries[0]
	assert.Equal(v.EventID, e.EventID)
	assert.Equal("user-1", e.Identity)
	assert.Equal("violent_threat", e.Category)
	assert.Equal(string(domain.ActionBan), e.ActionTaken)
	assert.Equal(audit.Fingerprint(raw), e.ContentFingerprint, "fingerprint is taken from the original text")
	assert.NotContains(e.RedactedExcerpt, "killer@example.com", "raw PII must never reach the audit trail")
	assert.Contains(e.RedactedExcerpt, "[email]")
}

func TestCheckContentConcurrentSameIdentity(t *testing.T) {
	f := newCoreFixture(t, true)
	ctx := context.Background()

	// 10 конкурентных L1 от одного identity: single-flight сериализует
	// count -> evaluate, поэтому порог срабатывает ровно на третьем
	var wg sync.WaitGroup
	actions := make(chan domain.Action, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.core.CheckContent(ctx, "user-1", "you are an idiot")
			if err == nil {
				actions <- v.Action
			}
		}()
	}
	wg.Wait()
	close(actions)

	var cooldowns, none int
	for a := range actions {
		switch a {
		case domain.ActionCooldown:
			cooldowns++
		case domain.ActionNone:
			none++
		}
	}
	assert.Equal(t, 2, none, "exactly the first two submissions stay below the threshold")
	assert.Equal(t, 8, cooldowns)
}
