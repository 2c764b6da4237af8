package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/internal/notification"
	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/coachdesk/coachdesk/internal/subscription/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSender records notifications instead of delivering them.
type captureSender struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (s *captureSender) Send(_ context.Context, n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSender) byKind(kind notification.Kind) []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.Notification, 0)
	for _, n := range s.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type sweepFixture struct {
	repo      *persistence.MemoryRepository
	outbox    *outbox.MemoryRepository
	uow       sharedApplication.UnitOfWork
	locks     *locking.KeyedMutex
	sender    *captureSender
	reminders *notification.MemoryReminderLog
	logger    *slog.Logger
}

func newSweepFixture() *sweepFixture {
	return &sweepFixture{
		repo:      persistence.NewMemoryRepository(),
		outbox:    outbox.NewMemoryRepository(),
		uow:       sharedApplication.NoopUnitOfWork{},
		locks:     locking.NewKeyedMutex(),
		sender:    &captureSender{},
		reminders: notification.NewMemoryReminderLog(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func saveSubscription(t *testing.T, repo *persistence.MemoryRepository, spec domain.CreateSpec) *domain.Subscription {
	t.Helper()
	sub, err := domain.NewSubscription(spec)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), sub))
	return sub
}

func activeSpec() domain.CreateSpec {
	return domain.CreateSpec{
		CustomerID:       uuid.New(),
		Kind:             domain.KindPersonalTraining,
		PlanID:           "pt-8",
		Frequency:        domain.BillingMonthly,
		Price:            240,
		SessionsIncluded: 8,
		StartDate:        date(2025, time.January, 1),
		RecurringBilling: true,
	}
}

func TestAutoResumeService_Run(t *testing.T) {
	f := newSweepFixture()
	ctx := context.Background()

	due, err := domain.NewSubscription(activeSpec())
	require.NoError(t, err)
	require.NoError(t, due.StartFreeze(date(2025, time.January, 10), date(2025, time.January, 20), "vacation", true))
	require.NoError(t, f.repo.Save(ctx, due))

	manual, err := domain.NewSubscription(activeSpec())
	require.NoError(t, err)
	require.NoError(t, manual.StartFreeze(date(2025, time.January, 10), date(2025, time.January, 20), "vacation", false))
	require.NoError(t, f.repo.Save(ctx, manual))

	unfreeze := commands.NewUnfreezeSubscriptionHandler(f.repo, f.outbox, f.uow, f.locks)
	service := NewAutoResumeService(f.repo, unfreeze, f.logger)

	resumed, err := service.Run(ctx, date(2025, time.January, 21))
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	loaded, err := f.repo.FindByID(ctx, due.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, loaded.State())
	assert.True(t, loaded.RecurringBilling())
	assert.Nil(t, loaded.Freeze())

	stillFrozen, err := f.repo.FindByID(ctx, manual.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateFrozen, stillFrozen.State())

	t.Run("idempotent", func(t *testing.T) {
		resumed, err := service.Run(ctx, date(2025, time.January, 22))
		require.NoError(t, err)
		assert.Equal(t, 0, resumed)
	})
}

func TestDiscountExpiryService_Run(t *testing.T) {
	f := newSweepFixture()
	ctx := context.Background()

	until := date(2025, time.January, 31)
	expiring, err := domain.NewSubscription(activeSpec())
	require.NoError(t, err)
	require.NoError(t, expiring.ApplyDiscount(domain.Discount{
		Type:       domain.DiscountPercentage,
		Value:      20,
		Reason:     "new year promo",
		ValidFrom:  date(2025, time.January, 1),
		ValidUntil: &until,
	}))
	require.NoError(t, f.repo.Save(ctx, expiring))

	openEnded, err := domain.NewSubscription(activeSpec())
	require.NoError(t, err)
	require.NoError(t, openEnded.ApplyDiscount(domain.Discount{
		Type:      domain.DiscountPercentage,
		Value:     10,
		Reason:    "loyalty",
		ValidFrom: date(2025, time.January, 1),
	}))
	require.NoError(t, f.repo.Save(ctx, openEnded))

	remove := commands.NewRemoveDiscountHandler(f.repo, f.outbox, f.uow, f.locks)
	service := NewDiscountExpiryService(f.repo, remove, f.logger)

	removed, err := service.Run(ctx, date(2025, time.February, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	restored, err := f.repo.FindByID(ctx, expiring.ID())
	require.NoError(t, err)
	assert.Nil(t, restored.Discount())
	assert.Equal(t, 240.0, restored.Price())

	untouched, err := f.repo.FindByID(ctx, openEnded.ID())
	require.NoError(t, err)
	require.NotNil(t, untouched.Discount())
	assert.Equal(t, 216.0, untouched.Price())
}

func TestRenewalService_Run(t *testing.T) {
	f := newSweepFixture()
	ctx := context.Background()

	due := saveSubscription(t, f.repo, activeSpec())

	upcomingSpec := activeSpec()
	upcomingSpec.StartDate = date(2025, time.January, 5)
	upcoming := saveSubscription(t, f.repo, upcomingSpec)
	upcoming.SetMetadataValue("contact", "+4915112345678")
	upcoming.SetMetadataValue("contact_channel", "sms")
	require.NoError(t, f.repo.Save(ctx, upcoming))

	renew := commands.NewRenewSubscriptionHandler(f.repo, f.outbox, f.uow, f.locks)
	service := NewRenewalService(f.repo, renew, f.sender, f.reminders, 7, f.logger)

	result, err := service.Run(ctx, date(2025, time.February, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Renewed)
	assert.Equal(t, 1, result.Reminded)
	assert.Equal(t, 0, result.Failed)

	renewed, err := f.repo.FindByID(ctx, due.ID())
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 1), renewed.NextRenewalDate())
	assert.Equal(t, 8, renewed.AvailableSessions())

	reminders := f.sender.byKind(notification.KindRenewalReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, upcoming.ID(), reminders[0].SubscriptionID)
	assert.Equal(t, notification.ChannelSMS, reminders[0].Channel)
	assert.Equal(t, "+4915112345678", reminders[0].Recipient)

	t.Run("reminder deduplicated on second sweep", func(t *testing.T) {
		result, err := service.Run(ctx, date(2025, time.February, 2))
		require.NoError(t, err)
		assert.Equal(t, 0, result.Renewed)
		assert.Equal(t, 0, result.Reminded)
		assert.Len(t, f.sender.byKind(notification.KindRenewalReminder), 1)
	})
}

func TestTrialExpiryService_Run(t *testing.T) {
	f := newSweepFixture()
	ctx := context.Background()

	lapsedSpec := activeSpec()
	lapsedSpec.Trial = &domain.TrialSpec{Sessions: 2, Price: 49, DurationDays: 14}
	lapsed := saveSubscription(t, f.repo, lapsedSpec)

	endingSpec := activeSpec()
	endingSpec.StartDate = date(2025, time.January, 3)
	endingSpec.Trial = &domain.TrialSpec{Sessions: 2, Price: 49, DurationDays: 14}
	ending := saveSubscription(t, f.repo, endingSpec)

	expire := commands.NewExpireSubscriptionHandler(f.repo, f.outbox, f.uow, f.locks)
	service := NewTrialExpiryService(f.repo, expire, f.sender, f.reminders, f.logger)

	expired, err := service.Run(ctx, date(2025, time.January, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	loaded, err := f.repo.FindByID(ctx, lapsed.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpired, loaded.State())

	stillTrial, err := f.repo.FindByID(ctx, ending.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateTrial, stillTrial.State())

	warnings := f.sender.byKind(notification.KindTrialEnding)
	require.Len(t, warnings, 1)
	assert.Equal(t, ending.ID(), warnings[0].SubscriptionID)
	assert.Equal(t, notification.ChannelEmail, warnings[0].Channel, "email is the default channel")
	assert.Equal(t, ending.CustomerID().String(), warnings[0].Recipient)

	t.Run("warning deduplicated on second sweep", func(t *testing.T) {
		_, err := service.Run(ctx, date(2025, time.January, 16))
		require.NoError(t, err)
		assert.Len(t, f.sender.byKind(notification.KindTrialEnding), 1)
	})
}
