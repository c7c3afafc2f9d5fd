package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/notification/domain"
	"github.com/smallbiznis/partnerhub/internal/notification/live"
	"github.com/smallbiznis/partnerhub/internal/notification/repository"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	partnerrepo "github.com/smallbiznis/partnerhub/internal/partner/repository"
	"github.com/smallbiznis/partnerhub/internal/providers/email"
	"github.com/smallbiznis/partnerhub/internal/providers/email/mocks"
	"github.com/smallbiznis/partnerhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	hub     *live.Hub
	svc     domain.Service
	partner *partnerdomain.Partner
}

func newFixture(t *testing.T, provider email.Provider) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.Node(t)
	clk := testutil.Clock()
	hub := live.NewHub()

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		Partners: partnerrepo.Provide(),
		Hub:      hub,
		Email:    provider,
	})

	now := clk.Now()
	p := &partnerdomain.Partner{
		ID:             node.Generate(),
		ExternalUserID: "user-1",
		CompanyName:    "Acme",
		ContactEmail:   "owner@acme.test",
		ReferralCode:   "acme",
		Status:         partnerdomain.StatusActive,
		CommissionRate: "10",
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, partnerrepo.Provide().Insert(context.Background(), db, p))

	return &fixture{db: db, node: node, clock: clk, hub: hub, svc: svc, partner: p}
}

func (f *fixture) note(t *testing.T, title string) *domain.Notification {
	t.Helper()
	n, err := f.svc.Emit(context.Background(), domain.EmitRequest{
		PartnerID: f.partner.ID,
		Type:      domain.TypeNote,
		Title:     title,
		Message:   title + " body",
	})
	require.NoError(t, err)
	return n
}

func TestEmitStoresUnreadAndPublishes(t *testing.T) {
	f := newFixture(t, nil)
	sub, err := f.hub.Subscribe(f.partner.ID)
	require.NoError(t, err)
	defer sub.Close()

	n := f.note(t, "Hello")
	assert.False(t, n.Read)
	assert.Nil(t, n.ReadAt)
	assert.True(t, n.CreatedAt.Equal(testutil.Epoch))

	select {
	case got := <-sub.Notifications():
		assert.Equal(t, n.ID, got.ID)
	default:
		t.Fatal("expected live notification")
	}

	count, err := f.svc.UnreadCount(context.Background(), f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEmitValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Emit(ctx, domain.EmitRequest{PartnerID: f.partner.ID, Type: "note", Message: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = f.svc.Emit(ctx, domain.EmitRequest{PartnerID: f.partner.ID, Title: "x", Message: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = f.svc.Emit(ctx, domain.EmitRequest{PartnerID: f.partner.ID, Type: "note", Title: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	_, err = f.svc.Emit(ctx, domain.EmitRequest{PartnerID: 12345, Type: "note", Title: "x", Message: "y"})
	assert.ErrorIs(t, err, partnerdomain.ErrPartnerNotFound)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	n := f.note(t, "One")

	first, err := f.svc.MarkRead(ctx, f.partner.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, first.Read)
	require.NotNil(t, first.ReadAt)

	f.clock.Advance(time.Hour)
	second, err := f.svc.MarkRead(ctx, f.partner.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, second.ReadAt.Equal(*first.ReadAt))

	_, err = f.svc.MarkRead(ctx, f.partner.ID, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkReadIsScopedToPartner(t *testing.T) {
	f := newFixture(t, nil)
	n := f.note(t, "Private")

	_, err := f.svc.MarkRead(context.Background(), snowflake.ID(42), n.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	count, err := f.svc.UnreadCount(context.Background(), f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkAllReadTwice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.note(t, "One")
	f.note(t, "Two")
	read := f.note(t, "Three")
	_, err := f.svc.MarkRead(ctx, f.partner.ID, read.ID)
	require.NoError(t, err)

	affected, err := f.svc.MarkAllRead(ctx, f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	affected, err = f.svc.MarkAllRead(ctx, f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	count, err := f.svc.UnreadCount(ctx, f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMarkAllReadLeavesNewerNotificationsUnread(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	old := f.note(t, "Old")

	repo := repository.Provide()
	snapshot, err := repo.MaxID(ctx, f.db, f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, old.ID, snapshot)

	fresh := f.note(t, "Fresh")
	affected, err := repo.MarkReadUpTo(ctx, f.db, f.partner.ID, snapshot, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	stored, err := repo.FindByID(ctx, f.db, f.partner.ID, fresh.ID)
	require.NoError(t, err)
	assert.False(t, stored.Read)
}

func TestListUnreadOnlyAndPagination(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	var ids []snowflake.ID
	for _, title := range []string{"a", "b", "c", "d"} {
		ids = append(ids, f.note(t, title).ID)
	}
	_, err := f.svc.MarkRead(ctx, f.partner.ID, ids[3])
	require.NoError(t, err)

	req := domain.ListNotificationsRequest{}
	req.PageSize = 2
	page, err := f.svc.List(ctx, f.partner.ID, req)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[3], page.Notifications[0].ID)

	req.PageToken = page.NextPageToken
	page, err = f.svc.List(ctx, f.partner.ID, req)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids[0], page.Notifications[1].ID)

	unread, err := f.svc.List(ctx, f.partner.ID, domain.ListNotificationsRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 3)

	req.PageToken = "!!"
	_, err = f.svc.List(ctx, f.partner.ID, req)
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestEventHandlerDeduplicatesRedelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg email.Message) error {
			assert.Equal(t, []string{"owner@acme.test"}, msg.To)
			assert.Equal(t, "Lead converted", msg.Subject)
			assert.Contains(t, msg.HTMLBody, "500.00")
			return nil
		}).
		Times(1)

	f := newFixture(t, provider)
	handler := NewEventHandler(f.svc)
	event := events.Event{
		ID:        f.node.Generate(),
		PartnerID: f.partner.ID,
		EventType: events.LeadConverted,
		Payload:   map[string]any{"client_name": "Jane", "commission": "500.00"},
	}

	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	page, err := f.svc.List(context.Background(), f.partner.ID, domain.ListNotificationsRequest{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, events.LeadConverted, page.Notifications[0].Type)
}

func TestEventHandlerIgnoresUnmappedEvents(t *testing.T) {
	f := newFixture(t, nil)
	handler := NewEventHandler(f.svc)
	assert.Equal(t, "notification.emitter", handler.Name())

	require.NoError(t, handler.Handle(context.Background(), events.Event{
		ID: f.node.Generate(), PartnerID: f.partner.ID, EventType: events.LeadCreated,
	}))
	count, err := f.svc.UnreadCount(context.Background(), f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestNoteIsNotEmailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	f := newFixture(t, provider)
	f.note(t, "Reminder")
}
