package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-workflow-service/internal/dto"
	"order-workflow-service/internal/model"
	"order-workflow-service/internal/repository"
)

const (
	adminID    = "42"
	providerID = "prov-7"
)

func newOrderFixture(t *testing.T, status model.OrderStatus) (*OrderStatusService, *fakeOrderRepo, *fakeNotifier, *fakePublisher) {
	t.Helper()
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	svc := NewOrderStatusService(repo, notifier, publisher)

	_, err := svc.InitOrder(context.Background(), dto.InitOrderRequest{
		OrderID:    "ord-1",
		ProviderID: providerID,
		LineItems:  []dto.LineItemDTO{{ProductID: "graft-4x4", Name: "Collagen Graft 4x4", Quantity: 2, UnitPrice: 125.50}},
	})
	require.NoError(t, err)

	if status != model.OrderPendingIVR {
		o, _ := repo.FindByOrderID(context.Background(), "ord-1")
		o.Status = status
		require.NoError(t, repo.Update(context.Background(), o))
	}
	return svc, repo, notifier, publisher
}

func TestInitOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := NewOrderStatusService(repo, nil, nil)

	o, err := svc.InitOrder(context.Background(), dto.InitOrderRequest{OrderID: "ord-9", ProviderID: providerID})
	require.NoError(t, err)
	assert.Equal(t, model.OrderPendingIVR, o.Status)
	assert.Equal(t, "ord-9", o.OrderNumber) // falls back to the id
	require.Len(t, o.History, 1)
	assert.Equal(t, "order_created", o.History[0].Action)
	assert.Equal(t, 1, o.History[0].Seq)

	_, err = svc.InitOrder(context.Background(), dto.InitOrderRequest{OrderID: "ord-9", ProviderID: providerID})
	assert.ErrorIs(t, err, ErrOrderAlreadyExists)
}

func TestTransitionApprove(t *testing.T) {
	svc, repo, _, publisher := newOrderFixture(t, model.OrderIVRConfirmed)

	res, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderApproved}, adminID, true)
	require.NoError(t, err)
	assert.False(t, res.NotificationFailed)

	o, err := repo.FindByOrderID(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderApproved, o.Status)
	require.NotNil(t, o.ApprovedAt)

	last := o.History[len(o.History)-1]
	assert.Equal(t, "approved", last.Action)
	assert.Equal(t, adminID, last.ActorID)
	assert.Equal(t, len(o.History), last.Seq)
	assert.Equal(t, 1, publisher.events)
}

func TestTransitionRejectsPairsOutsideTable(t *testing.T) {
	cases := []struct {
		from model.OrderStatus
		to   model.OrderStatus
	}{
		{model.OrderPendingIVR, model.OrderApproved},
		{model.OrderPendingIVR, model.OrderShipped},
		{model.OrderIVRSent, model.OrderDelivered},
		{model.OrderApproved, model.OrderIVRSent},
		{model.OrderShipped, model.OrderApproved},
		{model.OrderSentBack, model.OrderApproved},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			svc, repo, _, _ := newOrderFixture(t, tc.from)
			before, _ := repo.FindByOrderID(context.Background(), "ord-1")

			_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: tc.to, Reason: "insufficient documentation"}, adminID, true)
			assert.ErrorIs(t, err, ErrInvalidTransition)

			after, _ := repo.FindByOrderID(context.Background(), "ord-1")
			assert.Equal(t, before, after, "failed transition must not mutate the order")
		})
	}
}

func TestTransitionUnknownTargetStatus(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, model.OrderPendingIVR)
	_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: "in_limbo"}, adminID, true)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionMissingOrder(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, model.OrderPendingIVR)
	_, err := svc.Transition(context.Background(), "no-such-order", TransitionInput{Target: model.OrderIVRSent}, adminID, true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTransitionReasonRequired(t *testing.T) {
	for _, reason := range []string{"", "too short"} {
		t.Run("reason="+reason, func(t *testing.T) {
			svc, repo, _, _ := newOrderFixture(t, model.OrderIVRConfirmed)
			before, _ := repo.FindByOrderID(context.Background(), "ord-1")

			_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderDenied, Reason: reason}, adminID, true)
			assert.ErrorIs(t, err, ErrMissingReason)

			after, _ := repo.FindByOrderID(context.Background(), "ord-1")
			assert.Equal(t, before, after)
		})
	}

	svc, repo, _, _ := newOrderFixture(t, model.OrderIVRConfirmed)
	_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderDenied, Reason: "payer denied coverage for this product"}, adminID, true)
	require.NoError(t, err)

	o, _ := repo.FindByOrderID(context.Background(), "ord-1")
	assert.Equal(t, model.OrderDenied, o.Status)
	assert.Equal(t, "payer denied coverage for this product", o.RejectionReason)
	require.NotNil(t, o.DeniedAt)
}

func TestTransitionTerminalState(t *testing.T) {
	for _, final := range []model.OrderStatus{model.OrderDelivered, model.OrderDenied, model.OrderCancelled} {
		t.Run(string(final), func(t *testing.T) {
			svc, _, _, _ := newOrderFixture(t, final)
			_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderIVRSent}, adminID, true)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestTransitionSameStatusIsNoop(t *testing.T) {
	svc, repo, _, publisher := newOrderFixture(t, model.OrderIVRSent)
	before, _ := repo.FindByOrderID(context.Background(), "ord-1")

	res, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderIVRSent}, adminID, true)
	require.NoError(t, err)
	assert.Equal(t, model.OrderIVRSent, res.Order.Status)

	after, _ := repo.FindByOrderID(context.Background(), "ord-1")
	assert.Equal(t, before, after)
	assert.Zero(t, publisher.events)
}

func TestOwnerMayCancelOwnPreApprovalOrder(t *testing.T) {
	svc, repo, _, _ := newOrderFixture(t, model.OrderIVRSent)

	_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderCancelled, Reason: "patient declined the procedure"}, providerID, false)
	require.NoError(t, err)

	o, _ := repo.FindByOrderID(context.Background(), "ord-1")
	assert.Equal(t, model.OrderCancelled, o.Status)
	require.NotNil(t, o.CancelledAt)
}

func TestOwnerMayNotDriveAdminTransitions(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, model.OrderIVRConfirmed)
	_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderApproved}, providerID, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStrangerIsForbidden(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, model.OrderPendingIVR)
	_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderIVRSent}, "someone-else", false)
	assert.ErrorIs(t, err, ErrForbidden)
}

// A stranger requesting the order's current status must not ride the
// idempotent short-circuit into a success response carrying the order.
func TestStrangerIsForbiddenForCurrentStatusToo(t *testing.T) {
	for _, status := range []model.OrderStatus{model.OrderPendingIVR, model.OrderIVRConfirmed, model.OrderDelivered} {
		t.Run(string(status), func(t *testing.T) {
			svc, _, _, _ := newOrderFixture(t, status)
			res, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: status}, "someone-else", false)
			assert.ErrorIs(t, err, ErrForbidden)
			assert.Nil(t, res)
		})
	}
}

func TestAdminMayNotCancelForProvider(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, model.OrderPendingIVR)
	_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderCancelled, Reason: "cancelling on provider's behalf"}, adminID, true)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSentBackLoopKeepsFirstTimestamp(t *testing.T) {
	svc, repo, _, _ := newOrderFixture(t, model.OrderPendingIVR)
	ctx := context.Background()

	_, err := svc.Transition(ctx, "ord-1", TransitionInput{Target: model.OrderIVRSent}, adminID, true)
	require.NoError(t, err)
	o, _ := repo.FindByOrderID(ctx, "ord-1")
	require.NotNil(t, o.IVRSentAt)
	firstSent := *o.IVRSentAt

	_, err = svc.Transition(ctx, "ord-1", TransitionInput{Target: model.OrderSentBack, Reason: "missing wound measurements"}, adminID, true)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, "ord-1", TransitionInput{Target: model.OrderPendingIVR}, adminID, true)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, "ord-1", TransitionInput{Target: model.OrderIVRSent}, adminID, true)
	require.NoError(t, err)

	o, _ = repo.FindByOrderID(ctx, "ord-1")
	assert.Equal(t, firstSent, *o.IVRSentAt, "status timestamp is set exactly once")
}

func TestSubmitToManufacturerEmbedsShippingSnapshot(t *testing.T) {
	svc, repo, _, _ := newOrderFixture(t, model.OrderApproved)

	_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{
		Target:         model.OrderSubmittedToMfr,
		Carrier:        "UPS",
		TrackingNumber: "1Z999AA10123456784",
	}, adminID, true)
	require.NoError(t, err)

	o, _ := repo.FindByOrderID(context.Background(), "ord-1")
	assert.Equal(t, model.OrderSubmittedToMfr, o.Status)
	assert.Equal(t, "UPS", o.Carrier)
	assert.Equal(t, "1Z999AA10123456784", o.TrackingNumber)
	require.NotNil(t, o.Shipping)
	assert.Equal(t, adminID, o.Shipping.SubmittedBy)
	require.NotNil(t, o.MfrSubmittedAt)
}

func TestSubmitToManufacturerWithoutTrackingHasNoSnapshot(t *testing.T) {
	svc, repo, _, _ := newOrderFixture(t, model.OrderApproved)

	_, err := svc.Transition(context.Background(), "ord-1", TransitionInput{Target: model.OrderSubmittedToMfr}, adminID, true)
	require.NoError(t, err)

	o, _ := repo.FindByOrderID(context.Background(), "ord-1")
	assert.Equal(t, model.OrderSubmittedToMfr, o.Status)
	assert.Nil(t, o.Shipping)
}

func TestNotificationFailureDoesNotBlockTransition(t *testing.T) {
	svc, repo, notifier, _ := newOrderFixture(t, model.OrderIVRConfirmed)
	notifier.fail = true

	res, err := svc.Transition(context.Background(), "ord-1", TransitionInput{
		Target:           model.OrderApproved,
		Notify:           true,
		NotifyRecipients: []string{"provider@clinic.example"},
	}, adminID, true)
	require.NoError(t, err)
	assert.True(t, res.NotificationFailed)
	require.Len(t, notifier.calls, 1)

	o, _ := repo.FindByOrderID(context.Background(), "ord-1")
	assert.Equal(t, model.OrderApproved, o.Status, "status change commits even when the notification fails")
}

func TestAuditTrailIsAppendOnlyAndReversed(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, model.OrderPendingIVR)
	ctx := context.Background()

	steps := []TransitionInput{
		{Target: model.OrderIVRSent},
		{Target: model.OrderIVRConfirmed},
		{Target: model.OrderApproved},
		{Target: model.OrderSubmittedToMfr},
		{Target: model.OrderShipped},
		{Target: model.OrderDelivered},
	}
	for _, in := range steps {
		_, err := svc.Transition(ctx, "ord-1", in, adminID, true)
		require.NoError(t, err)
	}

	trail, err := svc.AuditTrail(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, trail, len(steps)+1) // +1 for order_created

	for i := range trail {
		assert.Equal(t, len(trail)-i, trail[i].Seq, "newest entry first, seq descending")
		if i > 0 {
			assert.False(t, trail[i].Timestamp.After(trail[i-1].Timestamp))
		}
	}
	assert.Equal(t, "delivered", trail[0].Action)
	assert.Equal(t, "order_created", trail[len(trail)-1].Action)
}
