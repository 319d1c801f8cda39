package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"order-workflow-service/internal/dto"
	"order-workflow-service/internal/model"
	"order-workflow-service/internal/notify"
)

// Interfaces the service consumes. Implemented by repository and rabbit.
type OrderRepository interface {
	Save(ctx context.Context, o *model.Order) error
	Update(ctx context.Context, o *model.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	FindAll(ctx context.Context) ([]*model.Order, error)
	FindByStatus(ctx context.Context, status model.OrderStatus) ([]*model.Order, error)
	FindByProviderID(ctx context.Context, providerID string) ([]*model.Order, error)
	FindByEpisodeID(ctx context.Context, episodeID string) ([]*model.Order, error)
}

// EventPublisher emits status-changed events after a committed transition.
// Publishing is best effort and never blocks or fails a transition.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, orderID string, from, to model.OrderStatus) error
}

// Admin-driven transitions. Any (from, to) pair missing here is rejected.
var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPendingIVR:     {model.OrderIVRSent},
	model.OrderIVRSent:        {model.OrderIVRConfirmed, model.OrderSentBack},
	model.OrderIVRConfirmed:   {model.OrderApproved, model.OrderSentBack, model.OrderDenied},
	model.OrderApproved:       {model.OrderSubmittedToMfr},
	model.OrderSubmittedToMfr: {model.OrderShipped, model.OrderDenied},
	model.OrderShipped:        {model.OrderDelivered},
	model.OrderSentBack:       {model.OrderPendingIVR},
}

// A provider may only cancel their own order while it is still pre-approval.
var ownerTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPendingIVR:   {model.OrderCancelled},
	model.OrderIVRSent:      {model.OrderCancelled},
	model.OrderIVRConfirmed: {model.OrderCancelled},
}

var finalOrderStatuses = map[model.OrderStatus]bool{
	model.OrderDelivered: true,
	model.OrderDenied:    true,
	model.OrderCancelled: true,
}

// Targets that demand a written justification.
var reasonRequired = map[model.OrderStatus]bool{
	model.OrderDenied:    true,
	model.OrderSentBack:  true,
	model.OrderCancelled: true,
}

const minReasonLen = 10

type OrderStatusService struct {
	repo      OrderRepository
	notifier  notify.Notifier
	publisher EventPublisher
}

func NewOrderStatusService(r OrderRepository, n notify.Notifier, p EventPublisher) *OrderStatusService {
	return &OrderStatusService{repo: r, notifier: n, publisher: p}
}

// TransitionInput carries the caller-supplied parameters of one transition.
type TransitionInput struct {
	Target           model.OrderStatus
	Reason           string
	Notes            string
	Carrier          string
	TrackingNumber   string
	Notify           bool
	NotifyRecipients []string
}

// TransitionResult reports the committed order plus whether an optional
// notification was requested and failed. Notification failure never rolls
// back a per-order transition.
type TransitionResult struct {
	Order              *model.Order
	NotificationFailed bool
}

// InitOrder creates the order at pending_ivr with its first audit entry.
// Invoked from the rabbit consumer (primary) or via API.
func (s *OrderStatusService) InitOrder(ctx context.Context, req dto.InitOrderRequest) (*model.Order, error) {
	existing, err := s.repo.FindByOrderID(ctx, req.OrderID)
	if err == nil && existing != nil {
		return nil, ErrOrderAlreadyExists
	}

	items := make([]model.LineItem, 0, len(req.LineItems))
	for _, it := range req.LineItems {
		items = append(items, model.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	number := req.OrderNumber
	if number == "" {
		number = req.OrderID
	}

	now := time.Now().UTC()
	o := &model.Order{
		OrderID:        req.OrderID,
		OrderNumber:    number,
		EpisodeID:      req.EpisodeID,
		ProviderID:     req.ProviderID,
		FacilityID:     req.FacilityID,
		ManufacturerID: req.ManufacturerID,
		Status:         model.OrderPendingIVR,
		LineItems:      items,
		CreatedAt:      now,
		UpdatedAt:      now,
		History: []model.AuditEntry{
			{
				Seq:         1,
				Action:      "order_created",
				ActorID:     req.ProviderID,
				Description: "Order submitted by provider",
				Timestamp:   now,
			},
		},
	}

	return o, s.repo.Save(ctx, o)
}

// Getters
func (s *OrderStatusService) GetByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	return s.repo.FindByOrderID(ctx, orderID)
}

func (s *OrderStatusService) GetAll(ctx context.Context) ([]*model.Order, error) {
	return s.repo.FindAll(ctx)
}

func (s *OrderStatusService) GetByStatus(ctx context.Context, status model.OrderStatus) ([]*model.Order, error) {
	return s.repo.FindByStatus(ctx, status)
}

func (s *OrderStatusService) GetByProviderID(ctx context.Context, providerID string) ([]*model.Order, error) {
	return s.repo.FindByProviderID(ctx, providerID)
}

// AuditTrail returns the order's history newest-first.
func (s *OrderStatusService) AuditTrail(ctx context.Context, orderID string) ([]model.AuditEntry, error) {
	o, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return model.AuditTrail(o.History), nil
}

// Transition validates and applies a single status change. All validation
// happens before any write; a failed call leaves the order untouched.
func (s *OrderStatusService) Transition(ctx context.Context, orderID string, in TransitionInput, actorID string, isAdmin bool) (*TransitionResult, error) {
	o, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := o.Status

	// Authorization first: a stranger learns nothing about the order, not
	// even that the requested status is already current.
	isOwner := o.ProviderID == actorID
	if !isAdmin && !isOwner {
		return nil, ErrForbidden
	}

	// Same status: nothing to do.
	if current == in.Target {
		return &TransitionResult{Order: o}, nil
	}
	if finalOrderStatuses[current] {
		return nil, ErrFinalState
	}
	if !model.IsValidOrderStatus(in.Target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, in.Target)
	}

	allowedAsAdmin := isAdmin && contains(orderTransitions[current], in.Target)
	allowedAsOwner := isOwner && contains(ownerTransitions[current], in.Target)

	if !allowedAsAdmin && !allowedAsOwner {
		// An admin may not cancel on behalf of a provider.
		if isAdmin && in.Target == model.OrderCancelled && !isOwner {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, in.Target)
	}

	if reasonRequired[in.Target] && len(strings.TrimSpace(in.Reason)) < minReasonLen {
		return nil, ErrMissingReason
	}

	now := time.Now().UTC()
	o.Status = in.Target
	if ts := o.StatusTimestamp(in.Target); ts != nil && *ts == nil {
		t := now
		*ts = &t
	}

	switch in.Target {
	case model.OrderDenied, model.OrderSentBack, model.OrderCancelled:
		o.RejectionReason = in.Reason
	case model.OrderSubmittedToMfr:
		if in.Carrier != "" && in.TrackingNumber != "" {
			o.Carrier = in.Carrier
			o.TrackingNumber = in.TrackingNumber
			o.Shipping = &model.ShippingInfo{
				Carrier:        in.Carrier,
				TrackingNumber: in.TrackingNumber,
				SubmittedAt:    now,
				SubmittedBy:    actorID,
			}
		}
	}

	description := in.Notes
	if description == "" {
		description = in.Reason
	}
	o.History = append(o.History, model.NewAuditEntry(o.History, string(in.Target), actorID, description))
	o.UpdatedAt = now

	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishStatusChanged(ctx, o.OrderID, current, in.Target); err != nil {
			log.Warn().Err(err).Str("order_id", o.OrderID).Msg("status event publish failed")
		}
	}

	res := &TransitionResult{Order: o}
	if in.Notify && s.notifier != nil {
		_, err := s.notifier.Notify(ctx, in.NotifyRecipients, notify.TemplateOrderStatusChanged, map[string]string{
			"orderId":     o.OrderID,
			"orderNumber": o.OrderNumber,
			"from":        string(current),
			"to":          string(in.Target),
		})
		if err != nil {
			// Status change already committed; surface the partial outcome.
			log.Warn().Err(err).Str("order_id", o.OrderID).Msg("status updated, but notification failed")
			res.NotificationFailed = true
		}
	}

	return res, nil
}

func contains(arr []model.OrderStatus, s model.OrderStatus) bool {
	for _, v := range arr {
		if v == s {
			return true
		}
	}
	return false
}
