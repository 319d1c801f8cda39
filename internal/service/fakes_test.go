package service

import (
	"context"
	"errors"
	"fmt"

	"order-workflow-service/internal/model"
	"order-workflow-service/internal/notify"
	"order-workflow-service/internal/repository"
)

// In-memory fakes. The tx runner snapshots both repos and restores them
// when the wrapped function fails, mirroring a storage rollback.

type fakeOrderRepo struct {
	orders map[string]*model.Order

	updateCalls    int
	failUpdateAt   int // fail the Nth Update call (1-based), 0 = never
	failUpdateWith error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*model.Order)}
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.LineItems = append([]model.LineItem(nil), o.LineItems...)
	c.History = append([]model.AuditEntry(nil), o.History...)
	return &c
}

func (f *fakeOrderRepo) Save(ctx context.Context, o *model.Order) error {
	f.orders[o.OrderID] = cloneOrder(o)
	return nil
}

func (f *fakeOrderRepo) Update(ctx context.Context, o *model.Order) error {
	f.updateCalls++
	if f.failUpdateAt > 0 && f.updateCalls == f.failUpdateAt {
		if f.failUpdateWith != nil {
			return f.failUpdateWith
		}
		return errors.New("simulated write failure")
	}
	if _, ok := f.orders[o.OrderID]; !ok {
		return repository.ErrNotFound
	}
	f.orders[o.OrderID] = cloneOrder(o)
	return nil
}

func (f *fakeOrderRepo) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (f *fakeOrderRepo) FindAll(ctx context.Context) ([]*model.Order, error) {
	var out []*model.Order
	for _, o := range f.orders {
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

func (f *fakeOrderRepo) FindByStatus(ctx context.Context, status model.OrderStatus) ([]*model.Order, error) {
	var out []*model.Order
	for _, o := range f.orders {
		if o.Status == status {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) FindByProviderID(ctx context.Context, providerID string) ([]*model.Order, error) {
	var out []*model.Order
	for _, o := range f.orders {
		if o.ProviderID == providerID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) FindByEpisodeID(ctx context.Context, episodeID string) ([]*model.Order, error) {
	var out []*model.Order
	for _, o := range f.orders {
		if o.EpisodeID == episodeID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) snapshot() map[string]*model.Order {
	snap := make(map[string]*model.Order, len(f.orders))
	for k, v := range f.orders {
		snap[k] = cloneOrder(v)
	}
	return snap
}

type fakeEpisodeRepo struct {
	episodes map[string]*model.Episode
}

func newFakeEpisodeRepo() *fakeEpisodeRepo {
	return &fakeEpisodeRepo{episodes: make(map[string]*model.Episode)}
}

func cloneEpisode(e *model.Episode) *model.Episode {
	c := *e
	c.Documents = append([]model.Document(nil), e.Documents...)
	c.History = append([]model.AuditEntry(nil), e.History...)
	return &c
}

func (f *fakeEpisodeRepo) Save(ctx context.Context, e *model.Episode) error {
	if _, ok := f.episodes[e.EpisodeID]; ok {
		return fmt.Errorf("episode %s already exists", e.EpisodeID)
	}
	f.episodes[e.EpisodeID] = cloneEpisode(e)
	return nil
}

func (f *fakeEpisodeRepo) Update(ctx context.Context, e *model.Episode) error {
	if _, ok := f.episodes[e.EpisodeID]; !ok {
		return repository.ErrNotFound
	}
	f.episodes[e.EpisodeID] = cloneEpisode(e)
	return nil
}

func (f *fakeEpisodeRepo) FindByID(ctx context.Context, episodeID string) (*model.Episode, error) {
	e, ok := f.episodes[episodeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneEpisode(e), nil
}

func (f *fakeEpisodeRepo) FindAll(ctx context.Context) ([]*model.Episode, error) {
	var out []*model.Episode
	for _, e := range f.episodes {
		out = append(out, cloneEpisode(e))
	}
	return out, nil
}

func (f *fakeEpisodeRepo) FindByStatus(ctx context.Context, status model.EpisodeStatus) ([]*model.Episode, error) {
	var out []*model.Episode
	for _, e := range f.episodes {
		if e.Status == status {
			out = append(out, cloneEpisode(e))
		}
	}
	return out, nil
}

func (f *fakeEpisodeRepo) snapshot() map[string]*model.Episode {
	snap := make(map[string]*model.Episode, len(f.episodes))
	for k, v := range f.episodes {
		snap[k] = cloneEpisode(v)
	}
	return snap
}

type fakeTxRunner struct {
	orders   *fakeOrderRepo
	episodes *fakeEpisodeRepo
}

func (f *fakeTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	orderSnap := f.orders.snapshot()
	episodeSnap := f.episodes.snapshot()
	if err := fn(ctx); err != nil {
		f.orders.orders = orderSnap
		f.episodes.episodes = episodeSnap
		return err
	}
	return nil
}

type notifyCall struct {
	recipients []string
	template   notify.Template
	data       map[string]string
}

type fakeNotifier struct {
	calls []notifyCall
	fail  bool
}

func (f *fakeNotifier) Notify(ctx context.Context, recipients []string, template notify.Template, data map[string]string) (*notify.DeliveryResult, error) {
	f.calls = append(f.calls, notifyCall{recipients: recipients, template: template, data: data})
	if f.fail {
		return nil, errors.New("smtp relay unavailable")
	}
	return &notify.DeliveryResult{MessageID: "msg-1"}, nil
}

type fakePublisher struct {
	events int
	fail   bool
}

func (f *fakePublisher) PublishStatusChanged(ctx context.Context, orderID string, from, to model.OrderStatus) error {
	f.events++
	if f.fail {
		return errors.New("channel closed")
	}
	return nil
}

type fakeDocStore struct {
	fail bool
}

func (f *fakeDocStore) Put(ctx context.Context, episodeID, filename string, data []byte) (string, error) {
	if f.fail {
		return "", errors.New("bucket unavailable")
	}
	return fmt.Sprintf("episodes/%s/%s", episodeID, filename), nil
}
