package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/pkg/logger"
	"github.com/jwalitptl/hospital-core/pkg/messaging"
	"github.com/jwalitptl/hospital-core/pkg/metrics"
)

type statusUpdate struct {
	status model.OutboxStatus
	errMsg *string
}

type fakeOutbox struct {
	pending   []*model.OutboxEvent
	updates   map[uuid.UUID]statusUpdate
	updateErr error
	deleted   time.Time
}

func (f *fakeOutbox) Create(ctx context.Context, event *model.OutboxEvent) error { return nil }

func (f *fakeOutbox) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = statusUpdate{status, errMsg}
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	f.deleted = before
	return 3, nil
}

type inlineTx struct{ calls int }

func (t *inlineTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

// flakyBroker fails the first failures publishes of each channel.
type flakyBroker struct {
	failures  map[string]int
	published []messaging.Envelope
}

func (b *flakyBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	if b.failures[channel] > 0 {
		b.failures[channel]--
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, message.(messaging.Envelope))
	return nil
}

func (b *flakyBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *flakyBroker) Close() error { return nil }

func event(eventType string) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{"from":"scheduled","to":"completed"}`),
		Status:      model.OutboxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func newProcessor(repo *fakeOutbox, broker messaging.Broker) (*OutboxProcessor, *inlineTx, *metrics.Metrics) {
	tx := &inlineTx{}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p := NewOutboxProcessor(repo, tx, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}, logger.Nop(), m)
	return p, tx, m
}

func TestOutboxProcessor_PublishesAndMarksProcessed(t *testing.T) {
	ok := event(model.EventAppointmentStatusChanged)
	repo := &fakeOutbox{pending: []*model.OutboxEvent{ok}, updates: map[uuid.UUID]statusUpdate{}}
	broker := &flakyBroker{failures: map[string]int{model.EventAppointmentStatusChanged: 1}}
	p, tx, m := newProcessor(repo, broker)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, tx.calls)

	require.Len(t, broker.published, 1)
	assert.Equal(t, ok.ID, broker.published[0].ID)
	assert.Equal(t, ok.AggregateID, broker.published[0].AggregateID)
	assert.Equal(t, model.OutboxStatusProcessed, repo.updates[ok.ID].status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventAppointmentStatusChanged)))
}

func TestOutboxProcessor_MarksFailedAfterRetries(t *testing.T) {
	bad := event(model.EventInventoryStatusChanged)
	good := event(model.EventAppointmentStatusChanged)
	repo := &fakeOutbox{pending: []*model.OutboxEvent{bad, good}, updates: map[uuid.UUID]statusUpdate{}}
	broker := &flakyBroker{failures: map[string]int{model.EventInventoryStatusChanged: 10}}
	p, _, m := newProcessor(repo, broker)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	failed := repo.updates[bad.ID]
	assert.Equal(t, model.OutboxStatusFailed, failed.status)
	require.NotNil(t, failed.errMsg)
	assert.Contains(t, *failed.errMsg, "broker unavailable")
	assert.Equal(t, model.OutboxStatusProcessed, repo.updates[good.ID].status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventInventoryStatusChanged)))
}

func TestOutboxProcessor_StatusUpdateFailureAbortsBatch(t *testing.T) {
	repo := &fakeOutbox{
		pending:   []*model.OutboxEvent{event(model.EventInventoryStatusChanged)},
		updates:   map[uuid.UUID]statusUpdate{},
		updateErr: errors.New("connection lost"),
	}
	p, _, _ := newProcessor(repo, &flakyBroker{failures: map[string]int{}})

	n, err := p.ProcessBatch(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestNewOutboxProcessor_RejectsBadConfig(t *testing.T) {
	assert.Panics(t, func() {
		NewOutboxProcessor(&fakeOutbox{}, &inlineTx{}, &flakyBroker{}, OutboxProcessorConfig{}, logger.Nop(), nil)
	})
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestOutboxCleanupWorker_RunOnce(t *testing.T) {
	repo := &fakeOutbox{}
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	w := NewOutboxCleanupWorker(repo, 7*24*time.Hour, time.Hour, logger.Nop())
	w.now = func() time.Time { return now }

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC), repo.deleted)
}
