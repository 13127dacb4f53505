package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Dispatcher периодически вычитывает неопубликованные события outbox,
// передаёт их публикатору и помечает доставленные.
type Dispatcher struct {
	tx        repository.TxManager
	outbox    repository.OutboxRepository
	publisher Publisher
	interval  time.Duration
	batchSize int
	rowLocks  bool
	log       *logrus.Entry
}

type DispatcherOption func(*Dispatcher)

// WithRowLocks публикует пачку внутри транзакции выборки. Подходит хранилищу, которое
// блокирует только выбранные строки (Postgres, FOR UPDATE SKIP LOCKED): параллельные
// экземпляры не публикуют одно событие дважды, а запись новых событий не ждёт брокер.
func WithRowLocks() DispatcherOption {
	return func(d *Dispatcher) { d.rowLocks = true }
}

func NewDispatcher(tx repository.TxManager, outbox repository.OutboxRepository, publisher Publisher, interval time.Duration, batchSize int, opts ...DispatcherOption) *Dispatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	d := &Dispatcher{
		tx:        tx,
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		log:       logger.WithComponent("outbox"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run работает до отмены ctx. Запускается через goroutine.SafeGoWithContext.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.WithError(err).Error("ошибка обработки outbox")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce обрабатывает одну пачку и возвращает число опубликованных событий.
// Событие, которое не удалось опубликовать, остаётся в outbox до следующей итерации.
// Без WithRowLocks выборка и отметка идут в двух коротких транзакциях, а публикация
// между ними не держит хранилище.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	var (
		published int
		err       error
	)
	if d.rowLocks {
		err = d.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			published, err = d.dispatch(ctx)
			return err
		})
	} else {
		published, err = d.dispatch(ctx)
	}
	if err != nil {
		return 0, err
	}

	if published > 0 {
		d.log.WithField("published", published).Debug("пачка outbox опубликована")
	}
	return published, nil
}

// dispatch выполняет шаги пачки в транзакции из ctx, если она есть,
// иначе каждый шаг получает собственную.
func (d *Dispatcher) dispatch(ctx context.Context) (int, error) {
	var pending []*event.Event
	err := d.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		pending, err = d.outbox.FetchPending(ctx, d.batchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, evt := range pending {
		if err := d.publisher.Publish(ctx, evt); err != nil {
			d.log.WithFields(logrus.Fields{
				"event_id":     evt.ID,
				"event_type":   evt.Name,
				"aggregate_id": evt.AggregateID,
			}).WithError(err).Warn("не удалось опубликовать событие, повторим позже")
			continue
		}
		ids = append(ids, evt.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err = d.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return d.outbox.MarkPublished(ctx, ids)
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
