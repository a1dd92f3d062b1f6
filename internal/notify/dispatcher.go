package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/roicredit/internal/metrics"
)

const (
	defaultQueueSize = 256
	drainTimeout     = 5 * time.Second
)

// Dispatcher очередь уведомлений, отделяющая рассылку от записи в леджер.
// Ошибки отправки логируются и не влияют на уже выполненные начисления.
type Dispatcher struct {
	sender   Sender
	queue    chan Message
	logger   *zap.Logger
	metrics  *metrics.Metrics
	blocking bool
	done     chan struct{}
}

// DispatcherOption настраивает Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBlockingPublish заставляет Publish ждать места в очереди вместо отбрасывания письма.
// Ожидание прерывается, только когда Run завершился.
func WithBlockingPublish() DispatcherOption {
	return func(d *Dispatcher) { d.blocking = true }
}

// NewDispatcher создаёт очередь размера size (по умолчанию 256).
func NewDispatcher(sender Sender, size int, logger *zap.Logger, m *metrics.Metrics, opts ...DispatcherOption) *Dispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	if sender == nil {
		sender = NopSender{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sender:  sender,
		queue:   make(chan Message, size),
		logger:  logger,
		metrics: m,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish ставит письмо в очередь. По умолчанию не блокируется: при переполнении письмо отбрасывается.
func (d *Dispatcher) Publish(msg Message) bool {
	select {
	case <-d.done:
		d.drop(msg)
		return false
	default:
	}

	if d.blocking {
		select {
		case d.queue <- msg:
			return true
		case <-d.done:
			d.drop(msg)
			return false
		}
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.drop(msg)
		return false
	}
}

func (d *Dispatcher) drop(msg Message) {
	d.logger.Warn("notification queue unavailable, dropping message",
		zap.String("recipient", msg.RecipientEmail),
		zap.String("plan", msg.PlanName),
	)
	d.metrics.IncNotification("dropped")
}

// Run обрабатывает очередь до отмены ctx, после чего дожидается отправки уже поставленных писем.
// Вызывается один раз; после его возврата Publish отбрасывает письма.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("send notification error",
			zap.Error(err),
			zap.String("recipient", msg.RecipientEmail),
			zap.String("plan", msg.PlanName),
		)
		d.metrics.IncNotification("failed")
		return
	}
	d.metrics.IncNotification("sent")
}
