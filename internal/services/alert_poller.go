package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"backoffice/server/internal/utils"

	"github.com/rs/zerolog/log"
)

// AlertSource - откуда поллер берет алерты
type AlertSource interface {
	GetAlertsSummary(ctx context.Context, filterType string) (*AlertsSummary, error)
}

// Deduper решает, отправлять ли алерт повторно.
// ShouldEmit атомарно отмечает ключ как отправленный, Forget снимает отметку,
// если доставка не удалась.
type Deduper interface {
	ShouldEmit(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Notifier доставляет новые алерты (Kafka, Redis Pub/Sub, лог)
type Notifier interface {
	Notify(ctx context.Context, event AlertEvent) error
}

// AlertEvent - сообщение с новыми алертами
type AlertEvent struct {
	Type      string        `json:"tipo_evento"`
	Alerts    []AlertDetail `json:"alertas"`
	EmittedAt time.Time     `json:"emitido_en"`
}

const alertEventType = "ALERTAS_INVENTARIO"

// MemoryDeduper - ограниченная карта ключ -> время последней отправки
type MemoryDeduper struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	seen     map[string]time.Time
	now      func() time.Time
}

// NewMemoryDeduper создает дедупликатор в памяти процесса
func NewMemoryDeduper(ttl time.Duration, capacity int) *MemoryDeduper {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryDeduper{
		ttl:      ttl,
		capacity: capacity,
		seen:     make(map[string]time.Time, capacity),
		now:      time.Now,
	}
}

func (d *MemoryDeduper) ShouldEmit(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return false, nil
	}
	if _, ok := d.seen[key]; !ok && len(d.seen) >= d.capacity {
		d.evict(now)
	}
	d.seen[key] = now
	return true, nil
}

func (d *MemoryDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

// evict удаляет просроченные записи, а если их нет - самую старую
func (d *MemoryDeduper) evict(now time.Time) {
	var oldestKey string
	var oldest time.Time
	removed := false
	for k, t := range d.seen {
		if now.Sub(t) >= d.ttl {
			delete(d.seen, k)
			removed = true
			continue
		}
		if oldestKey == "" || t.Before(oldest) {
			oldestKey, oldest = k, t
		}
	}
	if !removed && oldestKey != "" {
		delete(d.seen, oldestKey)
	}
}

// Len - число отслеживаемых ключей
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// RedisStore - операции Redis, нужные алертам (реализует *utils.RedisClient)
type RedisStore interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Publish(ctx context.Context, channel string, message interface{}) error
}

var _ RedisStore = (*utils.RedisClient)(nil)

const dedupKeyPrefix = "alert:dedup:"

// RedisDeduper хранит отметки в Redis (SET NX EX), общий для нескольких инстансов
type RedisDeduper struct {
	redis RedisStore
	ttl   time.Duration
}

// NewRedisDeduper создает дедупликатор на Redis
func NewRedisDeduper(redis RedisStore, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{redis: redis, ttl: ttl}
}

func (d *RedisDeduper) ShouldEmit(ctx context.Context, key string) (bool, error) {
	return d.redis.SetNX(ctx, dedupKeyPrefix+key, time.Now().Unix(), d.ttl)
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	return d.redis.Delete(ctx, dedupKeyPrefix+key)
}

// LogNotifier пишет алерты в лог
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event AlertEvent) error {
	for _, a := range event.Alerts {
		log.Warn().
			Str("tipo", a.Kind).
			Str("nivel", a.Level).
			Str("ingrediente", a.Name).
			Str("lote", a.LotCode).
			Msg("🚨 " + a.Message)
	}
	return nil
}

// RedisNotifier публикует алерты в канал Redis Pub/Sub
type RedisNotifier struct {
	redis   RedisStore
	channel string
}

// NewRedisNotifier создает notifier для Redis Pub/Sub
func NewRedisNotifier(redis RedisStore, channel string) *RedisNotifier {
	if channel == "" {
		channel = "inventory:alerts"
	}
	return &RedisNotifier{redis: redis, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, event AlertEvent) error {
	return n.redis.Publish(ctx, n.channel, event)
}

// MultiNotifier рассылает событие всем notifier-ам; ошибка одного не мешает остальным
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event AlertEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AlertPoller периодически пересчитывает алерты и отправляет только новые.
// Только чтение из БД; состояние дедупликации живет в Deduper, а не в AlertEngine.
type AlertPoller struct {
	source   AlertSource
	deduper  Deduper
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

// NewAlertPoller создает новый экземпляр AlertPoller
func NewAlertPoller(source AlertSource, deduper Deduper, notifier Notifier, interval time.Duration) *AlertPoller {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &AlertPoller{
		source:   source,
		deduper:  deduper,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
	}
}

// Start запускает цикл в отдельной горутине до отмены ctx
func (p *AlertPoller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		log.Info().Dur("interval", p.interval).Msg("⏰ Поллер алертов запущен")
		for {
			if _, err := p.Tick(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("❌ Ошибка проверки алертов")
			}
			select {
			case <-ctx.Done():
				log.Info().Msg("🛑 Поллер алертов остановлен")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Tick выполняет одну проверку и возвращает число отправленных алертов
func (p *AlertPoller) Tick(ctx context.Context) (int, error) {
	summary, err := p.source.GetAlertsSummary(ctx, FilterAll)
	if err != nil {
		return 0, err
	}

	fresh := make([]AlertDetail, 0)
	marked := make([]string, 0)
	for _, a := range summary.Details {
		ok, err := p.deduper.ShouldEmit(ctx, a.Key())
		if err != nil {
			// Хранилище дедупликации недоступно: отправляем как новый
			log.Warn().Err(err).Str("key", a.Key()).Msg("⚠️ Дедупликация недоступна")
			fresh = append(fresh, a)
			continue
		}
		if ok {
			fresh = append(fresh, a)
			marked = append(marked, a.Key())
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	event := AlertEvent{Type: alertEventType, Alerts: fresh, EmittedAt: p.now().UTC()}
	if err := p.notifier.Notify(ctx, event); err != nil {
		// Не доставлено: снимаем отметки, следующий тик отправит снова
		for _, key := range marked {
			if ferr := p.deduper.Forget(ctx, key); ferr != nil {
				log.Warn().Err(ferr).Str("key", key).Msg("⚠️ Не удалось снять отметку дедупликации")
			}
		}
		return len(fresh), err
	}
	log.Info().Int("alertas", len(fresh)).Msg("📣 Новые алерты отправлены")
	return len(fresh), nil
}
