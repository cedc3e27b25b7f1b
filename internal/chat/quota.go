package chat

import (
	"sync"
	"time"
)

// QuotaBreaker decide si el servicio remoto puede usarse. Se abre ante un error de cuota o
// cuando se agotan las llamadas del minuto, y se cierra al terminar el cooldown.
type QuotaBreaker struct {
	mu          sync.Mutex
	cooldown    time.Duration
	maxPerMin   int
	now         func() time.Time
	exceeded    bool
	windowStart time.Time
	count       int
}

// QuotaStatus es el estado observable del breaker.
type QuotaStatus struct {
	Exceeded           bool          `json:"exceeded"`
	RequestsThisMinute int           `json:"requests_this_minute"`
	RetryIn            time.Duration `json:"retry_in"`
}

func NewQuotaBreaker(cooldown time.Duration, maxPerMinute int) *QuotaBreaker {
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	if maxPerMinute <= 0 {
		maxPerMinute = 10
	}
	return &QuotaBreaker{
		cooldown:    cooldown,
		maxPerMin:   maxPerMinute,
		now:         time.Now,
		windowStart: time.Now(),
	}
}

func (b *QuotaBreaker) rollLocked(now time.Time) {
	if now.Sub(b.windowStart) >= b.cooldown {
		b.exceeded = false
		b.count = 0
		b.windowStart = now
	}
}

// Acquire reserva una llamada remota. Devuelve false si hay que usar el respondedor local.
func (b *QuotaBreaker) Acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked(b.now())
	if b.exceeded || b.count >= b.maxPerMin {
		return false
	}
	b.count++
	return true
}

// MarkExceeded abre el breaker y reinicia el cooldown.
func (b *QuotaBreaker) MarkExceeded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exceeded = true
	b.windowStart = b.now()
}

// Open indica si el breaker esta abierto sin reservar una llamada.
func (b *QuotaBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked(b.now())
	return b.exceeded || b.count >= b.maxPerMin
}

func (b *QuotaBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exceeded = false
	b.count = 0
	b.windowStart = b.now()
}

func (b *QuotaBreaker) Status() QuotaStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.rollLocked(now)
	retry := b.cooldown - now.Sub(b.windowStart)
	if retry < 0 {
		retry = 0
	}
	return QuotaStatus{
		Exceeded:           b.exceeded,
		RequestsThisMinute: b.count,
		RetryIn:            retry,
	}
}
