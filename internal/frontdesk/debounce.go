package frontdesk

import (
	"context"
	"sync"
	"time"

	"hcsc-backend/internal/directory/students"
	"hcsc-backend/internal/platform/api"
)

const DefaultLookupDelay = 2 * time.Second

type LookupFunc func(ctx context.Context, phone string) (students.CheckPhoneResponse, error)

type LookupResult struct {
	Phone string
	Resp  students.CheckPhoneResponse
	Err   error
}

// LookupDebouncer: 電話番号の入力が止まってから delay 後に照会する。
// 新しい入力が来たら保留中のタイマーと実行中の照会を取り消し、
// 現在の入力と一致しない結果は捨てる。
type LookupDebouncer struct {
	delay    time.Duration
	lookup   LookupFunc
	onResult func(LookupResult)

	mu      sync.Mutex
	current string
	timer   *time.Timer
	cancel  context.CancelFunc
	closed  bool
}

func NewLookupDebouncer(delay time.Duration, lookup LookupFunc, onResult func(LookupResult)) *LookupDebouncer {
	if delay <= 0 {
		delay = DefaultLookupDelay
	}
	return &LookupDebouncer{delay: delay, lookup: lookup, onResult: onResult}
}

// Set: 入力変更。形式が電話番号でなければ照会しない
func (d *LookupDebouncer) Set(raw string) {
	phone := api.NormalizePhone(raw)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.current = phone
	d.stopLocked()
	if !api.IsVNPhone(phone) {
		return
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(phone) })
}

// Current: いま入力されている（正規化済みの）番号
func (d *LookupDebouncer) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *LookupDebouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.stopLocked()
}

func (d *LookupDebouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *LookupDebouncer) fire(phone string) {
	d.mu.Lock()
	if d.closed || d.current != phone {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()

	resp, err := d.lookup(ctx, phone)

	d.mu.Lock()
	stale := ctx.Err() != nil || d.closed || d.current != phone
	if !stale {
		d.cancel = nil
	}
	d.mu.Unlock()
	cancel()
	if stale {
		return
	}
	if d.onResult != nil {
		d.onResult(LookupResult{Phone: phone, Resp: resp, Err: err})
	}
}
