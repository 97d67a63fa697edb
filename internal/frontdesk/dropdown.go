package frontdesk

import (
	"errors"
	"sync"
	"time"

	"hcsc-backend/internal/inventory/materials"
)

const DefaultHideDelay = 150 * time.Millisecond

var ErrDropdownClosed = errors.New("dropdown is closed")

// Dropdown: 教材検索の候補リスト。blur 後すぐには閉じず hideDelay だけ待つので、
// blur の直後に届いたクリックでも選択できる
type Dropdown struct {
	form  *Form
	delay time.Duration

	mu      sync.Mutex
	query   string
	visible bool
	timer   *time.Timer
}

func NewDropdown(f *Form, delay time.Duration) *Dropdown {
	if delay <= 0 {
		delay = DefaultHideDelay
	}
	return &Dropdown{form: f, delay: delay}
}

func (d *Dropdown) Focus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.visible = true
}

func (d *Dropdown) Blur() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		d.visible = false
		d.timer = nil
		d.mu.Unlock()
	})
}

func (d *Dropdown) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Dropdown) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

func (d *Dropdown) Type(q string) {
	d.mu.Lock()
	d.query = q
	d.visible = true
	d.mu.Unlock()
}

// Items: 表示中の候補。閉じていれば nil
func (d *Dropdown) Items() []materials.Material {
	d.mu.Lock()
	vis, q := d.visible, d.query
	d.mu.Unlock()
	if !vis {
		return nil
	}
	return d.form.Options(q)
}

// Pick: 選択したら検索語をクリアして閉じる
func (d *Dropdown) Pick(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.visible {
		return ErrDropdownClosed
	}
	if err := d.form.Select(id); err != nil {
		return err
	}
	d.query = ""
	d.visible = false
	d.stopLocked()
	return nil
}
