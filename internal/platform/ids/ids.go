package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

type IDGen interface {
	New() (string, error)
}

// ULID: 時刻順に並ぶID。エントロピーは単調増加にしておく
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULID) New() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Seq: テスト用の連番
type Seq struct {
	Prefix string
	n      atomic.Int64
}

func (s *Seq) New() (string, error) {
	return fmt.Sprintf("%s%03d", s.Prefix, s.n.Add(1)), nil
}
