// Package lending holds the record status vocabulary shared by the enrollment and record packages.
package lending

type Status string

const (
	StatusBorrowed Status = "borrowed"
	StatusReturned Status = "returned"
	StatusLost     Status = "lost"
	StatusDamaged  Status = "damaged"
	StatusOverdue  Status = "overdue"
)

// OutstandingStatuses: まだ手元に戻っていない状態
var OutstandingStatuses = []Status{StatusBorrowed, StatusOverdue}

func (s Status) Valid() bool {
	switch s {
	case StatusBorrowed, StatusReturned, StatusLost, StatusDamaged, StatusOverdue:
		return true
	}
	return false
}

func (s Status) Outstanding() bool {
	return s == StatusBorrowed || s == StatusOverdue
}

// Settable: PUT /material-records/:id で指定できる状態
func (s Status) Settable() bool {
	switch s {
	case StatusReturned, StatusLost, StatusDamaged, StatusOverdue:
		return true
	}
	return false
}

// RestoresStock: from → to の遷移で在庫を1戻すか
func RestoresStock(from, to Status) bool {
	return from.Outstanding() && to == StatusReturned
}

func OutstandingArgs() []any {
	out := make([]any, len(OutstandingStatuses))
	for i, s := range OutstandingStatuses {
		out[i] = string(s)
	}
	return out
}

// TakesStock: 返却済みを未返却に戻すときは在庫を1減らす
func TakesStock(from, to Status) bool {
	return from == StatusReturned && to.Outstanding()
}
