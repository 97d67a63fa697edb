package materials

import "time"

type Type string

const (
	TypeBook  Type = "book"
	TypeGift  Type = "gift"
	TypeOther Type = "other"
)

func (t Type) Valid() bool {
	switch t {
	case TypeBook, TypeGift, TypeOther:
		return true
	}
	return false
}

// Material: 0 <= QuantityAvailable <= QuantityTotal
type Material struct {
	ID                string    `json:"id"`
	ISBN              *string   `json:"isbn"`
	Title             string    `json:"title"`
	Author            *string   `json:"author"`
	Level             string    `json:"level"`
	Type              Type      `json:"type"`
	Condition         *string   `json:"condition"`
	QuantityTotal     int       `json:"quantity_total"`
	QuantityAvailable int       `json:"quantity_available"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Filter struct {
	Level   string
	Type    string
	Search  string
	InStock bool
}
