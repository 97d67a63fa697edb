package materials

// ===== Requests =====

type CreateMaterialRequest struct {
	ISBN          *string `json:"isbn,omitempty"`
	Title         string  `json:"title" binding:"required"`
	Author        *string `json:"author,omitempty"`
	Level         string  `json:"level" binding:"required"`
	Type          Type    `json:"type,omitempty"` // 省略時 book
	Condition     *string `json:"condition,omitempty"`
	QuantityTotal *int    `json:"quantity_total,omitempty" binding:"omitempty,min=0"` // 省略時 1
}

type UpdateMaterialRequest struct {
	ISBN              *string `json:"isbn,omitempty"`
	Title             *string `json:"title,omitempty"`
	Author            *string `json:"author,omitempty"`
	Level             *string `json:"level,omitempty"`
	Type              *Type   `json:"type,omitempty"`
	Condition         *string `json:"condition,omitempty"`
	QuantityTotal     *int    `json:"quantity_total,omitempty"`
	QuantityAvailable *int    `json:"quantity_available,omitempty"`
}

func (r UpdateMaterialRequest) empty() bool {
	return r.ISBN == nil && r.Title == nil && r.Author == nil && r.Level == nil && r.Type == nil &&
		r.Condition == nil && r.QuantityTotal == nil && r.QuantityAvailable == nil
}

var updatableFields = []string{
	"isbn", "title", "author", "level", "type", "condition", "quantity_total", "quantity_available",
}
