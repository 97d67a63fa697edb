package exportlogs

import "time"

// ExportLog: クラス単位の一括出庫1行（教材ごと）
type ExportLog struct {
	ID            string    `json:"id"`
	MaterialID    string    `json:"material_id"`
	MaterialTitle string    `json:"material_title"`
	Quantity      int       `json:"quantity"`
	Note          *string   `json:"note"`
	ExportedBy    *string   `json:"exported_by"`
	ERPUpdated    bool      `json:"erp_updated"`
	CreatedAt     time.Time `json:"created_at"`
}

type Filter struct {
	From *time.Time
	To   *time.Time
	// PendingERP: erp_updated = false のみ
	PendingERP bool
}

type Item struct {
	MaterialID string `json:"material_id"`
	Quantity   int    `json:"quantity"`
}

// CreateRequest: items 形式と単品形式のどちらも受ける
type CreateRequest struct {
	Items         []Item  `json:"items"`
	MaterialID    string  `json:"material_id"`
	MaterialTitle string  `json:"material_title"`
	Quantity      int     `json:"quantity"`
	Note          *string `json:"note"`
	ExportedBy    *string `json:"exported_by"`
}

func (r CreateRequest) items() []Item {
	if len(r.Items) > 0 {
		return r.Items
	}
	if r.MaterialID == "" && r.Quantity == 0 {
		return nil
	}
	return []Item{{MaterialID: r.MaterialID, Quantity: r.Quantity}}
}

type PatchRequest struct {
	Note       *string `json:"note"`
	ERPUpdated *bool   `json:"erp_updated"`
}

var patchableFields = []string{"note", "erp_updated"}
