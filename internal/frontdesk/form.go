package frontdesk

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"hcsc-backend/internal/directory/students"
	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/lending/enrollments"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/textnorm"
)

var (
	ErrAlreadyBorrowed = errors.New("material is already borrowed by this student")
	ErrNotSelectable   = errors.New("material is not selectable")
	ErrGiftNeedsImage  = errors.New("gift materials require at least one image")
	ErrTooManyImages   = fmt.Errorf("at most %d images per enrollment", MaxImages)
)

// Form: 受付フォームの状態
type Form struct {
	Name    string
	Email   string
	Phone   string
	Level   string
	Purpose string
	StaffID string
	Notes   string

	Student *students.Student

	catalog  map[string]materials.Material
	order    []string
	types    map[materials.Type]bool
	selected []string
	borrowed map[string]bool
	images   []Image
}

func NewForm(catalog []materials.Material) *Form {
	f := &Form{
		catalog:  make(map[string]materials.Material, len(catalog)),
		types:    map[materials.Type]bool{},
		borrowed: map[string]bool{},
	}
	for _, m := range catalog {
		if _, dup := f.catalog[m.ID]; !dup {
			f.order = append(f.order, m.ID)
		}
		f.catalog[m.ID] = m
	}
	return f
}

// ToggleType: 種別を外したらその種別の選択も外す
func (f *Form) ToggleType(t materials.Type) {
	if f.types[t] {
		delete(f.types, t)
		f.selected = slices.DeleteFunc(f.selected, func(id string) bool { return f.catalog[id].Type == t })
		return
	}
	f.types[t] = true
}

func (f *Form) TypeSelected(t materials.Type) bool { return f.types[t] }

// ApplyLookup: 照会結果を反映。既に借りている教材は選択肢と現在の選択から外す
func (f *Form) ApplyLookup(res students.CheckPhoneResponse) {
	f.borrowed = make(map[string]bool, len(res.BorrowedMaterials))
	for _, b := range res.BorrowedMaterials {
		f.borrowed[b.MaterialID] = true
	}
	f.selected = slices.DeleteFunc(f.selected, func(id string) bool { return f.borrowed[id] })

	f.Student = res.Student
	if s := res.Student; s != nil {
		if f.Name == "" {
			f.Name = s.Name
		}
		if f.Email == "" && s.Email != nil {
			f.Email = *s.Email
		}
		if f.Level == "" && s.Level != nil {
			f.Level = *s.Level
		}
	}
}

// ClearLookup: 電話番号が変わったら前の学生の情報を捨てる
func (f *Form) ClearLookup() {
	f.Student = nil
	f.borrowed = map[string]bool{}
}

func (f *Form) Borrowed(id string) bool { return f.borrowed[id] }

func (f *Form) selectable(m materials.Material) bool {
	return f.types[m.Type] && !f.borrowed[m.ID] && m.QuantityAvailable > 0
}

// Options: 選択中の種別・未借用・在庫ありで、検索語に合うもの
func (f *Form) Options(query string) []materials.Material {
	out := make([]materials.Material, 0, len(f.order))
	for _, id := range f.order {
		m := f.catalog[id]
		if !f.selectable(m) || slices.Contains(f.selected, id) {
			continue
		}
		var author string
		if m.Author != nil {
			author = *m.Author
		}
		if textnorm.Match(m.Title+" "+author+" "+m.Level, query) {
			out = append(out, m)
		}
	}
	return out
}

func (f *Form) Select(id string) error {
	m, ok := f.catalog[id]
	switch {
	case !ok:
		return ErrNotSelectable
	case f.borrowed[id]:
		return ErrAlreadyBorrowed
	case !f.selectable(m):
		return ErrNotSelectable
	}
	if !slices.Contains(f.selected, id) {
		f.selected = append(f.selected, id)
	}
	return nil
}

func (f *Form) Deselect(id string) {
	f.selected = slices.DeleteFunc(f.selected, func(s string) bool { return s == id })
}

func (f *Form) Selected() []string { return slices.Clone(f.selected) }

func (f *Form) hasGift() bool {
	return slices.ContainsFunc(f.selected, func(id string) bool { return f.catalog[id].Type == materials.TypeGift })
}

func (f *Form) AddImage(img Image) error {
	if len(f.images) >= MaxImages {
		return ErrTooManyImages
	}
	f.images = append(f.images, img)
	return nil
}

func (f *Form) RemoveImage(i int) {
	if i >= 0 && i < len(f.images) {
		f.images = slices.Delete(f.images, i, i+1)
	}
}

func (f *Form) Images() []Image { return slices.Clone(f.images) }

// Validate: 送信前チェック
func (f *Form) Validate() error {
	phone := api.NormalizePhone(f.Phone)
	var missing []string
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, "name")
	}
	if phone == "" {
		missing = append(missing, "phone")
	}
	if f.StaffID == "" {
		missing = append(missing, "sales staff")
	}
	if len(f.selected) == 0 {
		missing = append(missing, "materials")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !api.IsVNPhone(phone) {
		return errors.New("invalid Vietnamese phone number")
	}
	if f.hasGift() && len(f.images) == 0 {
		return ErrGiftNeedsImage
	}
	return nil
}

func (f *Form) Request() enrollments.EnrollmentRequest {
	return enrollments.EnrollmentRequest{
		Type:         "borrow",
		StudentName:  strings.TrimSpace(f.Name),
		Email:        strings.TrimSpace(f.Email),
		Phone:        api.NormalizePhone(f.Phone),
		Level:        f.Level,
		Purpose:      f.Purpose,
		SalesStaffID: f.StaffID,
		MaterialIDs:  f.Selected(),
		Notes:        f.Notes,
	}
}
