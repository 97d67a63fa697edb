package enrollments

import (
	"context"
	"database/sql"
	"maps"
	"sort"
	"time"

	"hcsc-backend/internal/directory/students"
	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/db"
)

// memStore: Store のインメモリ実装。Tx はエラー時にスナップショットへ戻す
type memStore struct {
	students    map[string]students.Student // phone → student
	staff       map[string]bool             // id → active
	materials   map[string]materials.Material
	enrollments map[string]Enrollment
	records     map[string]Record
	idem        map[string]IdemEntry
	images      map[string]Image

	failDecrement  string // このIDの減算だけガードに掛ける
	staleIdemReads int    // 並行コミット前のスナップショットを模して、この回数だけキーを見えなくする
}

func newMemStore(ms ...materials.Material) *memStore {
	s := &memStore{
		students:    map[string]students.Student{},
		staff:       map[string]bool{"staff-1": true, "staff-off": false},
		materials:   map[string]materials.Material{},
		enrollments: map[string]Enrollment{},
		records:     map[string]Record{},
		idem:        map[string]IdemEntry{},
		images:      map[string]Image{},
	}
	for _, m := range ms {
		s.materials[m.ID] = m
	}
	return s
}

func (s *memStore) snapshot() memStore {
	return memStore{
		students:    maps.Clone(s.students),
		staff:       maps.Clone(s.staff),
		materials:   maps.Clone(s.materials),
		enrollments: maps.Clone(s.enrollments),
		records:     maps.Clone(s.records),
		idem:        maps.Clone(s.idem),
		images:      maps.Clone(s.images),
	}
}

func (s *memStore) restore(snap memStore) {
	s.students, s.staff, s.materials = snap.students, snap.staff, snap.materials
	s.enrollments, s.records, s.idem, s.images = snap.enrollments, snap.records, snap.idem, snap.images
}

func (s *memStore) Tx(_ context.Context, fn func(Store) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) StudentByPhone(_ context.Context, phone string) (*students.Student, error) {
	st, ok := s.students[phone]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s *memStore) InsertStudent(_ context.Context, st *students.Student) error {
	s.students[st.Phone] = *st
	return nil
}

func (s *memStore) PatchStudent(_ context.Context, phone string, p students.Patch, now time.Time) error {
	st, ok := s.students[phone]
	if !ok {
		return sql.ErrNoRows
	}
	if p.Name != nil {
		st.Name = *p.Name
	}
	if p.Email != nil {
		st.Email = p.Email
	}
	if p.Level != nil {
		st.Level = p.Level
	}
	if p.StudentType != nil {
		st.StudentType = *p.StudentType
	}
	if p.Notes != nil {
		st.Notes = p.Notes
	}
	st.UpdatedAt = now
	s.students[phone] = st
	return nil
}

func (s *memStore) StaffActive(_ context.Context, id string) (bool, error) {
	return s.staff[id], nil
}

func (s *memStore) LockMaterials(_ context.Context, ids []string) ([]materials.Material, error) {
	var out []materials.Material
	for _, id := range ids {
		if m, ok := s.materials[id]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) DecrementStock(_ context.Context, id string) (bool, error) {
	m, ok := s.materials[id]
	if !ok || m.QuantityAvailable < 1 || id == s.failDecrement {
		return false, nil
	}
	m.QuantityAvailable--
	s.materials[id] = m
	return true, nil
}

func (s *memStore) IncrementStock(_ context.Context, id string) (bool, error) {
	m, ok := s.materials[id]
	if !ok || m.QuantityAvailable+1 > m.QuantityTotal {
		return false, nil
	}
	m.QuantityAvailable++
	s.materials[id] = m
	return true, nil
}

func (s *memStore) InsertEnrollment(_ context.Context, e *Enrollment) error {
	s.enrollments[e.ID] = *e
	return nil
}

func (s *memStore) InsertRecord(_ context.Context, r *Record) error {
	s.records[r.ID] = *r
	return nil
}

func (s *memStore) CountEnrollmentsByPhone(_ context.Context, phone string) (int, error) {
	n := 0
	for _, e := range s.enrollments {
		if e.StudentPhone == phone {
			n++
		}
	}
	return n, nil
}

func (s *memStore) FindOutstandingRecord(_ context.Context, phone, materialID string) (*Record, error) {
	var hits []Record
	for _, r := range s.records {
		e := s.enrollments[r.EnrollmentID]
		if e.StudentPhone == phone && r.MaterialID == materialID && r.Status.Outstanding() {
			hits = append(hits, r)
		}
	}
	if len(hits) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.Slice(hits, func(i, j int) bool {
		ei, ej := s.enrollments[hits[i].EnrollmentID], s.enrollments[hits[j].EnrollmentID]
		if !ei.IssuedDate.Equal(ej.IssuedDate) {
			return ei.IssuedDate.Before(ej.IssuedDate)
		}
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.Before(hits[j].CreatedAt)
		}
		return hits[i].ID < hits[j].ID
	})
	return &hits[0], nil
}

func (s *memStore) MarkReturned(_ context.Context, id string, day time.Time) (bool, error) {
	r, ok := s.records[id]
	if !ok || !r.Status.Outstanding() {
		return false, nil
	}
	r.Status, r.ReturnDate = lending.StatusReturned, &day
	s.records[id] = r
	return true, nil
}

func (s *memStore) GetRecord(_ context.Context, id string) (*Record, error) {
	r, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (s *memStore) recordsOf(enrollmentID string) []Record {
	var out []Record
	for _, r := range s.records {
		if r.EnrollmentID == enrollmentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) RecordIDs(_ context.Context, enrollmentID string) ([]string, error) {
	out := []string{}
	for _, r := range s.recordsOf(enrollmentID) {
		out = append(out, r.ID)
	}
	return out, nil
}

func (s *memStore) GetIdempotency(_ context.Context, key string) (*IdemEntry, error) {
	if s.staleIdemReads > 0 {
		s.staleIdemReads--
		return nil, nil
	}
	e, ok := s.idem[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *memStore) PutIdempotency(_ context.Context, e IdemEntry, _ time.Time) error {
	if _, ok := s.idem[e.Key]; ok {
		return errIdempotencyTaken
	}
	s.idem[e.Key] = e
	return nil
}

func (s *memStore) GetEnrollment(_ context.Context, id string) (*Enrollment, error) {
	e, ok := s.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *memStore) ListEnrollments(_ context.Context, f Filter, p api.Page) ([]Enrollment, int64, error) {
	var all []Enrollment
	for _, e := range s.enrollments {
		if f.Phone != "" && e.StudentPhone != f.Phone {
			continue
		}
		if f.SalesStaffID != "" && e.SalesStaffID != f.SalesStaffID {
			continue
		}
		if f.ERPUpdated != nil && e.ERPUpdated != *f.ERPUpdated {
			continue
		}
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if p.Offset >= len(all) {
		return nil, total, nil
	}
	end := min(p.Offset+p.Limit, len(all))
	return all[p.Offset:end], total, nil
}

func (s *memStore) PatchEnrollment(_ context.Context, id string, p enrollmentPatch) error {
	e := s.enrollments[id]
	if p.Notes != nil {
		e.Notes = db.StrPtr(db.NullStr(p.Notes))
	}
	if p.DueDate != nil {
		e.DueDate = *p.DueDate
	}
	if p.ERPUpdated != nil {
		e.ERPUpdated = *p.ERPUpdated
	}
	s.enrollments[id] = e
	return nil
}

func (s *memStore) EnrollmentDetail(ctx context.Context, id string) (*EnrollmentDetail, error) {
	e, ok := s.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := &EnrollmentDetail{Enrollment: e, Records: []RecordView{}}
	if st, ok := s.students[e.StudentPhone]; ok {
		d.StudentName = &st.Name
	}
	for _, r := range s.recordsOf(id) {
		m := s.materials[r.MaterialID]
		d.Records = append(d.Records, RecordView{Record: r, Title: m.Title, Type: string(m.Type)})
	}
	d.Images, _ = s.ListImages(ctx, id)
	return d, nil
}

func (s *memStore) InsertImage(_ context.Context, img *Image) error {
	s.images[img.ID] = *img
	return nil
}

func (s *memStore) ListImages(_ context.Context, enrollmentID string) ([]Image, error) {
	out := []Image{}
	for _, img := range s.images {
		if img.EnrollmentID == enrollmentID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// outstanding: 指定教材の未返却明細数
func (s *memStore) outstanding(materialID string) int {
	n := 0
	for _, r := range s.records {
		if r.MaterialID == materialID && r.Status.Outstanding() {
			n++
		}
	}
	return n
}
