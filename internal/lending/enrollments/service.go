package enrollments

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"hcsc-backend/internal/directory/students"
	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
	"hcsc-backend/internal/platform/events"
	"hcsc-backend/internal/platform/ids"
	"hcsc-backend/internal/platform/logger"
	"hcsc-backend/internal/platform/metrics"
)

const DefaultLoanDays = 30

type Service struct {
	store    Store
	pub      events.Publisher
	clock    clock.Clock
	id       ids.IDGen
	loanDays int
}

func NewService(conn *sql.DB, pub events.Publisher, loanDays int) *Service {
	return NewServiceWith(NewStore(conn), pub, clock.Real{}, ids.NewULID(), loanDays)
}

func NewServiceWith(store Store, pub events.Publisher, c clock.Clock, g ids.IDGen, loanDays int) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if loanDays <= 0 {
		loanDays = DefaultLoanDays
	}
	return &Service{store: store, pub: pub, clock: c, id: g, loanDays: loanDays}
}

// ===== Borrow =====

type borrowInput struct {
	BorrowRequest
	phone string
	ids   []string
}

func validateBorrow(in BorrowRequest) (borrowInput, error) {
	out := borrowInput{BorrowRequest: in, phone: api.NormalizePhone(in.Phone)}
	if out.phone == "" || len(in.MaterialIDs) == 0 {
		return out, api.ErrInvalid("Phone and material_ids are required")
	}
	if strings.TrimSpace(in.StudentName) == "" {
		return out, api.ErrInvalid("student_name is required")
	}
	if strings.TrimSpace(in.SalesStaffID) == "" {
		return out, api.ErrInvalid("sales_staff_id is required")
	}
	if !api.IsVNPhone(out.phone) {
		return out, api.ErrInvalid("Invalid Vietnamese phone number")
	}
	seen := make(map[string]bool, len(in.MaterialIDs))
	for _, id := range in.MaterialIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return out, api.ErrInvalid("material_ids must not contain empty ids")
		}
		if seen[id] {
			return out, api.ErrInvalid("material_ids must not contain duplicates: " + id)
		}
		seen[id] = true
		out.ids = append(out.ids, id)
	}
	return out, nil
}

// Borrow: 学生の作成/更新 → 在庫確認 → enrollment と明細作成 → 在庫減算 を1トランザクションで行う
func (s *Service) Borrow(ctx context.Context, in BorrowRequest, idemKey string) (BorrowResponse, error) {
	bi, err := validateBorrow(in)
	if err != nil {
		return BorrowResponse{}, err
	}

	var (
		res        BorrowResponse
		replayed   bool
		newStudent bool
	)
	err = s.store.Tx(ctx, func(st Store) error {
		if idemKey != "" {
			r, ok, err := s.replayBorrow(ctx, st, idemKey)
			if err != nil || ok {
				res, replayed = r, ok
				return err
			}
		}
		var err error
		res, newStudent, err = s.borrowTx(ctx, st, bi)
		if err != nil {
			return err
		}
		if idemKey != "" {
			return st.PutIdempotency(ctx, IdemEntry{Key: idemKey, Operation: opBorrow, RefID: res.EnrollmentID}, s.clock.Now().UTC())
		}
		return nil
	})
	if err != nil && idemKey != "" {
		// 同じキーの並行リクエストが先にコミットしていれば在庫不足などより再生を優先する。
		// 失敗した Tx のスナップショットでは見えないので新しい Tx で読み直す
		var (
			r  BorrowResponse
			ok bool
		)
		rerr := s.store.Tx(ctx, func(st Store) error {
			var err error
			r, ok, err = s.replayBorrow(ctx, st, idemKey)
			return err
		})
		switch {
		case rerr == nil && ok:
			res, replayed, err = r, true, nil
		case errors.Is(err, errIdempotencyTaken):
			if rerr == nil {
				rerr = api.ErrConflict("Idempotency-Key is being processed")
			}
			err = rerr
		}
	}
	metrics.Op(opBorrow, err)
	if err != nil {
		return BorrowResponse{}, err
	}
	if replayed {
		return res, nil
	}

	metrics.ItemsMoved.WithLabelValues("out").Add(float64(len(res.MaterialRecordIDs)))
	if newStudent {
		res.Message = "Student enrolled and materials borrowed!"
	} else {
		res.Message = "Materials borrowed successfully!"
	}
	s.publish(ctx, events.KeyBorrowed, map[string]any{
		"enrollment_id":  res.EnrollmentID,
		"student_phone":  res.StudentPhone,
		"sales_staff_id": bi.SalesStaffID,
		"material_ids":   bi.ids,
		"due_date":       res.DueDate,
	})
	return res, nil
}

func (s *Service) borrowTx(ctx context.Context, st Store, in borrowInput) (BorrowResponse, bool, error) {
	ok, err := st.StaffActive(ctx, in.SalesStaffID)
	if err != nil {
		return BorrowResponse{}, false, err
	}
	if !ok {
		return BorrowResponse{}, false, api.ErrInvalid("sales_staff_id does not reference an active staff member")
	}

	now := s.clock.Now().UTC()
	newStudent, err := s.upsertStudent(ctx, st, in, now)
	if err != nil {
		return BorrowResponse{}, false, err
	}

	locked, err := st.LockMaterials(ctx, in.ids)
	if err != nil {
		return BorrowResponse{}, false, err
	}
	if err := checkAvailable(in.ids, locked); err != nil {
		return BorrowResponse{}, false, err
	}

	enrID, err := s.id.New()
	if err != nil {
		return BorrowResponse{}, false, err
	}
	today := clock.Today(s.clock)
	notes := strings.TrimSpace(in.Notes)
	if notes == "" && strings.TrimSpace(in.Purpose) != "" {
		notes = "Purpose: " + strings.TrimSpace(in.Purpose)
	}
	e := &Enrollment{
		ID:           enrID,
		StudentPhone: in.phone,
		SalesStaffID: in.SalesStaffID,
		IssuedDate:   today,
		DueDate:      today.AddDate(0, 0, s.loanDays),
		Notes:        &notes,
		CreatedAt:    now,
	}
	if err := st.InsertEnrollment(ctx, e); err != nil {
		return BorrowResponse{}, false, api.FromMySQL(err, "enrollment already exists")
	}

	recIDs := make([]string, 0, len(in.ids))
	for _, mid := range in.ids {
		rid, err := s.id.New()
		if err != nil {
			return BorrowResponse{}, false, err
		}
		if err := st.InsertRecord(ctx, &Record{ID: rid, EnrollmentID: enrID, MaterialID: mid, Status: lending.StatusBorrowed, CreatedAt: now}); err != nil {
			return BorrowResponse{}, false, api.FromMySQL(err, "material record already exists")
		}
		recIDs = append(recIDs, rid)
	}

	// ロック済みでもガードを通す。0件ならロールバック
	for _, m := range locked {
		ok, err := st.DecrementStock(ctx, m.ID)
		if err != nil {
			return BorrowResponse{}, false, err
		}
		if !ok {
			return BorrowResponse{}, false, api.ErrUnavailable("Materials not available: " + m.Title)
		}
	}

	return BorrowResponse{
		EnrollmentID:      enrID,
		StudentPhone:      in.phone,
		MaterialRecordIDs: recIDs,
		DueDate:           e.DueDate.Format(clock.DateLayout),
	}, newStudent, nil
}

// upsertStudent: 無ければ作成、あれば空でない項目だけ更新。作成したら true
func (s *Service) upsertStudent(ctx context.Context, st Store, in borrowInput, now time.Time) (bool, error) {
	cur, err := st.StudentByPhone(ctx, in.phone)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	if cur == nil {
		sid, err := s.id.New()
		if err != nil {
			return false, err
		}
		stype := strings.TrimSpace(in.Purpose)
		if stype == "" {
			stype = students.DefaultStudentType
		}
		err = st.InsertStudent(ctx, &students.Student{
			ID:          sid,
			Name:        strings.TrimSpace(in.StudentName),
			Email:       nonEmpty(in.Email),
			Phone:       in.phone,
			Level:       nonEmpty(in.Level),
			StudentType: stype,
			Notes:       nonEmpty(in.Notes),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return false, api.FromMySQL(err, "A student with this phone already exists")
		}
		return true, nil
	}

	p := students.Patch{
		Name:        nonEmpty(in.StudentName),
		Email:       nonEmpty(in.Email),
		Level:       nonEmpty(in.Level),
		StudentType: nonEmpty(in.Purpose),
		Notes:       nonEmpty(in.Notes),
	}
	if p.Empty() {
		return false, nil
	}
	if err := st.PatchStudent(ctx, in.phone, p, now); err != nil {
		return false, api.FromMySQL(err, "Email already used by another student")
	}
	return false, nil
}

func checkAvailable(want []string, got []materials.Material) error {
	found := make(map[string]bool, len(got))
	for _, m := range got {
		found[m.ID] = true
	}
	var missing []string
	for _, id := range want {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return api.ErrNotFound("Materials not found: " + strings.Join(missing, ", "))
	}
	var out []string
	for _, m := range got {
		if m.QuantityAvailable <= 0 {
			out = append(out, m.Title)
		}
	}
	if len(out) > 0 {
		return api.ErrUnavailable("Materials not available: " + strings.Join(out, ", "))
	}
	return nil
}

func (s *Service) replayBorrow(ctx context.Context, st Store, key string) (BorrowResponse, bool, error) {
	ent, err := st.GetIdempotency(ctx, key)
	if err != nil || ent == nil {
		return BorrowResponse{}, false, err
	}
	if ent.Operation != opBorrow {
		return BorrowResponse{}, false, api.ErrConflict("Idempotency-Key was already used for a different operation")
	}
	e, err := st.GetEnrollment(ctx, ent.RefID)
	if err != nil {
		return BorrowResponse{}, false, err
	}
	recs, err := st.RecordIDs(ctx, e.ID)
	if err != nil {
		return BorrowResponse{}, false, err
	}
	return BorrowResponse{
		EnrollmentID:      e.ID,
		StudentPhone:      e.StudentPhone,
		MaterialRecordIDs: recs,
		DueDate:           e.DueDate.Format(clock.DateLayout),
		Message:           "Materials borrowed successfully!",
	}, true, nil
}

// ===== Return =====

// Return: 該当電話番号の未返却明細を古い順に1件返却し、在庫を1戻す
func (s *Service) Return(ctx context.Context, in ReturnRequest, idemKey string) (ReturnResponse, error) {
	phone := api.NormalizePhone(in.Phone)
	mid := strings.TrimSpace(in.MaterialID)
	if phone == "" || mid == "" {
		return ReturnResponse{}, api.ErrInvalid("Phone and material_id are required")
	}

	var (
		res      ReturnResponse
		replayed bool
	)
	err := s.store.Tx(ctx, func(st Store) error {
		if idemKey != "" {
			r, ok, err := s.replayReturn(ctx, st, idemKey)
			if err != nil || ok {
				res, replayed = r, ok
				return err
			}
		}
		var err error
		res, err = s.returnTx(ctx, st, phone, mid)
		if err != nil {
			return err
		}
		if idemKey != "" {
			return st.PutIdempotency(ctx, IdemEntry{Key: idemKey, Operation: opReturn, RefID: res.MaterialRecordID}, s.clock.Now().UTC())
		}
		return nil
	})
	if err != nil && idemKey != "" {
		var (
			r  ReturnResponse
			ok bool
		)
		rerr := s.store.Tx(ctx, func(st Store) error {
			var err error
			r, ok, err = s.replayReturn(ctx, st, idemKey)
			return err
		})
		switch {
		case rerr == nil && ok:
			res, replayed, err = r, true, nil
		case errors.Is(err, errIdempotencyTaken):
			if rerr == nil {
				rerr = api.ErrConflict("Idempotency-Key is being processed")
			}
			err = rerr
		}
	}
	metrics.Op(opReturn, err)
	if err != nil {
		return ReturnResponse{}, err
	}
	if replayed {
		return res, nil
	}

	metrics.ItemsMoved.WithLabelValues("in").Inc()
	s.publish(ctx, events.KeyReturned, map[string]any{
		"material_record_id": res.MaterialRecordID,
		"enrollment_id":      res.EnrollmentID,
		"material_id":        mid,
		"student_phone":      phone,
		"return_date":        res.ReturnDate,
	})
	return res, nil
}

func (s *Service) returnTx(ctx context.Context, st Store, phone, materialID string) (ReturnResponse, error) {
	n, err := st.CountEnrollmentsByPhone(ctx, phone)
	if err != nil {
		return ReturnResponse{}, err
	}
	if n == 0 {
		return ReturnResponse{}, api.ErrNotFound("No enrollments found for this phone number")
	}

	rec, err := st.FindOutstandingRecord(ctx, phone, materialID)
	if errors.Is(err, sql.ErrNoRows) {
		return ReturnResponse{}, api.ErrNotFound("No active borrowing found for this material and phone")
	}
	if err != nil {
		return ReturnResponse{}, err
	}

	today := clock.Today(s.clock)
	ok, err := st.MarkReturned(ctx, rec.ID, today)
	if err != nil {
		return ReturnResponse{}, err
	}
	if !ok {
		return ReturnResponse{}, api.ErrNotFound("No active borrowing found for this material and phone")
	}

	ok, err = st.IncrementStock(ctx, materialID)
	if err != nil {
		return ReturnResponse{}, err
	}
	if !ok {
		// 在庫はすでに満杯。明細の返却は記録する
		logger.Warn().Str("material_id", materialID).Str("record_id", rec.ID).Msg("return: stock already at total, not incremented")
	}

	return ReturnResponse{
		MaterialRecordID: rec.ID,
		EnrollmentID:     rec.EnrollmentID,
		ReturnDate:       today.Format(clock.DateLayout),
		Message:          "Materials returned successfully!",
	}, nil
}

func (s *Service) replayReturn(ctx context.Context, st Store, key string) (ReturnResponse, bool, error) {
	ent, err := st.GetIdempotency(ctx, key)
	if err != nil || ent == nil {
		return ReturnResponse{}, false, err
	}
	if ent.Operation != opReturn {
		return ReturnResponse{}, false, api.ErrConflict("Idempotency-Key was already used for a different operation")
	}
	rec, err := st.GetRecord(ctx, ent.RefID)
	if err != nil {
		return ReturnResponse{}, false, err
	}
	out := ReturnResponse{
		MaterialRecordID: rec.ID,
		EnrollmentID:     rec.EnrollmentID,
		Message:          "Materials returned successfully!",
	}
	if rec.ReturnDate != nil {
		out.ReturnDate = rec.ReturnDate.Format(clock.DateLayout)
	}
	return out, true, nil
}

// ===== 参照・更新 =====

func (s *Service) List(ctx context.Context, f Filter, p api.Page) (api.ListResult[Enrollment], error) {
	if f.Phone != "" {
		f.Phone = api.NormalizePhone(f.Phone)
	}
	items, total, err := s.store.ListEnrollments(ctx, f, p)
	if err != nil {
		return api.ListResult[Enrollment]{}, err
	}
	return api.NewList(items, total, p), nil
}

func (s *Service) Get(ctx context.Context, id string) (EnrollmentDetail, error) {
	d, err := s.store.EnrollmentDetail(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return EnrollmentDetail{}, api.ErrNotFound("Enrollment not found")
	}
	if err != nil {
		return EnrollmentDetail{}, err
	}
	return *d, nil
}

func (s *Service) Patch(ctx context.Context, id string, in PatchEnrollmentRequest) (EnrollmentDetail, error) {
	err := s.store.Tx(ctx, func(st Store) error {
		cur, err := st.GetEnrollment(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return api.ErrNotFound("Enrollment not found")
		}
		if err != nil {
			return err
		}
		p := enrollmentPatch{Notes: in.Notes, ERPUpdated: in.ERPUpdated}
		if in.DueDate != nil {
			d, err := time.Parse(clock.DateLayout, strings.TrimSpace(*in.DueDate))
			if err != nil {
				return api.ErrInvalid("due_date must be YYYY-MM-DD")
			}
			if d.Before(cur.IssuedDate) {
				return api.ErrInvalid("due_date cannot be before issued_date")
			}
			p.DueDate = &d
		}
		return st.PatchEnrollment(ctx, id, p)
	})
	if err != nil {
		return EnrollmentDetail{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if err := s.pub.Publish(ctx, key, payload); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("event publish failed")
	}
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
