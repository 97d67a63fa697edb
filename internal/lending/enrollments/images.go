package enrollments

import (
	"context"
	"database/sql"
	"errors"
	"path"
	"strings"

	"hcsc-backend/internal/platform/api"
)

const maxImagesPerEnrollment = 3

// AddImages: アップロード済みオブジェクトを enrollment に紐付ける。
// storage_path は "<enrollment_id>/..." でなければならない
func (s *Service) AddImages(ctx context.Context, in []ImageInput) ([]Image, error) {
	if len(in) == 0 {
		return nil, api.ErrInvalid("At least one image is required")
	}
	var out []Image
	err := s.store.Tx(ctx, func(st Store) error {
		out = out[:0]
		counts := map[string]int{}
		for _, img := range in {
			enrID := strings.TrimSpace(img.EnrollmentID)
			p := path.Clean(strings.TrimSpace(img.StoragePath))
			if enrID == "" || p == "." || strings.TrimSpace(img.FileName) == "" {
				return api.ErrInvalid("enrollment_id, storage_path and file_name are required")
			}
			if !strings.HasPrefix(p, enrID+"/") {
				return api.ErrInvalid("storage_path must start with the enrollment id")
			}
			if img.FileSize < 0 {
				return api.ErrInvalid("file_size must be >= 0")
			}

			if _, ok := counts[enrID]; !ok {
				if _, err := st.GetEnrollment(ctx, enrID); errors.Is(err, sql.ErrNoRows) {
					return api.ErrNotFound("Enrollment not found: " + enrID)
				} else if err != nil {
					return err
				}
				cur, err := st.ListImages(ctx, enrID)
				if err != nil {
					return err
				}
				counts[enrID] = len(cur)
			}
			counts[enrID]++
			if counts[enrID] > maxImagesPerEnrollment {
				return api.ErrInvalid("An enrollment can have at most 3 images")
			}

			id, err := s.id.New()
			if err != nil {
				return err
			}
			rec := Image{
				ID:           id,
				EnrollmentID: enrID,
				StoragePath:  p,
				FileName:     strings.TrimSpace(img.FileName),
				FileSize:     img.FileSize,
				CreatedAt:    s.clock.Now().UTC(),
			}
			if err := st.InsertImage(ctx, &rec); err != nil {
				return api.FromMySQL(err, "image already registered")
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListImages(ctx context.Context, enrollmentID string) ([]Image, error) {
	enrollmentID = strings.TrimSpace(enrollmentID)
	if enrollmentID == "" {
		return nil, api.ErrInvalid("enrollment_id is required")
	}
	return s.store.ListImages(ctx, enrollmentID)
}
