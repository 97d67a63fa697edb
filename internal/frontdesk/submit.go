package frontdesk

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"hcsc-backend/internal/lending/enrollments"
	"hcsc-backend/internal/platform/logger"
)

type SubmitResult struct {
	Borrow enrollments.BorrowResponse `json:"borrow"`
	Images []enrollments.ImageInput   `json:"images"`
	// Warning: 貸出は成功したが画像の一部が保存できなかった
	Warning string `json:"warning,omitempty"`
}

// Submit: 貸出を登録し、enrollment_id が返ってきたら画像をアップロードして紐付ける。
// 画像の失敗は貸出を取り消さず Warning に載せる
func (c *Client) Submit(ctx context.Context, f *Form, idemKey string) (SubmitResult, error) {
	if err := f.Validate(); err != nil {
		return SubmitResult{}, err
	}
	res, err := c.Borrow(ctx, f.Request(), idemKey)
	if err != nil {
		return SubmitResult{}, err
	}
	out := SubmitResult{Borrow: res}
	imgs := f.Images()
	if res.EnrollmentID == "" || len(imgs) == 0 {
		return out, nil
	}

	log := logger.With("frontdesk")
	uploaded := make([]*enrollments.ImageInput, len(imgs))
	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, img := range imgs {
		g.Go(func() error {
			path := fmt.Sprintf("%s/photo-%d.jpg", res.EnrollmentID, i+1)
			in, err := c.uploadOne(gctx, res.EnrollmentID, path, img)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("image upload failed")
				mu.Lock()
				failed = append(failed, img.Name)
				mu.Unlock()
				return nil
			}
			uploaded[i] = in
			return nil
		})
	}
	_ = g.Wait()

	for _, in := range uploaded {
		if in != nil {
			out.Images = append(out.Images, *in)
		}
	}
	if len(out.Images) > 0 {
		if err := c.AddImages(ctx, out.Images); err != nil {
			log.Warn().Err(err).Str("enrollment_id", res.EnrollmentID).Msg("saving image records failed")
			out.Warning = "Materials borrowed, but the images could not be saved: " + err.Error()
			out.Images = nil
			return out, nil
		}
	}
	if len(failed) > 0 {
		out.Warning = fmt.Sprintf("Materials borrowed, but %d of %d images failed to upload", len(failed), len(imgs))
	}
	return out, nil
}

func (c *Client) uploadOne(ctx context.Context, enrollmentID, path string, img Image) (*enrollments.ImageInput, error) {
	signed, err := c.SignUpload(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	up, err := c.Upload(ctx, signed.SignedURL, img.Data)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return &enrollments.ImageInput{
		EnrollmentID: enrollmentID,
		StoragePath:  up.Path,
		FileName:     img.Name,
		FileSize:     up.Size,
	}, nil
}
