// Package dashboard serves the summary numbers shown on the staff home screen.
package dashboard

import (
	"context"
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
)

const recentRecords = 5

type Stats struct {
	Titles         int64          `json:"titles"`
	UnitsTotal     int64          `json:"units_total"`
	UnitsAvailable int64          `json:"units_available"`
	Borrowed       int64          `json:"borrowed"`
	Overdue        int64          `json:"overdue"`
	Students       int64          `json:"students"`
	Recent         []RecentRecord `json:"recent_records"`
}

type RecentRecord struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Title        string    `json:"material_title"`
	StudentPhone string    `json:"student_phone"`
	StudentName  string    `json:"student_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// OnLoan: 貸出中の総数（延滞含む）
func (s Stats) OnLoan() int64 { return s.Borrowed + s.Overdue }

type Service struct{ repo Repository }

func NewService(conn *sql.DB) *Service     { return &Service{repo: NewStore(conn)} }
func NewServiceWith(r Repository) *Service { return &Service{repo: r} }

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.repo.Snapshot(ctx, recentRecords)
	if err != nil {
		return Stats{}, err
	}
	if st.Recent == nil {
		st.Recent = []RecentRecord{}
	}
	return st, nil
}

func RegisterRoutes(priv gin.IRoutes, svc *Service) {
	priv.GET("/dashboard/stats", func(c *gin.Context) {
		st, err := svc.Stats(c.Request.Context())
		if err != nil {
			api.Fail(c, err)
			return
		}
		api.OK(c, gin.H{
			"titles":          st.Titles,
			"units_total":     st.UnitsTotal,
			"units_available": st.UnitsAvailable,
			"borrowed":        st.Borrowed,
			"overdue":         st.Overdue,
			"on_loan":         st.OnLoan(),
			"students":        st.Students,
			"recent_records":  st.Recent,
		})
	})
}
