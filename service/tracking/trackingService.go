package tracking

import (
	"context"
	"math"
	"time"

	"github.com/ganjargaul/koperasiliterasi/model"
)

// PenaltyPerDay is the late fee in rupiah, charged per started day.
const PenaltyPerDay = 5000

// dueSoonDays is how close to the due date a loan counts as due soon.
const dueSoonDays = 3

type Repo interface {
	ListForTracking(ctx context.Context, requesterID *int64) ([]model.BorrowDetail, error)
}

type Service interface {
	Report(ctx context.Context, requesterID *int64) (*model.TrackingReport, error)
}

type service struct {
	r   Repo
	now func() time.Time
}

func New(r Repo) Service { return &service{r: r, now: time.Now} }

func (s *service) Report(ctx context.Context, requesterID *int64) (*model.TrackingReport, error) {
	rows, err := s.r.ListForTracking(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return BuildReport(rows, s.now()), nil
}

// IsOverdue reports whether an approved borrow has passed its due date.
func IsOverdue(b *model.Borrow, now time.Time) bool {
	return b.Status == model.BorrowApproved && b.DueAt != nil && b.DueAt.Before(now)
}

// DaysUntilDue rounds up, so a loan due in half a day is due in 1 day.
func DaysUntilDue(b *model.Borrow, now time.Time) int {
	if b.DueAt == nil {
		return 0
	}
	return int(math.Ceil(b.DueAt.Sub(now).Hours() / 24))
}

// IsDueSoon reports whether an approved borrow is within the due-soon
// window but not yet overdue.
func IsDueSoon(b *model.Borrow, now time.Time) bool {
	if b.Status != model.BorrowApproved || b.DueAt == nil {
		return false
	}
	d := DaysUntilDue(b, now)
	return d > 0 && d <= dueSoonDays
}

// Penalty is the accrued late fee, derived from the due date at read
// time. Partial days round up. Zero when not overdue.
func Penalty(b *model.Borrow, now time.Time) int64 {
	if !IsOverdue(b, now) {
		return 0
	}
	daysLate := int64(math.Ceil(now.Sub(*b.DueAt).Hours() / 24))
	return daysLate * PenaltyPerDay
}

// BuildReport aggregates the borrow set into tracking statistics plus
// the overdue and due-soon lists. Pure; no storage access.
func BuildReport(rows []model.BorrowDetail, now time.Time) *model.TrackingReport {
	rep := &model.TrackingReport{
		Overdue: []model.TrackedBorrow{},
		DueSoon: []model.TrackedBorrow{},
	}
	rep.Stats.Total = len(rows)

	for i := range rows {
		d := rows[i]
		switch d.Status {
		case model.BorrowPending:
			rep.Stats.Pending++
		case model.BorrowApproved:
			rep.Stats.Approved++
		case model.BorrowReturned:
			rep.Stats.Returned++
		case model.BorrowRejected:
			rep.Stats.Rejected++
		}

		if IsOverdue(&d.Borrow, now) {
			p := Penalty(&d.Borrow, now)
			rep.Stats.Overdue++
			rep.Stats.TotalLatePenalty += p
			rep.Overdue = append(rep.Overdue, model.TrackedBorrow{BorrowDetail: d, Penalty: p})
			continue
		}
		if IsDueSoon(&d.Borrow, now) {
			rep.Stats.DueSoon++
			rep.DueSoon = append(rep.DueSoon, model.TrackedBorrow{BorrowDetail: d, Penalty: 0})
		}
	}
	return rep
}
