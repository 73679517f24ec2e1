// model/borrow.go
package model

import "time"

type BorrowStatus string

const (
	BorrowPending  BorrowStatus = "PENDING"
	BorrowApproved BorrowStatus = "APPROVED"
	BorrowReturned BorrowStatus = "RETURNED"
	BorrowRejected BorrowStatus = "REJECTED"
)

// Borrow is one lending transaction. Rows are never deleted; REJECTED
// and RETURNED are terminal. CopyID is nullable only for legacy
// admin-stock rows.
type Borrow struct {
	ID          int64        `json:"id"`
	RequesterID int64        `json:"requester_id"`
	BookID      int64        `json:"book_id"`
	CopyID      *int64       `json:"copy_id,omitempty"`
	Lender      Party        `json:"lender"`
	Status      BorrowStatus `json:"status"`
	// LatePenalty is the stored column. Transitions never write it; the
	// figure surfaced by tracking is derived from the due date instead.
	LatePenalty int64      `json:"late_penalty"`
	RequestedAt time.Time  `json:"requested_at"`
	BorrowedAt  *time.Time `json:"borrowed_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	ReturnedAt  *time.Time `json:"returned_at,omitempty"`
}

// BorrowDetail is a Borrow joined with its requester, lender, book and
// copy, the shape every borrow endpoint responds with.
type BorrowDetail struct {
	Borrow
	Requester  UserSummary  `json:"requester"`
	LenderUser *UserSummary `json:"lender_user,omitempty"`
	Book       BookSummary  `json:"book"`
	Copy       *CopySummary `json:"copy,omitempty"`
}

type TrackingStats struct {
	Total            int   `json:"total"`
	Pending          int   `json:"pending"`
	Approved         int   `json:"approved"`
	Returned         int   `json:"returned"`
	Rejected         int   `json:"rejected"`
	Overdue          int   `json:"overdue"`
	DueSoon          int   `json:"due_soon"`
	TotalLatePenalty int64 `json:"total_late_penalty"`
}

// TrackedBorrow carries the penalty computed at read time. Zero for
// due-soon entries.
type TrackedBorrow struct {
	BorrowDetail
	Penalty int64 `json:"penalty"`
}

type TrackingReport struct {
	Stats   TrackingStats   `json:"stats"`
	Overdue []TrackedBorrow `json:"overdue"`
	DueSoon []TrackedBorrow `json:"due_soon"`
}
