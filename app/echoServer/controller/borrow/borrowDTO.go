package borrow

type CreateBorrowReq struct {
	BookID      int64   `json:"book_id" validate:"required,gt=0"`
	CopyID      *int64  `json:"copy_id"`
	OwnerID     *int64  `json:"owner_id"`
	Location    *string `json:"location"`
	WaitingList bool    `json:"waiting_list"`
}

type ActionReq struct {
	Action string `json:"action" validate:"required,oneof=approve reject return"`
}
