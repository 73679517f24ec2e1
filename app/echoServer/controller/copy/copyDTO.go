package copy

type AddCopyReq struct {
	BookID    int64   `json:"book_id" validate:"required,gt=0"`
	Location  string  `json:"location" validate:"required"`
	Condition *string `json:"condition"`
	Notes     *string `json:"notes"`
}

type UpdateCopyReq struct {
	Location    *string `json:"location"`
	Condition   *string `json:"condition"`
	Notes       *string `json:"notes"`
	IsAvailable *bool   `json:"is_available"`
}
