package book

type CreateBookReq struct {
	Title       string  `json:"title" validate:"required"`
	Author      string  `json:"author" validate:"required"`
	ISBN        *string `json:"isbn"`
	Description *string `json:"description"`
	CoverImage  *string `json:"cover_image"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

type AddStockReq struct {
	Count int `json:"count" validate:"required,gt=0"`
}
