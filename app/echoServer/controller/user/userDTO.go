package user

type UpdateProfileReq struct {
	Name        *string `json:"name"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	AvatarImage *string `json:"avatar_image"`
}

type SetRoleReq struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}
