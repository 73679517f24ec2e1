package usersvc

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ganjargaul/koperasiliterasi/model"
	userrepo "github.com/ganjargaul/koperasiliterasi/repository/user"
	"github.com/ganjargaul/koperasiliterasi/util/hash"
)

type ErrCode string

const (
	ErrNotFound   ErrCode = "NOT_FOUND"
	ErrForbidden  ErrCode = "FORBIDDEN"
	ErrBadInput   ErrCode = "BAD_INPUT"
	ErrEmailTaken ErrCode = "EMAIL_TAKEN"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// ProfilePatch carries profile fields to change; nil means keep.
type ProfilePatch struct {
	Name        *string
	Bio         *string
	Location    *string
	AvatarImage *string
}

type Service interface {
	List(ctx context.Context) ([]model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	UpdateProfile(ctx context.Context, actorID int64, actorRole model.Role, targetID int64, patch ProfilePatch) (*model.User, error)
	SetRole(ctx context.Context, id int64, role model.Role) error
	CreateAdmin(ctx context.Context, req model.RegisterReq) (*model.User, error)
}

type service struct{ ur userrepo.Repo }

func New(ur userrepo.Repo) Service { return &service{ur: ur} }

func (s *service) List(ctx context.Context) ([]model.User, error) {
	return s.ur.List(ctx)
}

func (s *service) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.ur.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile lets a user edit their own profile; admins can edit any.
func (s *service) UpdateProfile(ctx context.Context, actorID int64, actorRole model.Role, targetID int64, patch ProfilePatch) (*model.User, error) {
	if actorID != targetID && actorRole != model.RoleAdmin {
		return nil, makeErr(ErrForbidden)
	}

	u, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, makeErr(ErrBadInput)
		}
		u.Name = *patch.Name
	}
	if patch.Bio != nil {
		u.Bio = patch.Bio
	}
	if patch.Location != nil {
		u.Location = patch.Location
	}
	if patch.AvatarImage != nil {
		u.AvatarImage = patch.AvatarImage
	}

	if err := s.ur.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

func (s *service) SetRole(ctx context.Context, id int64, role model.Role) error {
	if role != model.RoleUser && role != model.RoleAdmin {
		return makeErr(ErrBadInput)
	}
	if err := s.ur.SetRole(ctx, id, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return makeErr(ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *service) CreateAdmin(ctx context.Context, req model.RegisterReq) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || email == "" || len(req.Password) < 6 {
		return nil, makeErr(ErrBadInput)
	}

	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: hashed,
		Role:         model.RoleAdmin,
	}
	if err := s.ur.Create(ctx, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, makeErr(ErrEmailTaken)
		}
		return nil, err
	}
	return u, nil
}
