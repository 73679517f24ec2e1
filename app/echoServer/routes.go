package echoServer

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/auth"
	"github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/book"
	"github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/borrow"
	"github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/copy"
	"github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/user"
)

type C struct {
	Auth      *auth.Controller
	User      *user.Controller
	Book      *book.Controller
	Copy      *copy.Controller
	Borrow    *borrow.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/auth/register", c.Auth.Register)
	pub.POST("/auth/login", c.Auth.Login)

	// Catalog browsing needs no account. /books/search must be
	// registered before /books/:id so "search" is not read as an id.
	pub.GET("/books", c.Book.Catalog)
	pub.GET("/books/search", c.Book.SearchISBN)
	pub.GET("/books/:id", c.Book.Detail)

	// Auth. echo-jwt's default token lookup strips the "Bearer " scheme
	// from the Authorization header.
	auth := e.Group("/v1")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),

		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
	}))
	// JWT claims extraction: user_id + role into the echo context
	auth.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			reqID := ctx.Response().Header().Get(echo.HeaderXRequestID)

			tok, ok := ctx.Get("user").(*jwt.Token)
			if !ok || tok == nil {
				ctx.Logger().Warnf("[AUTH] no token in context req_id=%s", reqID)
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				ctx.Logger().Warnf("[AUTH] failed to cast claims req_id=%s", reqID)
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}

			sub, ok := claims["sub"].(float64)
			if !ok {
				ctx.Logger().Warnf("[AUTH] missing sub claim req_id=%s claims=%v", reqID, claims)
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}

			ctx.Set("user_id", int64(sub))
			if role, ok := claims["role"].(string); ok {
				ctx.Set("role", role)
			}
			return next(ctx)
		}
	})

	// Users
	auth.GET("/users", c.User.List)
	auth.GET("/users/:id", c.User.Detail)
	auth.PUT("/users/:id", c.User.UpdateProfile)
	auth.GET("/users/:id/books", c.User.Books)
	// Admin endpoints
	auth.PUT("/users/:id/role", c.User.SetRole)
	auth.POST("/users/admins", c.User.CreateAdmin)

	// Books (admin writes)
	auth.POST("/books", c.Book.Create)
	auth.POST("/books/:id/copies", c.Book.AddStock)

	// Copies (the caller's lending collection)
	auth.GET("/copies", c.Copy.List)
	auth.POST("/copies", c.Copy.Create)
	auth.PUT("/copies/:id", c.Copy.Update)
	auth.DELETE("/copies/:id", c.Copy.Delete)

	// Borrows. Fixed paths before /borrows/:id.
	auth.POST("/borrows", c.Borrow.Create)
	auth.GET("/borrows", c.Borrow.List)
	auth.GET("/borrows/requests", c.Borrow.Requests)
	auth.GET("/borrows/tracking", c.Borrow.Tracking)
	auth.GET("/borrows/:id", c.Borrow.Detail)
	auth.PUT("/borrows/:id/action", c.Borrow.Act)
}
