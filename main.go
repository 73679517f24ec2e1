// Package main Koperasi Literasi API.
//
// @title           Koperasi Literasi API
// @version         1.0
// @description     community book lending (catalog, copies, borrows, tracking).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/ganjargaul/koperasiliterasi/app/echoServer"
	authctrl "github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/auth"
	bookctrl "github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/book"
	borrowctrl "github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/borrow"
	copyctrl "github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/copy"
	userctrl "github.com/ganjargaul/koperasiliterasi/app/echoServer/controller/user"
	"github.com/ganjargaul/koperasiliterasi/app/echoServer/validation"
	"github.com/ganjargaul/koperasiliterasi/config"
	bookrepo "github.com/ganjargaul/koperasiliterasi/repository/book"
	borrowrepo "github.com/ganjargaul/koperasiliterasi/repository/borrow"
	copyrepo "github.com/ganjargaul/koperasiliterasi/repository/copy"
	"github.com/ganjargaul/koperasiliterasi/repository/openlibrary"
	userrepo "github.com/ganjargaul/koperasiliterasi/repository/user"
	authsvc "github.com/ganjargaul/koperasiliterasi/service/auth"
	booksvc "github.com/ganjargaul/koperasiliterasi/service/book"
	borrowsvc "github.com/ganjargaul/koperasiliterasi/service/borrow"
	copysvc "github.com/ganjargaul/koperasiliterasi/service/copy"
	"github.com/ganjargaul/koperasiliterasi/service/tracking"
	usersvc "github.com/ganjargaul/koperasiliterasi/service/user"
	"github.com/ganjargaul/koperasiliterasi/util/database"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ur := userrepo.New(db)
	bkr := bookrepo.New(db)
	cpr := copyrepo.New(db)
	brr := borrowrepo.New(db)
	olr := openlibrary.NewHTTP()

	// services
	as := authsvc.New(ur, cfg.JWTSecret)
	us := usersvc.New(ur)
	bs := booksvc.New(bkr, olr)
	cs := copysvc.New(cpr, bkr)
	brs := borrowsvc.New(brr)
	ts := tracking.New(brr)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	userC := &userctrl.Controller{Svc: us, Copies: cs, V: v, Log: log}
	bookC := &bookctrl.Controller{Svc: bs, V: v, Log: log}
	copyC := &copyctrl.Controller{Svc: cs, V: v, Log: log}
	borrowC := &borrowctrl.Controller{Svc: brs, Trk: ts, V: v, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:   authC,
		User:   userC,
		Book:   bookC,
		Copy:   copyC,
		Borrow: borrowC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	slog.Info("starting server", "env", cfg.Env, "chosen_port", port)

	e.Logger.Fatal(e.Start(":" + port))
}
