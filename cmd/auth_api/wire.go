// File: cmd/auth_api/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"auth_api/internal/app"
	"auth_api/internal/auth"
	"auth_api/internal/config"
	"auth_api/internal/jobs"
	"auth_api/internal/platform/logger"
	"auth_api/internal/user"

	"github.com/google/wire"
)

var userSet = wire.NewSet(
	user.NewGORMRepository,
	user.NewService,
	wire.Bind(new(user.Service), new(*user.ServiceImplementation)),
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		logger.New,
		provideDatabase,

		userSet,
		user.NewHandler,

		auth.NewJWTService,
		wire.Bind(new(auth.TokenService), new(*auth.JWTService)),
		auth.NewGormTokenStore,
		wire.Bind(new(auth.TokenStore), new(*auth.GormTokenStore)),
		wire.Bind(new(jobs.ExpiredTokenPurger), new(*auth.GormTokenStore)),
		auth.NewGoogleProvider,
		auth.NewService,
		auth.NewHandler,

		jobs.NewTokenCleanupJob,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}

// initializeUserService wires the user service for one-shot commands such as init.
func initializeUserService(cfg *config.Config) (user.Service, func(), error) {
	wire.Build(
		logger.New,
		provideDatabase,
		userSet,
	)
	return nil, nil, nil
}
