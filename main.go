package main

import (
	"context"
	"time"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/repositories"
	"github.com/cppla/socialfeed/routes"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	users := repositories.NewUserRepositoryInMemory()
	posts := repositories.NewPostRepositoryInMemory()

	credentials := services.NewCredentialService(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour, cfg.BcryptCost)
	blacklist := utils.NewTokenBlacklist(utils.NewRedis(cfg))
	authService := services.NewAuthService(users, credentials, blacklist, utils.Logger)
	postService := services.NewPostService(posts, users, utils.Logger)

	files, err := services.NewFileService(cfg.UploadDir)
	if err != nil {
		utils.Sugar.Fatalf("init uploads: %v", err)
	}

	// Remove uploads no post refers to (best-effort)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	services.NewUploadCleaner(files, postService, time.Hour, utils.Logger).Start(ctx, 5*time.Minute)

	r := routes.SetupRouter(cfg, routes.Services{
		Auth:   authService,
		Posts:  postService,
		Files:  files,
		Logger: utils.Logger,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
