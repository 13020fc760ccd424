package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"mnas/config"
	"mnas/database"
	"mnas/handlers"
	"mnas/logger"
	"mnas/middleware"
	"mnas/models"
	"mnas/repositories"
	"mnas/services"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("starting mnas service")

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	if err := database.InitMySQL(&cfg.Database); err != nil {
		log.Fatalf("init mysql failed: %v", err)
	}

	database.DB.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Folder{},
		&models.File{},
		&models.ChunkUpload{},
	)
	log.Println("database migration completed")

	if err := database.InitRedis(&cfg.Redis); err != nil {
		log.Fatalf("init redis failed: %v", err)
	}

	for _, dir := range []string{"files", "thumbnails", "chunks"} {
		if err := os.MkdirAll(filepath.Join(cfg.Storage.BasePath, dir), 0o755); err != nil {
			log.Fatalf("create %s dir failed: %v", dir, err)
		}
	}

	repoContainer := repositories.NewGormRepositories(database.DB, database.RedisClient).BuildContainer()
	serviceContainer := services.NewContainer(repoContainer)
	handlers.SetServices(serviceContainer)

	ctx := context.Background()
	serviceContainer.Cleanup.Start(ctx)
	log.Println("cleanup worker started")

	if cfg.Transcode.Enabled {
		serviceContainer.Video.StartWorkers(ctx)
		log.Printf("transcode workers started (count=%d)", cfg.Transcode.WorkerCount)
	}

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestLogger())
	setupRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("server listening on http://%s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}

func setupRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", handlers.HealthCheck)

	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/auth/profile", handlers.GetProfile)
		protected.GET("/user/storage/quota", handlers.GetStorageQuota)

		protected.GET("/projects", handlers.ListProjects)
		protected.POST("/projects", handlers.CreateProject)
		protected.GET("/projects/:id", handlers.GetProject)
		protected.DELETE("/projects/:id", handlers.DeleteProject)

		protected.GET("/folders", handlers.ListFolders)
		protected.POST("/folders", handlers.CreateFolder)
		protected.DELETE("/folders/:id", handlers.DeleteFolder)

		protected.GET("/files", handlers.ListFiles)
		protected.POST("/files/upload", handlers.UploadFile)
		protected.GET("/files/:id/download", handlers.DownloadFile)
		protected.GET("/files/:id/thumbnail", handlers.GetThumbnail)
		protected.DELETE("/files/:id", handlers.DeleteFile)

		protected.POST("/upload/chunk", handlers.UploadChunk)
		protected.POST("/upload/complete", handlers.CompleteUpload)
		protected.GET("/upload/status/:project_id/:filename", handlers.GetUploadStatus)
		protected.DELETE("/upload/cancel/:project_id/:filename", handlers.CancelUpload)

		protected.GET("/files/:id/stream", handlers.StreamFile)
		protected.HEAD("/files/:id/stream", handlers.StreamFileHead)
		protected.GET("/files/:id/processing-status", handlers.GetProcessingStatus)
	}
}
