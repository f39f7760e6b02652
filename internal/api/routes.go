package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"dalildocs/internal/api/middleware"
	"dalildocs/internal/auth"
	"dalildocs/internal/config"
	"dalildocs/internal/storage"
)

// RegisterRoutes 注册全部公共与后台路由。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	sessions *auth.SessionService,
	redisClient *redis.Client,
	logger *slog.Logger,
	store storage.Store,
	cfg *config.Config,
) {
	maxUploadBytes := int64(cfg.Uploads.MaxUploadMB) << 20

	siteHandler := NewSiteHandler(db)
	uploadsHandler := NewUploadsHandler(store, logger)
	pdfHandler := NewPdfHandler(db, store, logger, maxUploadBytes, cfg.ClamdAddr)
	referenceHandler := NewReferenceHandler(db, store, logger, maxUploadBytes)
	bookmarkHandler := NewBookmarkHandler(db)
	questionHandler := NewQuestionHandler(db)
	authHandler := NewAuthHandler(db, sessions, redisClient, logger, cfg.Login)
	rosterHandler := NewRosterHandler(db, sessions, logger)

	router.Use(middleware.SessionMiddleware(sessions))

	router.GET("/", siteHandler.Home)
	router.GET("/search", siteHandler.Search)

	router.GET("/pdfs", pdfHandler.ListCategories)
	router.GET("/pdfs/categories/:id", pdfHandler.CategoryDetail)
	router.GET("/pdfs/:id", pdfHandler.PdfDetail)
	router.GET("/pdfs/:id/download", pdfHandler.Download)

	router.GET("/references", referenceHandler.ListTopics)
	router.GET("/references/topics/:id", referenceHandler.TopicDetail)
	router.GET("/references/:id", referenceHandler.ReferenceDetail)

	router.GET("/bookmarks", bookmarkHandler.List)
	router.POST("/bookmarks/:referenceID", bookmarkHandler.Toggle)

	router.POST("/questions", questionHandler.Ask)
	router.GET("/questions", questionHandler.ByUserName)

	router.GET("/uploads/:folder/:filename", uploadsHandler.Serve)

	admin := router.Group("/admin")
	{
		admin.POST("/login", authHandler.Login)
		admin.POST("/logout", authHandler.Logout)

		authed := admin.Group("")
		authed.Use(middleware.RequireAdmin())
		{
			authed.GET("/dashboard", siteHandler.Dashboard)
			authed.POST("/change-password", authHandler.ChangePassword)

			authed.GET("/pdfs", pdfHandler.AdminIndex)
			authed.POST("/pdfs", pdfHandler.CreatePdf)
			authed.POST("/pdfs/bulk", pdfHandler.BulkUpload)
			authed.PUT("/pdfs/:id", pdfHandler.UpdatePdf)
			authed.DELETE("/pdfs/:id", pdfHandler.DeletePdf)

			authed.POST("/categories", pdfHandler.CreateCategory)
			authed.PUT("/categories/:id", pdfHandler.UpdateCategory)
			authed.DELETE("/categories/:id", pdfHandler.DeleteCategory)

			authed.GET("/references", referenceHandler.AdminIndex)
			authed.POST("/references", referenceHandler.CreateReference)
			authed.PUT("/references/:id", referenceHandler.UpdateReference)
			authed.DELETE("/references/:id", referenceHandler.DeleteReference)

			authed.POST("/topics", referenceHandler.CreateTopic)
			authed.PUT("/topics/:id", referenceHandler.UpdateTopic)
			authed.DELETE("/topics/:id", referenceHandler.DeleteTopic)

			authed.GET("/questions", questionHandler.AdminList)
			authed.POST("/questions/:id/reply", questionHandler.Reply)
			authed.DELETE("/questions/:id", questionHandler.Delete)

			authed.POST("/roster/verify", rosterHandler.Verify)
			authed.GET("/roster", rosterHandler.List)
			authed.POST("/roster", rosterHandler.Create)
			authed.DELETE("/roster/:id", rosterHandler.Delete)
			authed.POST("/roster/:id/reset-password", rosterHandler.ResetPassword)
		}
	}
}
