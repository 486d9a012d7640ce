package router

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/weiwangfds/melodia/config"
	_ "github.com/weiwangfds/melodia/docs" // swagger docs
	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/auth"
	"github.com/weiwangfds/melodia/internal/handler"
	"github.com/weiwangfds/melodia/internal/i18n"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/media"
	"github.com/weiwangfds/melodia/internal/middleware"
	"github.com/weiwangfds/melodia/internal/queue"
	"github.com/weiwangfds/melodia/internal/storage"
	analyticsservice "github.com/weiwangfds/melodia/internal/service/analytics"
	artistservice "github.com/weiwangfds/melodia/internal/service/artist"
	authservice "github.com/weiwangfds/melodia/internal/service/auth"
	"github.com/weiwangfds/melodia/internal/service/catalog"
	commentservice "github.com/weiwangfds/melodia/internal/service/comment"
	historyservice "github.com/weiwangfds/melodia/internal/service/history"
	moderationservice "github.com/weiwangfds/melodia/internal/service/moderation"
	notificationservice "github.com/weiwangfds/melodia/internal/service/notification"
	"github.com/weiwangfds/melodia/internal/service/playback"
	playlistservice "github.com/weiwangfds/melodia/internal/service/playlist"
	userservice "github.com/weiwangfds/melodia/internal/service/user"
	"github.com/weiwangfds/melodia/internal/service/view"
	"gorm.io/gorm"
)

// Router owns the gin engine and the database handle behind it.
type Router struct {
	engine  *gin.Engine
	db      *gorm.DB
	janitor *media.Janitor
}

var validatorOnce sync.Once

// setupValidator reports json field names and registers translations on
// gin's validator.
func setupValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
		if err := i18n.GetInstance().RegisterValidator(v); err != nil {
			logger.Errorf("failed to register validator translations: %v", err)
		}
	})
}

// NewRouter builds the services and handlers and registers every route.
func NewRouter(cfg *config.Config, db *gorm.DB, provider storage.Provider) *Router {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	setupValidator()
	i18n.GetInstance().SetDefaultLanguage(cfg.I18n.DefaultLanguage)

	engine := gin.New()

	// services
	tokens := auth.NewTokenManager(auth.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	mediaService := media.NewService(provider, media.Policy{
		MaxAudioSize:    cfg.Media.MaxAudioSize,
		MaxImageSize:    cfg.Media.MaxImageSize,
		AudioExtensions: cfg.Media.AudioExtensions,
		ImageExtensions: cfg.Media.ImageExtensions,
	}, cfg.Storage.URLTTL)
	janitor := media.NewJanitor(db, provider, media.JanitorConfig{
		Interval:   cfg.Media.CleanupInterval,
		Backoff:    cfg.Media.CleanupBackoff,
		MaxRetries: cfg.Media.CleanupMaxRetries,
	})
	mediaService.SetDeletionQueue(janitor)
	presenter := view.NewPresenter(db, mediaService)
	notifier := notificationservice.NewNotificationService(db)

	authService := authservice.NewAuthService(db, tokens, presenter, cfg.Auth.BcryptCost)
	userService := userservice.NewUserService(db, mediaService, presenter, notifier, cfg.Auth.BcryptCost)
	artistService := artistservice.NewArtistService(db, mediaService, presenter, notifier)
	songService := catalog.NewSongService(db, mediaService, presenter, notifier)
	albumService := catalog.NewAlbumService(db, mediaService, presenter, notifier)
	playlistService := playlistservice.NewPlaylistService(db, mediaService, presenter, notifier)
	commentService := commentservice.NewCommentService(db, presenter, notifier)
	historyService := historyservice.NewHistoryService(db, presenter)
	moderationService := moderationservice.NewModerationService(db, mediaService, notifier)
	analyticsService := analyticsservice.NewAnalyticsService(db)
	queueService := playback.NewQueueService(db, queue.NewReducer(cfg.Queue.MaxItems))

	// handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	artistHandler := handler.NewArtistHandler(artistService)
	songHandler := handler.NewSongHandler(songService)
	albumHandler := handler.NewAlbumHandler(albumService)
	playlistHandler := handler.NewPlaylistHandler(playlistService)
	commentHandler := handler.NewCommentHandler(commentService)
	notificationHandler := handler.NewNotificationHandler(notifier)
	historyHandler := handler.NewHistoryHandler(historyService)
	moderationHandler := handler.NewModerationHandler(moderationService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	queueHandler := handler.NewQueueHandler(queueService)
	systemHandler := handler.NewSystemHandler(db, provider)

	// middleware
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Language())
	engine.Use(middleware.AccessLog("/health"))
	engine.Use(middleware.Recovery())
	if cfg.Server.RequestLog {
		rl := middleware.DefaultRequestLoggerConfig()
		rl.Enabled = true
		engine.Use(middleware.RequestLogger(rl))
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	authn := middleware.NewAuthenticator(tokens, db)
	required := authn.Required()
	optional := authn.Optional()
	admin := access.RequireRole(access.RoleAdmin)
	loginLimiter := middleware.NewIPRateLimiter(cfg.Auth.LoginRatePerMin, cfg.Auth.LoginBurst)

	engine.GET("/health", systemHandler.Health)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if local, ok := provider.(*storage.LocalProvider); ok {
		engine.GET("/media/*key", handler.NewMediaHandler(local).Serve)
	}

	api := engine.Group("/api")
	{
		api.GET("/info", systemHandler.Info)
		api.GET("/db/status", systemHandler.DBStatus)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", loginLimiter.Middleware(), authHandler.Register)
			authGroup.POST("/login", loginLimiter.Middleware(), authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.GET("/me", required, authHandler.Me)
		}

		users := api.Group("/users")
		{
			users.PUT("/me", required, userHandler.UpdateProfile)
			users.DELETE("/me", required, userHandler.DeleteAccount)
			users.PUT("/me/password", required, userHandler.ChangePassword)
			users.POST("/me/avatar", required, userHandler.UploadAvatar)

			users.GET("/:id", optional, userHandler.GetProfile)
			users.GET("/:id/followers", optional, userHandler.Followers)
			users.GET("/:id/following", optional, userHandler.Following)
			users.POST("/:id/follow", required, userHandler.Follow)
			users.DELETE("/:id/follow", required, userHandler.Unfollow)
		}

		artists := api.Group("/artists")
		{
			artists.POST("", required, artistHandler.Create)
			artists.GET("", optional, artistHandler.List)
			artists.GET("/:id", optional, artistHandler.Get)
			artists.PUT("/:id", required, artistHandler.Update)
			artists.DELETE("/:id", required, admin, artistHandler.Delete)
			artists.POST("/:id/image", required, artistHandler.UploadImage)
			artists.GET("/:id/songs", optional, artistHandler.Songs)
			artists.GET("/:id/albums", optional, artistHandler.Albums)
			artists.POST("/:id/follow", required, artistHandler.Follow)
			artists.DELETE("/:id/follow", required, artistHandler.Unfollow)
			artists.GET("/:id/followers", optional, artistHandler.Followers)
			artists.GET("/:id/analytics", required, analyticsHandler.Artist)
		}

		songs := api.Group("/songs")
		{
			songs.POST("", required, access.RequireRole(access.RoleArtist), songHandler.Upload)
			songs.GET("", optional, songHandler.List)
			songs.GET("/trending", optional, songHandler.Trending)
			songs.GET("/:id", optional, songHandler.Get)
			songs.PUT("/:id", required, songHandler.Update)
			songs.DELETE("/:id", required, songHandler.Delete)
			songs.POST("/:id/cover", required, songHandler.UploadCover)
			songs.GET("/:id/stream", optional, songHandler.Stream)
			songs.POST("/:id/play", required, songHandler.Play)
			songs.POST("/:id/like", required, songHandler.Like)
			songs.DELETE("/:id/like", required, songHandler.Unlike)
			songs.GET("/:id/comments", optional, commentHandler.ListForSong)
			songs.POST("/:id/comments", required, commentHandler.Create)
		}
		api.GET("/genres", songHandler.Genres)

		albums := api.Group("/albums")
		{
			albums.POST("", required, access.RequireRole(access.RoleArtist), albumHandler.Create)
			albums.GET("", optional, albumHandler.List)
			albums.GET("/:id", optional, albumHandler.Get)
			albums.PUT("/:id", required, albumHandler.Update)
			albums.DELETE("/:id", required, albumHandler.Delete)
			albums.POST("/:id/cover", required, albumHandler.UploadCover)
			albums.POST("/:id/songs", required, albumHandler.AddTrack)
			albums.DELETE("/:id/songs/:songId", required, albumHandler.RemoveTrack)
			albums.POST("/:id/like", required, albumHandler.Like)
			albums.DELETE("/:id/like", required, albumHandler.Unlike)
		}

		playlists := api.Group("/playlists")
		{
			playlists.POST("", required, playlistHandler.Create)
			playlists.GET("", optional, playlistHandler.List)
			playlists.GET("/mine", required, playlistHandler.Mine)
			playlists.GET("/:id", optional, playlistHandler.Get)
			playlists.PUT("/:id", required, playlistHandler.Update)
			playlists.DELETE("/:id", required, playlistHandler.Delete)
			playlists.POST("/:id/cover", required, playlistHandler.UploadCover)
			playlists.POST("/:id/songs", required, playlistHandler.AddSong)
			playlists.PUT("/:id/songs/order", required, playlistHandler.Reorder)
			playlists.DELETE("/:id/songs/:songId", required, playlistHandler.RemoveSong)
			playlists.POST("/:id/like", required, playlistHandler.Like)
			playlists.DELETE("/:id/like", required, playlistHandler.Unlike)
		}

		comments := api.Group("/comments")
		{
			comments.GET("/:id/replies", optional, commentHandler.Replies)
			comments.PUT("/:id", required, commentHandler.Update)
			comments.DELETE("/:id", required, commentHandler.Delete)
		}

		likes := api.Group("/me/likes", required)
		{
			likes.GET("/songs", songHandler.Liked)
			likes.GET("/albums", albumHandler.Liked)
			likes.GET("/playlists", playlistHandler.Liked)
		}

		notifications := api.Group("/notifications", required)
		{
			notifications.GET("", notificationHandler.List)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PUT("/read-all", notificationHandler.MarkAllRead)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
			notifications.DELETE("/:id", notificationHandler.Delete)
		}

		historyGroup := api.Group("/history", required)
		{
			historyGroup.GET("", historyHandler.List)
			historyGroup.GET("/recent", historyHandler.Recent)
			historyGroup.DELETE("", historyHandler.Clear)
		}

		reports := api.Group("/reports", required)
		{
			reports.POST("", moderationHandler.CreateReport)
			reports.GET("/mine", moderationHandler.MyReports)
		}

		appeals := api.Group("/appeals", authn.RequiredAllowSuspended())
		{
			appeals.POST("", moderationHandler.CreateAppeal)
			appeals.GET("/mine", moderationHandler.MyAppeals)
		}

		queueGroup := api.Group("/queue", required)
		{
			queueGroup.GET("", queueHandler.Get)
			queueGroup.POST("/actions", queueHandler.Apply)
			queueGroup.DELETE("", queueHandler.Clear)
		}

		adminGroup := api.Group("/admin", required, admin)
		{
			adminGroup.GET("/users", userHandler.AdminList)
			adminGroup.PUT("/users/:id/status", userHandler.AdminSetStatus)
			adminGroup.PUT("/users/:id/role", userHandler.AdminSetRole)
			adminGroup.PUT("/artists/:id/verify", artistHandler.Verify)

			adminGroup.GET("/reports", moderationHandler.AdminReports)
			adminGroup.GET("/reports/moderation", moderationHandler.Summary)
			adminGroup.PUT("/reports/:type/:id/resolve", moderationHandler.Resolve)
			adminGroup.PUT("/reports/:type/:id/dismiss", moderationHandler.Dismiss)

			adminGroup.GET("/appeals", moderationHandler.AdminAppeals)
			adminGroup.PUT("/appeals/:id/decide", moderationHandler.DecideAppeal)

			adminGroup.GET("/analytics/overview", analyticsHandler.Overview)
		}
	}

	logger.WithFields(map[string]interface{}{
		"routes":  len(engine.Routes()),
		"storage": provider.Name(),
	}).Info("[router] routes registered")

	return &Router{engine: engine, db: db, janitor: janitor}
}

// GetEngine returns the gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Janitor returns the background retrier for failed blob deletions.
func (r *Router) Janitor() *media.Janitor {
	return r.janitor
}

// GetDB returns the database handle.
func (r *Router) GetDB() *gorm.DB {
	return r.db
}
