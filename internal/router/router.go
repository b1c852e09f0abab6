package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/handler"
	"github.com/veritest/veritest-backend/internal/middleware"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Exam          *handler.ExamHandler
	Question      *handler.QuestionHandler
	Course        *handler.CourseHandler
	WS            *handler.WSHandler
	User          *handler.UserHandler
	Complaint     *handler.ComplaintHandler
	Assistant     *handler.AssistantHandler
	Dashboard     *handler.DashboardHandler
	Monitor       *handler.MonitorHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Serve uploaded course materials statically with aggressive caching (1 year).
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/lobby", handlers.StudentPortal.GetLobby)
		studentAPI.POST("/exams/:exam_id/begin", handlers.StudentPortal.BeginExam)
		studentAPI.GET("/exams/:exam_id/paper", handlers.StudentPortal.GetExamPaper)
		studentAPI.GET("/exams/:exam_id/state", handlers.StudentPortal.GetExamState)
		studentAPI.GET("/exams/:exam_id/result", handlers.StudentPortal.GetResult)
		studentAPI.GET("/attempts", handlers.StudentPortal.GetHistory)

		studentAPI.POST("/complaints", handlers.Complaint.FileComplaint)
		studentAPI.GET("/complaints", handlers.Complaint.ListMyComplaints)
		studentAPI.GET("/complaints/:complaint_id", handlers.Complaint.GetMyComplaint)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.ExamStream)
	}

	// ─── 4. Staff Group (Lecturer or Admin JWT) ────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(middleware.RequireStaffJWT(authService))
	{
		// Exam management
		staffAPI.GET("/exams", handlers.Exam.ListExams)
		staffAPI.POST("/exams", handlers.Exam.CreateExam)
		staffAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		staffAPI.PUT("/exams/:exam_id", handlers.Exam.UpdateExam)
		staffAPI.DELETE("/exams/:exam_id", handlers.Exam.DeleteExam)
		staffAPI.POST("/exams/:exam_id/publish", handlers.Exam.PublishExam)
		staffAPI.POST("/exams/:exam_id/archive", handlers.Exam.ArchiveExam)
		staffAPI.POST("/exams/:exam_id/refresh-cache", handlers.Exam.RefreshExamCache)
		staffAPI.GET("/exams/:exam_id/results", handlers.Exam.GetExamResults)
		staffAPI.GET("/exams/:exam_id/answer-key", handlers.Exam.GetExamAnswerKey)
		staffAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)

		// Question management
		staffAPI.GET("/exams/:exam_id/questions", handlers.Question.ListQuestions)
		staffAPI.POST("/exams/:exam_id/questions", handlers.Question.AddQuestion)
		staffAPI.PUT("/exams/:exam_id/questions", handlers.Question.ReplaceQuestions)
		staffAPI.DELETE("/exams/:exam_id/questions/:question_id", handlers.Question.DeleteQuestion)

		// Courses and materials
		staffAPI.GET("/courses", handlers.Course.ListCourses)
		staffAPI.POST("/courses", handlers.Course.CreateCourse)
		staffAPI.PUT("/courses/:course_id", handlers.Course.UpdateCourse)
		staffAPI.DELETE("/courses/:course_id", handlers.Course.DeleteCourse)
		staffAPI.GET("/courses/:course_id/materials", handlers.Course.ListMaterials)
		staffAPI.POST("/courses/:course_id/materials", handlers.Course.UploadMaterial)
		staffAPI.DELETE("/courses/:course_id/materials/:material_id", handlers.Course.DeleteMaterial)

		// Complaints queue
		staffAPI.GET("/complaints", handlers.Complaint.ListOpenComplaints)
		staffAPI.POST("/complaints/:complaint_id/respond", handlers.Complaint.RespondComplaint)

		// Dashboard
		staffAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)
	}

	// ─── 5. Admin Group (Admin Only) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		// Account management
		adminAPI.GET("/users", handlers.User.ListUsers)
		adminAPI.POST("/users", handlers.User.CreateUser)
		adminAPI.GET("/users/:user_id", handlers.User.GetUser)
		adminAPI.PUT("/users/:user_id", handlers.User.UpdateUser)
		adminAPI.DELETE("/users/:user_id", handlers.User.DeleteUser)
		adminAPI.POST("/users/:user_id/reset-session", handlers.User.ResetUserSession)

		// System monitoring
		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	// ─── 6. Assistant (Any Authenticated User) ─────────────────────────
	assistantAPI := router.Group("/api/v1/assistant")
	assistantAPI.Use(middleware.RequireJWT(authService))
	{
		assistantAPI.POST("/chat", handlers.Assistant.Chat)
	}

	return router
}
