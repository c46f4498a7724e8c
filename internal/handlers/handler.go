package handlers

import (
	"github.com/Kunal6688/PestDetect/internal/logger"
	"github.com/Kunal6688/PestDetect/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services    *service.Service
	log         *logger.Logger
	authEnabled bool
}

// NewHandler constructs a new HTTP handler. When authEnabled is false the
// /api/v1 group is served without a bearer token.
func NewHandler(services *service.Service, log *logger.Logger, authEnabled bool) *Handler {
	return &Handler{services: services, log: log, authEnabled: authEnabled}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// live event stream, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	if h.authEnabled {
		api.Use(h.authMiddleware)
	}
	{
		h.registerDetectionRoutes(api)
		h.registerHistoryRoutes(api)
		h.registerActuatorRoutes(api)
		h.registerSensorRoutes(api)
		h.registerArchiveRoutes(api)
		api.GET("/system/status", h.systemStatus)
		// body: {"pest_type":"aphid","confidence":0.9,"location":[12.5,3]}
		api.POST("/system/pest-response", h.pestResponse)
	}
}

func (h *Handler) registerDetectionRoutes(api *gin.RouterGroup) {
	detections := api.Group("/detections")
	{
		// multipart form with a "file" part
		detections.POST("", h.submitUpload)
		// body: {"image_ref":"2025/leaf-12.jpg"}
		detections.POST("/ref", h.submitByRef)
	}
}

func (h *Handler) registerHistoryRoutes(api *gin.RouterGroup) {
	api.GET("/history", h.getHistory)
	api.GET("/history/export", h.exportHistory)
	api.GET("/statistics", h.getStatistics)
}

func (h *Handler) registerActuatorRoutes(api *gin.RouterGroup) {
	actuators := api.Group("/actuators")
	{
		actuators.GET("", h.getActuators)
		actuators.POST("/release-all", h.releaseAll)
		actuators.POST("/:id/trigger", h.triggerActuator)
		actuators.POST("/:id/release", h.releaseActuator)
	}
}

func (h *Handler) registerSensorRoutes(api *gin.RouterGroup) {
	sensors := api.Group("/sensors")
	{
		sensors.GET("", h.getSensors)
		sensors.POST("/poll", h.pollSensors)
	}
}

func (h *Handler) registerArchiveRoutes(api *gin.RouterGroup) {
	archive := api.Group("/archive")
	{
		archive.GET("/events", h.getArchivedEvents)
		archive.GET("/relays", h.getRelaySnapshot)
	}
}
