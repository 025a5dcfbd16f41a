package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/sosdesk/intake/app/controllers"
	"github.com/sosdesk/intake/internal/pkg/incident"
	"github.com/sosdesk/intake/internal/pkg/middleware"
	"github.com/sosdesk/intake/internal/pkg/statistics"
)

// APIConfig carries what the API routes need.
type APIConfig struct {
	Service *incident.Service
	Health  *controllers.HealthController
	// Stats defaults to uncached counters.
	Stats controllers.StatsProvider
	// Queue is nil when analyses run in-process.
	Queue controllers.JobInspector

	APIKey         string
	AllowedOrigins string
	LimiterStorage fiber.Storage
	RateLimit      int
	RateWindow     time.Duration
}

type ApiRouter struct {
	cfg APIConfig
}

func NewApiRouter(cfg APIConfig) *ApiRouter {
	return &ApiRouter{cfg: cfg}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	origins := h.cfg.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	api := app.Group("/api",
		cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		}),
		newLimiter(h.cfg.LimiterStorage, h.cfg.RateLimit, h.cfg.RateWindow),
	)
	v1 := api.Group("/v1")

	if h.cfg.Health != nil {
		v1.Get("/health", h.cfg.Health.HandleHealth)
	}

	if h.cfg.APIKey != "" {
		v1.Use(middleware.APIKeyAuth(h.cfg.APIKey))
	} else {
		log.Warn("[Router] API_KEY is not set, /api/v1 is unauthenticated")
	}

	stats := h.cfg.Stats
	if stats == nil {
		stats = statistics.New(nil, h.cfg.Service, 0)
	}
	incidents := controllers.NewIncidentController(h.cfg.Service, stats)
	multimedia := controllers.NewMultimediaController(h.cfg.Service)
	requesters := controllers.NewRequesterController(h.cfg.Service)
	analyses := controllers.NewAnalysisController(h.cfg.Service)

	// fixed paths before /incidents/:id
	v1.Post("/incidents", incidents.HandleCreate)
	v1.Get("/incidents", incidents.HandleList)
	v1.Get("/incidents/dispatch", incidents.HandleListForDispatch)
	v1.Get("/incidents/pending-analysis", incidents.HandleListPendingAnalysis)
	v1.Get("/incidents/high-priority", incidents.HandleListHighPriority)
	v1.Get("/incidents/stats", incidents.HandleStats)

	v1.Get("/incidents/:id", incidents.HandleGet)
	v1.Get("/incidents/:id/detail", incidents.HandleGetDetail)
	v1.Patch("/incidents/:id", incidents.HandleUpdate)
	v1.Delete("/incidents/:id", incidents.HandleDelete)

	v1.Patch("/incidents/:id/status", incidents.HandleChangeStatus)
	v1.Post("/incidents/:id/approve", incidents.HandleApprove)
	v1.Post("/incidents/:id/reject", incidents.HandleReject)
	v1.Post("/incidents/:id/force-reject", incidents.HandleForceReject)
	v1.Post("/incidents/:id/cancel", incidents.HandleCancel)

	v1.Post("/incidents/:id/analysis/text", incidents.HandleTextAnalysis)
	v1.Post("/incidents/:id/analysis/image", incidents.HandleImageAnalysis)
	v1.Post("/incidents/:id/analysis/full", incidents.HandleFullAnalysis)
	v1.Post("/incidents/:id/priority", incidents.HandleComputePriority)

	v1.Get("/incidents/:id/history", incidents.HandleHistory)
	v1.Get("/incidents/:id/history/latest", incidents.HandleLatestHistory)
	v1.Get("/incidents/:id/history/count", incidents.HandleCountHistory)
	v1.Get("/history", incidents.HandleSearchHistory)

	v1.Post("/incidents/:id/multimedia", multimedia.HandleUpload)
	v1.Get("/incidents/:id/multimedia", multimedia.HandleList)
	v1.Get("/multimedia/:id", multimedia.HandleGet)
	v1.Delete("/multimedia/:id", multimedia.HandleDelete)

	v1.Get("/incidents/:id/text-analysis", analyses.HandleGetIncidentText)
	v1.Get("/incidents/:id/image-analyses", analyses.HandleListIncidentImages)
	v1.Get("/multimedia/:id/analysis", analyses.HandleGetMultimediaImage)
	v1.Get("/text-analyses/pending", analyses.HandleListPendingText)
	v1.Get("/text-analyses/high-priority", analyses.HandleListHighPriorityText)
	v1.Get("/text-analyses/:id", analyses.HandleGetText)
	v1.Get("/image-analyses/low-veracity", analyses.HandleListLowVeracity)
	v1.Get("/image-analyses/anomalies", analyses.HandleListAnomalies)
	v1.Get("/image-analyses/:id", analyses.HandleGetImage)

	v1.Get("/requesters", requesters.HandleList)
	v1.Get("/requesters/by-phone/:phone", requesters.HandleGetByPhone)
	v1.Get("/requesters/channel/:channel", requesters.HandleListByChannel)
	v1.Get("/requesters/:id", requesters.HandleGet)
	v1.Patch("/requesters/:id", requesters.HandleUpdate)
	v1.Get("/requesters/:id/active-incidents", requesters.HandleCountActive)
	v1.Get("/locations/district/:district", requesters.HandleListLocationsByDistrict)
	v1.Get("/locations/:id", requesters.HandleGetLocation)
	v1.Patch("/locations/:id", requesters.HandleUpdateLocation)

	if h.cfg.Queue != nil {
		jobs := controllers.NewQueueController(h.cfg.Queue)
		v1.Get("/queue/stats", jobs.HandleStats)
		v1.Get("/queue/jobs/:id", jobs.HandleGetJob)
	}
}
