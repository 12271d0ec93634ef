// Package api exposes the upload ledger and the title catalog over HTTP and
// relays live task events from the bus to WebSocket clients.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mohdsabahat/anime-bot/internal/catalog"
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/internal/common/messaging"
	"github.com/mohdsabahat/anime-bot/internal/ledger"
	"github.com/mohdsabahat/anime-bot/pkg/models"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50

	defaultPageSize = 20
	maxPageSize     = 100

	// All task events share the task.* routing prefix
	eventsRoutingPattern = "task.*"
)

// Ledger is the read side of the upload ledger served over the API.
type Ledger interface {
	Ping(ctx context.Context) error
	SearchFiles(ctx context.Context, titleLike string, episode, limit, offset int) ([]ledger.UploadedFile, error)
	CountFiles(ctx context.Context, titleLike string, episode int) (int, error)
	LatestUploaded(ctx context.Context, title string, episode int) (*ledger.UploadedFile, error)
	ListDistinctTitles(ctx context.Context) ([]string, error)
}

// Catalog loads the title index used by /api/search.
type Catalog interface {
	Load(ctx context.Context) ([]models.Anime, error)
}

// Server wires the HTTP routes, the WebSocket hub and the optional event
// feed together.
type Server struct {
	ledger  Ledger
	catalog Catalog
	msg     messaging.Client
	queue   string
	hub     *Hub
	log     *logrus.Logger
}

// NewServer creates the API server. msgClient may be nil, in which case the
// WebSocket endpoint still accepts clients but no events arrive.
func NewServer(cfg *config.Config, store Ledger, cat Catalog, msgClient messaging.Client, log *logrus.Logger) *Server {
	return &Server{
		ledger:  store,
		catalog: cat,
		msg:     msgClient,
		queue:   cfg.GetRabbitMQConfig().Queue.Events,
		hub:     NewHub(log),
		log:     log,
	}
}

// Start runs the hub and, when a broker is configured, the event consumer.
// Both stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)

	if s.msg != nil {
		s.consumeEvents(ctx)
	}
}

// RegisterRoutes attaches every endpoint to the engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", websocketHandler(s.hub, s.log))

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/search", s.search)
		api.GET("/files", s.listFiles)
		api.GET("/files/latest", s.latestFile)
		api.GET("/titles", s.listTitles)
	}
}

// consumeEvents binds the events queue to the task routing keys and relays
// every event to the hub.
func (s *Server) consumeEvents(ctx context.Context) {
	if err := s.msg.DeclareQueue(s.queue); err != nil {
		s.log.WithError(err).Error("Failed to declare events queue")
		return
	}

	if err := s.msg.BindQueue(s.queue, "", eventsRoutingPattern); err != nil {
		s.log.WithError(err).Error("Failed to bind events queue")
		return
	}

	err := s.msg.ConsumeWithContext(ctx, s.queue, func(msg []byte, routingKey string) error {
		var event models.TaskEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			s.log.WithError(err).WithField("routing_key", routingKey).Error("Failed to decode task event")
			return err
		}

		s.hub.Broadcast(msg)
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to start events consumer")
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.ledger.Ping(c.Request.Context()); err != nil {
		s.log.WithError(err).Error("Health check failed to reach database")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "degraded",
			"database": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "ok",
	})
}

func (s *Server) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit := intQuery(c, "limit", defaultSearchLimit, maxSearchLimit)

	entries, err := s.catalog.Load(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to load catalog for search")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load catalog"})
		return
	}

	items := catalog.Rank(entries, query, limit)

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}

func (s *Server) listFiles(c *gin.Context) {
	page := intQuery(c, "page", 1, 0)
	pageSize := intQuery(c, "page_size", defaultPageSize, maxPageSize)
	title := strings.TrimSpace(c.Query("title"))

	episode := 0
	if raw := c.Query("episode"); raw != "" {
		ep, err := strconv.Atoi(raw)
		if err != nil || ep < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "episode must be a positive integer"})
			return
		}
		episode = ep
	}

	ctx := c.Request.Context()

	total, err := s.ledger.CountFiles(ctx, title, episode)
	if err != nil {
		s.log.WithError(err).Error("Failed to count uploaded files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query uploads"})
		return
	}

	items, err := s.ledger.SearchFiles(ctx, title, episode, pageSize, (page-1)*pageSize)
	if err != nil {
		s.log.WithError(err).Error("Failed to list uploaded files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query uploads"})
		return
	}
	if items == nil {
		items = []ledger.UploadedFile{}
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"has_next":  page*pageSize < total,
	})
}

func (s *Server) latestFile(c *gin.Context) {
	title := strings.TrimSpace(c.Query("title"))
	rawEpisode := c.Query("episode")
	if title == "" || rawEpisode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and episode are required"})
		return
	}

	episode, err := strconv.Atoi(rawEpisode)
	if err != nil || episode < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "episode must be a positive integer"})
		return
	}

	rec, err := s.ledger.LatestUploaded(c.Request.Context(), title, episode)
	if err != nil {
		s.log.WithError(err).Error("Failed to look up latest upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query uploads"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no upload for %s episode %d", title, episode)})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) listTitles(c *gin.Context) {
	titles, err := s.ledger.ListDistinctTitles(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list uploaded titles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query uploads"})
		return
	}
	if titles == nil {
		titles = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"titles": titles,
		"total":  len(titles),
	})
}

// intQuery parses a positive integer query parameter, falling back on the
// default for missing or invalid values. A ceiling of 0 means uncapped.
func intQuery(c *gin.Context, name string, fallback, ceiling int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	if ceiling > 0 && v > ceiling {
		return ceiling
	}

	return v
}
