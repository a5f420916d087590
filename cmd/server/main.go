package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/nshruti113/netsentry/internal/config"
	"github.com/nshruti113/netsentry/internal/denylist"
	"github.com/nshruti113/netsentry/internal/detection"
	"github.com/nshruti113/netsentry/internal/enforce"
	"github.com/nshruti113/netsentry/internal/firewall"
	"github.com/nshruti113/netsentry/internal/hub"
	"github.com/nshruti113/netsentry/internal/models"
	"github.com/nshruti113/netsentry/internal/notify"
	"github.com/nshruti113/netsentry/internal/policy"
	"github.com/nshruti113/netsentry/internal/scheduler"
	"github.com/nshruti113/netsentry/internal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	cfg        config.Config
	store      *storage.RedisStore
	classifier *detection.RemoteClassifier
	queue      *notify.Queue
	enforcer   *enforce.Enforcer
	refresher  *scheduler.Refresher
	hub        *hub.Hub
	router     *gin.Engine
}

func NewServer(cfg config.Config) (*Server, error) {
	store, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	classifier := detection.NewRemoteClassifier(cfg.WorkerURL, cfg.WorkerTimeout, detection.NewClassifier())

	h := hub.New()
	queue := notify.NewQueue(h, notify.Config{
		Capacity:      cfg.QueueCapacity,
		DrainInterval: cfg.DrainInterval,
		DrainBatch:    cfg.DrainBatch,
		RestartDelay:  cfg.WorkerRestartWait,
		MaxRestarts:   cfg.WorkerRestarts,
	})

	var fw firewall.ControlPlane = firewall.Noop{}
	if cfg.FirewallEnabled {
		fw = firewall.NewIPTables()
	}

	enforcer := enforce.New(
		store,
		fw,
		denylist.NewFile(cfg.DenyListPath),
		policy.NewStoreProvider(store, cfg.DefaultPolicy()),
		queue,
	)

	refresher := scheduler.NewRefresher(store, enforcer, cfg.TickInterval, cfg.SnapshotTTL)

	notify.RegisterMetrics(prometheus.DefaultRegisterer)
	enforce.RegisterMetrics(prometheus.DefaultRegisterer)

	server := &Server{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		queue:      queue,
		enforcer:   enforcer,
		refresher:  refresher,
		hub:        h,
		router:     gin.Default(),
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware())

	api := s.router.Group("/api")
	{
		api.POST("/traffic/ingest", s.ingestTraffic)

		api.GET("/stats/summary", s.getSummaryStats)
		api.GET("/alerts/recent", s.getRecentAlerts)

		api.GET("/bans", s.listBans)
		api.POST("/bans", s.createBan)
		api.DELETE("/bans/:address", s.deleteBan)
	}

	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// ingestTraffic receives one traffic event, classifies it and kicks off
// enforcement for malicious sources.
func (s *Server) ingestTraffic(c *gin.Context) {
	var ev models.TrafficEvent

	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	det := s.classifier.Classify(c.Request.Context(), ev)

	if err := s.store.StoreEvent(c.Request.Context(), ev, det); err != nil {
		log.WithError(err).Error("failed to store traffic event")
	}

	if det.AttackType != models.AttackNormal && det.AttackType != "" {
		s.queue.Enqueue(models.NotificationItem{
			Kind:     models.KindIntrusion,
			SourceIP: ev.SourceIP,
			Intrusion: &models.IntrusionPayload{
				AttackType:       det.AttackType,
				Confidence:       det.Confidence,
				Severity:         ev.Severity,
				GracePeriod:      ev.GracePeriod,
				DecisionRequired: ev.DecisionRequired,
			},
		})
	}

	if det.IsMalicious {
		alert := models.Alert{
			ID:         ev.ID,
			Level:      alertLevel(ev.Severity),
			Title:      fmt.Sprintf("%s detected", det.AttackType),
			Message:    fmt.Sprintf("%s from %s (confidence %.2f, %d events/min)", det.AttackType, ev.SourceIP, det.Confidence, det.Frequency),
			AttackType: det.AttackType,
			SourceIP:   ev.SourceIP,
			Timestamp:  ev.Timestamp,
		}
		if err := s.store.StoreAlert(c.Request.Context(), alert); err != nil {
			log.WithError(err).Error("failed to store alert")
		}

		// Auto-block unless the operator still has a decision pending.
		if !ev.GracePeriod && !ev.DecisionRequired {
			go func(addr, reason string) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if _, err := s.enforcer.Block(ctx, addr, reason, 0); err != nil {
					log.WithError(err).WithField("address", addr).Error("auto-block failed")
				}
			}(ev.SourceIP, det.AttackType)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "detection": det})
}

// getSummaryStats serves the aggregate dashboard snapshot. Active sessions
// are served from the scheduler-maintained cache; anyone else gets a direct
// aggregate. This endpoint never fails the dashboard.
func (s *Server) getSummaryStats(c *gin.Context) {
	ctx := c.Request.Context()

	if session := c.Query("session"); session != "" {
		var snap models.StatsSnapshot
		hit, err := s.store.GetSnapshot(ctx, scheduler.StatsKey(session), &snap)
		if err != nil {
			log.WithError(err).Warn("snapshot read failed")
		}
		if hit {
			c.JSON(http.StatusOK, snap)
			return
		}
	}

	snap, err := s.store.TrafficStats(ctx, time.Now().Add(-scheduler.AggregateWindow))
	if err != nil {
		log.WithError(err).Warn("stats aggregation failed")
		c.JSON(http.StatusOK, models.StatsSnapshot{
			Timestamp:    time.Now(),
			WindowHours:  int(scheduler.AggregateWindow.Hours()),
			ByAttackType: map[string]int{},
		})
		return
	}

	c.JSON(http.StatusOK, snap)
}

// getRecentAlerts returns recent alerts, cache-first for active sessions.
func (s *Server) getRecentAlerts(c *gin.Context) {
	ctx := c.Request.Context()

	if session := c.Query("session"); session != "" && c.Query("level") == "" {
		var alerts []models.Alert
		hit, err := s.store.GetSnapshot(ctx, scheduler.AlertsKey(session), &alerts)
		if err != nil {
			log.WithError(err).Warn("alert snapshot read failed")
		}
		if hit {
			c.JSON(http.StatusOK, gin.H{"alerts": alerts})
			return
		}
	}

	alerts, err := s.store.RecentAlerts(ctx, time.Now().Add(-scheduler.AggregateWindow), c.Query("level"), 50)
	if err != nil {
		log.WithError(err).Warn("alert query failed")
		alerts = []models.Alert{}
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) listBans(c *gin.Context) {
	bans, err := s.enforcer.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bans": bans})
}

type banRequest struct {
	Address    string `json:"address"`
	Reason     string `json:"reason"`
	TTLSeconds int    `json:"ttl_seconds"`
}

func (s *Server) createBan(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	rec, err := s.enforcer.Block(c.Request.Context(), req.Address, req.Reason, req.TTLSeconds)
	if err != nil {
		switch {
		case errors.Is(err, enforce.ErrEmptyAddress),
			errors.Is(err, enforce.ErrInvalidAddress),
			errors.Is(err, enforce.ErrReservedAddress):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, enforce.ErrEnforcementFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) deleteBan(c *gin.Context) {
	address := c.Param("address")

	if err := s.enforcer.Unblock(c.Request.Context(), address); err != nil {
		switch {
		case errors.Is(err, enforce.ErrEmptyAddress),
			errors.Is(err, enforce.ErrInvalidAddress),
			errors.Is(err, enforce.ErrReservedAddress):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleWebSocket subscribes a dashboard session to live alerts and marks it
// active so the scheduler keeps its snapshots warm.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Error("websocket upgrade failed")
		return
	}
	defer conn.Close()

	session := c.Query("session")
	if session == "" {
		session = c.Request.RemoteAddr
	}

	s.refresher.RegisterActive(session)
	defer s.refresher.UnregisterActive(session)

	client := s.hub.Add(conn, notify.Topic, session)
	defer s.hub.Remove(client)

	log.WithField("session", session).Info("websocket client connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func alertLevel(severity string) string {
	if severity == models.SeverityCritical {
		return "CRITICAL"
	}
	return "WARNING"
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	server, err := NewServer(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server.queue.Start(ctx)
	if err := server.refresher.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start refresher")
	}
	defer server.refresher.Stop()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.router,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
