package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mealquest/internal/arcade"
	"github.com/dukerupert/mealquest/internal/gamesession"
	"github.com/dukerupert/mealquest/internal/handler"
	"github.com/dukerupert/mealquest/internal/leaderboard"
	"github.com/dukerupert/mealquest/internal/metrics"
	"github.com/dukerupert/mealquest/internal/middleware"
	"github.com/dukerupert/mealquest/internal/model"
	"github.com/dukerupert/mealquest/internal/points"
	"github.com/dukerupert/mealquest/internal/push"
	"github.com/dukerupert/mealquest/internal/store"
	ws "github.com/dukerupert/mealquest/internal/websocket"
)

// Config carries the server-level knobs main reads from the environment.
type Config struct {
	SessionSecret string
	Push          push.Config
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	pointsH      *handler.PointsHandler
	gameH        *handler.GameHandler
	leaderboardH *handler.LeaderboardHandler
	adminH       *handler.AdminHandler
	pushH        *handler.PushHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	pushStore    *store.PushStore
	rateLimiter  *middleware.RateLimiter
	pointsSvc    *points.Service
	sessionMgr   *gamesession.Manager
	scheduler    *leaderboard.Scheduler
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// payoutFanout delivers rollover payouts to every registered notifier.
type payoutFanout []leaderboard.PayoutNotifier

func (f payoutFanout) NotifyPayouts(epoch model.WeeklyEpoch, payouts []model.RewardPayout) {
	for _, n := range f {
		n.NotifyPayouts(epoch, payouts)
	}
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	broadcaster := ws.NewBroadcaster(hub)

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	accountStore := store.NewAccountStore(db)
	leaderboardStore := store.NewLeaderboardStore(db)
	pushStore := store.NewPushStore(db)

	m := metrics.New()

	pointsSvc := points.NewService(accountStore, logger.With("component", "points"))

	sessionMgr := gamesession.NewManager(
		gamesession.NewStore(),
		gamesession.NewTokenCodec([]byte(cfg.SessionSecret)),
		logger.With("component", "gamesession"),
	)

	arcadeSvc := arcade.NewService(sessionMgr, pointsSvc, leaderboardStore, m, broadcaster, logger)

	// Rollover events always go to connected clients; push delivery needs
	// VAPID keys.
	notifiers := payoutFanout{broadcaster}
	var pushSvc *push.Service
	var pushH *handler.PushHandler
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
		notifiers = append(notifiers, push.NewNotifier(pushSvc, pushStore))
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	scheduler := leaderboard.NewScheduler(leaderboardStore, pointsSvc, m, notifiers, logger)

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		pointsH:      handler.NewPointsHandler(pointsSvc, logger.With("component", "points_handler")),
		gameH:        handler.NewGameHandler(sessionMgr, arcadeSvc, m, logger.With("component", "game_handler")),
		leaderboardH: handler.NewLeaderboardHandler(leaderboardStore, logger.With("component", "leaderboard_handler")),
		adminH:       handler.NewAdminHandler(scheduler, pointsSvc, logger.With("component", "admin_handler")),
		pushH:        pushH,
		sessionStore: sessionStore,
		userStore:    userStore,
		pushStore:    pushStore,
		rateLimiter:  middleware.NewRateLimiter(),
		pointsSvc:    pointsSvc,
		sessionMgr:   sessionMgr,
		scheduler:    scheduler,
		metrics:      m,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PointsService returns the points service for startup and cron tasks.
func (s *Server) PointsService() *points.Service {
	return s.pointsSvc
}

// SessionManager returns the play-session manager so main can run its sweep loop.
func (s *Server) SessionManager() *gamesession.Manager {
	return s.sessionMgr
}

// Scheduler returns the weekly leaderboard scheduler.
func (s *Server) Scheduler() *leaderboard.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, middleware.AuthRateLimit, middleware.AuthRateWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Points API routes
	mux.HandleFunc("GET /api/points/balance", s.pointsH.Balance)
	mux.HandleFunc("GET /api/points/history", s.pointsH.History)
	mux.HandleFunc("GET /api/points/daily-limit", s.pointsH.DailyLimit)

	// Game API routes
	mux.HandleFunc("GET /api/games", s.gameH.List)
	mux.HandleFunc("POST /api/games/start-session", s.gameH.StartSession)
	mux.HandleFunc("POST /api/games/submit-score", s.gameH.SubmitScore)

	// Leaderboard API routes
	mux.HandleFunc("GET /api/games/weekly-leaderboard", s.leaderboardH.Weekly)
	mux.HandleFunc("GET /api/games/weekly-leaderboard-history", s.leaderboardH.History)
	mux.HandleFunc("GET /api/games/leaderboard/{game_id}", s.leaderboardH.Game)

	// Admin routes
	mux.Handle("POST /api/admin/reset-weekly-leaderboard", middleware.RequireAdmin(http.HandlerFunc(s.adminH.ResetWeeklyLeaderboard)))
	mux.Handle("POST /api/admin/reset-daily-limits", middleware.RequireAdmin(http.HandlerFunc(s.adminH.ResetDailyLimits)))

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
