package main

import (
	"net/http"
	"time"

	"beijjati-server/auth"
	"beijjati-server/handlers"
	"beijjati-server/middleware"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type routerDeps struct {
	Users          handlers.UserDirectory
	Posts          handlers.PostStore
	PostConfig     handlers.PostHandlerConfig
	Tokens         *auth.TokenIssuer
	Metrics        *middleware.Metrics
	Redis          *redis.Client
	AuthRateLimit  int
	AuthRateWindow time.Duration
	AllowedOrigins []string
	Logger         logrus.FieldLogger
}

func newRouter(deps routerDeps) *mux.Router {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Metrics)
	postHandler := handlers.NewPostHandler(deps.Posts, deps.Users, deps.PostConfig, deps.Logger)

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MetricsMiddleware(deps.Metrics))
	r.Use(middleware.ErrorMiddleware(deps.Logger))
	r.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET", "OPTIONS")

	requireAuth := middleware.JWTMiddleware(deps.Tokens)
	limited := middleware.RateLimit(deps.Redis, "auth", deps.AuthRateLimit, deps.AuthRateWindow, deps.Logger)

	// Auth routes
	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.Handle("/register", limited(http.HandlerFunc(authHandler.RegisterUser))).Methods("POST", "OPTIONS")
	authRouter.Handle("/login", limited(http.HandlerFunc(authHandler.LoginUser))).Methods("POST", "OPTIONS")
	authRouter.Handle("/me", requireAuth(http.HandlerFunc(authHandler.CurrentUser))).Methods("GET", "OPTIONS")

	// User routes
	userRouter := api.PathPrefix("/users").Subrouter()
	userRouter.Use(requireAuth)
	userRouter.HandleFunc("/search", userHandler.SearchUsers).Methods("GET", "OPTIONS")
	userRouter.HandleFunc("/profile/{username}", userHandler.GetProfile).Methods("GET", "OPTIONS")
	userRouter.HandleFunc("/profile", userHandler.UpdateProfile).Methods("PUT", "OPTIONS")
	userRouter.HandleFunc("/friend-request", userHandler.SendFriendRequest).Methods("POST", "OPTIONS")
	userRouter.HandleFunc("/friend-request/{action}", userHandler.HandleFriendRequest).Methods("POST", "OPTIONS")
	userRouter.HandleFunc("/friends", userHandler.GetFriends).Methods("GET", "OPTIONS")
	userRouter.HandleFunc("/friend-requests", userHandler.GetFriendRequests).Methods("GET", "OPTIONS")

	// Post routes
	postRouter := api.PathPrefix("/posts").Subrouter()
	postRouter.Use(requireAuth)
	postRouter.HandleFunc("", postHandler.CreatePost).Methods("POST", "OPTIONS")
	postRouter.HandleFunc("/", postHandler.CreatePost).Methods("POST", "OPTIONS")
	postRouter.HandleFunc("/feed", postHandler.GetFeed).Methods("GET", "OPTIONS")
	postRouter.HandleFunc("/user/{username}", postHandler.GetUserPosts).Methods("GET", "OPTIONS")
	postRouter.HandleFunc("/mentions/{username}", postHandler.GetMentions).Methods("GET", "OPTIONS")
	postRouter.HandleFunc("/{id}/like", postHandler.LikePost).Methods("POST", "OPTIONS")
	postRouter.HandleFunc("/{id}/unlike", postHandler.UnlikePost).Methods("POST", "OPTIONS")

	return r
}
