package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"digitalDojoAPI/handlers"
	"digitalDojoAPI/internal/jobs"
	"digitalDojoAPI/internal/migrations"
	"digitalDojoAPI/internal/notification"
	"digitalDojoAPI/middleware"
	"digitalDojoAPI/services"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	beltService         *services.BeltService
	habitService        *services.HabitService
	challengeService    *services.ChallengeService
	progressionService  *services.ProgressionService
	notificationService *services.NotificationService
	jobStore            *services.JobStore
	fcmService          *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to Postgres")

	migrationCtx, migrationCancel := context.WithTimeout(context.Background(), time.Minute)
	defer migrationCancel()
	if err := migrations.Run(migrationCtx, dbURL); err != nil {
		log.Fatal("Failed to apply migrations:", err)
	}
	log.Println("Migrations applied")

	notificationService = services.NewNotificationService(dbPool)
	userService = services.NewUserService(dbPool)
	beltService = services.NewBeltService(dbPool)
	progressionService = services.NewProgressionService(dbPool, notificationService)
	habitService = services.NewHabitService(dbPool, progressionService)
	challengeService = services.NewChallengeService(dbPool, progressionService)
	jobStore = services.NewJobStore(dbPool)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()
	defer notificationService.Stop()

	graceDays, _ := strconv.Atoi(os.Getenv("STREAK_GRACE_DAYS"))

	streakJob := jobs.NewStreakResetJob(jobStore, graceDays)
	skipJob := jobs.NewWeeklySkipJob(jobStore)
	growthJob := jobs.NewGrowthScoreJob(jobStore)

	scheduler := jobs.NewScheduler()
	mustRegister(scheduler, jobs.TriggerDailyStreakReset, "0 0 * * *", streakJob.Run)
	// Hourly, not daily: the job defers users whose local clock is before
	// 02:00, so a single daily run would never reach timezones that are
	// always in that window at the trigger time.
	mustRegister(scheduler, jobs.TriggerWeeklySkipCheck, "30 * * * *", skipJob.Run)
	mustRegister(scheduler, jobs.TriggerGrowthScoreRecalc, "0 3 * * *", growthJob.Run)
	mustRegister(scheduler, "challengeStatusRefresh", "*/15 * * * *", func(ctx context.Context) error {
		return challengeService.RefreshStatuses(ctx)
	})
	scheduler.Start()
	defer scheduler.Stop()

	jobRunners := map[string]func(ctx context.Context) error{
		jobs.TriggerDailyStreakReset:  streakJob.Run,
		jobs.TriggerWeeklySkipCheck:   skipJob.Run,
		jobs.TriggerGrowthScoreRecalc: growthJob.Run,
	}

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	beltHandler := handlers.NewBeltHandler(beltService)
	habitHandler := handlers.NewHabitHandler(habitService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	progressionHandler := handlers.NewProgressionHandler(progressionService, beltService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	jobsHandler := handlers.NewJobsHandler(scheduler, jobRunners)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(5, 30)
	r.Use(rateLimiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "digital-dojo-api"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", userHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", userHandler.Login).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(userService.JWTSecret()))

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")

	protected.HandleFunc("/progression", progressionHandler.GetProgression).Methods("GET")
	protected.HandleFunc("/progression/belts", progressionHandler.GetEarnedBelts).Methods("GET")

	protected.HandleFunc("/belts", beltHandler.ListBelts).Methods("GET")

	protected.HandleFunc("/habits", habitHandler.ListHabits).Methods("GET")
	protected.HandleFunc("/habits", habitHandler.CreateHabit).Methods("POST")
	protected.HandleFunc("/habits/{id}", habitHandler.DeleteHabit).Methods("DELETE")
	protected.HandleFunc("/habits/{id}/complete", habitHandler.CompleteHabit).Methods("POST")
	protected.HandleFunc("/user/calendar", habitHandler.GetCalendar).Methods("GET")

	protected.HandleFunc("/challenges", challengeHandler.ListChallenges).Methods("GET")
	protected.HandleFunc("/challenges/{id}/weeklies", challengeHandler.ListWeeklies).Methods("GET")
	protected.HandleFunc("/challenges/{id}/join", challengeHandler.JoinChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/weeklies/{weeklyId}/complete", challengeHandler.CompleteWeekly).Methods("POST")
	protected.HandleFunc("/challenges/{id}/weeklies/{weeklyId}/completions", challengeHandler.ListWeeklyCompletions).Methods("GET")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminMiddleware)

	admin.HandleFunc("/belts", beltHandler.CreateBelt).Methods("POST")
	admin.HandleFunc("/belts/{id}", beltHandler.UpdateBelt).Methods("PUT")
	admin.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	admin.HandleFunc("/jobs/{name}/trigger", jobsHandler.TriggerJob).Methods("POST")

	// CORS configuration
	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func mustRegister(s *jobs.Scheduler, name, spec string, run func(ctx context.Context) error) {
	if err := s.Register(name, spec, run); err != nil {
		log.Fatalf("Failed to register job %s: %v", name, err)
	}
}
