package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/mind-engage/mindengage-mobile/internal/api/http"
	auth "github.com/mind-engage/mindengage-mobile/internal/auth/middleware"
	"github.com/mind-engage/mindengage-mobile/internal/config"
	"github.com/mind-engage/mindengage-mobile/internal/db"
	"github.com/mind-engage/mindengage-mobile/internal/grading"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/ledger"
	"github.com/mind-engage/mindengage-mobile/internal/store"
	"github.com/mind-engage/mindengage-mobile/internal/task"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	st := store.NewSQLStore(dbh, db.Driver(cfg.DBDriver))
	if err := store.Provision(ctx, st); err != nil {
		log.Fatalf("provision schema: %v", err)
	}

	// --- Core ---
	ids := identity.NewResolver(st, cfg.BcryptCost)
	if cfg.AdminUser != "" && cfg.AdminPassword != "" {
		u, created, err := ids.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassword)
		if err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		if created {
			log.Printf("bootstrap admin %q created (id=%d)", u.Username, u.ID)
		}
	}
	led := ledger.New(st, ids)
	cat := task.NewCatalogue(st, ids, led)
	engine := grading.NewEngine(st, ids, cat, led)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "token", "userId"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: cfg.Mode == config.ModeOnline,
		MaxAge:           300,
	}))

	r.Route("/mobile/api/v1", func(mr chi.Router) {
		api.MountMobile(mr, api.Deps{
			Identity:           ids,
			Tasks:              cat,
			Ledger:             led,
			Grader:             engine,
			Auth:               auth.NewAuthService(cfg.AuthHMACSecret, cfg.SessionTTL),
			EnableRegistration: cfg.EnableRegistration,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
