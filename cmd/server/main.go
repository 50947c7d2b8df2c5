package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/api/option"

	"github.com/servicedesk-pro/servicedesk/config"
	"github.com/servicedesk-pro/servicedesk/internal/auth"
	"github.com/servicedesk-pro/servicedesk/internal/handlers"
	"github.com/servicedesk-pro/servicedesk/internal/images"
	"github.com/servicedesk-pro/servicedesk/internal/store"
	"github.com/servicedesk-pro/servicedesk/internal/ticket"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("servicedesk-server %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
		os.Exit(0)
	}

	cfg := config.Load()

	if cfg.JWT.SigningKey == "" {
		log.Println("WARNING: JWT_SIGNING_KEY is empty, using insecure default (set JWT_SIGNING_KEY in production)")
		cfg.JWT.SigningKey = "insecure-dev-secret-change-me"
	}

	ctx := context.Background()

	st, verifier, bucket, cleanup, err := buildBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize backend: %v", err)
	}
	defer cleanup()

	ticketService := ticket.New(st)
	authService := auth.New(cfg.JWT.SigningKey, cfg.JWT.Issuer,
		time.Duration(cfg.JWT.TTLMinutes)*time.Minute, verifier, st)
	imageService := images.New(bucket)

	h := handlers.New(st, ticketService, authService, imageService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Mount("/", h.Routes())

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Servicedesk server starting on %s (env: %s, store: %s)", addr, cfg.Server.Env, cfg.Store.Backend)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

// buildBackend assembles the persistence and auth backends. STORE_BACKEND=
// memory runs everything in-process with no Firebase project at all, which
// is enough for local development.
func buildBackend(ctx context.Context, cfg *config.Config) (store.Store, auth.IDTokenVerifier, images.Bucket, func(), error) {
	if cfg.Store.Backend == "memory" {
		log.Println("Using in-memory store (nothing survives a restart)")
		mem := store.NewMemory()
		seedDevUsers(ctx, mem)
		return mem, nil, images.NewMemoryBucket(), func() {}, nil
	}

	if cfg.Firebase.UseEmulator {
		os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.Firebase.EmulatorAuthHost)
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firebase.EmulatorFirestoreHost)
		log.Printf("Using Firebase emulators (auth: %s, firestore: %s)",
			cfg.Firebase.EmulatorAuthHost, cfg.Firebase.EmulatorFirestoreHost)
	}

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.Firebase.ProjectID,
		StorageBucket: cfg.Firebase.StorageBucket,
	}, opts...)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("firebase app: %w", err)
	}

	var verifier *fbauth.Client
	verifier, err = app.Auth(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("firebase auth: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("firestore client: %w", err)
	}

	var bucket images.Bucket
	if cfg.Firebase.StorageBucket != "" {
		sc, err := storage.NewClient(ctx, opts...)
		if err != nil {
			fs.Close()
			return nil, nil, nil, nil, fmt.Errorf("storage client: %w", err)
		}
		bucket = images.NewGCSBucket(sc.Bucket(cfg.Firebase.StorageBucket), cfg.Firebase.StorageBucket)
	} else {
		log.Println("WARNING: FIREBASE_STORAGE_BUCKET is empty, ticket images held in memory only")
		bucket = images.NewMemoryBucket()
	}

	cleanup := func() {
		if err := fs.Close(); err != nil {
			log.Printf("Firestore close error: %v", err)
		}
	}
	return store.NewFirestore(fs), verifier, bucket, cleanup, nil
}

// seedDevUsers gives the memory backend a usable cast so the API works out
// of the box in local development.
func seedDevUsers(ctx context.Context, st store.Store) {
	seed := []models.User{
		{UID: "manager-1", Email: "manager@example.com", FullName: "Dev Manager", Role: models.RoleManager, Active: true},
		{UID: "worker-1", Email: "worker@example.com", FullName: "Dev Worker", Role: models.RoleWorker, Active: true},
		{UID: "tech-1", Email: "tech1@example.com", FullName: "Dev Technician 1", Role: models.RoleTechnician, Active: true},
		{UID: "tech-2", Email: "tech2@example.com", FullName: "Dev Technician 2", Role: models.RoleTechnician, Active: true},
	}
	for i := range seed {
		seed[i].CreatedAt = time.Now().UTC()
		if err := st.CreateUser(ctx, &seed[i]); err != nil {
			log.Printf("Seed user %s skipped: %v", seed[i].UID, err)
			continue
		}
	}
	log.Printf("Seeded %d dev users (manager-1, worker-1, tech-1, tech-2)", len(seed))
}
