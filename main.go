package main

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/Novakiki/kindredbackend/config"
	"github.com/Novakiki/kindredbackend/database"
	"github.com/Novakiki/kindredbackend/handlers"
	"github.com/Novakiki/kindredbackend/invites"
	"github.com/Novakiki/kindredbackend/realtime"
	"github.com/Novakiki/kindredbackend/repository"
	"github.com/Novakiki/kindredbackend/services"
	"github.com/Novakiki/kindredbackend/visibility"
	"github.com/Novakiki/kindredbackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	personRepo := repository.NewPersonRepository(gormDB)
	noteRepo := repository.NewNoteRepository(gormDB)
	referenceRepo := repository.NewReferenceRepository(gormDB)
	contributorRepo := repository.NewGormContributorRepository(gormDB)
	inviteRepo := repository.NewGormInviteRepository(gormDB)
	claimTokenRepo := repository.NewGormClaimTokenRepository(gormDB)

	visibilitySvc := visibility.NewService(gormDB)
	inviteSvc := invites.NewService(invites.Limits{
		MaxDepth: cfg.InviteMaxDepth,
		MaxUses:  cfg.InviteMaxUses,
	}, inviteRepo)
	chatSvc := services.NewChatService(cfg.OpenAIKey, cfg.OpenAIModel)

	hub := realtime.NewHub()
	go hub.Run()

	log.Printf("Initializing invite delivery worker pool (Workers: %d, Queue Size: %d)...", cfg.NumInviteWorkers, cfg.InviteQueueSize)
	dispatcher := workers.NewInviteDispatcher(inviteRepo, workers.LogMessenger{}, cfg.InviteQueueSize, cfg.NumInviteWorkers)
	defer dispatcher.Stop()

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Invite chain bounds: max depth %d, max uses %d", cfg.InviteMaxDepth, cfg.InviteMaxUses)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	jwtSecret := []byte(cfg.JWTSecret)
	authHandler := handlers.NewAuthHandler(contributorRepo, inviteSvc, jwtSecret, cfg.JWTExpiryHours)
	personHandler := &handlers.PersonHandler{PersonRepo: personRepo, VisibilitySvc: visibilitySvc}
	noteHandler := &handlers.NoteHandler{NoteRepo: noteRepo, VisibilitySvc: visibilitySvc}
	referenceHandler := &handlers.ReferenceHandler{NoteRepo: noteRepo, ReferenceRepo: referenceRepo, VisibilitySvc: visibilitySvc}
	claimHandler := &handlers.ClaimHandler{
		ClaimTokenRepo: claimTokenRepo,
		NoteRepo:       noteRepo,
		ReferenceRepo:  referenceRepo,
		VisibilitySvc:  visibilitySvc,
		Hub:            hub,
	}
	graphHandler := &handlers.GraphHandler{DB: sqlDB}
	inviteHandler := &handlers.InviteHandler{
		InviteSvc:    inviteSvc,
		Dispatcher:   dispatcher,
		Hub:          hub,
		ClaimBaseURL: cfg.AllowedOrigin,
	}
	chatHandler := &handlers.ChatHandler{NoteRepo: noteRepo, VisibilitySvc: visibilitySvc, ChatSvc: chatSvc}

	authed := func(h http.HandlerFunc) http.Handler {
		return handlers.AuthMiddleware(jwtSecret, contributorRepo, h)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
		r.Method("GET", "/auth/me", authed(authHandler.CurrentUser))

		r.Route("/people", func(r chi.Router) {
			r.Method("POST", "/", authed(personHandler.CreatePerson))
			r.Method("GET", "/", authed(personHandler.ListPeople))
			r.Route("/{person_id}", func(r chi.Router) {
				r.Method("GET", "/", authed(personHandler.GetPerson))
				r.Method("PUT", "/", authed(personHandler.UpdatePerson))
				r.Method("DELETE", "/", authed(personHandler.DeletePerson))
				r.Method("PUT", "/visibility", authed(personHandler.SetVisibility))
				r.Route("/aliases", func(r chi.Router) {
					r.Method("POST", "/", authed(personHandler.AddAlias))
					r.Method("DELETE", "/{alias_id}", authed(personHandler.DeleteAlias))
				})
			})
		})

		r.Route("/notes", func(r chi.Router) {
			r.Method("POST", "/", authed(noteHandler.CreateNote))
			r.Method("GET", "/", authed(noteHandler.ListNotes))
			r.Route("/{note_id}", func(r chi.Router) {
				r.Method("GET", "/", authed(noteHandler.GetNote))
				r.Method("DELETE", "/", authed(noteHandler.DeleteNote))
				r.Method("POST", "/references", authed(referenceHandler.AddReference))
				r.Method("GET", "/references", authed(referenceHandler.ListReferences))
				r.Method("POST", "/claims", authed(claimHandler.CreateClaimToken))
				r.Method("POST", "/chat", authed(chatHandler.AskNote))
			})
		})
		r.Method("DELETE", "/references/{reference_id}", authed(referenceHandler.DeleteReference))

		// Claim links are opened from SMS or email by people without accounts.
		r.Route("/claims/{token}", func(r chi.Router) {
			r.Get("/", claimHandler.VerifyClaim)
			r.Post("/respond", claimHandler.RespondClaim)
		})

		r.Method("GET", "/graph", authed(graphHandler.GetGraph))

		r.Route("/invites", func(r chi.Router) {
			r.Method("POST", "/", authed(inviteHandler.CreateInvite))
			r.Method("GET", "/{invite_id}/chain", authed(inviteHandler.ListChain))
			r.Get("/open/{code}", inviteHandler.OpenInvite)
		})
	})

	r.Get("/ws", hub.ServeWS)

	log.Printf("Server listening on %s", cfg.ListenAddr)
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
