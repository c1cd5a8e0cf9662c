package api

import (
	"net/http"

	"github.com/dom/calcutta-auction/internal/api/handlers"
	"github.com/dom/calcutta-auction/internal/api/middleware"
	"github.com/dom/calcutta-auction/internal/config"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/dom/calcutta-auction/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	if cfg.Environment != "test" {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth)
	sessionHandler := handlers.NewSessionHandler(services.Session, hub)
	auctionHandler := handlers.NewAuctionHandler(services.Auction)
	valuationHandler := handlers.NewValuationHandler(services.Valuation)
	settlementHandler := handlers.NewSettlementHandler(services.Settlement)
	teamHandler := handlers.NewTeamHandler(services.Team)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Tournament catalog (public)
		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", teamHandler.ListTournaments)
			r.Get("/{id}", teamHandler.GetTournament)
			r.Get("/{id}/teams", teamHandler.ListTeams)
			r.Get("/{id}/teams/{teamId}", teamHandler.GetTeam)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", sessionHandler.Create)
				r.Get("/", sessionHandler.List)

				// {id} accepts a session id or a join code on Get and Join.
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Delete("/", sessionHandler.Delete)
					r.Post("/join", sessionHandler.Join)
					r.Get("/state", sessionHandler.State)

					// Setup
					r.Put("/team-order", sessionHandler.UpdateTeamOrder)
					r.Put("/auto-mode", sessionHandler.ToggleAutoMode)
					r.Put("/settings", sessionHandler.UpdateSettings)
					r.Put("/payout-rules", sessionHandler.UpdatePayoutRules)
					r.Put("/pot", sessionHandler.UpdatePot)

					// Auction state machine
					r.Post("/start", auctionHandler.Start())
					r.Post("/present", auctionHandler.Present)
					r.Post("/open", auctionHandler.Open())
					r.Post("/close", auctionHandler.Close())
					r.Post("/sell", auctionHandler.Sell())
					r.Post("/skip", auctionHandler.Skip())
					r.Post("/undo", auctionHandler.Undo())
					r.Post("/pause", auctionHandler.Pause())
					r.Post("/complete", auctionHandler.Complete())
					r.Post("/auto-advance", auctionHandler.AutoAdvance())

					// Bids
					r.Post("/bids", auctionHandler.PlaceBid)
					r.Get("/bids", auctionHandler.ListBids)

					// Valuation
					r.Get("/valuations", valuationHandler.Valuations)
					r.Get("/profits", valuationHandler.Profits)

					// Results and settlement
					r.Put("/results", settlementHandler.RecordResult)
					r.Get("/results", settlementHandler.Results)
					r.Get("/settlement", settlementHandler.Settle)
				})
			})
		})

		// WebSocket endpoint
		r.Get("/ws", wsHandler.Handle)
	})

	return r
}
