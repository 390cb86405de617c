package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	artifactsvc "github.com/olegbarsky/digistore/internal/services/artifacts"
	authsvc "github.com/olegbarsky/digistore/internal/services/auth"
	checkoutsvc "github.com/olegbarsky/digistore/internal/services/checkout"
	purchasesvc "github.com/olegbarsky/digistore/internal/services/purchases"
	ratesvc "github.com/olegbarsky/digistore/internal/services/rate"
	"github.com/olegbarsky/digistore/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService     *authsvc.Service
	CheckoutService *checkoutsvc.Service
	PurchaseService *purchasesvc.Service
	ArtifactService *artifactsvc.Service
	VerifyLimiter   *ratesvc.Limiter
	Logger          *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	paymentHandler := handlers.NewPaymentHandler(deps.CheckoutService, deps.PurchaseService, deps.VerifyLimiter)
	purchaseHandler := handlers.NewPurchaseHandler(deps.PurchaseService, deps.ArtifactService)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	adminMW := RequireRole(authsvc.RoleAdmin)

	r.Get("/healthz", healthHandler.Healthz)

	r.With(authMW).Get("/checkout/{projectId}", paymentHandler.Checkout)
	r.With(authMW).Post("/verify", paymentHandler.Verify)

	r.Route("/purchases", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/", purchaseHandler.Create)
		r.Get("/user", purchaseHandler.ListMine)
		r.Get("/{id}", purchaseHandler.Get)
		r.Put("/{id}/complete", purchaseHandler.Complete)
		r.With(adminMW).Get("/", purchaseHandler.ListAll)
	})
}
