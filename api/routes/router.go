package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/growersmarket/farmdirect-backend/api/controllers"
	"github.com/growersmarket/farmdirect-backend/api/middleware"
	"github.com/growersmarket/farmdirect-backend/internal/auth"
	"github.com/growersmarket/farmdirect-backend/internal/cart"
	checkoutsvc "github.com/growersmarket/farmdirect-backend/internal/checkout"
	"github.com/growersmarket/farmdirect-backend/internal/delivery"
	"github.com/growersmarket/farmdirect-backend/internal/orders"
	"github.com/growersmarket/farmdirect-backend/internal/products"
	"github.com/growersmarket/farmdirect-backend/internal/shippingfee"
	"github.com/growersmarket/farmdirect-backend/pkg/auth/session"
	"github.com/growersmarket/farmdirect-backend/pkg/config"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
	"github.com/growersmarket/farmdirect-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Revoke(context.Context, string) error
}

// NewRouter assembles the full HTTP surface.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.ReadyDep,
	redisClient *redis.Client,
	sessions sessionManager,
	authService auth.Service,
	productService products.Service,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	orderService orders.Service,
	feeService shippingfee.Service,
	deliveryService delivery.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessions, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/mine", controllers.ProductListMine(productService, logg))
			r.Get("/{productId}", controllers.ProductDetail(productService, logg))
			r.Post("/", controllers.ProductCreate(productService, logg))
			r.Patch("/{productId}", controllers.ProductUpdate(productService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartList(cartService, logg))
			r.Post("/lines", controllers.CartAddLine(cartService, logg))
			r.Patch("/lines/{lineId}", controllers.CartUpdateLine(cartService, logg))
			r.Delete("/lines/{lineId}", controllers.CartRemoveLine(cartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutCart(checkoutService, logg))
			r.Post("/direct", controllers.CheckoutDirect(checkoutService, logg))
			r.Get("/groups", controllers.OrderGroupList(checkoutService, logg))
			r.Get("/groups/{groupId}", controllers.OrderGroupDetail(checkoutService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderListMine(orderService, logg))
			r.Get("/farmer", controllers.OrderListForFarmer(orderService, logg))
			r.Post("/batch-ship", controllers.OrderBatchShip(orderService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(orderService, logg))
			r.Post("/{orderId}/pay", controllers.OrderMarkPaid(orderService, logg))
			r.Post("/{orderId}/ship", controllers.OrderShip(orderService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(orderService, logg))
			r.Post("/{orderId}/complete", controllers.OrderComplete(orderService, logg))
			r.Post("/{orderId}/refund", controllers.OrderRequestRefund(orderService, logg))
			r.Post("/{orderId}/refund/decision", controllers.OrderProcessRefund(orderService, logg))
			r.Delete("/{orderId}", controllers.OrderDelete(orderService, logg))
		})

		r.Route("/delivery-areas", func(r chi.Router) {
			r.Get("/", controllers.DeliveryAreaList(deliveryService, logg))
			r.Get("/{areaId}", controllers.DeliveryAreaDetail(deliveryService, logg))
		})

		r.Post("/shipping-fees/quote", controllers.FeeQuote(feeService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/shipping-fee-rules", func(r chi.Router) {
			r.Get("/", controllers.FeeRuleList(feeService, logg))
			r.Post("/", controllers.FeeRuleCreate(feeService, logg))
			r.Put("/{ruleId}", controllers.FeeRuleUpdate(feeService, logg))
			r.Post("/{ruleId}/enabled", controllers.FeeRuleSetEnabled(feeService, logg))
			r.Delete("/{ruleId}", controllers.FeeRuleDelete(feeService, logg))
		})

		r.Route("/delivery-areas", func(r chi.Router) {
			r.Post("/", controllers.DeliveryAreaCreate(deliveryService, logg))
			r.Put("/{areaId}", controllers.DeliveryAreaUpdate(deliveryService, logg))
		})
	})

	return r
}
