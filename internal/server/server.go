package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/veritasweb/payments/internal/checkout"
	"github.com/veritasweb/payments/internal/config"
	"github.com/veritasweb/payments/internal/observability/logger"
	"github.com/veritasweb/payments/internal/observability/metrics"
	"github.com/veritasweb/payments/internal/webhook/service"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Server owns the gin engine and the route handlers.
type Server struct {
	engine   *gin.Engine
	log      *zap.Logger
	webhooks *service.Service
	stripe   *checkout.StripeClient
	paypal   *checkout.PayPalClient
}

// NewEngine builds the engine with the shared middleware chain.
func NewEngine(cfg config.Config, m *metrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		logger.GinMiddleware(),
		metrics.GinMiddleware(m),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.AppName, "version": cfg.AppVersion})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	return engine
}

func NewServer(engine *gin.Engine, log *zap.Logger, webhooks *service.Service, stripe *checkout.StripeClient, paypal *checkout.PayPalClient) *Server {
	s := &Server{
		engine:   engine,
		log:      log.Named("server"),
		webhooks: webhooks,
		stripe:   stripe,
		paypal:   paypal,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.POST("/stripe/webhook", s.handleWebhook("stripe"))
	s.engine.POST("/paypal/webhook", s.handleWebhook("paypal"))

	s.engine.GET("/stripe/checkout/:plan", s.handleStripeCheckout)
	s.engine.POST("/stripe/portal", s.handleStripePortal)
	s.engine.GET("/stripe/verify", s.handleStripeVerify)

	s.engine.GET("/paypal/checkout", s.handlePayPalCheckout)
	// The approval flow redirects the buyer back with the order token in
	// the query string; server-to-server callers POST instead.
	s.engine.GET("/paypal/capture", s.handlePayPalCapture)
	s.engine.POST("/paypal/capture", s.handlePayPalCapture)
}

// handleWebhook adapts one provider's inbound endpoint onto the shared
// ingest pipeline.
func (s *Server) handleWebhook(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		result, err := s.webhooks.Ingest(c.Request.Context(), provider, payload, c.Request.Header, clientKey(c))
		if err != nil {
			status := statusForIngestError(err)
			if status >= 500 {
				s.log.Error("webhook rejected", zap.String("provider", provider), zap.Error(err))
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"received": true,
			"status":   string(result.Status),
			"message":  result.Message,
		})
	}
}

func (s *Server) handleStripeCheckout(c *gin.Context) {
	session, err := s.stripe.CreateCheckoutSession(c.Request.Context(), c.Param("plan"))
	if err != nil {
		c.JSON(statusForCheckoutError(err), gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusSeeOther, session.URL)
}

func (s *Server) handleStripePortal(c *gin.Context) {
	var body struct {
		CustomerID string `json:"customer_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session, err := s.stripe.CreatePortalSession(c.Request.Context(), body.CustomerID)
	if err != nil {
		c.JSON(statusForCheckoutError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

func (s *Server) handleStripeVerify(c *gin.Context) {
	verified, err := s.stripe.VerifySession(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		c.JSON(statusForCheckoutError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":        verified.Plan,
		"email":       verified.Email,
		"license_key": verified.LicenseKey,
	})
}

func (s *Server) handlePayPalCheckout(c *gin.Context) {
	order, err := s.paypal.CreateOrder(c.Request.Context(), c.DefaultQuery("plan", "basic"))
	if err != nil {
		c.JSON(statusForCheckoutError(err), gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusSeeOther, order.ApproveURL)
}

func (s *Server) handlePayPalCapture(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		// The approval redirect carries the order id as "token".
		orderID = c.Query("token")
	}
	if orderID == "" && c.Request.Method == http.MethodPost {
		var body struct {
			OrderID string `json:"order_id"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			orderID = body.OrderID
		}
	}
	capture, err := s.paypal.CaptureOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(statusForCheckoutError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": capture.OrderID, "status": capture.Status})
}

// clientKey picks the admission-limiter key: the first forwarded hop when
// the service sits behind a proxy, the peer address otherwise.
func clientKey(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return c.ClientIP()
}
