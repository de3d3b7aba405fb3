package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DeliveryStatus represents the delivery status of an email
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
	StatusPending   DeliveryStatus = "PENDING"
)

// SendMailRequest represents the request to deliver an email
type SendMailRequest struct {
	NotificationID string `json:"notification_id" binding:"required"`
	To             string `json:"to" binding:"required"`
	Subject        string `json:"subject" binding:"required"`
	Body           string `json:"body"`
	Kind           string `json:"kind"`
}

// SendMailResponse represents the relay's answer to a send request
type SendMailResponse struct {
	NotificationID string         `json:"notification_id"`
	Status         DeliveryStatus `json:"status"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMsg       string         `json:"error_message,omitempty"`
	RelayID        string         `json:"relay_id"`
	ProcessedAt    time.Time      `json:"processed_at"`
}

// StatusCheckResponse represents delivery status response
type StatusCheckResponse struct {
	NotificationID string         `json:"notification_id"`
	Status         DeliveryStatus `json:"status"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMsg       string         `json:"error_message,omitempty"`
	RelayID        string         `json:"relay_id"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status       string    `json:"status"`
	RelayID      string    `json:"relay_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

// MockRelay simulates an outbound mail relay
type MockRelay struct {
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	relayID      string
	rng          *rand.Rand
}

// NewMockRelay creates a new mock relay instance
func NewMockRelay(deliveryRate float64, minDelay, maxDelay time.Duration) *MockRelay {
	return &MockRelay{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		relayID:      "MOCK_RELAY_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// simulateDelivery simulates the SMTP handoff
func (m *MockRelay) simulateDelivery(req *SendMailRequest) *SendMailResponse {
	delay := m.randomDelay()

	// Simulate network delay
	time.Sleep(delay)

	response := &SendMailResponse{
		NotificationID: req.NotificationID,
		RelayID:        m.relayID,
		ProcessedAt:    time.Now(),
	}

	if m.shouldSucceed() {
		now := time.Now()
		response.Status = StatusDelivered
		response.DeliveredAt = &now

		log.Info().
			Str("notification_id", req.NotificationID).
			Str("to", req.To).
			Dur("delay", delay).
			Msg("Email delivered successfully")
	} else {
		response.Status = StatusFailed
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("notification_id", req.NotificationID).
			Str("to", req.To).
			Str("error_code", response.ErrorCode).
			Msg("Email delivery failed")
	}

	return response
}

func (m *MockRelay) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockRelay) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockRelay) randomErrorCode() string {
	errorCodes := []string{
		"INVALID_ADDRESS",
		"MAILBOX_FULL",
		"TIMEOUT",
		"BLOCKED",
		"CONTENT_REJECTED",
		"RELAY_REJECTED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockRelay) errorMessage(code string) string {
	messages := map[string]string{
		"INVALID_ADDRESS":  "The recipient address does not exist",
		"MAILBOX_FULL":     "The recipient mailbox is over quota",
		"TIMEOUT":          "Delivery to the recipient server timed out",
		"BLOCKED":          "The recipient server blocked the message",
		"CONTENT_REJECTED": "Message content rejected by spam filter",
		"RELAY_REJECTED":   "Relay rejected the message",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

// Handler struct holds the mock relay and routes
type Handler struct {
	relay *MockRelay
}

func NewHandler(relay *MockRelay) *Handler {
	return &Handler{relay: relay}
}

// SendMail handles single email send requests
func (h *Handler) SendMail(c *gin.Context) {
	var req SendMailRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if !strings.Contains(req.To, "@") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "recipient address is invalid",
		})
		return
	}

	log.Info().
		Str("notification_id", req.NotificationID).
		Str("to", req.To).
		Str("kind", req.Kind).
		Msg("Received email send request")

	response := h.relay.simulateDelivery(&req)

	statusCode := http.StatusOK
	if response.Status == StatusFailed {
		statusCode = http.StatusAccepted // 202: accepted but failed delivery
	}

	c.JSON(statusCode, response)
}

// GetStatus handles delivery status check requests
func (h *Handler) GetStatus(c *gin.Context) {
	notificationID := c.Param("notification_id")

	if notificationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "notification_id is required",
		})
		return
	}

	// Simulate API delay
	time.Sleep(100 * time.Millisecond)

	// For demo, return random status
	response := StatusCheckResponse{
		NotificationID: notificationID,
		RelayID:        h.relay.relayID,
	}

	if h.relay.shouldSucceed() {
		now := time.Now()
		response.Status = StatusDelivered
		response.DeliveredAt = &now
	} else {
		response.Status = StatusFailed
		response.ErrorCode = "TIMEOUT"
		response.ErrorMsg = "Delivery to the recipient server timed out"
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.relay.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Relay temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		RelayID:      h.relay.relayID,
		Timestamp:    time.Now(),
		DeliveryRate: h.relay.deliveryRate,
	})
}

// UpdateConfig allows changing relay configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.relay.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.relay.deliveryRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/mail/send", handler.SendMail)
		v1.GET("/mail/status/:notification_id", handler.GetStatus)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Mail Relay")

	// Create mock relay
	relay := NewMockRelay(deliveryRate, minDelay, maxDelay)
	handler := NewHandler(relay)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
