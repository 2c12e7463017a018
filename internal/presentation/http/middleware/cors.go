package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sangkips/repairpos-api/internal/config"
)

// Headers the register front end always needs, whatever CORS_ALLOWED_HEADERS says
var requiredRequestHeaders = []string{"Authorization", "Content-Type", IdempotencyKeyHeader, "X-Request-ID"}

// Headers the front end reads to detect replays and throttling
var exposedHeaders = []string{
	"Content-Length",
	"X-Request-ID",
	"X-Idempotency-Replayed",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"Retry-After",
}

// CORSMiddleware creates a CORS middleware for the register front end
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     withRequired(cfg.AllowedHeaders),
		ExposeHeaders:    exposedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// Local register UI during development
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if len(corsConfig.AllowMethods) == 0 {
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}

	return cors.New(corsConfig)
}

func withRequired(configured []string) []string {
	headers := append([]string{"Accept", "Origin"}, configured...)
	for _, h := range requiredRequestHeaders {
		if !slices.Contains(headers, h) {
			headers = append(headers, h)
		}
	}
	return headers
}
