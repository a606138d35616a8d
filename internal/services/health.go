package services

import (
	"fmt"
	"log"

	"github.com/assetops/assetcore/internal/config"
	"github.com/assetops/assetcore/internal/utils"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Notifier     string            `json:"notifier"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthCheck performs a comprehensive health check of the service
func HealthCheck(cfg *config.Config, db *gorm.DB) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.Printf("Health check failed - database connection: %v", err)
	} else {
		if err := sqlDB.Ping(); err != nil {
			result.Status = "unhealthy"
			result.Database = "unreachable"
			result.Details["database_ping_error"] = err.Error()
			result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
			log.Printf("Health check failed - database ping: %v", err)
		} else {
			result.Database = "ok"
			result.Details["database_type"] = cfg.DBType
			result.Details["database_name"] = cfg.DBDatabase
		}
	}

	// Check notification webhook reachability, if one is configured
	if cfg.NotifyWebhookURL == "" {
		result.Notifier = "disabled"
	} else if err := utils.PingNotifier(cfg.NotifyWebhookURL); err != nil {
		result.Status = "unhealthy"
		result.Notifier = "unreachable"
		result.Details["notifier_error"] = err.Error()
		if result.ErrorMessage == "" {
			result.ErrorMessage = fmt.Sprintf("Notifier ping failed: %v", err)
		} else {
			result.ErrorMessage += fmt.Sprintf("; Notifier ping failed: %v", err)
		}
		log.Printf("Health check failed - notifier ping: %v", err)
	} else {
		result.Notifier = "ok"
		result.Details["notifier_url"] = cfg.NotifyWebhookURL
	}

	if result.Status == "healthy" {
		log.Println("Health check passed - all systems operational")
	}

	return result
}
