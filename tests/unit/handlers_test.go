package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/assetops/assetcore/internal/database"
	"github.com/assetops/assetcore/internal/handlers"
	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/notification"
	"github.com/assetops/assetcore/internal/services"
	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func testNotify() *notification.Manager {
	return notification.NewManager()
}

// TestAllocateByRuleID tests the POST /api/assets/allocate endpoint
func TestAllocateByRuleID(t *testing.T) {
	db := setupTestDB(t)

	rule, err := services.CreateRule(db, "device numbering", "PC-{year}{month}{day}-{auto-increment}", 5)
	if err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}

	app := fiber.New()
	handler := &handlers.AssetNumberHandler{DB: db, Notify: testNotify(), RetryLimit: 3}
	app.Post("/api/assets/allocate", handler.Allocate)

	reqBody := map[string]interface{}{
		"rule_id": rule.RuleID,
		"as_of":   "2023-09-21T10:30:00Z",
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/api/assets/allocate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Errorf("Expected status 201, got %d", resp.StatusCode)
	}

	var track models.AssetNumberTrack
	if err := json.NewDecoder(resp.Body).Decode(&track); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if track.GeneratedNumber != "PC-20230921-00001" {
		t.Errorf("Expected PC-20230921-00001, got %s", track.GeneratedNumber)
	}
}

// TestAllocateByTargetClass tests allocation through a class binding and
// the manual fallback when no rule is bound
func TestAllocateByTargetClass(t *testing.T) {
	db := setupTestDB(t)

	app := fiber.New()
	handler := &handlers.AssetNumberHandler{DB: db, Notify: testNotify(), RetryLimit: 3}
	app.Post("/api/assets/allocate", handler.Allocate)

	// Unbound class: the caller is told to record the number manually
	body, _ := json.Marshal(map[string]interface{}{"target_class": "Device"})
	req := httptest.NewRequest("POST", "/api/assets/allocate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("Expected status 404 for unbound class, got %d", resp.StatusCode)
	}

	rule, err := services.CreateRule(db, "device numbering", "DEV-{year}-{auto-increment}", 4)
	if err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}
	if _, err := services.SetAutoRule(db, "Device", rule.RuleID, true); err != nil {
		t.Fatalf("Failed to bind rule: %v", err)
	}

	req = httptest.NewRequest("POST", "/api/assets/allocate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Errorf("Expected status 201 after binding, got %d", resp.StatusCode)
	}
}

// TestCreateRuleEndpoint tests formula validation through the HTTP surface
func TestCreateRuleEndpoint(t *testing.T) {
	db := setupTestDB(t)

	app := fiber.New()
	handler := &handlers.RuleHandler{DB: db, Notify: testNotify()}
	app.Post("/api/rules", handler.CreateRule)

	body, _ := json.Marshal(map[string]interface{}{
		"name":                  "bad",
		"formula":               "PC-{serial}",
		"auto_increment_length": 5,
	})
	req := httptest.NewRequest("POST", "/api/rules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 422 {
		t.Errorf("Expected status 422 for unknown token, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["ok"] != false {
		t.Error("Expected ok=false in response")
	}
}

// TestManualNumberConflict tests duplicate detection on the manual endpoint
func TestManualNumberConflict(t *testing.T) {
	db := setupTestDB(t)

	app := fiber.New()
	handler := &handlers.AssetNumberHandler{DB: db, Notify: testNotify(), RetryLimit: 3}
	app.Post("/api/assets/manual", handler.RecordManual)

	body, _ := json.Marshal(map[string]interface{}{"number": "LEGACY-0007"})

	req := httptest.NewRequest("POST", "/api/assets/manual", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Errorf("Expected status 201, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/assets/manual", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Errorf("Expected status 409 for duplicate, got %d", resp.StatusCode)
	}
}

// TestDecideEndpoint tests the decision route end to end
func TestDecideEndpoint(t *testing.T) {
	db := setupTestDB(t)

	flow, err := services.CreateFlow(db, "review", []services.FlowNodeInput{
		{Name: "lead"}, {Name: "manager"},
	})
	if err != nil {
		t.Fatalf("Failed to create flow: %v", err)
	}
	form, err := services.CreateHasForm(db, flow.FlowID, "retire PC-0001", "", "Device", "1", "alice")
	if err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}

	app := fiber.New()
	handler := &handlers.FormHandler{DB: db, Notify: testNotify()}
	app.Post("/api/forms/:id/decide", handler.Decide)

	body, _ := json.Marshal(map[string]interface{}{"actor": "bob", "decision": "approve"})
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/forms/%s/decide", form.FormID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var updated models.FlowHasForm
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if updated.CurrentNodePosition != 1 || updated.Status != models.FormStatusPending {
		t.Errorf("Expected pending at node 1, got %s at %d", updated.Status, updated.CurrentNodePosition)
	}

	body, _ = json.Marshal(map[string]interface{}{"actor": "carol", "decision": "reject"})
	req = httptest.NewRequest("POST", fmt.Sprintf("/api/forms/%s/decide", form.FormID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200 for reject, got %d", resp.StatusCode)
	}

	// Terminal form: any further decision conflicts
	body, _ = json.Marshal(map[string]interface{}{"actor": "dave", "decision": "approve"})
	req = httptest.NewRequest("POST", fmt.Sprintf("/api/forms/%s/decide", form.FormID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Errorf("Expected status 409 on terminal form, got %d", resp.StatusCode)
	}
}

// TestProgressEndpoint tests the chart projection route
func TestProgressEndpoint(t *testing.T) {
	db := setupTestDB(t)

	flow, err := services.CreateFlow(db, "review", []services.FlowNodeInput{
		{Name: "lead"}, {Name: "manager"}, {Name: "finance"},
	})
	if err != nil {
		t.Fatalf("Failed to create flow: %v", err)
	}
	form, err := services.CreateHasForm(db, flow.FlowID, "retire", "", "Device", "1", "alice")
	if err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}

	app := fiber.New()
	handler := &handlers.FormHandler{DB: db, Notify: testNotify()}
	app.Get("/api/forms/:id/progress", handler.Progress)

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/forms/%s/progress", form.FormID), nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var progress struct {
		ID   []uint64 `json:"id"`
		Name []string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(progress.ID) != 3 || len(progress.Name) != 3 {
		t.Fatalf("Expected 3 parallel entries, got id=%d name=%d", len(progress.ID), len(progress.Name))
	}
	want := []string{"lead", "manager", "finance"}
	for i, name := range want {
		if progress.Name[i] != name {
			t.Errorf("Node %d: expected %q, got %q", i, name, progress.Name[i])
		}
	}

	// Unknown form id
	req = httptest.NewRequest("GET", "/api/forms/does-not-exist/progress", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}
