package integration_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/assetops/assetcore/internal/config"
	"github.com/assetops/assetcore/internal/database"
	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/services"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func dbImage() string {
	if image := os.Getenv("DB_IMAGE"); image != "" {
		return image
	}
	return "mariadb:11"
}

// TestWithMariaDB tests the service against a real MariaDB container
func TestWithMariaDB(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	mariadbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage(),
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "rootpass",
				"MYSQL_DATABASE":      "testdb",
				"MYSQL_USER":          "testuser",
				"MYSQL_PASSWORD":      "testpass",
			},
			WaitingFor: wait.ForLog("ready for connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MariaDB container: %v", err)
	}
	defer func() {
		if err := mariadbContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate MariaDB container: %v", err)
		}
	}()

	host, err := mariadbContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := mariadbContainer.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DBType:             "mysql",
		DBHost:             host,
		DBPort:             port.Port(),
		DBDatabase:         "testdb",
		DBUser:             "testuser",
		DBPassword:         "testpass",
		DBConnectionLimit:  10,
		AllocateRetryLimit: 3,
	}

	// Wait for database to be ready
	time.Sleep(5 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Run("AllocateSequence", func(t *testing.T) {
		testAllocateSequence(t, db)
	})

	t.Run("ConcurrentAllocation", func(t *testing.T) {
		testConcurrentAllocation(t, db)
	})

	t.Run("FlowDecisions", func(t *testing.T) {
		testFlowDecisions(t, db)
	})

	t.Run("HealthCheck", func(t *testing.T) {
		result := services.HealthCheck(cfg, db)
		if result.Database != "ok" {
			t.Errorf("Expected database ok, got: %s", result.Database)
		}
		if result.Notifier != "disabled" {
			t.Errorf("Expected notifier disabled, got: %s", result.Notifier)
		}
		if result.Status != "healthy" {
			t.Errorf("Expected status healthy, got: %s", result.Status)
		}
	})
}

// testAllocateSequence tests numbering against a real driver
func testAllocateSequence(t *testing.T, db *gorm.DB) {
	rule, err := services.CreateRule(db, "int device rule", "PC-{year}{month}{day}-{auto-increment}", 5)
	if err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}

	asOf := time.Date(2023, 9, 21, 10, 0, 0, 0, time.UTC)
	first, err := services.AllocateAssetNumber(db, rule.RuleID, asOf, 3)
	if err != nil {
		t.Fatalf("First allocation failed: %v", err)
	}
	if first.GeneratedNumber != "PC-20230921-00001" {
		t.Errorf("Expected PC-20230921-00001, got %s", first.GeneratedNumber)
	}

	second, err := services.AllocateAssetNumber(db, rule.RuleID, asOf, 3)
	if err != nil {
		t.Fatalf("Second allocation failed: %v", err)
	}
	if second.GeneratedNumber != "PC-20230921-00002" {
		t.Errorf("Expected PC-20230921-00002, got %s", second.GeneratedNumber)
	}
}

// testConcurrentAllocation tests that parallel allocations over real
// connections never produce the same number
func testConcurrentAllocation(t *testing.T, db *gorm.DB) {
	rule, err := services.CreateRule(db, "int concurrent rule", "SRV-{year}-{auto-increment}", 6)
	if err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}

	const workers = 12
	asOf := time.Date(2023, 9, 21, 10, 0, 0, 0, time.UTC)
	numbers := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			track, err := services.AllocateAssetNumber(db, rule.RuleID, asOf, 5)
			if err != nil {
				errs[i] = err
				return
			}
			numbers[i] = track.GeneratedNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("Worker %d failed: %v", i, errs[i])
		}
		if seen[numbers[i]] {
			t.Errorf("Duplicate number allocated: %s", numbers[i])
		}
		seen[numbers[i]] = true
	}
}

// testFlowDecisions tests the decision transaction against a real driver
func testFlowDecisions(t *testing.T, db *gorm.DB) {
	flow, err := services.CreateFlow(db, "int review flow", []services.FlowNodeInput{
		{Name: "lead"}, {Name: "manager"},
	})
	if err != nil {
		t.Fatalf("Failed to create flow: %v", err)
	}
	form, err := services.CreateHasForm(db, flow.FlowID, "retire SRV-0001", "", "Server", "9", "alice")
	if err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}

	if _, err := services.Decide(db, form.FormID, "bob", models.DecisionApprove, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	updated, err := services.Decide(db, form.FormID, "carol", models.DecisionApprove, "")
	if err != nil {
		t.Fatalf("Final approve failed: %v", err)
	}
	if updated.Status != models.FormStatusCompleted {
		t.Errorf("Expected completed, got %s", updated.Status)
	}

	logs, err := services.FormLogs(db, form.FormID)
	if err != nil {
		t.Fatalf("FormLogs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("Expected 2 log rows, got %d", len(logs))
	}
}
