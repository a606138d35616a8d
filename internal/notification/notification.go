// Package notification pushes a (success, message) signal to external
// collaborators after externally-triggered actions. Delivery mechanics
// stay out of the core: a failed push is logged, never propagated.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Notifier delivers one outcome signal.
type Notifier interface {
	Name() string
	Send(success bool, message string) error
}

// Manager fans an outcome out to every registered notifier.
type Manager struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewManager creates an empty notification manager
func NewManager() *Manager {
	return &Manager{}
}

// AddNotifier registers a notifier
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Notify pushes (success, message) to all notifiers. Failures are logged
// and swallowed; the triggering request already has its own result.
func (m *Manager) Notify(success bool, message string) {
	m.mu.RLock()
	notifiers := make([]Notifier, len(m.notifiers))
	copy(notifiers, m.notifiers)
	m.mu.RUnlock()

	for _, n := range notifiers {
		if err := n.Send(success, message); err != nil {
			log.Printf("[Notification] %s delivery failed: %v", n.Name(), err)
		}
	}
}

// WebhookNotifier posts outcomes as JSON to a configured endpoint.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Name identifies the notifier in logs
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Send posts the outcome payload
func (w *WebhookNotifier) Send(success bool, message string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"success":   success,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	resp, err := w.Client.Post(w.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes outcomes to the process log. Used when no webhook is
// configured so every action still leaves a visible trace.
type LogNotifier struct{}

// Name identifies the notifier in logs
func (LogNotifier) Name() string {
	return "log"
}

// Send logs the outcome
func (LogNotifier) Send(success bool, message string) error {
	log.Printf("[Notification] success=%t message=%s", success, message)
	return nil
}
