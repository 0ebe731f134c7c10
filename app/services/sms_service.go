// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kitkade/kitkade-backend/config"
	"github.com/kitkade/kitkade-backend/utils"
)

// SMSService handles SMS sending operations
type SMSService interface {
	SendOTP(ctx context.Context, recipient, message string) error
	SendSMS(ctx context.Context, recipient, message string) error
}

// SMSServiceImpl implements SMSService against the Text.lk HTTP gateway
type SMSServiceImpl struct {
	config *config.SMSConfig
	client *http.Client
}

// SMSRequest represents the request payload for the SMS gateway API
type SMSRequest struct {
	Recipient string `json:"recipient"` // Format: 94XXXXXXXXX
	SenderID  string `json:"sender_id"`
	Type      string `json:"type"` // Always "plain"
	Message   string `json:"message"`
}

// SMSResponse represents the gateway response envelope
type SMSResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewSMSService creates a new SMS service instance
func NewSMSService(cfg *config.SMSConfig) SMSService {
	return &SMSServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendOTP sends an OTP message via SMS
func (s *SMSServiceImpl) SendOTP(ctx context.Context, recipient, message string) error {
	return s.SendSMS(ctx, recipient, message)
}

// SendSMS sends an SMS message
func (s *SMSServiceImpl) SendSMS(ctx context.Context, recipient, message string) error {
	payload := SMSRequest{
		Recipient: recipient,
		SenderID:  s.config.SenderID,
		Type:      "plain",
		Message:   message,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v3/sms/send", s.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	var result SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode SMS response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.Status != "success" {
		return fmt.Errorf("SMS delivery failed for %s: %s (%d)", recipient, result.Message, resp.StatusCode)
	}
	return nil
}

// MockSMSService implements SMSService for testing
type MockSMSService struct {
	SentMessages []MockSMSMessage
	FailNext     bool // force the next send to fail, for dispatch-failure paths
}

// MockSMSMessage represents a mock SMS message
type MockSMSMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService() *MockSMSService {
	return &MockSMSService{
		SentMessages: make([]MockSMSMessage, 0),
	}
}

// SendOTP sends a mock OTP message
func (m *MockSMSService) SendOTP(ctx context.Context, recipient, message string) error {
	return m.SendSMS(ctx, recipient, message)
}

// SendSMS sends a mock SMS message
func (m *MockSMSService) SendSMS(ctx context.Context, recipient, message string) error {
	if m.FailNext {
		m.FailNext = false
		return fmt.Errorf("mock SMS gateway unavailable")
	}
	m.SentMessages = append(m.SentMessages, MockSMSMessage{
		Recipient: recipient,
		Message:   message,
		SentAt:    utils.UTCNow(),
	})
	return nil
}

// GetSentMessages returns all sent mock messages
func (m *MockSMSService) GetSentMessages() []MockSMSMessage {
	return m.SentMessages
}

// ClearSentMessages clears the sent messages list
func (m *MockSMSService) ClearSentMessages() {
	m.SentMessages = make([]MockSMSMessage, 0)
}
