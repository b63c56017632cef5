package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/resolvedesk/resolvedesk/internal/config"
)

// FunctionsClient calls the serverless edge functions that handle the
// pieces the API server does not own directly: transactional email and the
// Gemini support chat. All calls are timeout-bounded so a slow function
// never stalls a request handler.
type FunctionsClient struct {
	BaseURL  string
	APIToken string
	Client   *http.Client
}

func NewFunctionsClient() *FunctionsClient {
	return &FunctionsClient{
		BaseURL:  config.App.Functions.BaseURL,
		APIToken: config.App.Functions.APIToken,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *FunctionsClient) post(path string, body interface{}) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("functions base URL is not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// SendVerificationEmail triggers the send-verification-email function for a
// freshly registered user.
func (c *FunctionsClient) SendVerificationEmail(email, fullName, userID string) error {
	_, err := c.post("/send-verification-email", map[string]string{
		"email":     email,
		"full_name": fullName,
		"user_id":   userID,
	})
	return err
}

// ChatMessage is one turn of the support chat history forwarded to the
// gemini-chat function.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GeminiChat proxies a support chat message, with history, to the
// gemini-chat function and returns the assistant reply.
func (c *FunctionsClient) GeminiChat(message string, history []ChatMessage, userID string) (string, error) {
	respBody, err := c.post("/gemini-chat", map[string]interface{}{
		"message":      message,
		"chat_history": history,
		"user_id":      userID,
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode gemini-chat response: %w", err)
	}
	return result.Reply, nil
}
