package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Session struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	JoinCode          string          `json:"joinCode"`
	Status            string          `json:"status"`
	TeamOrder         []string        `json:"teamOrder"`
	CurrentItemIndex  int             `json:"currentItemIndex"`
	BiddingStatus     string          `json:"biddingStatus"`
	CurrentHighestBid decimal.Decimal `json:"currentHighestBid"`
}

type TeamValuation struct {
	TeamID       string          `json:"teamId"`
	FairValue    decimal.Decimal `json:"fairValue"`
	SuggestedBid decimal.Decimal `json:"suggestedBid"`
}

type Valuations struct {
	Pot   decimal.Decimal `json:"pot"`
	Teams []TeamValuation `json:"teams"`
}

type Balance struct {
	DisplayName string          `json:"displayName"`
	TotalSpent  decimal.Decimal `json:"totalSpent"`
	TotalEarned decimal.Decimal `json:"totalEarned"`
	NetBalance  decimal.Decimal `json:"netBalance"`
}

type Payment struct {
	FromName string          `json:"fromName"`
	ToName   string          `json:"toName"`
	Amount   decimal.Decimal `json:"amount"`
}

type Settlement struct {
	Pot      decimal.Decimal `json:"pot"`
	Balances []Balance       `json:"balances"`
	Payments []Payment       `json:"payments"`
}

// statusError is a response with an unexpected status code.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// RegisterUser creates a new user account
func (c *APIClient) RegisterUser(baseName string) (*User, string, error) {
	displayName := fmt.Sprintf("%s_%d", baseName, time.Now().UnixNano()%100000)

	body := map[string]string{
		"displayName": displayName,
		"password":    "testpassword123",
	}

	var result AuthResponse
	if err := c.do(http.MethodPost, "/auth/register", body, "", http.StatusOK, &result); err != nil {
		return nil, "", fmt.Errorf("register failed: %w", err)
	}
	return &result.User, result.AccessToken, nil
}

// CreateSession opens a new auction lobby for a tournament
func (c *APIClient) CreateSession(token, tournamentID string, pot decimal.Decimal, timerSeconds int) (*Session, error) {
	body := map[string]interface{}{
		"name":             fmt.Sprintf("Simulated Calcutta %s", time.Now().Format("Jan 2 15:04")),
		"tournamentId":     tournamentID,
		"estimatedPotSize": pot,
		"settings": map[string]interface{}{
			"timerEnabled":         timerSeconds > 0,
			"timerDurationSeconds": timerSeconds,
			"timerResetSeconds":    timerSeconds / 3,
			"bidIncrements":        []float64{5, 10, 25, 50, 100},
			"devigCap":             true,
		},
	}

	var session Session
	if err := c.do(http.MethodPost, "/sessions", body, token, http.StatusCreated, &session); err != nil {
		return nil, fmt.Errorf("create session failed: %w", err)
	}
	return &session, nil
}

// JoinSession joins a user to a session by id or join code
func (c *APIClient) JoinSession(token, idOrCode string) error {
	if err := c.do(http.MethodPost, "/sessions/"+idOrCode+"/join", nil, token, http.StatusOK, nil); err != nil {
		return fmt.Errorf("join session failed: %w", err)
	}
	return nil
}

// Transition runs one commissioner action: start, open, close, sell, skip...
func (c *APIClient) Transition(token, sessionID, action string) (*Session, error) {
	var session Session
	if err := c.do(http.MethodPost, "/sessions/"+sessionID+"/"+action, nil, token, http.StatusOK, &session); err != nil {
		return nil, fmt.Errorf("%s failed: %w", action, err)
	}
	return &session, nil
}

// PlaceBid reports false when the bid lost to a higher one.
func (c *APIClient) PlaceBid(token, sessionID string, amount decimal.Decimal) (bool, error) {
	err := c.do(http.MethodPost, "/sessions/"+sessionID+"/bids", map[string]interface{}{"amount": amount}, token, http.StatusCreated, nil)
	if err == nil {
		return true, nil
	}
	if se, ok := err.(*statusError); ok && se.Status == http.StatusConflict {
		return false, nil
	}
	return false, fmt.Errorf("place bid failed: %w", err)
}

// GetValuations fetches the bidding guide for a session
func (c *APIClient) GetValuations(token, sessionID string) (*Valuations, error) {
	var v Valuations
	if err := c.do(http.MethodGet, "/sessions/"+sessionID+"/valuations", nil, token, http.StatusOK, &v); err != nil {
		return nil, fmt.Errorf("get valuations failed: %w", err)
	}
	return &v, nil
}

// GetSettlement fetches balances and payments for a session
func (c *APIClient) GetSettlement(token, sessionID string) (*Settlement, error) {
	var s Settlement
	if err := c.do(http.MethodGet, "/sessions/"+sessionID+"/settlement", nil, token, http.StatusOK, &s); err != nil {
		return nil, fmt.Errorf("get settlement failed: %w", err)
	}
	return &s, nil
}

// HTTP helpers

func (c *APIClient) do(method, path string, body interface{}, token string, want int, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &statusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(bodyBytes))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
