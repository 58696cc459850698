package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Login exchanges credentials for a bearer token at baseURL (http or https).
func Login(ctx context.Context, baseURL, username, password string) (string, error) {
	return postCredentials(ctx, strings.TrimSuffix(baseURL, "/")+"/api/login", username, password)
}

// Register creates an account and returns its bearer token.
func Register(ctx context.Context, baseURL, username, password string) (string, error) {
	return postCredentials(ctx, strings.TrimSuffix(baseURL, "/")+"/api/register", username, password)
}

func postCredentials(ctx context.Context, endpoint, username, password string) (string, error) {
	body, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("client: decode %s response: %w", endpoint, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("client: %s: %s", resp.Status, out.Error)
	}
	return out.Token, nil
}
