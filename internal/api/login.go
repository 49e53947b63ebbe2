package api

import "context"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenState is the auth collaborator's login response.
type TokenState struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Firstname       string `json:"firstname"`
	Lastname        string `json:"lastname"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenState, error) {
	var state TokenState
	err := c.post(ctx, "/auth/login", LoginRequest{Username: username, Password: password}, &state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	return c.post(ctx, "/auth/signup", req, nil)
}
