package backend

import (
	"context"
	"net/http"
	"time"
)

// Session holds the credentials for a signed-in user. The contents are
// opaque to everything above this package; callers only observe whether
// operations using it fail with an auth-expiry signature.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// tokenResponse is the auth API's token grant response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (r *tokenResponse) session() *Session {
	return &Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		UserID:       r.User.ID,
		ExpiresAt:    time.Now().Add(time.Duration(r.ExpiresIn) * time.Second),
	}
}

// SignIn exchanges credentials for a session and installs it on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, authPath+"/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	s := resp.session()
	c.setSession(s)
	return s, nil
}

// SignUp registers a new user and installs the resulting session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, authPath+"/signup", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	s := resp.session()
	c.setSession(s)
	return s, nil
}

// RefreshSession exchanges the refresh token for fresh credentials.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	cur := c.Session()
	if cur == nil {
		return nil, ErrNoSession
	}

	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, authPath+"/token?grant_type=refresh_token", map[string]string{
		"refresh_token": cur.RefreshToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	s := resp.session()
	if s.UserID == "" {
		s.UserID = cur.UserID
	}
	c.setSession(s)
	return s, nil
}

// SignOut revokes the session remotely and always drops it locally.
// The local clear happens even when the revoke call fails: local state
// is authoritative for "is the user signed in".
func (c *Client) SignOut(ctx context.Context) error {
	cur := c.Session()
	if cur == nil {
		return nil
	}

	err := c.do(ctx, http.MethodPost, authPath+"/logout", nil, nil)
	c.ClearSession()
	return err
}
