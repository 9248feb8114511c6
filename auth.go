package inspirehub

import (
	"context"
	"fmt"
	"net/http"
)

// LoginRequest holds the credentials entered by the user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
}

// Login authenticates and starts a new session.
func (c *Client) Login(ctx context.Context, in LoginRequest) (*Credential, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var out LoginResponse
	if _, err := c.Call(ctx, &Request{
		Method:   http.MethodPost,
		Path:     "/auth/login",
		Body:     in,
		SkipAuth: true,
	}, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	cred := Credential{
		SubjectID:      out.ID,
		Username:       out.Username,
		ProfilePicture: out.ProfilePicture,
		AccessToken:    out.AccessToken,
		RefreshToken:   out.RefreshToken,
	}
	if cred.SubjectID == "" {
		if claims, err := cred.Claims(); err == nil {
			cred.SubjectID = claims.SubjectID()
		}
	}
	if cred.Username == "" {
		cred.Username = in.Username
	}

	if err := c.session.Set(ctx, cred); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &cred, nil
}

// Logout ends the session. It is safe to call when already logged out.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Clear(ctx)
}

// RegisterRequest holds the sign-up form.
type RegisterRequest struct {
	Username       string `validate:"required,min=3,max=32"`
	Email          string `validate:"required,email"`
	Password       string `validate:"required,min=6"`
	ProfilePicture *File
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*Profile, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var body any = map[string]string{
		"username": in.Username,
		"email":    in.Email,
		"password": in.Password,
	}
	if in.ProfilePicture != nil {
		body = NewMultipart().
			SetField("username", in.Username).
			SetField("email", in.Email).
			SetField("password", in.Password).
			SetFile("profilePicture", in.ProfilePicture)
	}

	var out Profile
	if _, err := c.Call(ctx, &Request{
		Method:   http.MethodPost,
		Path:     "/auth/register",
		Body:     body,
		SkipAuth: true,
	}, &out); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return &out, nil
}

// User fetches the profile of userID.
func (c *Client) User(ctx context.Context, userID string) (*Profile, error) {
	id, err := pathSegment(userID)
	if err != nil {
		return nil, err
	}

	var out Profile
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   "/auth/get-user/" + id,
	}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ProfileUpdate holds the editable profile fields. Empty fields are left unchanged.
type ProfileUpdate struct {
	Username string `validate:"omitempty,min=3,max=32"`
	Picture  *File
}

// UpdateProfile edits the profile of userID. When userID is the logged
// in user, the session's display fields follow the update.
func (c *Client) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*Profile, error) {
	id, err := pathSegment(userID)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var out Profile
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodPut,
		Path:   "/auth/update-profile/" + id,
		Body: NewMultipart().
			SetField("username", in.Username).
			SetFile("profilePicture", in.Picture),
	}, &out); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if cred, ok := c.session.Credential(); ok && cred.SubjectID == userID {
		err := c.session.update(ctx, func(cred *Credential) {
			if out.Username != "" {
				cred.Username = out.Username
			}
			if out.ProfilePicture != "" {
				cred.ProfilePicture = out.ProfilePicture
			}
		})
		if err != nil {
			c.log.WithError(err).Warn("Profile updated but session was not")
		}
	}

	return &out, nil
}
