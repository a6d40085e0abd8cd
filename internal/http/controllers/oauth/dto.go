package oauth

import (
	"time"

	"github.com/dropDatabas3/authkit/internal/domain/repository"
	"github.com/dropDatabas3/authkit/internal/http/helpers"
	"github.com/dropDatabas3/authkit/internal/oauth/service"
)

type authorizeRequest struct {
	RedirectURI         string `json:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
	Mode                string `json:"mode"`
	Scope               string `json:"scope,omitempty"`
}

type authorizeResponse struct {
	Provider         string `json:"provider"`
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// callbackRequest sirve para callback y link.
type callbackRequest struct {
	Code         string `json:"code"`
	State        string `json:"state"`
	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier"`
}

type userDTO struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	FirstName         *string    `json:"first_name,omitempty"`
	IsVerified        bool       `json:"is_verified"`
	HasUsablePassword bool       `json:"has_usable_password"`
	TwoFactorEnabled  bool       `json:"two_factor_enabled"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type loginResponse struct {
	User        userDTO        `json:"user"`
	Tokens      helpers.Tokens `json:"tokens"`
	Requires2FA bool           `json:"requires_2fa"`
}

type linkResponse struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

type refreshLinkResponse struct {
	Success   bool       `json:"success"`
	Provider  string     `json:"provider"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func toUserDTO(u *repository.User) userDTO {
	return userDTO{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		IsVerified:        u.IsVerified,
		HasUsablePassword: u.HasUsablePassword,
		TwoFactorEnabled:  u.TwoFactorEnabled,
		LastLoginAt:       u.LastLoginAt,
		CreatedAt:         u.CreatedAt,
	}
}

func toLoginResponse(res *service.LoginResult) loginResponse {
	return loginResponse{
		User:        toUserDTO(res.User),
		Tokens:      helpers.TokensFrom(res.Tokens),
		Requires2FA: res.Requires2FA,
	}
}
