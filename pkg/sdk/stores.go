package sdk

import (
	"context"
	"net/http"
	"net/url"

	"github.com/terraconstructs/estate/internal/authority"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/pkg/api"
)

func rolesPath(principalID string) string {
	return api.RestPrefix + "/users/" + url.PathEscape(principalID) + "/roles"
}

func profilePath(principalID string) string {
	return api.RestPrefix + "/profiles/" + url.PathEscape(principalID)
}

// GetRoles returns the principal's roles in backend order. Values are
// passed through unvalidated.
func (c *Client) GetRoles(ctx context.Context, principalID string) ([]roles.Role, error) {
	var out api.RoleList
	if err := c.do(ctx, c.authed, http.MethodGet, rolesPath(principalID), "", nil, &out); err != nil {
		return nil, err
	}
	assigned := make([]roles.Role, len(out.Roles))
	for i, r := range out.Roles {
		assigned[i] = roles.Role(r)
	}
	return assigned, nil
}

func (c *Client) InsertRole(ctx context.Context, principalID string, role roles.Role) error {
	return c.do(ctx, c.authed, http.MethodPost, rolesPath(principalID), "", api.RoleRequest{Role: string(role)}, nil)
}

func (c *Client) DeleteRole(ctx context.Context, principalID string, role roles.Role) error {
	return c.do(ctx, c.authed, http.MethodDelete, rolesPath(principalID)+"/"+url.PathEscape(string(role)), "", nil, nil)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fromAPIProfile(p *api.Profile) *authority.Profile {
	return &authority.Profile{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     deref(p.Phone),
		AvatarURL: deref(p.AvatarURL),
		UpdatedAt: p.UpdatedAt,
	}
}

func (c *Client) GetProfile(ctx context.Context, principalID string) (*authority.Profile, error) {
	var out api.Profile
	if err := c.do(ctx, c.authed, http.MethodGet, profilePath(principalID), "", nil, &out); err != nil {
		return nil, err
	}
	return fromAPIProfile(&out), nil
}

// InsertProfile creates the profile. An existing profile is kept and
// returned unchanged.
func (c *Client) InsertProfile(ctx context.Context, p authority.Profile) (*authority.Profile, error) {
	in := api.Profile{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     optional(p.Phone),
		AvatarURL: optional(p.AvatarURL),
	}
	var out api.Profile
	if err := c.do(ctx, c.authed, http.MethodPost, profilePath(p.ID), "", in, &out); err != nil {
		return nil, err
	}
	return fromAPIProfile(&out), nil
}

func (c *Client) UpdateProfile(ctx context.Context, principalID string, patch authority.ProfilePatch) (*authority.Profile, error) {
	in := api.ProfilePatch{
		FirstName: patch.FirstName,
		LastName:  patch.LastName,
		Phone:     patch.Phone,
		AvatarURL: patch.AvatarURL,
	}
	var out api.Profile
	if err := c.do(ctx, c.authed, http.MethodPatch, profilePath(principalID), "", in, &out); err != nil {
		return nil, err
	}
	return fromAPIProfile(&out), nil
}

func (c *Client) GetVerification(ctx context.Context, principalID string) (*authority.Verification, error) {
	var out api.Verification
	path := api.RestPrefix + "/verifications/" + url.PathEscape(principalID)
	if err := c.do(ctx, c.authed, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &authority.Verification{
		UserID:    out.UserID,
		Status:    authority.VerificationStatus(out.Status),
		UpdatedAt: out.UpdatedAt,
	}, nil
}
