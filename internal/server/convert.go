package server

import (
	"time"

	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/pkg/api"
)

func toAPIUser(u *models.User) api.User {
	return api.User{
		ID:           u.ID,
		Email:        u.Email,
		UserMetadata: u.UserMetadata,
		CreatedAt:    u.CreatedAt,
	}
}

func toAPISession(g *iam.SessionGrant, now time.Time) *api.Session {
	if g == nil {
		return nil
	}
	return &api.Session{
		AccessToken: g.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(g.ExpiresAt.Sub(now).Seconds()),
		ExpiresAt:   g.ExpiresAt.Unix(),
		User:        toAPIUser(g.User),
	}
}

func toAPIProfile(p *models.Profile) api.Profile {
	return api.Profile{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
		AvatarURL: p.AvatarURL,
		UpdatedAt: p.UpdatedAt,
	}
}

func toAPIVerification(v *models.Verification) api.Verification {
	return api.Verification{UserID: v.UserID, Status: v.Status, UpdatedAt: v.UpdatedAt}
}
