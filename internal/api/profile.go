package api

import (
	"atrium/internal/mediaurl"
	"atrium/internal/models"
)

// ProfileResponse is the public projection of a user record. The credential
// hash never appears here.
type ProfileResponse struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

func profileFromUser(user *models.User, baseURL string) ProfileResponse {
	resp := ProfileResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if user.AvatarPath != nil {
		url := mediaurl.Asset(baseURL, *user.AvatarPath)
		resp.ProfilePicture = &url
	}
	return resp
}
