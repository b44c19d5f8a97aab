package entities

import "time"

const DefaultProfilePenalty = 10

// Profile is the live account profile as the platform reports it.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	PhotoID   string `json:"photo_id"` // Empty when no photo is set
}

type ProfileBaseline struct {
	TenantID  int       `json:"tenant_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Bio       string    `json:"bio"`
	PhotoID   string    `json:"photo_id"`
	PhotoPath string    `json:"photo_path"` // Local copy used for re-uploads
	LockedAt  time.Time `json:"locked_at"`
	Active    bool      `json:"active"` // Lock flag, cleared on disconnect
}

func (b ProfileBaseline) Profile() Profile {
	return Profile{FirstName: b.FirstName, LastName: b.LastName, Bio: b.Bio, PhotoID: b.PhotoID}
}

type ProtectionSettings struct {
	TenantID int  `json:"tenant_id"`
	Enabled  bool `json:"enabled"`
	Penalty  int  `json:"penalty"`
}

// ProfileDiff lists the fields where live differs from baseline.
type ProfileDiff struct {
	FirstName bool
	LastName  bool
	Bio       bool
	Photo     bool
}

func (d ProfileDiff) Any() bool {
	return d.FirstName || d.LastName || d.Bio || d.Photo
}

func DiffProfile(baseline, live Profile) ProfileDiff {
	return ProfileDiff{
		FirstName: baseline.FirstName != live.FirstName,
		LastName:  baseline.LastName != live.LastName,
		Bio:       baseline.Bio != live.Bio,
		Photo:     baseline.PhotoID != live.PhotoID,
	}
}
