package profiles

import "github.com/medrec/medrec/internal/platform/validation"

// ProfileView is the full profile representation.
type ProfileView struct {
	ID          int64   `json:"id"`
	FullName    string  `json:"full_name"`
	CompanyName *string `json:"company_name"`
	BirthDate   *string `json:"birth_date"`
	UserID      int64   `json:"user_id"`
}

// ProfileListItem is the staff list row.
type ProfileListItem struct {
	ID          int64   `json:"id"`
	CompanyName *string `json:"company_name"`
	BirthDate   *string `json:"birth_date"`
	UserID      int64   `json:"user_id"`
}

func NewProfileView(p *Profile) *ProfileView {
	if p == nil {
		return nil
	}
	return &ProfileView{
		ID:          p.ID,
		FullName:    p.FullName(),
		CompanyName: p.CompanyName,
		BirthDate:   validation.FormatDate(p.BirthDate),
		UserID:      p.UserID,
	}
}

func NewProfileListItem(p *Profile) ProfileListItem {
	return ProfileListItem{
		ID:          p.ID,
		CompanyName: p.CompanyName,
		BirthDate:   validation.FormatDate(p.BirthDate),
		UserID:      p.UserID,
	}
}
