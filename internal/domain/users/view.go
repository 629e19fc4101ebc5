package users

// UserView is the public representation of a user. The password hash is
// never rendered.
type UserView struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func NewUserView(u *User) *UserView {
	return &UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func NewUserViews(items []*User) []*UserView {
	out := make([]*UserView, 0, len(items))
	for _, u := range items {
		out = append(out, NewUserView(u))
	}
	return out
}
