package models

// User is an Identity Platform account as presented to the admin UI
type User struct {
	DisplayName      string                 `json:"displayName,omitempty"`
	GoogleName       string                 `json:"googleName,omitempty"`
	PhotoURL         string                 `json:"photoUrl,omitempty"`
	UID              string                 `json:"uid"`
	CustomAttributes map[string]interface{} `json:"customAttributes"`
	CreatedAt        int64                  `json:"createdAt"`
	LastLoginAt      int64                  `json:"lastLoginAt"`
	Disabled         bool                   `json:"disabled"`
	EmailVerified    bool                   `json:"emailVerified"`
	Email            string                 `json:"email,omitempty"`
	Providers        []string               `json:"providers"`
}

// IsAdmin returns true if the account carries the admin custom claim
func (u *User) IsAdmin() bool {
	admin, ok := u.CustomAttributes["admin"].(bool)
	return ok && admin
}

// CustomAttributes are the custom claims an admin may set on an account
type CustomAttributes struct {
	Admin *bool `json:"admin,omitempty"`
}

// ModifyUserBody is the PATCH /api/users request body.
// Nil fields are left unchanged.
type ModifyUserBody struct {
	UID              string            `json:"uid" validate:"required,max=128"`
	EmailVerified    *bool             `json:"emailVerified,omitempty"`
	Disabled         *bool             `json:"disabled,omitempty"`
	CustomAttributes *CustomAttributes `json:"customAttributes,omitempty"`
}

// HasChanges reports whether the body modifies anything
func (b *ModifyUserBody) HasChanges() bool {
	return b.EmailVerified != nil || b.Disabled != nil || b.CustomAttributes != nil
}
