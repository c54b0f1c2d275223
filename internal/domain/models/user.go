package models

// Role gates access to admin-only routes.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// User is a pre-provisioned staff member allowed to sign in.
type User struct {
	ID        string `bson:"id,omitempty" json:"id"`
	Name      string `bson:"name" json:"name"`
	Phone     string `bson:"phone" json:"phone"`
	Role      Role   `bson:"role" json:"role"`
	CreatedAt string `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt string `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
