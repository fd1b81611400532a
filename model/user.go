package model

import "gorm.io/gorm"

// Roles recognized by the access guard. Role is assigned at registration and
// never changed by any code path.
const (
	RoleStudent          = "student"
	RoleDoctor           = "doctor"
	RoleReceptionist     = "receptionist"
	RoleDrugstoreManager = "drugstore_manager"
)

// ValidRoles lists every role a user may hold.
var ValidRoles = []string{RoleStudent, RoleDoctor, RoleReceptionist, RoleDrugstoreManager}

// IsValidRole reports whether role is one of the recognized roles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents an account of any role. Students carry batch/branch/roll
// number; doctors carry specialization.
type User struct {
	gorm.Model
	Name           string `json:"name" gorm:"not null"`
	Email          string `json:"email" gorm:"uniqueIndex;not null"`
	Password       string `json:"-" gorm:"not null"`
	PasswordSalt   string `json:"-"`
	Role           string `json:"role" gorm:"type:varchar(32);not null"`
	Phone          string `json:"phone,omitempty"`
	Batch          string `json:"batch,omitempty"`
	Branch         string `json:"branch,omitempty"`
	RollNumber     string `json:"roll_number,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	FailedAttempts int    `json:"-" gorm:"default:0"`
	LockedUntil    *int64 `json:"-"`
}
