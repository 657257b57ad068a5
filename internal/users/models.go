package users

import (
	"strings"
	"time"
)

// Role is a user's shop-floor role.
type Role string

const (
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

var allRoles = []Role{RoleOperator, RoleSupervisor, RoleAdmin}

// AllRoles returns the known roles in ascending privilege.
func AllRoles() []Role {
	return append([]Role(nil), allRoles...)
}

// ParseRole converts a string into a known Role.
func ParseRole(value string) (Role, bool) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	for _, role := range allRoles {
		if role == normalized {
			return role, true
		}
	}
	return "", false
}

// User is a registered operator. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	EmployeeID   string    `json:"employeeId" bson:"employeeId"`
	Role         Role      `json:"role" bson:"role"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}
