package models

import "fmt"

type Role string

const (
	RoleExaminee   Role = "examinee"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleExaminee, RoleSupervisor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// CanMessage is the single authorization rule for chat-style messages:
// only supervisors may address other room members.
func (r Role) CanMessage() bool {
	return r == RoleSupervisor
}
