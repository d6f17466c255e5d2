package models

// Users are registered by the identity service; this service only sees the
// id and role carried in their access token.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

func IsValidRole(role string) bool {
	return role == RoleDoctor || role == RolePatient
}
