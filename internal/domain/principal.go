// Package domain contains entities without logic, just meta-data
package domain

const (
	MaxUserIDLen      = 36
	MaxDisplayNameLen = 36
)

type UserID string

// Principal is the authenticated identity bound to a connection.
// It is supplied by the credential verifier and immutable for the
// lifetime of a session.
type Principal struct {
	UserID      UserID `json:"user_id"`
	DisplayName string `json:"display_name"`
}
