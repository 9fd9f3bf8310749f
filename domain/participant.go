// Package domain contains core concepts of the chat system.
// This file defines the user directory entries.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// User is a directory entry. Credentials live elsewhere.
type User struct {
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
}
