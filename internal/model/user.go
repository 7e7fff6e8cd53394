package model

import (
    "time"

    "github.com/gearguard/gearguard/internal/policy"
)

// User represents an application user record as stored in the `users`
// table.  PasswordHash and RefreshTokenHash never leave the server, so they
// carry no JSON tags.
//
// Fields:
//  ID               – primary key identifier of the user.
//  Username         – unique login handle.
//  Email            – unique email address.
//  FullName         – display name.
//  PasswordHash     – bcrypt hashed password.
//  Role             – USER, TECHNICIAN or MANAGER.
//  RefreshTokenHash – SHA‑256 of the current refresh token (nil when logged out).
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
    ID               uint64      `json:"id"`
    Username         string      `json:"username"`
    Email            string      `json:"email"`
    FullName         string      `json:"fullName"`
    PasswordHash     string      `json:"-"`
    Role             policy.Role `json:"role"`
    RefreshTokenHash *string     `json:"-"`
    CreatedAt        time.Time   `json:"createdAt"`
    UpdatedAt        time.Time   `json:"updatedAt"`
}

// UserSummary is the compact form embedded in teams and listings.
type UserSummary struct {
    ID       uint64      `json:"id"`
    Username string      `json:"username"`
    Email    string      `json:"email"`
    FullName string      `json:"fullName"`
    Role     policy.Role `json:"role"`
}
