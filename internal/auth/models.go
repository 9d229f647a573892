package auth

import "time"

// Staff is the authenticated surveyor without credential material.
type Staff struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AccessToken is a signed bearer token and its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}
