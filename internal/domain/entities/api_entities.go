package entities

import "time"

// OTPRequestBody is the payload of POST /v1/auth/otp/request
type OTPRequestBody struct {
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	DeviceID   string `json:"deviceId"`
	DeviceHash string `json:"deviceHash"`
	OS         string `json:"os"`
	Model      string `json:"model"`
	AppVersion string `json:"appVersion"`
}

// OTPVerifyBody is the payload of POST /v1/auth/otp/verify
type OTPVerifyBody struct {
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Code     string `json:"code" binding:"required"`
	DeviceID string `json:"deviceId"`
}

// OTPRequestResponse is returned after an accepted OTP send
type OTPRequestResponse struct {
	Sent            bool `json:"sent"`
	RemainingMinute int  `json:"remainingMinute"`
	RemainingHour   int  `json:"remainingHour"`
}

// OTPVerifyResponse is returned after an OTP verification attempt
type OTPVerifyResponse struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

// GPSCheckBody is the payload of POST /v1/risk/location/check
type GPSCheckBody struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
	TripID    string  `json:"tripId"`
}

// ErrorResponse is the standard JSON error body
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// SecurityStatsResponse aggregates the in-memory security log
type SecurityStatsResponse struct {
	TotalEvents    int            `json:"totalEvents"`
	EventsByType   map[string]int `json:"eventsByType"`
	BlocksLastHour int            `json:"blocksLastHour"`
	GeneratedAt    time.Time      `json:"generatedAt"`
}
