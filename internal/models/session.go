package models

// Session is the server side state behind a session cookie.
type Session struct {
	ID             string `json:"id"`
	EmployeeID     string `json:"employeeId"`
	Email          string `json:"email"`
	UserAgent      string `json:"userAgent"`
	IPAddress      string `json:"ipAddress"`
	CreatedAt      int64  `json:"createdAt"`
	LastActivityAt int64  `json:"lastActivityAt"`
}
