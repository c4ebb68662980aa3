package models

// APIResponse: единый конверт ответа для /auth/*.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
}
