package types

import (
	"strings"
	"time"
)

// Chat roles as stored on applications
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage is one turn of an interview conversation
type ChatMessage struct {
	Role      string     `json:"role" validate:"required"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// NormalizeRole maps the role names used by clients onto user/model.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "model", "assistant", "bot", "ai", "interviewer":
		return RoleModel
	default:
		return RoleUser
	}
}
