package models

import "strings"

type Role string

const (
	RoleOfferer  Role = "offerer"
	RoleAnswerer Role = "answerer"
)

// DefaultName подставляется, если участник не указал имя
const DefaultName = "Guest"

// Participant - представление участника в room_state
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// NormalizeName обрезает пробелы и подставляет имя по умолчанию
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}

	return name
}
