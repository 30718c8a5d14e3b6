// Package models - server.go defines the Server model for game servers
// registered under an app, including their advertised game modes.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Server represents a game server registered under an app
type Server struct {
	ID                uuid.UUID `json:"id" db:"id"`
	AppID             uuid.UUID `json:"app_id" db:"app_id"`
	ServerName        string    `json:"server_name" db:"server_name"`
	ServerDescription *string   `json:"server_description,omitempty" db:"server_description"`
	GameModes         string    `json:"-" db:"game_modes"` // JSON array, decoded via GameModeList
	IPAddress         *string   `json:"ip_address,omitempty" db:"ip_address"`
	CreatedBy         uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// GameModeList decodes the stored JSON array of game modes.
func (s *Server) GameModeList() ([]string, error) {
	if s.GameModes == "" {
		return []string{}, nil
	}
	var modes []string
	if err := json.Unmarshal([]byte(s.GameModes), &modes); err != nil {
		return nil, err
	}
	return modes, nil
}

// SetGameModes encodes the given modes into the stored JSON representation.
func (s *Server) SetGameModes(modes []string) error {
	if modes == nil {
		modes = []string{}
	}
	data, err := json.Marshal(modes)
	if err != nil {
		return err
	}
	s.GameModes = string(data)
	return nil
}

