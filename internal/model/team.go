package model

import "time"

// Team is a maintenance team together with its technicians.
type Team struct {
    ID          uint64        `json:"id"`
    Name        string        `json:"name"`
    Technicians []UserSummary `json:"technicians"`
    CreatedAt   time.Time     `json:"createdAt"`
    UpdatedAt   time.Time     `json:"updatedAt"`
}
