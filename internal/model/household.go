package model

import "time"

const (
	DefaultMaxMembers        = 10
	DefaultLowStockThreshold = 2
)

type Household struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	MemberCount int               `json:"member_count"`
	Settings    HouseholdSettings `json:"settings"`
	CreatedBy   string            `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type HouseholdSettings struct {
	MaxMembers        int `json:"max_members"`
	LowStockThreshold int `json:"low_stock_threshold"`
}

func DefaultHouseholdSettings() HouseholdSettings {
	return HouseholdSettings{
		MaxMembers:        DefaultMaxMembers,
		LowStockThreshold: DefaultLowStockThreshold,
	}
}

// RemainingSlots is never negative, even if maxMembers was lowered below the
// current count by a direct database edit.
func (h *Household) RemainingSlots() int {
	n := h.Settings.MaxMembers - h.MemberCount
	if n < 0 {
		return 0
	}
	return n
}
