package models

import "time"

// ClassLevel enumerates the difficulty levels offered by the academy.
type ClassLevel string

const (
	LevelBeginner     ClassLevel = "iniciacion"
	LevelIntermediate ClassLevel = "intermedio"
	LevelAdvanced     ClassLevel = "avanzado"
	LevelOpen         ClassLevel = "open"
)

// Valid returns true when the level is a supported value.
func (l ClassLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced, LevelOpen:
		return true
	default:
		return false
	}
}

// Class is a recurring dance class. CreditCost is the debit a single
// attendance against this class requires; special classes may cost more.
type Class struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	Style       string     `db:"style" json:"style"`
	StyleColor  *string    `db:"style_color" json:"style_color,omitempty"`
	TeacherID   string     `db:"teacher_id" json:"teacher_id"`
	TeacherName string     `db:"teacher_name" json:"teacher_name"`
	RoomID      string     `db:"room_id" json:"room_id"`
	RoomName    string     `db:"room_name" json:"room_name"`
	Level       ClassLevel `db:"level" json:"level"`
	CreditCost  int        `db:"credit_cost" json:"credit_cost"`
	MaxCapacity int        `db:"max_capacity" json:"max_capacity"`
	IsSpecial   bool       `db:"is_special" json:"is_special"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ClassSchedule is a weekly slot for a class. DayOfWeek is 0 (Sunday)
// through 6; times are HH:MM.
type ClassSchedule struct {
	ID        string `db:"id" json:"id"`
	ClassID   string `db:"class_id" json:"class_id"`
	DayOfWeek int    `db:"day_of_week" json:"day_of_week"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	IsActive  bool   `db:"is_active" json:"is_active"`
}

// ClassDetail bundles a class with its weekly slots.
type ClassDetail struct {
	Class
	Schedules []ClassSchedule `json:"schedules"`
}

// ClassFilter scopes class listings.
type ClassFilter struct {
	Style     string
	TeacherID string
	Active    *bool
	Page      int
	PageSize  int
}
