package dto

// CalendarSlot is one weekly schedule slot rendered for the calendar view.
type CalendarSlot struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// CalendarClass is a class with its slots and display metadata.
type CalendarClass struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Style       string         `json:"style"`
	StyleColor  *string        `json:"styleColor,omitempty"`
	TeacherName string         `json:"teacherName"`
	RoomName    string         `json:"roomName"`
	Level       string         `json:"level"`
	CreditCost  int            `json:"creditCost"`
	Schedules   []CalendarSlot `json:"schedules"`
}

// CalendarResponse lists the weekly class offering.
type CalendarResponse struct {
	Classes []CalendarClass `json:"classes"`
}
