package domain

// CalendarEvent is the minimal event created for a scheduled meeting email.
type CalendarEvent struct {
	Summary     string
	Description string
	DueDate     string // YYYY-MM-DD
	DueTime     string // HH:MM
}
