package models

import (
	"strings"
	"time"
)

// TimeSlot divides a work day into coarse blocks
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
	SlotNight     TimeSlot = "night"
)

// TaskType classifies what kind of B+R work a time entry covers
type TaskType string

const (
	TaskResearch      TaskType = "research"
	TaskDevelopment   TaskType = "development"
	TaskTesting       TaskType = "testing"
	TaskDocumentation TaskType = "documentation"
	TaskAnalysis      TaskType = "analysis"
	TaskPrototyping   TaskType = "prototyping"
	TaskExperiment    TaskType = "experiment"
)

// MinEntryHours and MaxEntryHours bound a single time entry.
const (
	MinEntryHours = 0.5
	MaxEntryHours = 12.0
)

// DailyTimeEntry is one worker's B+R time record for one day and slot.
type DailyTimeEntry struct {
	ProjectID   string    `json:"project_id"`
	Worker      string    `json:"worker"`
	Date        time.Time `json:"date"`
	Slot        TimeSlot  `json:"slot"`
	Hours       float64   `json:"hours"`
	TaskType    TaskType  `json:"task_type"`
	Description string    `json:"description"`
	CommitRefs  []string  `json:"commit_refs,omitempty"` // owner/repo@sha references
}

// genericPhrases lists descriptions too vague to document B+R activity.
// Multi-word phrases match anywhere in the description; single words only
// reject a description consisting of nothing else.
var genericPhrases = []string{
	"praca nad projektem",
	"praca projektowa",
	"różne zadania",
	"różne prace",
	"bieżące zadania",
	"obowiązki służbowe",
	"spotkanie",
	"inne",
	"praca",
}

// brKeywords are domain terms whose presence marks a description as
// substantively B+R. Stems match Polish inflected forms.
var brKeywords = []string{
	"algorytm",
	"prototyp",
	"badan",
	"badawcz",
	"eksperyment",
	"hipotez",
	"analiz",
	"test",
	"walidacj",
	"weryfikacj",
	"implementacj",
	"architektur",
	"optymalizacj",
	"integracj",
	"model",
	"moduł",
	"iteracj",
	"koncepcj",
}

// ValidateHours checks the per-entry hour bounds.
func (e DailyTimeEntry) ValidateHours() (bool, string) {
	if e.Hours < MinEntryHours {
		return false, "wpis musi obejmować co najmniej 0,5 godziny"
	}
	if e.Hours > MaxEntryHours {
		return false, "wpis nie może przekraczać 12 godzin"
	}
	return true, ""
}

// ValidateDescription checks that the description documents real B+R work:
// at least 50 characters, not a generic phrase, and either referencing a
// B+R domain keyword or running to at least 100 characters.
func (e DailyTimeEntry) ValidateDescription() (bool, string) {
	desc := strings.TrimSpace(e.Description)
	if len([]rune(desc)) < 50 {
		return false, "opis musi zawierać co najmniej 50 znaków"
	}

	lower := strings.ToLower(desc)
	for _, phrase := range genericPhrases {
		if lower == phrase {
			return false, "opis jest zbyt ogólny, wymagany konkretny opis prac B+R"
		}
		if strings.Contains(phrase, " ") && strings.Contains(lower, phrase) {
			return false, "opis jest zbyt ogólny, wymagany konkretny opis prac B+R"
		}
	}

	if len([]rune(desc)) >= 100 {
		return true, ""
	}
	for _, keyword := range brKeywords {
		if strings.Contains(lower, keyword) {
			return true, ""
		}
	}
	return false, "opis musi odnosić się do prac badawczo-rozwojowych lub zawierać co najmniej 100 znaków"
}

// Validate runs all entry checks and returns the first failure.
func (e DailyTimeEntry) Validate() (bool, string) {
	if ok, msg := e.ValidateHours(); !ok {
		return false, msg
	}
	return e.ValidateDescription()
}

// TimesheetSummary aggregates a project's time entries for a period.
type TimesheetSummary struct {
	ProjectID   string  `json:"project_id"`
	TotalHours  float64 `json:"total_hours"`
	EntryCount  int     `json:"entry_count"`
	WorkerCount int     `json:"worker_count"`
	PeriodFrom  string  `json:"period_from,omitempty"`
	PeriodTo    string  `json:"period_to,omitempty"`
}
