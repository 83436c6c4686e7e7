package service

import (
	"fmt"

	"outreach/internal/models"
)

func assignText(a models.Assignment) string {
	name := a.Destination.Name
	if a.Empty() {
		return fmt.Sprintf("%s, no new leads today.", name)
	}
	if a.Destination.Table != "" {
		return fmt.Sprintf("👋 %s, %d leads assigned to your table %s. Please start outreach.", name, a.Len(), a.Destination.Table)
	}
	return fmt.Sprintf("👋 %s, %d leads assigned to you. Please start outreach.", name, a.Len())
}

func notifyText(d models.Destination) string {
	return fmt.Sprintf("📝 Hi %s, please submit your daily report.", d.Name)
}

func remindText(d models.Destination) string {
	return fmt.Sprintf("⏰ Reminder %s: you haven't submitted today's report. Please do it now.", d.Name)
}

func summaryText(b models.Batch) string {
	if b.Empty() {
		return fmt.Sprintf("⚠️ Day %d: the lead backlog is exhausted, nothing was assigned.", b.Day)
	}
	members := 0
	for _, a := range b.Assignments {
		if !a.Empty() {
			members++
		}
	}
	// rows are shown 1-based, the way they read in the sheet
	return fmt.Sprintf("✅ Day %d: %d leads assigned to %d members (rows %d-%d).",
		b.Day, b.Assigned(), members, b.Start+1, b.End)
}
