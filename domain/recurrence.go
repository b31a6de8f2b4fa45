package domain

// RecurrenceColumn picks where the next occurrence of a recurring task lands.
// Weekly work goes straight to this week; everything else is planned from the backlog.
func RecurrenceColumn(f Frequency) ColumnID {
	if f == FrequencyWeekly {
		return ColumnThisWeek
	}
	return ColumnBacklog
}

// Expand builds the draft for the next occurrence of a completed task. It returns
// false when the task does not recur.
func Expand(t Task) (Draft, bool) {
	if !t.IsRecurring {
		return Draft{}, false
	}
	d := Draft{
		Title:              t.Title,
		Description:        t.Description,
		ColumnID:           RecurrenceColumn(t.RecurringFrequency),
		Priority:           t.Priority,
		TaskType:           t.TaskType,
		IsRecurring:        t.IsRecurring,
		RecurringFrequency: t.RecurringFrequency,
		Links:              t.Links,
	}
	if t.DueDate != nil {
		due := *t.DueDate
		switch t.RecurringFrequency {
		case FrequencyWeekly:
			due = due.AddDate(0, 0, 7)
		case FrequencyMonthly:
			due = due.AddDate(0, 1, 0)
		}
		d.DueDate = &due
	}
	return d, true
}
