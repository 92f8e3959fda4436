package models

// DayTotal is the tracked time for one calendar day.
type DayTotal struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Seconds int64  `json:"seconds"`
	Entries int    `json:"entries"`
}

// ProjectTotal is the tracked time for one project over a range.
type ProjectTotal struct {
	ProjectID int64  `db:"project_id" json:"project_id"`
	Name      string `db:"name" json:"name"`
	Color     string `db:"color" json:"color"`
	Seconds   int64  `db:"seconds" json:"seconds"`
	Entries   int    `db:"entries" json:"entries"`
}

// StatsSummary is the dashboard headline rollup. Open entries are excluded;
// only closed intervals count toward totals.
type StatsSummary struct {
	TodaySeconds int64 `json:"today_seconds"`
	WeekSeconds  int64 `json:"week_seconds"`
	MonthSeconds int64 `json:"month_seconds"`
	TodayEntries int   `json:"today_entries"`
}
