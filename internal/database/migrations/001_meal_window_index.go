package migrations

import "gorm.io/gorm"

// Composite index backing the dashboard window queries, which always filter
// by user and half-open timestamp range.
func init() {
	Register("001_meal_window_index",
		func(db *gorm.DB) error {
			return db.Exec("CREATE INDEX IF NOT EXISTS idx_meal_records_user_ts ON meal_records (user_id, timestamp)").Error
		},
		func(db *gorm.DB) error {
			return db.Exec("DROP INDEX IF EXISTS idx_meal_records_user_ts").Error
		},
	)
}
