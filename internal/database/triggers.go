package database

import (
	"fmt"

	"workbridge_backend/internal/logger"

	"gorm.io/gorm"
)

// notifyEventFn publishes every row change as JSON on the "events"
// channel: {event_id, table, action, data:{old,new}}. Deletes carry the
// old row; inserts the new; updates both.
const notifyEventFn = `
CREATE OR REPLACE FUNCTION notify_event() RETURNS TRIGGER AS $$
DECLARE
    data json;
    notification json;
BEGIN
    IF (TG_OP = 'DELETE') THEN
        data = json_build_object('old', row_to_json(OLD), 'new', null);
    ELSIF (TG_OP = 'INSERT') THEN
        data = json_build_object('old', null, 'new', row_to_json(NEW));
    ELSE
        data = json_build_object('old', row_to_json(OLD), 'new', row_to_json(NEW));
    END IF;

    notification = json_build_object(
        'event_id', md5(''||now()::text||random()::text),
        'table', TG_TABLE_NAME,
        'action', TG_OP,
        'data', data);
    PERFORM pg_notify('events', notification::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;
`

// capturedTables are the tables whose changes feed the realtime broker.
// users is included so sessions observe bans and role flips.
var capturedTables = []string{
	"users",
	"notifications",
	"messages",
	"proposals",
	"jobs",
	"payouts",
}

// InstallChangeCapture creates the notify function and one trigger per
// captured table. Idempotent; safe to run on every startup.
func InstallChangeCapture(db *gorm.DB) error {
	if err := db.Exec(notifyEventFn).Error; err != nil {
		return fmt.Errorf("database: notify_event function: %w", err)
	}

	for _, table := range capturedTables {
		drop := fmt.Sprintf(`DROP TRIGGER IF EXISTS notify_%s_event ON %s`, table, table)
		if err := db.Exec(drop).Error; err != nil {
			return fmt.Errorf("database: drop trigger on %s: %w", table, err)
		}
		create := fmt.Sprintf(
			`CREATE TRIGGER notify_%s_event
AFTER INSERT OR UPDATE OR DELETE ON %s
FOR EACH ROW EXECUTE PROCEDURE notify_event()`, table, table)
		if err := db.Exec(create).Error; err != nil {
			return fmt.Errorf("database: create trigger on %s: %w", table, err)
		}
	}

	logger.Info("change capture triggers installed", "tables", len(capturedTables))
	return nil
}
