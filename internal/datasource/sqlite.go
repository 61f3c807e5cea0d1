package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/workviz/workviz/pkg/model"
)

// SQLiteReader provides read access to a workplan sqlite snapshot
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a snapshot database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not sqlite: %s", source.Type)
	}

	// Read-only: the snapshot belongs to the authoring tool.
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	return &SQLiteReader{
		db:   db,
		path: source.Path,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadItems reads all work items from the snapshot.
func (r *SQLiteReader) LoadItems() ([]model.WorkItem, error) {
	query := `
		SELECT
			id, title, type, status, priority, description,
			owner, labels, created_at, updated_at, source_path
		FROM items
		ORDER BY source_path
	`

	rows, err := r.db.Query(query)
	if err != nil {
		// Older snapshots carry fewer columns
		return r.loadItemsSimple()
	}
	defer rows.Close()

	var items []model.WorkItem
	for rows.Next() {
		var item model.WorkItem
		var itemType, status string
		var description, owner, labelsJSON, sourcePath sql.NullString
		var createdAt, updatedAt sql.NullTime

		err := rows.Scan(
			&item.ID, &item.Title, &itemType, &status, &item.Priority, &description,
			&owner, &labelsJSON, &createdAt, &updatedAt, &sourcePath,
		)
		if err != nil {
			continue
		}

		item.Type = model.ItemType(itemType)
		item.Status = model.NormalizeStatus(model.Status(status))
		if description.Valid {
			item.Description = description.String
		}
		if owner.Valid {
			item.Owner = owner.String
		}
		if labelsJSON.Valid {
			item.Labels = parseJSONStringArray(labelsJSON.String)
		}
		if createdAt.Valid {
			item.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			item.UpdatedAt = updatedAt.Time
		}
		if sourcePath.Valid {
			item.SourcePath = sourcePath.String
		}

		if err := item.Validate(); err != nil {
			continue
		}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// loadItemsSimple is a fallback for snapshots with fewer columns
func (r *SQLiteReader) loadItemsSimple() ([]model.WorkItem, error) {
	query := `
		SELECT id, title, type, status, priority, source_path
		FROM items
		ORDER BY source_path
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var items []model.WorkItem
	for rows.Next() {
		var item model.WorkItem
		var itemType, status string
		var sourcePath sql.NullString

		if err := rows.Scan(&item.ID, &item.Title, &itemType, &status, &item.Priority, &sourcePath); err != nil {
			continue
		}
		item.Type = model.ItemType(itemType)
		item.Status = model.NormalizeStatus(model.Status(status))
		if sourcePath.Valid {
			item.SourcePath = sourcePath.String
		}
		if err := item.Validate(); err != nil {
			continue
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// CountItems returns the number of items in the snapshot
func (r *SQLiteReader) CountItems() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetLastModified returns the most recent item update time
func (r *SQLiteReader) GetLastModified() (time.Time, error) {
	var updatedAt sql.NullTime
	err := r.db.QueryRow("SELECT MAX(updated_at) FROM items").Scan(&updatedAt)
	if err != nil {
		return time.Time{}, err
	}
	if !updatedAt.Valid {
		return time.Time{}, nil
	}
	return updatedAt.Time, nil
}

// parseJSONStringArray parses a JSON array of strings
func parseJSONStringArray(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "[]" {
		return nil
	}

	var result []string
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		// Fallback for malformed arrays written by older exporters
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		if s == "" {
			return nil
		}
		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			item = strings.Trim(item, `"`)
			if item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}
