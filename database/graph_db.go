package database

import (
	"database/sql"
	"fmt"
	"log"

	sq "github.com/Masterminds/squirrel"
)

// The graph API reads straight from database/sql with built queries; it is a
// hot read path aggregating across notes and does not need GORM's hydration.
var sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// GraphPersonRow is one person node candidate: identity plus the base
// visibility and the number of notes mentioning them. Effective visibility is
// computed per viewer by the visibility resolver, never here.
type GraphPersonRow struct {
	PersonID      uint   `json:"person_id"`
	CanonicalName string `json:"canonical_name"`
	Visibility    string `json:"visibility"`
	NoteCount     int    `json:"note_count"`
}

// GraphEdgeRow is one mention edge between a note and a person.
type GraphEdgeRow struct {
	ReferenceID  uint    `json:"reference_id"`
	NoteID       uint    `json:"note_id"`
	NoteAuthor   uint    `json:"note_author_id"`
	PersonID     uint    `json:"person_id"`
	Role         string  `json:"role"`
	Relationship *string `json:"relationship_to_subject,omitempty"`
	Override     *string `json:"override,omitempty"`
}

// ListGraphPeople returns all people referenced by at least one note.
func ListGraphPeople(db *sql.DB) ([]GraphPersonRow, error) {
	queryBuilder := sb.Select(
		"p.id", "p.canonical_name", "p.visibility", "COUNT(DISTINCT r.note_id) AS note_count",
	).
		From("people p").
		Join("event_references r ON r.person_id = p.id").
		Where(sq.Eq{"r.type": "person"}).
		GroupBy("p.id", "p.canonical_name", "p.visibility").
		OrderBy("p.id ASC")
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for ListGraphPeople: %w", err)
	}
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute ListGraphPeople query: %w", err)
	}
	defer rows.Close()

	people := []GraphPersonRow{}
	for rows.Next() {
		var row GraphPersonRow
		if err := rows.Scan(&row.PersonID, &row.CanonicalName, &row.Visibility, &row.NoteCount); err != nil {
			log.Printf("Error scanning graph person row: %v", err)
			continue
		}
		people = append(people, row)
	}
	if err = rows.Err(); err != nil {
		return people, fmt.Errorf("error iterating graph person rows: %w", err)
	}
	return people, nil
}

// ListGraphEdges returns every person mention edge with the note's author and
// any per-reference override, so the caller can resolve per-node visibility.
func ListGraphEdges(db *sql.DB) ([]GraphEdgeRow, error) {
	queryBuilder := sb.Select(
		"r.id", "r.note_id", "n.author_id", "r.person_id", "r.role", "r.relationship_to_subject", "r.visibility",
	).
		From("event_references r").
		Join("notes n ON n.id = r.note_id").
		Where(sq.Eq{"r.type": "person"}).
		Where("r.person_id IS NOT NULL").
		OrderBy("r.id ASC")
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for ListGraphEdges: %w", err)
	}
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute ListGraphEdges query: %w", err)
	}
	defer rows.Close()

	edges := []GraphEdgeRow{}
	for rows.Next() {
		var row GraphEdgeRow
		if err := rows.Scan(&row.ReferenceID, &row.NoteID, &row.NoteAuthor, &row.PersonID, &row.Role, &row.Relationship, &row.Override); err != nil {
			log.Printf("Error scanning graph edge row: %v", err)
			continue
		}
		edges = append(edges, row)
	}
	if err = rows.Err(); err != nil {
		return edges, fmt.Errorf("error iterating graph edge rows: %w", err)
	}
	return edges, nil
}

// ListPreferenceRows returns every stored visibility preference, keyed for
// in-memory resolution across the whole graph in one pass.
func ListPreferenceRows(db *sql.DB) (map[uint][]PreferenceRow, error) {
	queryBuilder := sb.Select("person_id", "contributor_id", "visibility").
		From("visibility_preferences").
		OrderBy("person_id ASC")
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for ListPreferenceRows: %w", err)
	}
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute ListPreferenceRows query: %w", err)
	}
	defer rows.Close()

	prefs := make(map[uint][]PreferenceRow)
	for rows.Next() {
		var row PreferenceRow
		if err := rows.Scan(&row.PersonID, &row.ContributorID, &row.Visibility); err != nil {
			log.Printf("Error scanning preference row: %v", err)
			continue
		}
		prefs[row.PersonID] = append(prefs[row.PersonID], row)
	}
	if err = rows.Err(); err != nil {
		return prefs, fmt.Errorf("error iterating preference rows: %w", err)
	}
	return prefs, nil
}

// PreferenceRow is one visibility preference as read by the graph path.
type PreferenceRow struct {
	PersonID      uint
	ContributorID *uint
	Visibility    string
}
