package handlers

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/Novakiki/kindredbackend/database"
	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/visibility"
)

// GraphHandler serves the family graph: person nodes and note-mention edges,
// each rendered at its resolved disclosure level. A person whose every
// mention resolves to removed has no node at all.
type GraphHandler struct {
	DB *sql.DB
}

type GraphNode struct {
	PersonID  uint   `json:"person_id"`
	Label     string `json:"label"`
	State     string `json:"state"`
	NoteCount int    `json:"note_count"`
}

type GraphEdge struct {
	NoteID   uint   `json:"note_id"`
	PersonID uint   `json:"person_id"`
	Role     string `json:"role"`
}

type GraphResponse struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// levelRank orders disclosure levels from most to least disclosed; a node's
// label comes from its most disclosed mention.
var levelRank = map[visibility.Level]int{
	visibility.LevelApproved:   4,
	visibility.LevelBlurred:    3,
	visibility.LevelAnonymized: 2,
	visibility.LevelPending:    1,
	visibility.LevelRemoved:    0,
}

func (gh *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	people, err := database.ListGraphPeople(gh.DB)
	if err != nil {
		log.Printf("Error listing graph people: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to build graph")
		return
	}
	edges, err := database.ListGraphEdges(gh.DB)
	if err != nil {
		log.Printf("Error listing graph edges: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to build graph")
		return
	}
	prefs, err := database.ListPreferenceRows(gh.DB)
	if err != nil {
		log.Printf("Error listing graph preferences: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to build graph")
		return
	}

	peopleByID := make(map[uint]database.GraphPersonRow, len(people))
	for _, row := range people {
		peopleByID[row.PersonID] = row
	}

	// Resolve every edge; remember the most disclosed resolution per person.
	type nodeState struct {
		best    visibility.Resolution
		edgeRef models.EventReference
	}
	states := make(map[uint]*nodeState)
	outEdges := []GraphEdge{}

	for _, edge := range edges {
		personRow, ok := peopleByID[edge.PersonID]
		if !ok {
			continue
		}

		in := visibility.ResolveInput{NoteAuthorID: &edge.NoteAuthor}
		if edge.Override != nil {
			if level, err := visibility.ParseLevel(*edge.Override); err == nil {
				in.ReferenceOverride = &level
			}
		}
		for _, pref := range prefs[edge.PersonID] {
			if level, err := visibility.ParseLevel(pref.Visibility); err == nil {
				in.Preferences = append(in.Preferences, visibility.Preference{
					ContributorID: pref.ContributorID,
					Level:         level,
				})
			}
		}
		if base, err := visibility.ParseLevel(personRow.Visibility); err == nil {
			in.Base = base
		}

		resolution := visibility.Resolve(in)
		if resolution.Level == visibility.LevelRemoved {
			continue
		}

		outEdges = append(outEdges, GraphEdge{
			NoteID:   edge.NoteID,
			PersonID: edge.PersonID,
			Role:     edge.Role,
		})

		state, ok := states[edge.PersonID]
		if !ok || levelRank[resolution.Level] > levelRank[state.best.Level] {
			personID := edge.PersonID
			states[edge.PersonID] = &nodeState{
				best: resolution,
				edgeRef: models.EventReference{
					ID:                    edge.ReferenceID,
					NoteID:                edge.NoteID,
					Type:                  models.ReferenceTypePerson,
					PersonID:              &personID,
					Role:                  edge.Role,
					RelationshipToSubject: edge.Relationship,
					Person:                &models.Person{ID: personID, CanonicalName: personRow.CanonicalName},
				},
			}
		}
	}

	// Label each surviving node through the projector so graph labels match
	// what note pages show at the same level.
	nodes := []GraphNode{}
	for _, row := range people {
		state, ok := states[row.PersonID]
		if !ok {
			continue
		}
		projected := visibility.Project(
			[]visibility.ResolvedReference{{Ref: state.edgeRef, Resolution: state.best}},
			visibility.ProjectOptions{},
		)
		if len(projected) == 0 {
			continue
		}
		nodes = append(nodes, GraphNode{
			PersonID:  row.PersonID,
			Label:     projected[0].RenderLabel,
			State:     string(state.best.Level),
			NoteCount: row.NoteCount,
		})
	}

	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Edges: outEdges})
}
