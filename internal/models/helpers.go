package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// MustRecordIDString extracts the string ID, panicking if not a string.
// Use only after DB operations that are known to return string IDs.
func MustRecordIDString(id surrealmodels.RecordID) string {
	s, err := RecordIDString(id)
	if err != nil {
		panic(err)
	}
	return s
}

// JobRecordID builds the record ID for a job row.
func JobRecordID(id string) surrealmodels.RecordID {
	return surrealmodels.RecordID{Table: "job", ID: id}
}

// DocumentRecordID builds the record ID for a document row.
func DocumentRecordID(id string) surrealmodels.RecordID {
	return surrealmodels.RecordID{Table: "document", ID: id}
}
