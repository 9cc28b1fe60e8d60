package rewind

import "fmt"

// EndPath is the entry holding a document's current content.
func EndPath(docID string, version int64) string {
	return fmt.Sprintf("%s/content/end/%d", docID, version)
}

// StartPath is the entry holding the earliest content that was reached.
func StartPath(docID string, version int64) string {
	return fmt.Sprintf("%s/content/start/%d", docID, version)
}

// UpdatePath is the audit entry for one update.
func UpdatePath(docID string, version int64) string {
	return fmt.Sprintf("%s/updates/%d", docID, version)
}
