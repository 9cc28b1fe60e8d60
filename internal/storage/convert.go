package storage

import (
	"fmt"

	"github.com/randalmurphal/docrewind/internal/db"
	"github.com/randalmurphal/docrewind/internal/history"
)

// dbUpdateToHistory converts a stored row to an update.
func dbUpdateToHistory(r *db.UpdateRecord) (history.Update, error) {
	op, err := history.DecodeOp(r.Op)
	if err != nil {
		return history.Update{}, fmt.Errorf("update %s v%d: %w", r.DocID, r.Version, err)
	}
	return history.Update{
		DocID:   r.DocID,
		Op:      op,
		Version: r.Version,
		Meta: history.Meta{
			StartTS: r.StartTS,
			EndTS:   r.EndTS,
			UserID:  r.UserID,
		},
	}, nil
}

// historyUpdateToDB converts an update to a row of projectID.
func historyUpdateToDB(projectID string, u history.Update) (db.UpdateRecord, error) {
	if u.DocID == "" {
		return db.UpdateRecord{}, fmt.Errorf("update v%d has no doc_id", u.Version)
	}
	op, err := history.EncodeOp(u.Op)
	if err != nil {
		return db.UpdateRecord{}, fmt.Errorf("update %s v%d: %w", u.DocID, u.Version, err)
	}
	return db.UpdateRecord{
		ProjectID: projectID,
		DocID:     u.DocID,
		Version:   u.Version,
		Op:        op,
		StartTS:   u.Meta.StartTS,
		EndTS:     u.Meta.EndTS,
		UserID:    u.Meta.UserID,
	}, nil
}
