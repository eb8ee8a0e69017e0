package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"ticus/internal/database"
	"ticus/internal/models"
)

// ArchiveService mirrors finalized sessions into MongoDB for long-term
// analytics. Archiving is best-effort: failures are logged, never
// surfaced to the caller, and the SQL row stays authoritative.
type ArchiveService struct {
	db *database.MongoDB
}

// NewArchiveService creates a new archive service. db may not be nil;
// callers skip construction entirely when Mongo is not configured.
func NewArchiveService(db *database.MongoDB) *ArchiveService {
	return &ArchiveService{db: db}
}

// ArchiveFinalized writes the terminal session metrics to the archive
// collection in the background.
func (s *ArchiveService) ArchiveFinalized(req *models.FinalizeSessionRequest) {
	doc := bson.M{
		"sessionId":             req.SessionID,
		"status":                req.Status,
		"actualDurationMinutes": req.ActualDurationMinutes,
		"totalCheckins":         req.TotalCheckins,
		"successfulCheckins":    req.SuccessfulCheckins,
		"focusAccuracy":         req.FocusAccuracy,
		"archivedAt":            time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		coll := s.db.Database().Collection(database.CollectionSessionArchive)
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			log.Printf("⚠️  Failed to archive session %s: %v", req.SessionID, err)
		}
	}()
}

// ArchiveCheckIns writes a finalized session's check-ins to the
// check-in archive collection in the background.
func (s *ArchiveService) ArchiveCheckIns(sessionID string, checkIns []models.CheckIn) {
	if len(checkIns) == 0 {
		return
	}

	docs := make([]interface{}, 0, len(checkIns))
	for _, ci := range checkIns {
		docs = append(docs, bson.M{
			"checkinId":           ci.ID,
			"sessionId":           sessionID,
			"timestamp":           ci.Timestamp,
			"wasFocused":          ci.WasFocused,
			"responseTimeSeconds": ci.ResponseTimeSeconds,
			"archivedAt":          time.Now(),
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		coll := s.db.Database().Collection(database.CollectionCheckinArchive)
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			log.Printf("⚠️  Failed to archive check-ins for session %s: %v", sessionID, err)
		}
	}()
}
