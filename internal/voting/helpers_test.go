package voting

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testDatabaseSequence atomic.Int64

func openTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:voting_%d?mode=memory&cache=shared", testDatabaseSequence.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&Vote{}); err != nil {
		t.Fatalf("failed to migrate votes: %v", err)
	}
	return NewLedger(db), db
}

type subjectKey struct {
	subjectType SubjectType
	subjectID   SubjectID
}

type stubDirectory struct {
	subjects   map[subjectKey]bool
	documents  map[SubjectID]DocumentRef
	lookupErr  error
	lookupHits int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		subjects:  make(map[subjectKey]bool),
		documents: make(map[SubjectID]DocumentRef),
	}
}

func (d *stubDirectory) withSubject(subjectType SubjectType, subjectID SubjectID) *stubDirectory {
	d.subjects[subjectKey{subjectType, subjectID}] = true
	return d
}

func (d *stubDirectory) withDocument(subjectID SubjectID, reference DocumentRef) *stubDirectory {
	d.subjects[subjectKey{SubjectTypeDocument, subjectID}] = true
	d.documents[subjectID] = reference
	return d
}

func (d *stubDirectory) SubjectExists(_ context.Context, subjectType SubjectType, subjectID SubjectID) (bool, error) {
	d.lookupHits++
	if d.lookupErr != nil {
		return false, d.lookupErr
	}
	return d.subjects[subjectKey{subjectType, subjectID}], nil
}

func (d *stubDirectory) DocumentReference(_ context.Context, subjectID SubjectID) (DocumentRef, error) {
	reference, ok := d.documents[subjectID]
	if !ok {
		return DocumentRef{}, fmt.Errorf("%w: document/%d", ErrSubjectNotFound, subjectID)
	}
	return reference, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []subjectKey
}

func (n *recordingNotifier) VoteRecorded(_ context.Context, subjectType SubjectType, subjectID SubjectID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, subjectKey{subjectType, subjectID})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func countVotes(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&Vote{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count votes: %v", err)
	}
	return count
}

func mustVoterID(t *testing.T, value string) VoterID {
	t.Helper()
	id, err := NewVoterID(value)
	if err != nil {
		t.Fatalf("unexpected voter id error: %v", err)
	}
	return id
}
