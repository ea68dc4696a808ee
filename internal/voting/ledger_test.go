package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func testVote(subjectType SubjectType, subjectID SubjectID, voter string, decision Decision, createdAt int64) Vote {
	return Vote{
		SubjectType:      subjectType.String(),
		SubjectID:        subjectID.Int64(),
		VoterID:          voter,
		Decision:         decision.String(),
		CreatedAtSeconds: createdAt,
	}
}

func TestLedgerAppendRefusesSecondVoteFromSameVoter(t *testing.T) {
	ledger, db := openTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Append(ctx, testVote(SubjectTypeContract, 1, "alice", DecisionApprove, 10))
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected stored vote id")
	}

	_, err = ledger.Append(ctx, testVote(SubjectTypeContract, 1, "alice", DecisionReject, 11))
	var duplicate *DuplicateVoterError
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected duplicate voter error, got %v", err)
	}
	if duplicate.Existing.ID != first.ID || duplicate.Existing.Decision != DecisionApprove {
		t.Fatalf("expected the original vote to be reported, got %+v", duplicate.Existing)
	}
	if !IsDuplicateVoter(err) {
		t.Fatal("expected duplicate classification")
	}
	if count := countVotes(t, db); count != 1 {
		t.Fatalf("expected 1 stored vote, got %d", count)
	}
}

func TestLedgerScopesUniquenessToSubject(t *testing.T) {
	ledger, db := openTestLedger(t)
	ctx := context.Background()

	votes := []Vote{
		testVote(SubjectTypeContract, 1, "alice", DecisionApprove, 1),
		testVote(SubjectTypeContract, 2, "alice", DecisionApprove, 1),
		testVote(SubjectTypeRequest, 1, "alice", DecisionApprove, 1),
	}
	for _, vote := range votes {
		if _, err := ledger.Append(ctx, vote); err != nil {
			t.Fatalf("append %+v failed: %v", vote, err)
		}
	}
	if count := countVotes(t, db); count != 3 {
		t.Fatalf("expected 3 stored votes, got %d", count)
	}
}

func TestLedgerConcurrentSameVoterRecordsExactlyOnce(t *testing.T) {
	ledger, db := openTestLedger(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wait       sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for attempt := 0; attempt < attempts; attempt++ {
		wait.Add(1)
		go func(offset int) {
			defer wait.Done()
			_, err := ledger.Append(ctx, testVote(SubjectTypeDocument, 5, "bob", DecisionApprove, int64(offset)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case IsDuplicateVoter(err):
				duplicates++
			default:
				t.Errorf("unexpected append error: %v", err)
			}
		}(attempt)
	}
	wait.Wait()

	if successes != 1 || duplicates != attempts-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d and %d", attempts-1, successes, duplicates)
	}
	if count := countVotes(t, db); count != 1 {
		t.Fatalf("expected 1 stored vote, got %d", count)
	}
}

func TestLedgerDistinctVotersAllRecorded(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()

	const voters = 12
	var wait sync.WaitGroup
	for index := 0; index < voters; index++ {
		wait.Add(1)
		go func(voter int) {
			defer wait.Done()
			if _, err := ledger.Append(ctx, testVote(SubjectTypeContract, 3, fmt.Sprintf("voter-%d", voter), DecisionApprove, 1)); err != nil {
				t.Errorf("append for voter %d failed: %v", voter, err)
			}
		}(index)
	}
	wait.Wait()

	records, err := ledger.ListBySubject(ctx, SubjectTypeContract, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != voters {
		t.Fatalf("expected %d records, got %d", voters, len(records))
	}
}

func TestLedgerListBySubjectOrdersByCreation(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()

	for _, vote := range []Vote{
		testVote(SubjectTypeContract, 1, "late", DecisionApprove, 30),
		testVote(SubjectTypeContract, 1, "early", DecisionApprove, 10),
		testVote(SubjectTypeContract, 1, "middle", DecisionApprove, 20),
		testVote(SubjectTypeContract, 2, "other", DecisionApprove, 5),
	} {
		if _, err := ledger.Append(ctx, vote); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	records, err := ledger.ListBySubject(ctx, SubjectTypeContract, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	expected := []string{"early", "middle", "late"}
	if len(records) != len(expected) {
		t.Fatalf("expected %d records, got %d", len(expected), len(records))
	}
	for index, record := range records {
		if record.VoterID.String() != expected[index] {
			t.Fatalf("position %d: expected %s, got %s", index, expected[index], record.VoterID)
		}
	}
}

func TestLedgerListBySubjectsBatchesDocuments(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()

	for _, vote := range []Vote{
		testVote(SubjectTypeDocument, 1, "alice", DecisionApprove, 1),
		testVote(SubjectTypeDocument, 2, "alice", DecisionApprove, 2),
		testVote(SubjectTypeDocument, 3, "alice", DecisionApprove, 3),
		testVote(SubjectTypeContract, 1, "alice", DecisionApprove, 4),
	} {
		if _, err := ledger.Append(ctx, vote); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	records, err := ledger.ListBySubjects(ctx, SubjectTypeDocument, []SubjectID{1, 3})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 || records[0].SubjectID != 1 || records[1].SubjectID != 3 {
		t.Fatalf("unexpected batch %+v", records)
	}

	empty, err := ledger.ListBySubjects(ctx, SubjectTypeDocument, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result, got %v %v", empty, err)
	}
}

func TestLedgerSurfacesUnparsableDecisions(t *testing.T) {
	ledger, db := openTestLedger(t)
	ctx := context.Background()

	if err := db.Create(&Vote{SubjectType: "contract", SubjectID: 1, VoterID: "legacy", Decision: "maybe", CreatedAtSeconds: 1}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	records, err := ledger.ListBySubject(ctx, SubjectTypeContract, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Recognized() || records[0].RawDecision != "maybe" {
		t.Fatalf("expected raw decision to be preserved, got %+v", records[0])
	}
}

func TestLedgerFindReportsMissingVote(t *testing.T) {
	ledger, _ := openTestLedger(t)
	_, found, err := ledger.Find(context.Background(), SubjectTypeContract, 1, "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("did not expect a vote")
	}
}

func TestLedgerWithoutDatabase(t *testing.T) {
	var ledger *Ledger
	if _, err := ledger.Append(context.Background(), Vote{}); err == nil {
		t.Fatal("expected error for missing database")
	}
}
