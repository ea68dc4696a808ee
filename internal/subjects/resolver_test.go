package subjects

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/samigerges/workflow-sub001/internal/allocation"
	"github.com/samigerges/workflow-sub001/internal/entities"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

var resolverSequence atomic.Int64

type resolverFixture struct {
	resolver *Resolver
	store    *entities.Store
	ledger   *voting.Ledger
	logs     *observer.ObservedLogs
}

func newResolverFixture(t *testing.T) resolverFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:subjects_%d?mode=memory&cache=shared", resolverSequence.Add(1))
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
	models := append(entities.Models(), &voting.Vote{})
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	store, err := entities.NewStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ledger := voting.NewLedger(db)
	core, logs := observer.New(zap.WarnLevel)
	resolver, err := NewResolver(ResolverConfig{Entities: store, Ledger: ledger, Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	return resolverFixture{resolver: resolver, store: store, ledger: ledger, logs: logs}
}

func mustQuantity(value string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(value))
}

func TestResolverSubjectExistsPerType(t *testing.T) {
	fixture := newResolverFixture(t)
	ctx := context.Background()

	contract, _ := fixture.store.CreateContract(ctx, "C-1", decimal.RequireFromString("10"))
	request, _ := fixture.store.CreateContractRequest(ctx, "Sugar")
	document, _ := fixture.store.CreateDocument(ctx, "contract", contract.ID, "bl.pdf", "uploads/bl.pdf")

	testCases := []struct {
		subjectType voting.SubjectType
		subjectID   int64
		expected    bool
	}{
		{voting.SubjectTypeContract, contract.ID, true},
		{voting.SubjectTypeRequest, request.ID, true},
		{voting.SubjectTypeDocument, document.ID, true},
		{voting.SubjectTypeContract, 999, false},
		{voting.SubjectTypeDocument, 0, false},
	}
	for _, testCase := range testCases {
		exists, err := fixture.resolver.SubjectExists(ctx, testCase.subjectType, voting.SubjectID(testCase.subjectID))
		if err != nil {
			t.Fatalf("%s/%d: unexpected error: %v", testCase.subjectType, testCase.subjectID, err)
		}
		if exists != testCase.expected {
			t.Fatalf("%s/%d: expected %v", testCase.subjectType, testCase.subjectID, testCase.expected)
		}
	}
	if _, err := fixture.resolver.SubjectExists(ctx, voting.SubjectType("vessel"), 1); !errors.Is(err, voting.ErrInvalidSubjectType) {
		t.Fatalf("expected invalid subject type, got %v", err)
	}
}

func TestResolverDocumentReference(t *testing.T) {
	fixture := newResolverFixture(t)
	ctx := context.Background()

	document, _ := fixture.store.CreateDocument(ctx, "request", 1, "offer.pdf", "uploads/offer.pdf")
	reference, err := fixture.resolver.DocumentReference(ctx, voting.SubjectID(document.ID))
	if err != nil {
		t.Fatalf("reference failed: %v", err)
	}
	if reference.FileName != "offer.pdf" || reference.FilePath != "uploads/offer.pdf" {
		t.Fatalf("unexpected reference %+v", reference)
	}
	if _, err := fixture.resolver.DocumentReference(ctx, 999); !voting.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolverVotesRequiresSubject(t *testing.T) {
	fixture := newResolverFixture(t)
	ctx := context.Background()

	if _, err := fixture.resolver.Votes(ctx, voting.SubjectTypeContract, 1); !voting.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	contract, _ := fixture.store.CreateContract(ctx, "C-1", decimal.RequireFromString("10"))
	if _, err := fixture.ledger.Append(ctx, voting.Vote{SubjectType: "contract", SubjectID: contract.ID, VoterID: "alice", Decision: "approve", CreatedAtSeconds: 1}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	votes, err := fixture.resolver.Votes(ctx, voting.SubjectTypeContract, voting.SubjectID(contract.ID))
	if err != nil {
		t.Fatalf("votes failed: %v", err)
	}
	if len(votes) != 1 || votes[0].VoterID != "alice" {
		t.Fatalf("unexpected votes %+v", votes)
	}
}

func TestResolverContractChildrenFilterByContract(t *testing.T) {
	fixture := newResolverFixture(t)
	ctx := context.Background()

	contract, _ := fixture.store.CreateContract(ctx, "C-1", decimal.RequireFromString("1000"))
	other, _ := fixture.store.CreateContract(ctx, "C-2", decimal.RequireFromString("1000"))
	_, _ = fixture.store.CreateVessel(ctx, contract.ID, "MV One", mustQuantity("300"))
	_, _ = fixture.store.CreateVessel(ctx, contract.ID, "MV Two", mustQuantity("250"))
	_, _ = fixture.store.CreateVessel(ctx, other.ID, "MV Elsewhere", mustQuantity("900"))

	capacity, children, err := fixture.resolver.AllocationChildren(ctx, allocation.EntityTypeContract, allocation.EntityID(contract.ID))
	if err != nil {
		t.Fatalf("children failed: %v", err)
	}
	summary := allocation.Reconcile(capacity, children)
	if !summary.Allocated.Equal(decimal.RequireFromString("550")) || !summary.Remaining.Equal(decimal.RequireFromString("450")) {
		t.Fatalf("expected 550/450, got %s/%s", summary.Allocated, summary.Remaining)
	}
}

func TestResolverLetterOfCreditUsesRelationQuantity(t *testing.T) {
	fixture := newResolverFixture(t)
	ctx := context.Background()

	contract, _ := fixture.store.CreateContract(ctx, "C-1", decimal.RequireFromString("1000"))
	vessel, _ := fixture.store.CreateVessel(ctx, contract.ID, "MV One", mustQuantity("500"))
	letter, _ := fixture.store.CreateLetterOfCredit(ctx, "LC-1", decimal.RequireFromString("600"))
	if _, err := fixture.store.UpsertLetterOfCreditVessel(ctx, letter.ID, vessel.ID, mustQuantity("200")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	capacity, children, err := fixture.resolver.AllocationChildren(ctx, allocation.EntityTypeLetterOfCredit, allocation.EntityID(letter.ID))
	if err != nil {
		t.Fatalf("children failed: %v", err)
	}
	summary := allocation.Reconcile(capacity, children)
	if !summary.Allocated.Equal(decimal.RequireFromString("200")) || !summary.Remaining.Equal(decimal.RequireFromString("400")) {
		t.Fatalf("expected relation quantity 200 to be allocated, got %s/%s", summary.Allocated, summary.Remaining)
	}

	if _, _, err := fixture.resolver.AllocationChildren(ctx, allocation.EntityTypeLetterOfCredit, 999); !allocation.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolverDocumentVoteGroups(t *testing.T) {
	fixture := newResolverFixture(t)
	ctx := context.Background()

	request, _ := fixture.store.CreateContractRequest(ctx, "Corn")
	offer, _ := fixture.store.CreateDocument(ctx, "request", request.ID, "offer.pdf", "uploads/offer.pdf")
	quote, _ := fixture.store.CreateDocument(ctx, "request", request.ID, "quote.pdf", "uploads/quote.pdf")
	reupload, _ := fixture.store.CreateDocument(ctx, "request", request.ID, "offer.pdf", "uploads/offer.pdf")
	_, _ = fixture.store.CreateDocument(ctx, "request", request.ID, "terms.pdf", "uploads/terms.pdf")

	for _, vote := range []voting.Vote{
		{SubjectType: "document", SubjectID: offer.ID, VoterID: "alice", Decision: "approve", CreatedAtSeconds: 1},
		{SubjectType: "document", SubjectID: reupload.ID, VoterID: "bob", Decision: "reject", Comment: "blurry", CreatedAtSeconds: 2},
		{SubjectType: "document", SubjectID: quote.ID, VoterID: "alice", Decision: "approve", CreatedAtSeconds: 3},
		{SubjectType: "document", SubjectID: quote.ID, VoterID: "carol", Decision: "unsure", CreatedAtSeconds: 4},
	} {
		if _, err := fixture.ledger.Append(ctx, vote); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	groups, err := fixture.resolver.DocumentVoteGroups(ctx, voting.SubjectTypeRequest, voting.SubjectID(request.ID))
	if err != nil {
		t.Fatalf("groups failed: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	offerGroup := groups[0]
	if offerGroup.Document.FileName != "offer.pdf" || len(offerGroup.DocumentIDs) != 2 {
		t.Fatalf("expected re-uploaded offer to share a group, got %+v", offerGroup)
	}
	if offerGroup.Decision.Status != voting.StatusRejected || len(offerGroup.Votes) != 2 {
		t.Fatalf("expected rejected offer group, got %+v", offerGroup.Decision)
	}
	if groups[1].Document.FileName != "quote.pdf" || groups[1].Decision.Status != voting.StatusApproved || groups[1].Decision.Unrecognized != 1 {
		t.Fatalf("unexpected quote group %+v", groups[1].Decision)
	}
	if groups[2].Document.FileName != "terms.pdf" || groups[2].Decision.Status != voting.StatusNoVotes {
		t.Fatalf("expected unvoted terms group, got %+v", groups[2])
	}
	if fixture.logs.FilterMessage("vote decision unrecognized").Len() != 1 {
		t.Fatal("expected unrecognized decision warning")
	}

	if _, err := fixture.resolver.DocumentVoteGroups(ctx, voting.SubjectTypeContract, 999); !voting.IsNotFound(err) {
		t.Fatalf("expected not found for missing owner, got %v", err)
	}
}
