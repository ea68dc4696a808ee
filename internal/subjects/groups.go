package subjects

import "github.com/samigerges/workflow-sub001/internal/voting"

// DocumentVoteGroup collects the votes cast on one uploaded file.
type DocumentVoteGroup struct {
	Document    voting.DocumentRef
	DocumentIDs []int64
	Votes       []voting.VoteRecord
	Decision    voting.AggregateDecision
}

// GroupBySubjectDocument partitions votes by (file name, file path) in first-seen
// order and computes one aggregate per group.
func GroupBySubjectDocument(votes []voting.VoteRecord) []DocumentVoteGroup {
	grouper := newDocumentGrouper()
	for _, vote := range votes {
		grouper.addVote(vote)
	}
	return grouper.groups()
}

type documentGrouper struct {
	order   []voting.DocumentRef
	byRef   map[voting.DocumentRef]*DocumentVoteGroup
	seenIDs map[voting.DocumentRef]map[int64]struct{}
}

func newDocumentGrouper() *documentGrouper {
	return &documentGrouper{
		byRef:   make(map[voting.DocumentRef]*DocumentVoteGroup),
		seenIDs: make(map[voting.DocumentRef]map[int64]struct{}),
	}
}

func (grouper *documentGrouper) group(reference voting.DocumentRef) *DocumentVoteGroup {
	if existing, ok := grouper.byRef[reference]; ok {
		return existing
	}
	created := &DocumentVoteGroup{Document: reference, DocumentIDs: []int64{}, Votes: []voting.VoteRecord{}}
	grouper.byRef[reference] = created
	grouper.seenIDs[reference] = make(map[int64]struct{})
	grouper.order = append(grouper.order, reference)
	return created
}

func (grouper *documentGrouper) addDocument(reference voting.DocumentRef, documentID voting.SubjectID) {
	target := grouper.group(reference)
	grouper.noteID(reference, target, documentID.Int64())
}

func (grouper *documentGrouper) addVote(vote voting.VoteRecord) {
	target := grouper.group(vote.Document)
	target.Votes = append(target.Votes, vote)
	if vote.SubjectType == voting.SubjectTypeDocument {
		grouper.noteID(vote.Document, target, vote.SubjectID.Int64())
	}
}

func (grouper *documentGrouper) noteID(reference voting.DocumentRef, target *DocumentVoteGroup, documentID int64) {
	seen := grouper.seenIDs[reference]
	if _, ok := seen[documentID]; ok {
		return
	}
	seen[documentID] = struct{}{}
	target.DocumentIDs = append(target.DocumentIDs, documentID)
}

func (grouper *documentGrouper) groups() []DocumentVoteGroup {
	result := make([]DocumentVoteGroup, 0, len(grouper.order))
	for _, reference := range grouper.order {
		group := grouper.byRef[reference]
		group.Decision = voting.Aggregate(group.Votes)
		result = append(result, *group)
	}
	return result
}
