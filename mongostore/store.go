// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/campusvote/livetally/domainerr"
	"github.com/campusvote/livetally/ledger"
	"github.com/campusvote/livetally/models"
)

// Collection names
const (
	ElectionsCollection  = "elections"
	CandidatesCollection = "candidates"
	VotesCollection      = "votes"
)

const uniqueVoteIndex = "uniq_election_voter"

// Store implements ledger.Store and ledger.Catalog on MongoDB. Elections and
// candidates may use ObjectID or string ids; votes always use string ids.
type Store struct {
	client     *mongo.Client
	elections  *mongo.Collection
	candidates *mongo.Collection
	votes      *mongo.Collection
}

type electionDoc struct {
	ID                  bson.RawValue `bson:"_id"`
	Title               string        `bson:"title"`
	Status              string        `bson:"status"`
	Positions           []string      `bson:"positions"`
	TotalEligibleVoters int           `bson:"totalEligibleVoters"`
	StartDate           *time.Time    `bson:"startDate,omitempty"`
	EndDate             *time.Time    `bson:"endDate,omitempty"`
	EligibleVoterIDs    []string      `bson:"eligibleVoterIds,omitempty"`
}

type candidateDoc struct {
	ID         bson.RawValue `bson:"_id"`
	ElectionID bson.RawValue `bson:"electionId"`
	Position   string        `bson:"position"`
	Name       string        `bson:"name"`
}

type voteDoc struct {
	ID          string    `bson:"_id"`
	ElectionID  string    `bson:"electionId"`
	VoterID     string    `bson:"voterId"`
	CandidateID string    `bson:"candidateId"`
	Position    string    `bson:"position"`
	CastAt      time.Time `bson:"castAt"`
}

// Connect opens a client, verifies it and makes sure the unique vote index exists.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:     client,
		elections:  db.Collection(ElectionsCollection),
		candidates: db.Collection(CandidatesCollection),
		votes:      db.Collection(VotesCollection),
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

// EnsureIndexes creates the unique (electionId, voterId) index on votes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.votes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "electionId", Value: 1}, {Key: "voterId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(uniqueVoteIndex),
		},
		{
			Keys: bson.D{{Key: "voterId", Value: 1}, {Key: "castAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "candidateId", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create vote indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return classify(s.client.Ping(ctx, readpref.Primary()))
}

func (s *Store) InsertVoteIfAbsent(ctx context.Context, vote models.Vote) error {
	_, err := s.votes.InsertOne(ctx, voteDoc{
		ID:          vote.ID,
		ElectionID:  vote.ElectionID,
		VoterID:     vote.VoterID,
		CandidateID: vote.CandidateID,
		Position:    vote.Position,
		CastAt:      vote.CastAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: election %s", domainerr.ErrDuplicateVote, vote.ElectionID)
		}
		slog.Error("failed to insert vote", "error", err, "election_id", vote.ElectionID)
		return classify(err)
	}
	return nil
}

func (s *Store) GetVoterVote(ctx context.Context, electionID, voterID string) (models.Vote, bool, error) {
	var doc voteDoc
	err := s.votes.FindOne(ctx, bson.M{"electionId": electionID, "voterId": voterID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Vote{}, false, nil
	}
	if err != nil {
		return models.Vote{}, false, classify(err)
	}
	return doc.toModel(), true, nil
}

func (s *Store) ListVotes(ctx context.Context, electionID string) ([]models.Vote, error) {
	return s.findVotes(ctx, bson.M{"electionId": electionID},
		bson.D{{Key: "castAt", Value: 1}, {Key: "_id", Value: 1}})
}

func (s *Store) ListVoterVotes(ctx context.Context, voterID string) ([]models.Vote, error) {
	return s.findVotes(ctx, bson.M{"voterId": voterID},
		bson.D{{Key: "castAt", Value: -1}, {Key: "_id", Value: 1}})
}

func (s *Store) findVotes(ctx context.Context, filter bson.M, order bson.D) ([]models.Vote, error) {
	cursor, err := s.votes.Find(ctx, filter, options.Find().SetSort(order))
	if err != nil {
		return nil, classify(err)
	}

	var docs []voteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}

	votes := make([]models.Vote, 0, len(docs))
	for _, d := range docs {
		votes = append(votes, d.toModel())
	}
	return votes, nil
}

func (s *Store) GetElection(ctx context.Context, id string) (models.Election, bool, error) {
	doc, found, err := s.findElection(ctx, id)
	if err != nil || !found {
		return models.Election{}, found, err
	}

	positions := doc.Positions
	if positions == nil {
		positions = []string{}
	}
	return models.Election{
		ID:                  idString(doc.ID),
		Title:               doc.Title,
		Status:              doc.Status,
		Positions:           positions,
		TotalEligibleVoters: doc.TotalEligibleVoters,
		StartDate:           doc.StartDate,
		EndDate:             doc.EndDate,
	}, true, nil
}

func (s *Store) findElection(ctx context.Context, id string) (electionDoc, bool, error) {
	var doc electionDoc
	err := s.elections.FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return electionDoc{}, false, nil
	}
	if err != nil {
		return electionDoc{}, false, classify(err)
	}
	return doc, true, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (models.Candidate, bool, error) {
	var doc candidateDoc
	err := s.candidates.FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Candidate{}, false, nil
	}
	if err != nil {
		return models.Candidate{}, false, classify(err)
	}
	return doc.toModel(), true, nil
}

func (s *Store) ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	filter := bson.M{"electionId": bson.M{"$in": idVariants(electionID)}}
	cursor, err := s.candidates.Find(ctx, filter)
	if err != nil {
		return nil, classify(err)
	}

	var docs []candidateDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}

	candidates := make([]models.Candidate, 0, len(docs))
	for _, d := range docs {
		candidates = append(candidates, d.toModel())
	}
	sortCandidates(candidates)
	return candidates, nil
}

// IsEligible checks the election's optional eligibleVoterIds list.
func (s *Store) IsEligible(ctx context.Context, electionID, voterID string) (bool, error) {
	doc, found, err := s.findElection(ctx, electionID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if len(doc.EligibleVoterIDs) == 0 {
		return true, nil
	}
	for _, id := range doc.EligibleVoterIDs {
		if id == voterID {
			return true, nil
		}
	}
	return false, nil
}

func (d voteDoc) toModel() models.Vote {
	return models.Vote{
		ID:          d.ID,
		ElectionID:  d.ElectionID,
		VoterID:     d.VoterID,
		CandidateID: d.CandidateID,
		Position:    d.Position,
		CastAt:      d.CastAt.UTC(),
	}
}

func (d candidateDoc) toModel() models.Candidate {
	return models.Candidate{
		ID:         idString(d.ID),
		ElectionID: idString(d.ElectionID),
		Position:   d.Position,
		Name:       d.Name,
	}
}

// idVariants matches a hex id stored either as ObjectID or as a plain string
func idVariants(id string) bson.A {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.A{oid, id}
	}
	return bson.A{id}
}

func idFilter(id string) bson.M {
	return bson.M{"_id": bson.M{"$in": idVariants(id)}}
}

func idString(v bson.RawValue) string {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	case bsontype.String:
		return v.StringValue()
	case 0:
		return ""
	default:
		return v.String()
	}
}

func sortCandidates(candidates []models.Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})
}

func classify(err error) error {
	if err == nil || domainerr.IsTimeout(err) {
		return err
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", domainerr.ErrStorageUnavailable, err)
	}
	return err
}

var _ ledger.Store = (*Store)(nil)
var _ ledger.Catalog = (*Store)(nil)
