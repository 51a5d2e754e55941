package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/entryway-auth/entryway/domain"
)

// SessionRepositoryMongo implements domain.SessionRepository using MongoDB.
//
// The unique index on token_digest together with the TTL index on expires_at
// is what gives "digest unique among available sessions": expired documents
// get reaped, freeing their digests.
type SessionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewSessionRepositoryMongo creates the repository and ensures its indexes.
func NewSessionRepositoryMongo(ctx context.Context, db *mongo.Database) (*SessionRepositoryMongo, error) {
	repo := &SessionRepositoryMongo{
		collection: db.Collection(SessionsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "token_digest", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "principal_kind", Value: 1}, {Key: "principal_id", Value: 1}},
			Options: options.Index(),
		},
		{
			// TTL cleanup of expired sessions.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		// Indexes may already exist; anything else will surface on first write.
		log.Warn().Err(err).Msg("Issue creating indexes for passwordless_sessions collection")
	}

	return repo, nil
}

// Insert implements domain.SessionRepository.
func (r *SessionRepositoryMongo) Insert(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		session.ID = bson.NewObjectID().Hex()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateTokenDigest
		}
		log.Error().Err(err).Msg("Error storing session in MongoDB")
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// FindByIdentifier implements domain.SessionRepository.
func (r *SessionRepositoryMongo) FindByIdentifier(ctx context.Context, identifier string) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{"identifier": identifier}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		log.Error().Err(err).Msg("Error getting session by identifier from MongoDB")
		return nil, fmt.Errorf("finding session by identifier: %w", err)
	}
	return &session, nil
}

// FindByTokenDigest implements domain.SessionRepository.
func (r *SessionRepositoryMongo) FindByTokenDigest(ctx context.Context, kind, digest string) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{
		"principal_kind": kind,
		"token_digest":   digest,
	}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		log.Error().Err(err).Msg("Error getting session by token digest from MongoDB")
		return nil, fmt.Errorf("finding session by digest: %w", err)
	}
	return &session, nil
}

// MarkClaimed implements domain.SessionRepository. The filter only matches an
// unclaimed document, so touching claimed_at is atomic even when two redeem
// requests race: exactly one of them wins.
func (r *SessionRepositoryMongo) MarkClaimed(ctx context.Context, id string, at time.Time) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "claimed_at": nil},
		bson.M{"$set": bson.M{"claimed_at": at}},
	)
	if err != nil {
		log.Error().Err(err).Msg("Error marking session claimed in MongoDB")
		return fmt.Errorf("marking session claimed: %w", err)
	}
	if result.MatchedCount == 0 {
		// Either the session is gone or someone claimed it first.
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("checking session after failed claim: %w", err)
		}
		if count == 0 {
			return domain.ErrSessionNotFound
		}
		return domain.ErrTokenAlreadyClaimed
	}
	return nil
}

var _ domain.SessionRepository = (*SessionRepositoryMongo)(nil)
