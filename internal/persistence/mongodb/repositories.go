package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/persistence"
)

func identityKey(collection, id string) string {
	return collection + "/" + id
}

func wrapFindErr(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, id, persistence.ErrNotFound)
	}
	return fmt.Errorf("find %s %s: %w", what, id, err)
}

func wrapInsertErr(err error, what, id string) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s: %w", what, id, persistence.ErrDuplicateKey)
	}
	return fmt.Errorf("insert %s %s: %w", what, id, err)
}

// chatHistoryRepository stores chat turns inside the scope's
// transaction.
type chatHistoryRepository struct {
	scope *scope
}

func (r *chatHistoryRepository) Add(ctx context.Context, msg *domain.ChatMessage) error {
	sctx := r.scope.sessionCtx(ctx)
	if _, err := r.scope.coll(chatHistoryCollection).InsertOne(sctx, msg); err != nil {
		return wrapInsertErr(err, "chat message", msg.ID)
	}
	r.scope.identity[identityKey(chatHistoryCollection, msg.ID)] = msg
	return nil
}

func (r *chatHistoryRepository) Get(ctx context.Context, id string) (*domain.ChatMessage, error) {
	if cached, ok := r.scope.identity[identityKey(chatHistoryCollection, id)]; ok {
		return cached.(*domain.ChatMessage), nil
	}
	sctx := r.scope.sessionCtx(ctx)
	var msg domain.ChatMessage
	if err := r.scope.coll(chatHistoryCollection).FindOne(sctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, wrapFindErr(err, "chat message", id)
	}
	r.scope.identity[identityKey(chatHistoryCollection, id)] = &msg
	return &msg, nil
}

func (r *chatHistoryRepository) RecentHistory(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	sctx := r.scope.sessionCtx(ctx)
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.scope.coll(chatHistoryCollection).Find(sctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find recent chat history: %w", err)
	}
	defer cursor.Close(sctx)

	var newestFirst []*domain.ChatMessage
	if err := cursor.All(sctx, &newestFirst); err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}

	// Oldest first, and identical instances for aggregates already
	// loaded in this scope.
	msgs := make([]*domain.ChatMessage, len(newestFirst))
	for i, msg := range newestFirst {
		key := identityKey(chatHistoryCollection, msg.ID)
		if cached, ok := r.scope.identity[key]; ok {
			msg = cached.(*domain.ChatMessage)
		} else {
			r.scope.identity[key] = msg
		}
		msgs[len(newestFirst)-1-i] = msg
	}
	return msgs, nil
}

func (r *chatHistoryRepository) Remove(ctx context.Context, id string) error {
	sctx := r.scope.sessionCtx(ctx)
	res, err := r.scope.coll(chatHistoryCollection).DeleteOne(sctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete chat message %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("chat message %s: %w", id, persistence.ErrNotFound)
	}
	delete(r.scope.identity, identityKey(chatHistoryCollection, id))
	return nil
}

// instructionRepository stores system instructions with optimistic
// locking on updates.
type instructionRepository struct {
	scope *scope
}

func (r *instructionRepository) Add(ctx context.Context, si *domain.SystemInstruction) error {
	sctx := r.scope.sessionCtx(ctx)
	if _, err := r.scope.coll(instructionsCollection).InsertOne(sctx, si); err != nil {
		return wrapInsertErr(err, "system instruction", si.ID)
	}
	r.scope.identity[identityKey(instructionsCollection, si.ID)] = si
	return nil
}

func (r *instructionRepository) Get(ctx context.Context, id string) (*domain.SystemInstruction, error) {
	if cached, ok := r.scope.identity[identityKey(instructionsCollection, id)]; ok {
		return cached.(*domain.SystemInstruction), nil
	}
	sctx := r.scope.sessionCtx(ctx)
	var si domain.SystemInstruction
	if err := r.scope.coll(instructionsCollection).FindOne(sctx, bson.M{"_id": id}).Decode(&si); err != nil {
		return nil, wrapFindErr(err, "system instruction", id)
	}
	r.scope.identity[identityKey(instructionsCollection, id)] = &si
	return &si, nil
}

func (r *instructionRepository) FindActiveByProvider(ctx context.Context, provider string) (*domain.SystemInstruction, error) {
	sctx := r.scope.sessionCtx(ctx)
	var si domain.SystemInstruction
	filter := bson.M{"provider": provider, "active": true}
	if err := r.scope.coll(instructionsCollection).FindOne(sctx, filter).Decode(&si); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("active instruction for provider %s: %w", provider, persistence.ErrNotFound)
		}
		return nil, fmt.Errorf("find active instruction for provider %s: %w", provider, err)
	}
	key := identityKey(instructionsCollection, si.ID)
	if cached, ok := r.scope.identity[key]; ok {
		return cached.(*domain.SystemInstruction), nil
	}
	r.scope.identity[key] = &si
	return &si, nil
}

func (r *instructionRepository) Update(ctx context.Context, si *domain.SystemInstruction) error {
	sctx := r.scope.sessionCtx(ctx)
	readVersion := si.Version
	si.Version = readVersion + 1
	filter := bson.M{"_id": si.ID, "version": readVersion}
	res, err := r.scope.coll(instructionsCollection).ReplaceOne(sctx, filter, si)
	if err != nil {
		si.Version = readVersion
		return fmt.Errorf("update system instruction %s: %w", si.ID, err)
	}
	if res.MatchedCount == 0 {
		si.Version = readVersion
		return fmt.Errorf("system instruction %s at version %d: %w",
			si.ID, readVersion, persistence.ErrOptimisticLock)
	}
	r.scope.identity[identityKey(instructionsCollection, si.ID)] = si
	return nil
}

func (r *instructionRepository) Remove(ctx context.Context, id string) error {
	sctx := r.scope.sessionCtx(ctx)
	res, err := r.scope.coll(instructionsCollection).DeleteOne(sctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete system instruction %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("system instruction %s: %w", id, persistence.ErrNotFound)
	}
	delete(r.scope.identity, identityKey(instructionsCollection, id))
	return nil
}

// sessionRepository stores interaction sessions with optimistic
// locking on updates.
type sessionRepository struct {
	scope *scope
}

func (r *sessionRepository) Add(ctx context.Context, s *domain.Session) error {
	sctx := r.scope.sessionCtx(ctx)
	if _, err := r.scope.coll(sessionsCollection).InsertOne(sctx, s); err != nil {
		return wrapInsertErr(err, "session", s.ID)
	}
	r.scope.identity[identityKey(sessionsCollection, s.ID)] = s
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	if cached, ok := r.scope.identity[identityKey(sessionsCollection, id)]; ok {
		return cached.(*domain.Session), nil
	}
	sctx := r.scope.sessionCtx(ctx)
	var s domain.Session
	if err := r.scope.coll(sessionsCollection).FindOne(sctx, bson.M{"_id": id}).Decode(&s); err != nil {
		return nil, wrapFindErr(err, "session", id)
	}
	r.scope.identity[identityKey(sessionsCollection, id)] = &s
	return &s, nil
}

func (r *sessionRepository) Update(ctx context.Context, s *domain.Session) error {
	sctx := r.scope.sessionCtx(ctx)
	readVersion := s.Version
	s.Version = readVersion + 1
	filter := bson.M{"_id": s.ID, "version": readVersion}
	res, err := r.scope.coll(sessionsCollection).ReplaceOne(sctx, filter, s)
	if err != nil {
		s.Version = readVersion
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	if res.MatchedCount == 0 {
		s.Version = readVersion
		return fmt.Errorf("session %s at version %d: %w",
			s.ID, readVersion, persistence.ErrOptimisticLock)
	}
	r.scope.identity[identityKey(sessionsCollection, s.ID)] = s
	return nil
}
