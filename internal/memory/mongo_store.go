package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	messagesCollection  = "messages"
	summariesCollection = "summaries"
	episodesCollection  = "episodes"
)

// MongoStore implements the Store interface on top of MongoDB collections.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Store = (*MongoStore)(nil)

type messageDoc struct {
	ObjectID  primitive.ObjectID `bson:"_id,omitempty"`
	ID        string             `bson:"id"`
	Owner     string             `bson:"owner"`
	SessionID string             `bson:"session_id"`
	Role      string             `bson:"role"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"created_at"`
}

type summaryDoc struct {
	ID        string    `bson:"id"`
	Owner     string    `bson:"owner"`
	SessionID string    `bson:"session_id"`
	Scope     string    `bson:"scope"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"created_at"`
}

type episodeDoc struct {
	ObjectID   primitive.ObjectID `bson:"_id,omitempty"`
	ID         string             `bson:"id"`
	Owner      string             `bson:"owner"`
	SessionID  string             `bson:"session_id"`
	Fact       string             `bson:"fact"`
	Importance float64            `bson:"importance"`
	Embedding  []float32          `bson:"embedding,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

// NewMongoStore connects to the MongoDB deployment at uri and uses the named database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// InitSchema creates the indexes the store relies on, including the unique
// summary key that makes upserts single-row.
func (s *MongoStore) InitSchema(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		messagesCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		summariesCollection: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "scope", Value: 1}, {Key: "session_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		episodesCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}

	return nil
}

// AppendMessage stores a message.
func (s *MongoStore) AppendMessage(ctx context.Context, msg *Message) error {
	prepareMessage(msg)

	doc := messageDoc{
		ObjectID:  primitive.NewObjectID(),
		ID:        msg.ID,
		Owner:     msg.Owner,
		SessionID: msg.SessionID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	if _, err := s.db.Collection(messagesCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// RecentMessages returns the newest messages of a session, newest first.
func (s *MongoStore) RecentMessages(ctx context.Context, owner, sessionID string, limit int) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"owner": owner, "session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	messages := make([]Message, 0, len(docs))
	for _, d := range docs {
		messages = append(messages, Message{
			ID:        d.ID,
			Owner:     d.Owner,
			SessionID: d.SessionID,
			Role:      Role(d.Role),
			Content:   d.Content,
			CreatedAt: d.CreatedAt.UTC(),
		})
	}

	return messages, nil
}

// CountUserMessages counts user messages of a session, or of the owner when sessionID is empty.
func (s *MongoStore) CountUserMessages(ctx context.Context, owner, sessionID string) (int, error) {
	filter := bson.M{"owner": owner, "role": string(RoleUser)}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}

	n, err := s.db.Collection(messagesCollection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count user messages: %w", err)
	}

	return int(n), nil
}

// GetSummary returns the summary stored for the key.
func (s *MongoStore) GetSummary(ctx context.Context, owner string, scope Scope, sessionID string) (*Summary, error) {
	if scope == ScopeLifetime {
		sessionID = ""
	}

	var doc summaryDoc
	err := s.db.Collection(summariesCollection).
		FindOne(ctx, bson.M{"owner": owner, "scope": string(scope), "session_id": sessionID}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	sum := summaryFromDoc(doc)
	return &sum, nil
}

// UpsertSummary replaces the summary for its key with a single upsert.
// sum.ID is set to the ID of the stored document, which survives replacement.
func (s *MongoStore) UpsertSummary(ctx context.Context, sum *Summary) error {
	prepareSummary(sum)

	filter := bson.M{"owner": sum.Owner, "scope": string(sum.Scope), "session_id": sum.SessionID}
	update := bson.M{
		"$set":         bson.M{"text": sum.Text, "created_at": sum.CreatedAt},
		"$setOnInsert": bson.M{"id": sum.ID},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc summaryDoc
	err := s.db.Collection(summariesCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	sum.ID = doc.ID

	return nil
}

// ListSessionSummaries returns the owner's session summaries, newest first.
func (s *MongoStore) ListSessionSummaries(ctx context.Context, owner string, limit int) ([]Summary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(summariesCollection).Find(ctx, bson.M{"owner": owner, "scope": string(ScopeSession)}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}

	var docs []summaryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode summaries: %w", err)
	}

	summaries := make([]Summary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, summaryFromDoc(d))
	}

	return summaries, nil
}

// AppendEpisode stores a new episode.
func (s *MongoStore) AppendEpisode(ctx context.Context, ep *Episode) error {
	prepareEpisode(ep)

	doc := episodeDoc{
		ObjectID:   primitive.NewObjectID(),
		ID:         ep.ID,
		Owner:      ep.Owner,
		SessionID:  ep.SessionID,
		Fact:       ep.Fact,
		Importance: ep.Importance,
		Embedding:  ep.Embedding,
		CreatedAt:  ep.CreatedAt,
	}
	if _, err := s.db.Collection(episodesCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save episode: %w", err)
	}

	return nil
}

// ListEpisodes loads all episodes in scope, oldest first.
func (s *MongoStore) ListEpisodes(ctx context.Context, owner, sessionID string) ([]Episode, error) {
	filter := bson.M{"owner": owner}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	return s.findEpisodes(ctx, filter, opts)
}

// RecentEpisodes returns the newest episodes of a session.
func (s *MongoStore) RecentEpisodes(ctx context.Context, owner, sessionID string, limit int) ([]Episode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return s.findEpisodes(ctx, bson.M{"owner": owner, "session_id": sessionID}, opts)
}

func (s *MongoStore) findEpisodes(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Episode, error) {
	cur, err := s.db.Collection(episodesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}

	var docs []episodeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode episodes: %w", err)
	}

	episodes := make([]Episode, 0, len(docs))
	for _, d := range docs {
		episodes = append(episodes, Episode{
			ID:         d.ID,
			Owner:      d.Owner,
			SessionID:  d.SessionID,
			Fact:       d.Fact,
			Importance: d.Importance,
			Embedding:  d.Embedding,
			CreatedAt:  d.CreatedAt.UTC(),
		})
	}

	return episodes, nil
}

// DailyMessageCounts groups messages by UTC day and returns the most recent days, ascending.
func (s *MongoStore) DailyMessageCounts(ctx context.Context, owner string, days int) ([]DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner": owner}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": -1}}},
	}
	if days > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: days}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}})

	cur, err := s.db.Collection(messagesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate messages: %w", err)
	}

	var rows []struct {
		Day   string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode daily counts: %w", err)
	}

	counts := make([]DailyCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, DailyCount{Date: r.Day, Count: r.Count})
	}

	return counts, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func summaryFromDoc(d summaryDoc) Summary {
	return Summary{
		ID:        d.ID,
		Owner:     d.Owner,
		SessionID: d.SessionID,
		Scope:     Scope(d.Scope),
		Text:      d.Text,
		CreatedAt: d.CreatedAt.UTC(),
	}
}
