package mongodb

import (
	"context"
	"time"

	internalerrors "github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const createIndexTimeout = 5 * time.Second

var _ sessions.Repo = (*Repo)(nil)

// document is the stored shape of a session. A TTL index on expiresAt reaps it.
type document struct {
	ID          string    `bson:"_id"`
	AuthType    string    `bson:"authType"`
	OpenedAt    time.Time `bson:"openedAt"`
	ExpiresAt   time.Time `bson:"expiresAt"`
	APIVersion  string    `bson:"apiVersion"`
	ExternalID  string    `bson:"externalId"`
	Name        string    `bson:"name"`
	Username    string    `bson:"username"`
	AccessToken string    `bson:"accessToken"`
	InstanceURL string    `bson:"instanceUrl"`
}

func toDocument(sessionID string, s sessions.Session, expiresAt time.Time) document {
	return document{
		ID:          sessionID,
		AuthType:    string(s.AuthType),
		OpenedAt:    s.OpenedAt,
		ExpiresAt:   expiresAt,
		APIVersion:  s.APIVersion,
		ExternalID:  s.Identity.ExternalID,
		Name:        s.Identity.Name,
		Username:    s.Identity.Username,
		AccessToken: s.Credentials.AccessToken,
		InstanceURL: s.Credentials.InstanceURL,
	}
}

func (d document) session() sessions.Session {
	return sessions.Session{
		AuthType:   sessions.AuthType(d.AuthType),
		OpenedAt:   d.OpenedAt,
		APIVersion: d.APIVersion,
		Identity: sessions.Identity{
			ExternalID: d.ExternalID,
			Name:       d.Name,
			Username:   d.Username,
		},
		Credentials: sessions.Credentials{
			AccessToken: d.AccessToken,
			InstanceURL: d.InstanceURL,
		},
	}
}

type Repo struct {
	collection *mongo.Collection
	ttl        time.Duration
	nowTime    func() time.Time
}

// NewRepo returns a session store backed by the named collection, creating the
// TTL index if it does not exist.
func NewRepo(database *mongo.Database, collectionName string, ttl time.Duration) (*Repo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), createIndexTimeout)
	defer cancel()
	collection := database.Collection(collectionName)
	if _, err := collection.Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys:    bson.M{"expiresAt": 1},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	); err != nil {
		return nil, errors.Wrap(err, "error adding ttl index to sessions collection")
	}
	return &Repo{
		collection: collection,
		ttl:        ttl,
		nowTime:    time.Now,
	}, nil
}

func (r *Repo) Get(ctx context.Context, sessionID string) (sessions.Session, error) {
	doc := document{}
	res := r.collection.FindOne(ctx, bson.M{"_id": sessionID})
	if res.Err() == mongo.ErrNoDocuments {
		return sessions.Session{}, internalerrors.ErrSessionNotFound
	}
	if res.Err() != nil {
		return sessions.Session{}, errors.Wrapf(res.Err(), "error finding session %q", sessionID)
	}
	if err := res.Decode(&doc); err != nil {
		return sessions.Session{}, errors.Wrapf(err, "error decoding session %q", sessionID)
	}
	// The TTL monitor runs periodically; hide documents it has not reaped yet.
	if !doc.ExpiresAt.IsZero() && r.nowTime().After(doc.ExpiresAt) {
		return sessions.Session{}, internalerrors.ErrSessionNotFound
	}
	return doc.session(), nil
}

func (r *Repo) Upsert(ctx context.Context, sessionID string, session sessions.Session) error {
	if err := sessions.CheckWritable(sessionID, session); err != nil {
		return errors.Wrapf(err, "error storing session %q", sessionID)
	}
	var expiresAt time.Time
	if r.ttl > 0 {
		expiresAt = r.nowTime().Add(r.ttl)
	}
	if _, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": sessionID},
		toDocument(sessionID, session, expiresAt),
		options.Replace().SetUpsert(true),
	); err != nil {
		return errors.Wrapf(err, "error upserting session %q", sessionID)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return errors.Wrapf(err, "error deleting session %q", sessionID)
	}
	return nil
}
