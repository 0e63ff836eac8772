package mongodb

import (
	"context"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	envconfigPrefix = "MONGODB"
	connectTimeout  = 10 * time.Second
)

// config represents the connection options for the session database
type config struct {
	URI        string `envconfig:"URI" default:"mongodb://localhost/dev"`
	Database   string `envconfig:"DATABASE" default:"dev"`
	Collection string `envconfig:"COLLECTION" default:"sessions"`
}

// Database connects to the MongoDB database specified by environment variables
// and returns it together with the configured sessions collection name.
func Database(ctx context.Context) (*mongo.Database, string, error) {
	c := config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return nil, "", errors.Wrap(err, "error getting mongo configuration from environment")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(c.URI))
	if err != nil {
		return nil, "", errors.Wrap(err, "error connecting to mongo")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, "", errors.Wrap(err, "error pinging mongo")
	}
	return client.Database(c.Database), c.Collection, nil
}
