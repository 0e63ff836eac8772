package redis

import (
	"crypto/tls"
	"fmt"

	"github.com/go-redis/redis"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envconfigPrefix = "REDIS"

// config represents common configuration options for a Redis connection
type config struct {
	Host      string `envconfig:"HOST" default:"localhost"`
	Port      int    `envconfig:"PORT" default:"6379"`
	Password  string `envconfig:"PASSWORD"`
	DB        int    `envconfig:"DB"`
	EnableTLS bool   `envconfig:"ENABLE_TLS"`
	Prefix    string `envconfig:"PREFIX" default:"crm-session:"`
}

// Client returns a connection to a Redis database specified by environment
// variables, along with the key prefix sessions should be stored under.
func Client() (*redis.Client, string, error) {
	c := config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return nil, "", errors.Wrap(err, "error getting redis configuration from environment")
	}

	redisOpts := &redis.Options{
		Addr:       fmt.Sprintf("%s:%d", c.Host, c.Port),
		Password:   c.Password,
		DB:         c.DB,
		MaxRetries: 3,
	}
	if c.EnableTLS {
		redisOpts.TLSConfig = &tls.Config{
			ServerName: c.Host,
		}
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping().Err(); err != nil {
		return nil, "", errors.Wrap(err, "error pinging redis")
	}
	return client, c.Prefix, nil
}
