package config

const (
	SessionStoreMemory  = "memory"
	SessionStoreMongoDB = "mongodb"
	SessionStoreRedis   = "redis"
)

type StoreConfig interface {
	GetSessionStore() string
	GetSessionCacheSize() int
}

type Store struct{}

var _ StoreConfig = Store{}

// GetSessionStore selects the session store backend (memory, mongodb or redis).
func (Store) GetSessionStore() string {
	return GetEnv("SESSION_STORE", SessionStoreMemory)
}

// GetSessionCacheSize caps the number of sessions held by the in-memory store.
func (Store) GetSessionCacheSize() int {
	return GetEnvInt("SESSION_CACHE_SIZE", 10000)
}
