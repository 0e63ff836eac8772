package config

import "time"

type PlatformConfig interface {
	GetAPIVersion() string
	GetRESTBasePath() string
	GetRequestTimeout() time.Duration
	GetNegotiateAPIVersion() bool
}

type Platform struct{}

var _ PlatformConfig = Platform{}

// GetAPIVersion is the default REST API version used before (or instead of) negotiation.
func (Platform) GetAPIVersion() string {
	return GetEnv("API_VERSION", "48.0")
}

func (Platform) GetRESTBasePath() string {
	return GetEnv("API_ENDPOINT", "/services/data")
}

// GetRequestTimeout bounds every provider call made while establishing or revoking a session.
func (Platform) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 15*time.Second)
}

func (Platform) GetNegotiateAPIVersion() bool {
	return GetEnvBool("NEGOTIATE_API_VERSION", true)
}
