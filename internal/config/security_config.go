package config

import "time"

type SecurityConfig interface {
	GetSessionSecret() string
	GetMaxSessionAge() time.Duration
	GetSecureCookies() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Security) GetMaxSessionAge() time.Duration {
	return GetEnvDuration("SESSION_MAX_AGE", time.Hour)
}

func (Security) GetSecureCookies() bool {
	return GetEnvBool("SECURE_COOKIES", EnvVars{}.GetEnv() != "DEV")
}
