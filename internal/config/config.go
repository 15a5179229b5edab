// Package config resolves the single immutable Configuration record the
// control plane reads once at startup (spec §4.8). It is the only
// process-wide piece of shared state beyond the metrics recorder (spec §5),
// and is never re-read after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	apperrors "github.com/streamspace/playground/internal/errors"
)

// Configuration is resolved once at startup from environment inputs. A
// missing required variable is fatal: mustEnv calls through to a
// *apperrors.AppError of Kind MissingEnvironmentVariable and the caller
// (cmd/main.go) logs and exits, exactly as the original source's
// Engine::new() and the teacher's cmd/main.go getEnv helpers do.
type Configuration struct {
	// GithubClientID/Secret are handed to the identity provider collaborator;
	// the control plane itself never performs the OAuth exchange.
	GithubClientID     string
	GithubClientSecret string

	WorkspaceBaseImage       string
	WorkspaceDefaultDuration time.Duration
	WorkspaceMaxDuration     time.Duration
	DefaultPoolAffinity      string
	MaxSessionsPerNode       int

	// ControlNamespace is the namespace holding the singleton Ingress, the
	// playground-roles and playground-repositories config maps, and the
	// per-session ExternalName services.
	ControlNamespace string

	// IngressHost is read from the existing singleton Ingress at startup if
	// present, falling back to "localhost", matching Engine::new()'s host
	// resolution in the original source.
	IngressHost string

	JWTSecret []byte
	JWTIssuer string

	HTTPPort        string
	ShutdownTimeout time.Duration

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

// Load reads every required environment variable, returning a
// *apperrors.AppError of Kind MissingEnvironmentVariable on the first one
// missing or malformed.
func Load() (*Configuration, error) {
	githubClientID, err := mustEnv("GITHUB_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	githubClientSecret, err := mustEnv("GITHUB_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}
	baseImage, err := mustEnv("WORKSPACE_BASE_IMAGE")
	if err != nil {
		return nil, err
	}
	defaultDuration, err := mustEnvMinutes("WORKSPACE_DEFAULT_DURATION")
	if err != nil {
		return nil, err
	}
	maxDuration, err := mustEnvMinutes("WORKSPACE_MAX_DURATION")
	if err != nil {
		return nil, err
	}
	poolAffinity, err := mustEnv("WORKSPACE_DEFAULT_POOL_AFFINITY")
	if err != nil {
		return nil, err
	}
	maxPerNode, err := mustEnvInt("WORKSPACE_DEFAULT_MAX_PER_NODE")
	if err != nil {
		return nil, err
	}

	controlNamespace := os.Getenv("PLAYGROUND_CONTROL_NAMESPACE")
	if controlNamespace == "" {
		controlNamespace = "playground"
	}

	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "playground-api"
	}

	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		httpPort = "8080"
	}
	shutdownTimeout := 30 * time.Second
	if raw := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); raw != "" {
		if n, parseErr := strconv.Atoi(raw); parseErr == nil {
			shutdownTimeout = time.Duration(n) * time.Second
		}
	}

	redisDB := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if n, parseErr := strconv.Atoi(raw); parseErr == nil {
			redisDB = n
		}
	}

	return &Configuration{
		GithubClientID:           githubClientID,
		GithubClientSecret:       githubClientSecret,
		WorkspaceBaseImage:       baseImage,
		WorkspaceDefaultDuration: defaultDuration,
		WorkspaceMaxDuration:     maxDuration,
		DefaultPoolAffinity:      poolAffinity,
		MaxSessionsPerNode:       maxPerNode,
		ControlNamespace:         controlNamespace,
		JWTSecret:                []byte(jwtSecret),
		JWTIssuer:                jwtIssuer,
		HTTPPort:                 httpPort,
		ShutdownTimeout:          shutdownTimeout,
		RedisEnabled:             os.Getenv("REDIS_ENABLED") == "true",
		RedisHost:                envOr("REDIS_HOST", "localhost"),
		RedisPort:                envOr("REDIS_PORT", "6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
	}, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func mustEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", apperrors.MissingEnvironmentVariable(name)
	}
	return v, nil
}

func mustEnvInt(name string) (int, error) {
	v, err := mustEnv(name)
	if err != nil {
		return 0, err
	}
	n, parseErr := strconv.Atoi(v)
	if parseErr != nil {
		return 0, apperrors.Wrap(apperrors.KindMissingEnvironmentVariable,
			fmt.Sprintf("%s is not an integer", name), parseErr)
	}
	return n, nil
}

// mustEnvMinutes parses a decimal-minutes string into a time.Duration,
// matching spec §6: "durations are minutes as decimal strings".
func mustEnvMinutes(name string) (time.Duration, error) {
	v, err := mustEnv(name)
	if err != nil {
		return 0, err
	}
	minutes, parseErr := strconv.ParseFloat(v, 64)
	if parseErr != nil {
		return 0, apperrors.Wrap(apperrors.KindMissingEnvironmentVariable,
			fmt.Sprintf("%s is not a number of minutes", name), parseErr)
	}
	return time.Duration(minutes * float64(time.Minute)), nil
}
