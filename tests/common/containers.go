// Package common provides shared container infrastructure for integration tests
package common

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DockerEnabledEnv gates every container-backed test
const DockerEnabledEnv = "TRADEONLY_TEST_DOCKER"

// RequireDocker skips the test unless container tests are enabled
func RequireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv(DockerEnabledEnv) != "true" {
		t.Skipf("Docker tests disabled (set %s=true to enable)", DockerEnabledEnv)
	}
}

// Container is a started, shared service container
type Container struct {
	container testcontainers.Container
	Host      string
	Port      string
}

// Terminate stops the container. Call from TestMain if needed.
func (c *Container) Terminate() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}

type shared struct {
	once sync.Once
	c    *Container
	err  error
}

func (s *shared) start(t *testing.T, name string, req testcontainers.ContainerRequest, port string) *Container {
	t.Helper()
	RequireDocker(t)

	s.once.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			s.err = fmt.Errorf("start %s container: %w", name, err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			container.Terminate(ctx)
			s.err = fmt.Errorf("get %s host: %w", name, err)
			return
		}
		mapped, err := container.MappedPort(ctx, nat.Port(port))
		if err != nil {
			container.Terminate(ctx)
			s.err = fmt.Errorf("get %s port: %w", name, err)
			return
		}
		s.c = &Container{container: container, Host: host, Port: mapped.Port()}
	})

	if s.err != nil {
		t.Fatalf("%s container failed: %v", name, s.err)
	}
	return s.c
}

var (
	surrealShared  shared
	postgresShared shared
	redisShared    shared
)

// StartSurrealDB starts one SurrealDB container per test process
func StartSurrealDB(t *testing.T) *Container {
	return surrealShared.start(t, "SurrealDB", testcontainers.ContainerRequest{
		Image:        "surrealdb/surrealdb:v3.0.0",
		ExposedPorts: []string{"8000/tcp"},
		Cmd:          []string{"start", "--user", "root", "--pass", "root"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("8000/tcp"),
			wait.ForLog("Started web server"),
		).WithDeadline(60 * time.Second),
	}, "8000/tcp")
}

// SurrealAddress returns the WebSocket RPC address
func (c *Container) SurrealAddress() string {
	return fmt.Sprintf("ws://%s:%s/rpc", c.Host, c.Port)
}

// Postgres credentials used by StartPostgres
const (
	PostgresUser     = "tradeonly"
	PostgresPassword = "tradeonly"
	PostgresDB       = "tradeonly_test"
)

// StartPostgres starts one PostgreSQL container per test process
func StartPostgres(t *testing.T) *Container {
	return postgresShared.start(t, "PostgreSQL", testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     PostgresUser,
			"POSTGRES_PASSWORD": PostgresPassword,
			"POSTGRES_DB":       PostgresDB,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(60 * time.Second),
	}, "5432/tcp")
}

// PostgresDSN returns a lib/pq connection string for the container
func (c *Container) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", PostgresUser, PostgresPassword, c.Host, c.Port, PostgresDB)
}

// StartRedis starts one Redis container per test process
func StartRedis(t *testing.T) *Container {
	return redisShared.start(t, "Redis", testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		).WithDeadline(30 * time.Second),
	}, "6379/tcp")
}

// Addr returns host:port
func (c *Container) Addr() string {
	return c.Host + ":" + c.Port
}
