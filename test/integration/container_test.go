//go:build integration

package integration

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/medrec/medrec/internal/platform/db"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "medrec"
	pgPassword = "medrec"
	pgDatabase = "medrectest"
)

// pgContainer is a throwaway Postgres started through the Docker CLI.
type pgContainer struct {
	id  string
	dsn string
}

func docker(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// startPostgresContainer publishes the server on an ephemeral loopback
// port chosen by Docker and waits until it answers queries.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	id, err := docker(ctx, "run", "-d", "--rm",
		"--label", "medrec-integration",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+pgUser,
		"-e", "POSTGRES_PASSWORD="+pgPassword,
		"-e", "POSTGRES_DB="+pgDatabase,
		pgImage,
	)
	if err != nil {
		return "", nil, err
	}
	c := &pgContainer{id: id}

	if err := c.resolve(ctx); err != nil {
		c.stop()
		return "", nil, err
	}
	if err := c.await(ctx, 30*time.Second); err != nil {
		c.stop()
		return "", nil, err
	}
	return c.dsn, c.stop, nil
}

// resolve reads the host address Docker mapped 5432 to.
func (c *pgContainer) resolve(ctx context.Context) error {
	out, err := docker(ctx, "port", c.id, "5432/tcp")
	if err != nil {
		return err
	}
	addr, _, _ := strings.Cut(out, "\n")
	c.dsn = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, addr, pgDatabase)
	return nil
}

// await polls until pg_isready passes and a pool can ping the server.
func (c *pgContainer) await(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		if c.ready(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v", timeout)
		case <-tick.C:
		}
	}
}

func (c *pgContainer) ready(ctx context.Context) bool {
	if _, err := docker(ctx, "exec", c.id, "pg_isready", "-U", pgUser, "-d", pgDatabase); err != nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pool, err := db.NewPool(pingCtx, db.PoolConfig{URL: c.dsn, MaxConns: 1})
	if err != nil {
		return false
	}
	pool.Close()
	return true
}

func (c *pgContainer) stop() {
	exec.Command("docker", "rm", "-f", c.id).Run()
}
