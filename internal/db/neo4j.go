// Package db mirrors analysis reports into Neo4j.
package db

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type Neo4jClient struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4jClient(ctx context.Context, cfg Neo4jConfig) (*Neo4jClient, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jClient{driver: driver, database: database}, nil
}

func (c *Neo4jClient) Close() error {
	return c.driver.Close(context.Background())
}

func (c *Neo4jClient) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Neo4jClient) Session(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
	})
}

// ExecuteWrite runs a write transaction
func (c *Neo4jClient) ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := c.Session(ctx)
	defer session.Close(ctx)

	return session.ExecuteWrite(ctx, work)
}

// ExecuteRead runs a read transaction
func (c *Neo4jClient) ExecuteRead(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := c.Session(ctx)
	defer session.Close(ctx)

	return session.ExecuteRead(ctx, work)
}

var schema = []string{
	`CREATE CONSTRAINT project_name IF NOT EXISTS FOR (p:Project) REQUIRE p.name IS UNIQUE`,
	`CREATE CONSTRAINT entity_key IF NOT EXISTS FOR (e:Entity) REQUIRE (e.project, e.key) IS UNIQUE`,
	`CREATE CONSTRAINT method_id IF NOT EXISTS FOR (m:Method) REQUIRE (m.project, m.id) IS UNIQUE`,
}

// EnsureSchema creates the uniqueness constraints the writer relies on.
func (c *Neo4jClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		_, err := neo4j.ExecuteQuery(ctx, c.driver, stmt, nil,
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(c.database))
		if err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
