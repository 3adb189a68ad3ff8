package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

// Config holds Scylla connection settings for the chat store.
type Config struct {
	Hosts             []string
	Keyspace          string
	Username          string
	Password          string
	Timeout           time.Duration
	Consistency       gocql.Consistency
	ReplicationFactor int
}

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// NewSession ensures the chat schema exists and returns a connected session.
func NewSession(cfg Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.Keyspace)
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Consistency == 0 {
		cfg.Consistency = gocql.Quorum
	}

	baseCluster := newCluster(cfg, "")
	baseSession, err := baseCluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	if err := ensureKeyspace(context.Background(), baseSession, cfg); err != nil {
		return nil, err
	}

	cluster := newCluster(cfg, cfg.Keyspace)
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	if err := ensureTables(context.Background(), session, cfg); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)
	}
	return session, nil
}

func newCluster(cfg Config, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.Consistency = cfg.Consistency
	if keyspace != "" {
		cluster.Keyspace = keyspace
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	return cluster
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg Config) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, cfg Config) error {
	// conversations_by_key carries the full record so a loser of the creation
	// race gets the surviving row straight from the CAS response.
	conversationsByKey := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.conversations_by_key (
	pair_key text,
	listing_id text,
	conversation_id uuid,
	buyer_id text,
	seller_id text,
	created_at timestamp,
	PRIMARY KEY ((pair_key, listing_id))
);`, cfg.Keyspace)
	if err := session.Query(conversationsByKey).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create conversations_by_key table: %w", err)
	}

	conversations := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.conversations (
	id uuid PRIMARY KEY,
	pair_key text,
	buyer_id text,
	seller_id text,
	listing_id text,
	created_at timestamp
);`, cfg.Keyspace)
	if err := session.Query(conversations).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}

	messages := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.messages (
	conversation_id uuid,
	message_id timeuuid,
	sender_id text,
	body text,
	created_at timestamp,
	read boolean,
	PRIMARY KEY (conversation_id, message_id)
) WITH CLUSTERING ORDER BY (message_id ASC);`, cfg.Keyspace)
	if err := session.Query(messages).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}
	return nil
}
