// Package auth stores API credentials and turns them into an authenticated
// HTTP client. Tokens live in a JSON file for local use or in Redis for
// hosted deployments; refreshed tokens are written back to the same store.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by Store.Load when nothing has been stored.
var ErrNoToken = errors.New("no stored token")

// Store persists a single OAuth token.
type Store interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
	Clear(ctx context.Context) error
}

// Store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// DefaultRedisKey is the key tokens are stored under in Redis.
const DefaultRedisKey = "shiftsheet:tsheets:token"

// OpenStore returns the store for backend. path is used by the file backend,
// redisURL by the redis backend.
func OpenStore(backend, path, redisURL string) (Store, error) {
	switch backend {
	case "", BackendFile:
		if path == "" {
			return nil, errors.New("token file path is empty")
		}
		return NewFileStore(path), nil
	case BackendRedis:
		return OpenRedisStore(redisURL, DefaultRedisKey)
	default:
		return nil, fmt.Errorf("unknown token store backend %q (want %s or %s)", backend, BackendFile, BackendRedis)
	}
}

// --- File backend ---

// FileStore keeps the token in a JSON file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored token.
func (s *FileStore) Load(_ context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file %s: %w", s.path, err)
	}
	return decodeToken(data)
}

// Save writes the token atomically.
func (s *FileStore) Save(_ context.Context, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Clear deletes the token file. A missing file is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// --- Redis backend ---

// RedisStore keeps the token under a single Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// OpenRedisStore connects using a redis:// or rediss:// URL.
func OpenRedisStore(redisURL, key string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis URL is empty")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), key), nil
}

// Load reads the stored token.
func (s *RedisStore) Load(ctx context.Context) (*oauth2.Token, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading token from redis: %w", err)
	}
	return decodeToken(data)
}

// Save stores the token without expiry; the refresh token outlives the
// access token.
func (s *RedisStore) Save(ctx context.Context, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing token to redis: %w", err)
	}
	return nil
}

// Clear deletes the key.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("deleting token from redis: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decoding stored token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &token, nil
}
