// Package cache persists fetched execution histories in a Badger store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
	"github.com/tyemirov/stepprof/internal/execution"
	"github.com/tyemirov/stepprof/internal/history"
	"github.com/tyemirov/stepprof/internal/metrics"
)

const (
	// DefaultExpiry is how long a fetched history stays valid.
	DefaultExpiry                       = 31 * 24 * time.Hour
	cacheKeyPrefixConstant              = "history:"
	cacheSubjectConstant                = "history-cache"
	cacheHitMessageConstant             = "history cache hit"
	cacheWriteFailedMessageConstant     = "history cache write failed"
	cacheReadFailedMessageConstant      = "history cache read failed"
	executionFieldNameConstant          = "execution"
	storeNotConfiguredMessageConstant   = "history cache store not configured"
	fetcherNotConfiguredMessageConstant = "history cache upstream fetcher not configured"
)

var (
	// ErrStoreNotConfigured indicates the caching fetcher was built without a store.
	ErrStoreNotConfigured = errors.New(storeNotConfiguredMessageConstant)
	// ErrFetcherNotConfigured indicates the caching fetcher was built without an upstream fetcher.
	ErrFetcherNotConfigured = errors.New(fetcherNotConfiguredMessageConstant)
)

// Store wraps a Badger database holding serialized histories.
type Store struct {
	database *badger.DB
}

// StoreOptions configures Open.
type StoreOptions struct {
	// Directory holds the Badger files. Ignored when InMemory is set.
	Directory string
	InMemory  bool
}

// Open opens or creates the store.
func Open(options StoreOptions) (*Store, error) {
	badgerOptions := badger.DefaultOptions(options.Directory).WithLogger(nil)
	if options.InMemory {
		badgerOptions = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	database, openError := badger.Open(badgerOptions)
	if openError != nil {
		return nil, profilererrors.Wrap(profilererrors.OperationHistoryCache, options.Directory, profilererrors.ErrCacheUnavailable, openError)
	}
	return &Store{database: database}, nil
}

// Close releases the database.
func (store *Store) Close() error {
	return store.database.Close()
}

// Load returns the cached history. The boolean is false when no live entry exists.
func (store *Store) Load(arn execution.ARN) (history.Execution, bool, error) {
	var payload []byte
	viewError := store.database.View(func(transaction *badger.Txn) error {
		item, getError := transaction.Get(cacheKey(arn))
		if getError != nil {
			return getError
		}
		return item.Value(func(value []byte) error {
			payload = append([]byte(nil), value...)
			return nil
		})
	})
	if errors.Is(viewError, badger.ErrKeyNotFound) {
		return history.Execution{}, false, nil
	}
	if viewError != nil {
		return history.Execution{}, false, profilererrors.Wrap(profilererrors.OperationHistoryCache, arn.String(), profilererrors.ErrCacheUnavailable, viewError)
	}

	var cached history.Execution
	if decodingError := json.Unmarshal(payload, &cached); decodingError != nil {
		return history.Execution{}, false, profilererrors.Wrap(profilererrors.OperationHistoryCache, arn.String(), profilererrors.ErrCacheUnavailable, decodingError)
	}
	return cached, true, nil
}

// Save stores the history with the provided time to live.
func (store *Store) Save(fetched history.Execution, ttl time.Duration) error {
	payload, encodingError := json.Marshal(fetched)
	if encodingError != nil {
		return profilererrors.Wrap(profilererrors.OperationHistoryCache, fetched.ARN.String(), profilererrors.ErrCacheUnavailable, encodingError)
	}
	updateError := store.database.Update(func(transaction *badger.Txn) error {
		return transaction.SetEntry(badger.NewEntry(cacheKey(fetched.ARN), payload).WithTTL(ttl))
	})
	if updateError != nil {
		return profilererrors.Wrap(profilererrors.OperationHistoryCache, fetched.ARN.String(), profilererrors.ErrCacheUnavailable, updateError)
	}
	return nil
}

// Clear drops every cached history.
func (store *Store) Clear() error {
	if dropError := store.database.DropPrefix([]byte(cacheKeyPrefixConstant)); dropError != nil {
		return profilererrors.Wrap(profilererrors.OperationHistoryCache, cacheSubjectConstant, profilererrors.ErrCacheUnavailable, dropError)
	}
	return nil
}

func cacheKey(arn execution.ARN) []byte {
	digest := sha256.Sum256([]byte(arn.String()))
	return []byte(cacheKeyPrefixConstant + hex.EncodeToString(digest[:]))
}

// CachingFetcher serves histories from the store and falls back to the upstream fetcher on a miss.
type CachingFetcher struct {
	store    *Store
	upstream history.Fetcher
	expiry   time.Duration
	logger   *zap.Logger
	recorder metrics.Recorder
}

// NewCachingFetcher constructs a CachingFetcher. Zero expiry selects DefaultExpiry.
func NewCachingFetcher(store *Store, upstream history.Fetcher, expiry time.Duration, logger *zap.Logger, recorder metrics.Recorder) (*CachingFetcher, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	if upstream == nil {
		return nil, ErrFetcherNotConfigured
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &CachingFetcher{store: store, upstream: upstream, expiry: expiry, logger: logger, recorder: recorder}, nil
}

// Fetch implements history.Fetcher. Cache failures are logged and never hide a successful upstream fetch.
func (fetcher *CachingFetcher) Fetch(executionContext context.Context, arn execution.ARN) (history.Execution, error) {
	cached, found, loadError := fetcher.store.Load(arn)
	if loadError != nil {
		fetcher.logger.Warn(cacheReadFailedMessageConstant, zap.String(executionFieldNameConstant, arn.String()), zap.Error(loadError))
	}
	fetcher.recorder.ObserveCacheLookup(found)
	if found {
		fetcher.logger.Debug(cacheHitMessageConstant, zap.String(executionFieldNameConstant, arn.String()))
		return cached, nil
	}

	fetched, fetchError := fetcher.upstream.Fetch(executionContext, arn)
	if fetchError != nil {
		return history.Execution{}, fetchError
	}
	if saveError := fetcher.store.Save(fetched, fetcher.expiry); saveError != nil {
		fetcher.logger.Warn(cacheWriteFailedMessageConstant, zap.String(executionFieldNameConstant, arn.String()), zap.Error(saveError))
	}
	return fetched, nil
}
