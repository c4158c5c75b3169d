package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreDB implements Database using Google Cloud Firestore. Each key is a
// document in the "kv" collection holding the value as a "json" string.
type FirestoreDB struct {
	client     *firestore.Client
	projectID  string
	database   string
	collection string
}

var _ Database = (*FirestoreDB)(nil)

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreDB {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreDB{collection: "kv"}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreDB) Validate() error {
	// an empty project ID is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreDB) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreDB) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreDB) Get(ctx context.Context, key string) ([]byte, error) {
	doc, err := f.client.Collection(f.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch %s doc: %w", key, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "kv doc missing json", slog.String("key", key))
		return nil, fmt.Errorf("%s document missing 'json' field: %w", key, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "kv doc json not string", slog.String("key", key))
		return nil, fmt.Errorf("%s document 'json' field is not string", key)
	}
	return []byte(jsonStr), nil
}

func (f *FirestoreDB) Set(ctx context.Context, key string, value []byte) error {
	_, err := f.client.Collection(f.collection).Doc(key).Set(ctx, map[string]interface{}{
		"json":    string(value),
		"updated": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (f *FirestoreDB) Delete(ctx context.Context, key string) error {
	if _, err := f.client.Collection(f.collection).Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (f *FirestoreDB) Keys(ctx context.Context) ([]string, error) {
	iter := f.client.Collection(f.collection).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var keys []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating kv docs: %w", err)
		}
		keys = append(keys, doc.Ref.ID)
	}
	return keys, nil
}
