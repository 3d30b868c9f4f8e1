package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// client is a singleton Firestore client instance.
var (
	client     *firestore.Client
	clientOnce sync.Once
)

// InitFirestore initializes and returns a Firestore client.
func InitFirestore() (*firestore.Client, error) {
	var err error

	clientOnce.Do(func() {
		// Decode credentials
		encodedCreds := os.Getenv("FIREBASE_CREDENTIALS")
		creds, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			log.Fatalf("Failed to decode Firestore credentials: %v", err)
		}

		// Initialize Firebase App
		opt := option.WithCredentialsJSON(creds)
		app, err := firebase.NewApp(context.Background(), nil, opt)
		if err != nil {
			log.Fatalf("Error initializing Firestore: %v", err)
		}

		// Get Firestore Client
		client, err = app.Firestore(context.Background())
		if err != nil {
			log.Fatalf("Error getting Firestore client: %v", err)
		}
	})

	return client, err
}

// CloseFirestore closes the Firestore client.
func CloseFirestore() {
	if client != nil {
		client.Close()
	}
}

// DocumentStore is a thin document adapter keyed by collection name and
// document ID. Callers never assume transactional multi-document semantics.
type DocumentStore struct {
	client *firestore.Client
}

// NewDocumentStore wraps a Firestore client in the document adapter.
func NewDocumentStore(client *firestore.Client) *DocumentStore {
	return &DocumentStore{client: client}
}

// GetDocument fetches a document and injects its ID. A missing document
// returns (nil, nil).
func (s *DocumentStore) GetDocument(ctx context.Context, collection, documentID string) (map[string]interface{}, error) {
	doc, err := s.client.Collection(collection).Doc(documentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting document %s/%s: %w", collection, documentID, err)
	}

	data := doc.Data()
	data["id"] = doc.Ref.ID
	return data, nil
}

// CreateDocument adds a document with a generated ID and returns the data
// with the ID injected.
func (s *DocumentStore) CreateDocument(ctx context.Context, collection string, data map[string]interface{}) (map[string]interface{}, error) {
	docRef, _, err := s.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("error creating document in %s: %w", collection, err)
	}

	out := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = docRef.ID
	return out, nil
}

// SetDocument writes a document under a caller-chosen ID.
func (s *DocumentStore) SetDocument(ctx context.Context, collection, documentID string, data map[string]interface{}) (map[string]interface{}, error) {
	_, err := s.client.Collection(collection).Doc(documentID).Set(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("error setting document %s/%s: %w", collection, documentID, err)
	}

	out := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = documentID
	return out, nil
}

// UpdateDocument applies a partial update to an existing document.
func (s *DocumentStore) UpdateDocument(ctx context.Context, collection, documentID string, data map[string]interface{}) (map[string]interface{}, error) {
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}

	_, err := s.client.Collection(collection).Doc(documentID).Update(ctx, updates)
	if err != nil {
		return nil, fmt.Errorf("error updating document %s/%s: %w", collection, documentID, err)
	}

	out := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = documentID
	return out, nil
}

// DeleteDocument removes a document.
func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, documentID string) error {
	_, err := s.client.Collection(collection).Doc(documentID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("error deleting document %s/%s: %w", collection, documentID, err)
	}
	return nil
}

// StaleTrackIDs returns the IDs of persisted tracks whose description was
// created before the cutoff. RFC3339 strings compare lexicographically, so
// the Firestore range filter works on the raw field.
func StaleTrackIDs(ctx context.Context, client *firestore.Client, collection, cutoff string) ([]string, error) {
	iter := client.Collection(collection).
		Where("description.created_at", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating stale tracks: %w", err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}
