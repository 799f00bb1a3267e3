package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreCollection = "kv"

type kvDocument struct {
	Key       string    `firestore:"key"`
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// FirestoreKV keeps one document per key in the "kv" collection.
type FirestoreKV struct {
	client *firestore.Client
}

func NewFirestoreKV(ctx context.Context, projectID string) (*FirestoreKV, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreKV{
		client: client,
	}, nil
}

func (fs *FirestoreKV) Close() error {
	return fs.client.Close()
}

// Document IDs may not contain '/', so keys are path-escaped.
func (fs *FirestoreKV) doc(key string) *firestore.DocumentRef {
	return fs.client.Collection(firestoreCollection).Doc(url.PathEscape(key))
}

func (fs *FirestoreKV) Get(ctx context.Context, key string) (string, error) {
	snap, err := fs.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}

	var d kvDocument
	if err := snap.DataTo(&d); err != nil {
		return "", fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return d.Value, nil
}

func (fs *FirestoreKV) Set(ctx context.Context, key, value string) error {
	_, err := fs.doc(key).Set(ctx, kvDocument{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (fs *FirestoreKV) Delete(ctx context.Context, key string) error {
	if _, err := fs.doc(key).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// prefixEnd is an exclusive upper bound for keys starting with prefix.
// Strings compare by UTF-8 bytes and U+10FFFF encodes to the largest valid sequence.
func prefixEnd(prefix string) string {
	return prefix + "\U0010FFFF"
}

func (fs *FirestoreKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	iter := fs.client.Collection(firestoreCollection).
		Where("key", ">=", prefix).
		Where("key", "<", prefixEnd(prefix)).
		OrderBy("key", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var keys []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate keys: %w", err)
		}

		var d kvDocument
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key document: %w", err)
		}
		keys = append(keys, d.Key)
	}

	return keys, nil
}

func (fs *FirestoreKV) Ping(ctx context.Context) error {
	iter := fs.client.Collection(firestoreCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("firestore unreachable: %w", err)
	}
	return nil
}
