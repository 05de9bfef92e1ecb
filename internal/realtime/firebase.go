package realtime

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/option"
)

// NewFirebaseApp initialises a Firebase app from service account JSON.
// The same app serves the realtime database sink and push messaging.
func NewFirebaseApp(ctx context.Context, databaseURL, projectID string, credentials []byte) (*firebase.App, error) {
	conf := &firebase.Config{DatabaseURL: databaseURL, ProjectID: projectID}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsJSON(credentials))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}

// FirebaseSink writes values into the Firebase Realtime Database.
type FirebaseSink struct {
	client     *db.Client
	maxRetries uint64
}

func NewFirebaseSink(ctx context.Context, app *firebase.App) (*FirebaseSink, error) {
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase database client: %w", err)
	}
	return &FirebaseSink{client: client, maxRetries: 3}, nil
}

func (f *FirebaseSink) Set(ctx context.Context, key string, value any) error {
	ref := f.client.NewRef(key)
	return f.retry(ctx, func() error { return ref.Set(ctx, value) })
}

func (f *FirebaseSink) Remove(ctx context.Context, key string) error {
	ref := f.client.NewRef(key)
	return f.retry(ctx, func() error { return ref.Delete(ctx) })
}

func (f *FirebaseSink) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries), ctx)
	return backoff.Retry(op, b)
}
