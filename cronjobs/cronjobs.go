package cronjobs

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/robfig/cron/v3"

	"go-skywatch/db"
)

const (
	objectsCollection = "objects"
	staleTrackAge     = 24 * time.Hour
	sweepTimeout      = 2 * time.Minute
)

// Emitter lets the sweep tell connected clients a track is gone.
type Emitter interface {
	EmitObjectDelete(objectID string)
}

// sweepStaleTracks removes persisted tracks older than the retention window
// and broadcasts the deletion so late-joining clients stop rendering them.
func sweepStaleTracks(firestoreClient *firestore.Client, store *db.DocumentStore, emitter Emitter) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := time.Now().Add(-staleTrackAge).UTC().Format(time.RFC3339)
	ids, err := db.StaleTrackIDs(ctx, firestoreClient, objectsCollection, cutoff)
	if err != nil {
		log.Printf("Stale track sweep failed: %v", err)
		return
	}

	for _, id := range ids {
		if err := store.DeleteDocument(ctx, objectsCollection, id); err != nil {
			log.Printf("Failed to delete stale track %s: %v", id, err)
			continue
		}
		emitter.EmitObjectDelete(id)
	}

	if len(ids) > 0 {
		log.Printf("Stale track sweep removed %d tracks older than %s", len(ids), cutoff)
	}
}

// InitCronJobs schedules the recurring maintenance work.
func InitCronJobs(firestoreClient *firestore.Client, store *db.DocumentStore, emitter Emitter) {
	log.Println("\nStarting Cron Jobs -------------------------------------------------------")
	c := cron.New()

	// Stale track sweep: hourly
	_, err := c.AddFunc("0 * * * *", func() {
		log.Println("\nCronJob: Stale Track Sweep Running")
		sweepStaleTracks(firestoreClient, store, emitter)
	})
	if err != nil {
		log.Println("Error scheduling Stale Track Sweep:", err)
	}

	c.Start()
}
