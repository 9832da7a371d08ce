package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/sunstead/sunstead/pkg/log"
	"github.com/sunstead/sunstead/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Each run is a document in the "runs" collection with its step
// records and day-ahead plan stored underneath it.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

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

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
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
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) runDoc(runID string) (*firestore.DocumentRef, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	return f.client.Collection("runs").Doc(runID), nil
}

// SaveRun stores a run summary as a JSON blob in the "runs" collection.
// The createdTS field is kept top-level so listings can order on it.
func (f *FirestoreProvider) SaveRun(ctx context.Context, run types.RunSummary) error {
	jsonBytes, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	doc, err := f.runDoc(run.ID)
	if err != nil {
		return err
	}
	_, err = doc.Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"createdTS": run.CreatedTS,
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run summary by ID.
func (f *FirestoreProvider) GetRun(ctx context.Context, runID string) (types.RunSummary, error) {
	docRef, err := f.runDoc(runID)
	if err != nil {
		return types.RunSummary{}, err
	}
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return types.RunSummary{}, fmt.Errorf("failed to fetch run %s: %w", runID, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "run doc missing json", slog.String("runID", runID))
		return types.RunSummary{}, fmt.Errorf("run document %s missing 'json' field: %w", runID, err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "run doc json not string", slog.String("runID", runID))
		return types.RunSummary{}, fmt.Errorf("run document %s 'json' field is not a string", runID)
	}

	var run types.RunSummary
	if err := json.Unmarshal([]byte(jsonStr), &run); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal run summary", slog.String("runID", runID), slog.Any("err", err))
		return types.RunSummary{}, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns retrieves up to limit run summaries ordered newest first.
func (f *FirestoreProvider) ListRuns(ctx context.Context, limit int) ([]types.RunSummary, error) {
	q := f.client.Collection("runs").OrderBy("createdTS", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var runs []types.RunSummary
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating runs: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "run doc missing json", slog.String("runID", doc.Ref.ID))
			// Skip malformed documents
			continue
		}
		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "run doc json not string", slog.String("runID", doc.Ref.ID))
			continue
		}

		var run types.RunSummary
		if err := json.Unmarshal([]byte(jsonStr), &run); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal run summary", slog.String("runID", doc.Ref.ID), slog.Any("err", err))
			// Skip malformed JSON
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// LatestRunID retrieves the ID of the most recently created run.
// Returns ErrRunNotFound when no runs have been stored.
func (f *FirestoreProvider) LatestRunID(ctx context.Context) (string, error) {
	iter := f.client.Collection("runs").
		OrderBy("createdTS", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return "", ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run doc: %w", err)
	}
	return doc.Ref.ID, nil
}

// SaveRecords stores step records under the run's "records" sub-collection as
// JSON blobs. The document ID is the RFC3339 timestamp for lexicographic
// ordering and efficient range queries.
func (f *FirestoreProvider) SaveRecords(ctx context.Context, runID string, records []types.StepRecord) error {
	doc, err := f.runDoc(runID)
	if err != nil {
		return err
	}
	coll := doc.Collection("records")

	for _, rec := range records {
		jsonBytes, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal step record %d: %w", rec.StepIndex, err)
		}
		docID := rec.Timestamp.UTC().Format(time.RFC3339)
		_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
			"json":      string(jsonBytes),
			"timestamp": rec.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("failed to save step record %s: %w", docID, err)
		}
	}
	return nil
}

// GetRecords retrieves step records within the specified time range.
// Uses document ID range queries for efficient filtering without reading all
// documents.
func (f *FirestoreProvider) GetRecords(ctx context.Context, runID string, start, end time.Time) ([]types.StepRecord, error) {
	doc, err := f.runDoc(runID)
	if err != nil {
		return nil, err
	}
	coll := doc.Collection("records")

	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []types.StepRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating step records: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "record doc missing json", slog.String("docID", doc.Ref.ID), slog.String("runID", runID), slog.Any("err", err))
			return nil, fmt.Errorf("record document %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "record doc json not string", slog.String("docID", doc.Ref.ID), slog.String("runID", runID))
			return nil, fmt.Errorf("record document %s 'json' field is not string", doc.Ref.ID)
		}

		var rec types.StepRecord
		if err := json.Unmarshal([]byte(jsonStr), &rec); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal step record", slog.String("docID", doc.Ref.ID), slog.String("runID", runID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal step record (id=%s): %w", doc.Ref.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SavePlan stores the day-ahead matching plan as the run's "artifacts/plan"
// document.
func (f *FirestoreProvider) SavePlan(ctx context.Context, runID string, plan types.MatchingResult) error {
	jsonBytes, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	doc, err := f.runDoc(runID)
	if err != nil {
		return err
	}
	_, err = doc.Collection("artifacts").Doc("plan").Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": plan.DayStartTS,
	})
	if err != nil {
		return fmt.Errorf("failed to save plan for run %s: %w", runID, err)
	}
	return nil
}

// GetPlan retrieves the day-ahead matching plan for a run.
func (f *FirestoreProvider) GetPlan(ctx context.Context, runID string) (types.MatchingResult, error) {
	docRef, err := f.runDoc(runID)
	if err != nil {
		return types.MatchingResult{}, err
	}
	doc, err := docRef.Collection("artifacts").Doc("plan").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.MatchingResult{}, fmt.Errorf("%w: run %s", ErrPlanNotFound, runID)
		}
		return types.MatchingResult{}, fmt.Errorf("failed to fetch plan for run %s: %w", runID, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "plan doc missing json", slog.String("runID", runID))
		return types.MatchingResult{}, fmt.Errorf("plan document for run %s missing 'json' field: %w", runID, err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "plan doc json not string", slog.String("runID", runID))
		return types.MatchingResult{}, fmt.Errorf("plan document for run %s 'json' field is not a string", runID)
	}

	var plan types.MatchingResult
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal plan", slog.String("runID", runID), slog.Any("err", err))
		return types.MatchingResult{}, fmt.Errorf("failed to unmarshal plan for run %s: %w", runID, err)
	}
	return plan, nil
}
