package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/domain/models"
	"github.com/mamadbah2/grainloss/internal/repository/ledger"
)

// LedgerRepository keeps historical loss rows in a collection. Replaces run in a
// multi-document transaction, so the deployment must be a replica set.
type LedgerRepository struct {
	store  *Store
	coll   *mongo.Collection
	logger *zap.Logger
	now    func() time.Time
}

// NewLedgerRepository wires the Mongo ledger.
func NewLedgerRepository(store *Store, logger *zap.Logger) *LedgerRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerRepository{
		store:  store,
		coll:   store.db.Collection(ledgerCollection),
		logger: logger,
		now:    time.Now,
	}
}

// ReplaceReport deletes and reinserts the report's rows under snapshot isolation.
func (r *LedgerRepository) ReplaceReport(ctx context.Context, reportID string, rows []models.HistoricalLossRecord) error {
	prepared, err := ledger.Prepare(reportID, rows, r.now().UTC())
	if err != nil {
		return err
	}

	session, err := r.store.client.StartSession()
	if err != nil {
		return &ledger.WriteError{ReportID: reportID, Err: fmt.Errorf("start session: %w", err)}
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.coll.DeleteMany(sc, bson.M{"report_id": reportID}); err != nil {
			return nil, fmt.Errorf("delete previous rows: %w", err)
		}
		if len(prepared) == 0 {
			return nil, nil
		}
		docs := make([]interface{}, len(prepared))
		for i := range prepared {
			docs[i] = prepared[i]
		}
		if _, err := r.coll.InsertMany(sc, docs); err != nil {
			return nil, fmt.Errorf("insert rows: %w", err)
		}
		return nil, nil
	}, txnOpts)
	if err != nil {
		r.logger.Error("ledger transaction aborted", zap.String("report_id", reportID), zap.Error(err))
		return &ledger.WriteError{ReportID: reportID, Err: err}
	}
	return nil
}

// Query returns rows matching every populated field of the filter.
func (r *LedgerRepository) Query(ctx context.Context, filter models.LedgerFilter) ([]models.HistoricalLossRecord, error) {
	cursor, err := r.coll.Find(ctx, ledgerFilter(filter),
		options.Find().SetSort(bson.D{{Key: "report_date", Value: 1}, {Key: "silo", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.HistoricalLossRecord
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode ledger rows: %w", err)
	}
	return rows, nil
}

func ledgerFilter(filter models.LedgerFilter) bson.M {
	q := bson.M{}
	if filter.ReportID != "" {
		q["report_id"] = filter.ReportID
	}
	if len(filter.BatchIDs) > 0 {
		q["batch_id"] = bson.M{"$in": filter.BatchIDs}
	}
	if len(filter.Silos) > 0 {
		q["silo"] = bson.M{"$in": filter.Silos}
	}
	if filter.ClientID != "" {
		q["client_id"] = filter.ClientID
	}
	dates := bson.M{}
	if !filter.From.IsZero() {
		dates["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		dates["$lt"] = filter.To
	}
	if len(dates) > 0 {
		q["report_date"] = dates
	}
	return q
}

var _ ledger.Repository = (*LedgerRepository)(nil)
