package postgres

import (
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// taskRow mirrors the column order of the tasks/archived_tasks tables as
// created in db/migrations, so `RETURNING tasks.*` / `SETOF tasks` results
// can be scanned positionally.
type taskRow struct {
	ID           int64
	Queue        string
	State        int16
	Data         []byte
	MetaData     []byte
	Config       []byte
	RetryCount   int16
	StartedOn    *time.Time
	CreatedOn    time.Time
	StartAfter   time.Time
	ExpireIn     pgtype.Interval
	SingletonKey *string
	Output       []byte
}

func scanTaskRow(rows pgx.Rows) (taskRow, error) {
	var r taskRow
	err := rows.Scan(
		&r.ID, &r.Queue, &r.State, &r.Data, &r.MetaData, &r.Config,
		&r.RetryCount, &r.StartedOn, &r.CreatedOn, &r.StartAfter, &r.ExpireIn,
		&r.SingletonKey, &r.Output,
	)
	return r, err
}

func intervalToDuration(iv pgtype.Interval) time.Duration {
	return time.Duration(iv.Months)*30*24*time.Hour +
		time.Duration(iv.Days)*24*time.Hour +
		time.Duration(iv.Microseconds)*time.Microsecond
}

func (r taskRow) toTask() (models.Task, error) {
	meta, err := decodeMetaData(r.MetaData)
	if err != nil {
		return models.Task{}, err
	}
	cfg, err := decodeConfig(r.Config)
	if err != nil {
		return models.Task{}, err
	}
	return models.Task{
		ID:           r.ID,
		Queue:        r.Queue,
		State:        models.State(r.State),
		Data:         r.Data,
		MetaData:     meta,
		Config:       cfg,
		RetryCount:   r.RetryCount,
		StartedOn:    r.StartedOn,
		CreatedOn:    r.CreatedOn,
		StartAfter:   r.StartAfter,
		ExpireIn:     intervalToDuration(r.ExpireIn),
		SingletonKey: r.SingletonKey,
		Output:       r.Output,
	}, nil
}
