package db

import (
	"context"
	"database/sql"
)

// TxFn is a unit of write work run inside a single transaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// queueDepth bounds pending writes.  Audit appends arrive at most once per
// poll cycle, so the buffer only matters when the disk stalls.
const queueDepth = 256

type writeJob struct {
	ctx   context.Context
	fn    TxFn
	reply chan error
}

// Worker funnels every write transaction through one goroutine.  SQLite
// permits a single writer; serializing here means audit appends, alert
// inserts and prune runs never contend on the connection or see
// SQLITE_BUSY.
type Worker struct {
	db   *sql.DB
	jobs chan writeJob
	done chan struct{}
}

func NewWorker(conn *sql.DB) *Worker {
	w := &Worker{
		db:   conn,
		jobs: make(chan writeJob, queueDepth),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// Close drains the queue and stops the writer goroutine.  Jobs already
// enqueued still run.
func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
}

// Do runs fn in a transaction on the writer goroutine and returns its error
// or the commit error.  If ctx expires while the job is queued or running,
// Do returns ctx.Err(); the transaction itself still completes and its
// result is discarded via the buffered reply channel.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	reply := make(chan error, 1)

	select {
	case w.jobs <- writeJob{ctx: ctx, fn: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)

	for j := range w.jobs {
		j.reply <- w.execute(j)
	}
}

func (w *Worker) execute(j writeJob) error {
	tx, err := w.db.BeginTx(j.ctx, nil)
	if err != nil {
		return err
	}

	if err := j.fn(j.ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
