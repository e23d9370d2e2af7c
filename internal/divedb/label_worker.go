package divedb

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/osamu-dazaai/garmin-freediving-coach/internal/dive"
)

// LabelWorker applies trusted label events to stored baselines. Events
// are drained from a single queue in arrival order, so updates for any
// one user are serialized; there is no last-writer-wins race between
// concurrent labels.
type LabelWorker struct {
	DB       *DiveDB
	queue    chan dive.LabelEvent
	StopChan chan struct{}
	done     chan struct{}

	// mu serializes the synchronous entry points (Apply, Relabel,
	// Recompute) against the queue drain.
	mu sync.Mutex
}

const defaultQueueDepth = 64

func NewLabelWorker(db *DiveDB) *LabelWorker {
	return &LabelWorker{
		DB:       db,
		queue:    make(chan dive.LabelEvent, defaultQueueDepth),
		StopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the queue drain loop in a goroutine.
func (w *LabelWorker) Start() {
	go func() {
		defer close(w.done)
		for {
			select {
			case ev := <-w.queue:
				if err := w.Apply(context.Background(), ev); err != nil {
					log.Printf("label worker: apply event %s: %v", ev.EventID, err)
				}
			case <-w.StopChan:
				// Drain whatever is already queued before exiting.
				for {
					select {
					case ev := <-w.queue:
						if err := w.Apply(context.Background(), ev); err != nil {
							log.Printf("label worker: apply event %s: %v", ev.EventID, err)
						}
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop requests the worker to stop and waits for the drain to finish.
func (w *LabelWorker) Stop() {
	close(w.StopChan)
	<-w.done
}

// Enqueue hands a label event to the worker. Blocks when the queue is
// full rather than dropping: every trusted label must reach the
// baseline.
func (w *LabelWorker) Enqueue(ev dive.LabelEvent) {
	w.queue <- ev
}

// Apply records one label event and folds it into the user's baseline
// in a single transaction.
func (w *LabelWorker) Apply(ctx context.Context, ev dive.LabelEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	baseline, err := w.DB.GetBaseline(ctx, ev.UserID)
	if err != nil {
		return err
	}
	updated := dive.ApplyLabelEvent(baseline, ev)

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertLabelEvent(ctx, tx, ev); err != nil {
		return err
	}
	if err := saveBaseline(ctx, tx, updated); err != nil {
		return err
	}
	return tx.Commit()
}

// Relabel replaces a previously applied event with a corrected one:
// the old contributions are reversed, the new folded in, and the old
// row marked replaced so recomputation skips it. The labeled-dive
// count is unchanged.
func (w *LabelWorker) Relabel(ctx context.Context, old, corrected dive.LabelEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	baseline, err := w.DB.GetBaseline(ctx, old.UserID)
	if err != nil {
		return err
	}
	updated, err := dive.ReplaceLabelEvent(baseline, old, corrected)
	if err != nil {
		return err
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE label_events SET replaced_by = ? WHERE event_id = ? AND replaced_by IS NULL`,
		corrected.EventID.String(), old.EventID.String())
	if err != nil {
		return fmt.Errorf("failed to retire label event %s: %w", old.EventID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("label event %s not found or already replaced", old.EventID)
	}
	if err := insertLabelEvent(ctx, tx, corrected); err != nil {
		return err
	}
	if err := saveBaseline(ctx, tx, updated); err != nil {
		return err
	}
	return tx.Commit()
}

// Recompute rebuilds a user's baseline from the active event log. This
// is the explicit reset path used after dives are deleted or a Welford
// drift is suspected; it is the only way calibration may regress.
func (w *LabelWorker) Recompute(ctx context.Context, userID string) (dive.UserBaseline, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	events, err := w.DB.ListLabelEvents(ctx, userID)
	if err != nil {
		return dive.UserBaseline{}, err
	}
	baseline := dive.RecomputeBaseline(userID, events)
	if err := w.DB.SaveBaseline(ctx, baseline); err != nil {
		return dive.UserBaseline{}, err
	}
	log.Printf("label worker: recomputed baseline for %s from %d events (state %s)",
		userID, len(events), baseline.State())
	return baseline, nil
}
