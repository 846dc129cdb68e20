package printing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
)

type mockWorkerStore struct {
	job database.PrintJob

	claimErr     error
	printedJobs  []uuid.UUID
	printedItems []uuid.UUID
	failed       []database.MarkPrintJobFailedParams
}

func (m *mockWorkerStore) GetPrintJob(ctx context.Context, id uuid.UUID) (database.PrintJob, error) {
	return m.job, nil
}

func (m *mockWorkerStore) MarkPrintJobPrinting(ctx context.Context, id uuid.UUID) (database.PrintJob, error) {
	if m.claimErr != nil {
		return database.PrintJob{}, m.claimErr
	}
	j := m.job
	j.Status = enum.PrintJobStatusPrinting
	j.Attempts++
	m.job = j
	return j, nil
}

func (m *mockWorkerStore) MarkPrintJobPrinted(ctx context.Context, id uuid.UUID) (database.PrintJob, error) {
	m.printedJobs = append(m.printedJobs, id)
	j := m.job
	j.Status = enum.PrintJobStatusPrinted
	return j, nil
}

func (m *mockWorkerStore) MarkPrintJobFailed(ctx context.Context, arg database.MarkPrintJobFailedParams) (database.PrintJob, error) {
	m.failed = append(m.failed, arg)
	j := m.job
	j.Status = enum.PrintJobStatusFailed
	return j, nil
}

func (m *mockWorkerStore) MarkItemsPrinted(ctx context.Context, ids []uuid.UUID) error {
	m.printedItems = append(m.printedItems, ids...)
	return nil
}

func (m *mockWorkerStore) ListStuckPrintJobs(ctx context.Context, olderThan time.Time) ([]database.PrintJob, error) {
	return nil, nil
}

type mockRelay struct {
	err  error
	reqs []PrintRequest
}

func (m *mockRelay) Print(ctx context.Context, req PrintRequest) error {
	m.reqs = append(m.reqs, req)
	return m.err
}

func ticketJob(t *testing.T, attempts int32, itemIDs ...uuid.UUID) database.PrintJob {
	t.Helper()
	payload, err := json.Marshal(TicketPayload{
		OrderCode: "01062025/A3/001",
		TableName: "A3",
		Lines:     []TicketLine{{Name: "Pho ga", Quantity: 2}},
		ItemIDs:   itemIDs,
		QueuedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return database.PrintJob{
		ID:       uuid.New(),
		Printer:  enum.PrinterKitchen,
		Kind:     enum.PrintJobKindKitchenTicket,
		Payload:  payload,
		Status:   enum.PrintJobStatusQueued,
		Attempts: attempts,
	}
}

func TestProcessDeliversTicket(t *testing.T) {
	itemID := uuid.New()
	store := &mockWorkerStore{job: ticketJob(t, 0, itemID)}
	relay := &mockRelay{}
	w := NewWorker(store, nil, relay, 3, time.Millisecond)

	retry, err := w.process(context.Background(), store.job.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if retry {
		t.Error("successful delivery must not be retried")
	}

	if len(relay.reqs) != 1 || relay.reqs[0].Ticket == nil {
		t.Fatalf("relay requests: %+v", relay.reqs)
	}
	if relay.reqs[0].Printer != enum.PrinterKitchen {
		t.Errorf("printer: got %q", relay.reqs[0].Printer)
	}
	if len(store.printedItems) != 1 || store.printedItems[0] != itemID {
		t.Errorf("printed items: %v, want [%s]", store.printedItems, itemID)
	}
	if len(store.printedJobs) != 1 {
		t.Errorf("printed jobs: %v", store.printedJobs)
	}
}

func TestProcessStaleDeliveryIsDropped(t *testing.T) {
	store := &mockWorkerStore{claimErr: pgx.ErrNoRows}
	relay := &mockRelay{}
	w := NewWorker(store, nil, relay, 3, time.Millisecond)

	retry, err := w.process(context.Background(), uuid.New())
	if err != nil || retry {
		t.Fatalf("stale delivery: retry=%v err=%v, want ack", retry, err)
	}
	if len(relay.reqs) != 0 {
		t.Error("relay must not be called for a stale delivery")
	}
}

func TestProcessRelayFailureRetries(t *testing.T) {
	store := &mockWorkerStore{job: ticketJob(t, 0)}
	relay := &mockRelay{err: errors.New("printer offline")}
	w := NewWorker(store, nil, relay, 3, time.Millisecond)

	retry, err := w.process(context.Background(), store.job.ID)
	if err == nil || !retry {
		t.Fatalf("want retry on relay failure, got retry=%v err=%v", retry, err)
	}
	if len(store.failed) != 0 {
		t.Error("job must not be marked failed while retries remain")
	}
}

func TestProcessRelayFailureExhaustsRetries(t *testing.T) {
	store := &mockWorkerStore{job: ticketJob(t, 3)} // claim bumps to maxTries+1
	relay := &mockRelay{err: errors.New("printer offline")}
	w := NewWorker(store, nil, relay, 3, time.Millisecond)

	retry, err := w.process(context.Background(), store.job.ID)
	if err == nil || retry {
		t.Fatalf("want permanent failure, got retry=%v err=%v", retry, err)
	}
	if len(store.failed) != 1 {
		t.Fatalf("failed marks: %d, want 1", len(store.failed))
	}
	if !store.failed[0].LastError.Valid || store.failed[0].LastError.String == "" {
		t.Error("last_error should record the relay error")
	}
	if len(store.printedJobs) != 0 {
		t.Error("job must not be marked printed")
	}
}

func TestProcessBadPayloadFailsPermanently(t *testing.T) {
	job := ticketJob(t, 0)
	job.Payload = []byte("not json")
	store := &mockWorkerStore{job: job}
	relay := &mockRelay{}
	w := NewWorker(store, nil, relay, 3, time.Millisecond)

	retry, err := w.process(context.Background(), job.ID)
	if err == nil || retry {
		t.Fatalf("want permanent failure, got retry=%v err=%v", retry, err)
	}
	if len(store.failed) != 1 {
		t.Errorf("failed marks: %d, want 1", len(store.failed))
	}
	if len(relay.reqs) != 0 {
		t.Error("relay must not be called with an undecodable payload")
	}
}

func TestDecodeJobUnknownKind(t *testing.T) {
	_, _, err := decodeJob(database.PrintJob{Kind: "poster", Payload: []byte(`{}`)})
	if err == nil {
		t.Fatal("want error for unknown job kind")
	}
}

func TestDecodeJobBill(t *testing.T) {
	payload, _ := json.Marshal(BillPayload{OrderCode: "01062025/A3/001", Total: "125000"})
	req, itemIDs, err := decodeJob(database.PrintJob{
		Kind:    enum.PrintJobKindBill,
		Printer: enum.PrinterBar,
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("decodeJob: %v", err)
	}
	if req.Bill == nil || req.Bill.Total != "125000" {
		t.Errorf("bill: %+v", req.Bill)
	}
	if itemIDs != nil {
		t.Errorf("bill jobs carry no item IDs, got %v", itemIDs)
	}
}
