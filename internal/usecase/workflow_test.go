package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ForecastDesk/internal/domain/models"
	"ForecastDesk/pkg/lock"
)

func newTestWorkflow(g *fakeGateway, p *fakePrices, opts ...WorkflowOption) *Workflow {
	return NewWorkflow(WorkflowConfig{Identifier: "ana", PageSize: 7}, g, p, staticResolver{}, opts...)
}

func TestActivateOutcomes(t *testing.T) {
	fail := errors.New("boom")
	tests := []struct {
		name       string
		priceErr   error
		listErr    error
		wantState  State
		wantPrice  bool
		wantLatest bool
	}{
		{name: "both succeed", wantState: StateReady, wantPrice: true, wantLatest: true},
		{name: "price feed down", priceErr: models.NewError(models.KindPriceFeedUnavailable, models.SourcePrice, "Price history is unavailable right now.", fail), wantState: StateReady, wantLatest: true},
		{name: "backend down", listErr: models.NewError(models.KindNetwork, models.SourceForecast, "Unable to reach the forecast service.", fail), wantState: StateReady, wantPrice: true},
		{
			name:      "both down",
			priceErr:  models.NewError(models.KindPriceFeedUnavailable, models.SourcePrice, "Price history is unavailable right now.", fail),
			listErr:   models.NewError(models.KindNetwork, models.SourceForecast, "Unable to reach the forecast service.", fail),
			wantState: StateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGateway{listFn: func(context.Context, int) ([]models.ForecastRecord, error) {
				if tt.listErr != nil {
					return nil, tt.listErr
				}
				return []models.ForecastRecord{record(3, 3100), record(9, 2900), record(5, 3500)}, nil
			}}
			p := &fakePrices{fn: func(context.Context) ([]models.PricePoint, error) {
				if tt.priceErr != nil {
					return nil, tt.priceErr
				}
				return points(2800, 3000), nil
			}}

			snap := newTestWorkflow(g, p).Activate(context.Background())

			if snap.State != tt.wantState {
				t.Fatalf("state = %s, want %s", snap.State, tt.wantState)
			}
			if (snap.CurrentPrice != nil) != tt.wantPrice {
				t.Fatalf("current price = %v, want present=%v", snap.CurrentPrice, tt.wantPrice)
			}
			if (snap.Latest != nil) != tt.wantLatest {
				t.Fatalf("latest = %+v, want present=%v", snap.Latest, tt.wantLatest)
			}
			if tt.priceErr != nil && snap.Messages[MessagePrice] == "" {
				t.Fatalf("expected a price message")
			}
			if tt.listErr != nil && snap.Messages[MessageForecast] == "" {
				t.Fatalf("expected a forecast message")
			}
			if tt.wantPrice && tt.wantLatest {
				if snap.Latest.ID != 9 {
					t.Fatalf("latest id = %d, want 9", snap.Latest.ID)
				}
				if *snap.CurrentPrice != 3000 {
					t.Fatalf("current price = %v, want 3000", *snap.CurrentPrice)
				}
				if snap.Recommendation != models.SignalSell {
					t.Fatalf("recommendation = %q, want SELL", snap.Recommendation)
				}
			} else if snap.Recommendation != "" {
				t.Fatalf("recommendation must be absent, got %q", snap.Recommendation)
			}
		})
	}
}

func TestActivateRunsFetchesConcurrently(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	g := &fakeGateway{listFn: func(context.Context, int) ([]models.ForecastRecord, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}}
	p := &fakePrices{fn: func(context.Context) ([]models.PricePoint, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}}
	w := newTestWorkflow(g, p)

	done := make(chan Snapshot)
	go func() { done <- w.Activate(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("fetch %d never started; fetches are not concurrent", i+1)
		}
	}
	if s := w.Snapshot(); s.State != StateLoading {
		t.Fatalf("state while fetching = %s, want loading", s.State)
	}
	close(release)
	if snap := <-done; snap.State != StateReady {
		t.Fatalf("state = %s, want ready", snap.State)
	}
}

func TestEmptyListShowsNoForecast(t *testing.T) {
	snap := newTestWorkflow(&fakeGateway{}, &fakePrices{}).Activate(context.Background())
	if !snap.NoForecast || snap.Latest != nil {
		t.Fatalf("expected the empty state, got %+v", snap)
	}
	if snap.Page.ShowControls || snap.Page.TotalPages != 0 || len(snap.Page.Rows) != 0 {
		t.Fatalf("pagination must be hidden, got %+v", snap.Page)
	}
}

func TestSubmitRelistsOnceAndResetsPage(t *testing.T) {
	results := make([]float64, 10)
	g := &fakeGateway{listFn: func(_ context.Context, call int) ([]models.ForecastRecord, error) {
		if call == 1 {
			return []models.ForecastRecord{record(1, results...)}, nil
		}
		return []models.ForecastRecord{record(1, results...), record(2, 3200)}, nil
	}}
	w := newTestWorkflow(g, &fakePrices{fn: func(context.Context) ([]models.PricePoint, error) {
		return points(3000), nil
	}})

	w.Activate(context.Background())
	if snap := w.SetPage(2); len(snap.Page.Rows) != 3 || snap.Page.TotalPages != 2 {
		t.Fatalf("page 2 = %+v", snap.Page)
	}

	snap, err := w.Submit(context.Background(), "LSTM", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	list, submit := g.counts()
	if submit != 1 {
		t.Fatalf("submit calls = %d, want 1", submit)
	}
	if list != 2 {
		t.Fatalf("list calls = %d, want exactly one after submit", list)
	}
	if snap.Page.Number != 1 {
		t.Fatalf("page = %d, want 1", snap.Page.Number)
	}
	if snap.Latest == nil || snap.Latest.ID != 2 {
		t.Fatalf("latest = %+v, want id 2", snap.Latest)
	}
	if snap.Messages[MessageNotice] == "" {
		t.Fatalf("expected a success notice")
	}
	if snap.Submitting {
		t.Fatalf("submitting must be cleared")
	}
	if snap.Recommendation != models.SignalBuy {
		t.Fatalf("recommendation = %q, want BUY", snap.Recommendation)
	}
	if g.requesters[0] != "ana" {
		t.Fatalf("requester = %q", g.requesters[0])
	}
}

func TestSubmitFailureLeavesDisplayUntouched(t *testing.T) {
	g := &fakeGateway{
		listFn: func(context.Context, int) ([]models.ForecastRecord, error) {
			return []models.ForecastRecord{record(4, 3000, 3100)}, nil
		},
		submitFn: func(context.Context, string, int, string) (models.ForecastRecord, error) {
			return models.ForecastRecord{}, models.NewError(models.KindBackendRejection, models.SourceSubmit, "quota exceeded", nil)
		},
	}
	w := newTestWorkflow(g, &fakePrices{})
	before := w.Activate(context.Background())

	snap, err := w.Submit(context.Background(), "GRU", 3)
	if !models.IsKind(err, models.KindBackendRejection) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if snap.Messages[MessageSubmit] != "quota exceeded" {
		t.Fatalf("submit message = %q", snap.Messages[MessageSubmit])
	}
	if snap.Latest == nil || snap.Latest.ID != before.Latest.ID {
		t.Fatalf("latest changed: %+v", snap.Latest)
	}
	if list, _ := g.counts(); list != 1 {
		t.Fatalf("list calls = %d, want no re-list after a failed submit", list)
	}
	if snap.Submitting {
		t.Fatalf("submitting must be cleared after failure")
	}
}

func TestSubmitValidationNeverCallsBackend(t *testing.T) {
	g := &fakeGateway{}
	w := newTestWorkflow(g, &fakePrices{})

	for _, h := range []int{0, -5} {
		snap, err := w.Submit(context.Background(), "LSTM", h)
		if !models.IsKind(err, models.KindValidation) {
			t.Fatalf("horizon %d: expected validation error, got %v", h, err)
		}
		if snap.Messages[MessageValidation] == "" {
			t.Fatalf("horizon %d: expected a validation message", h)
		}
	}
	if _, submit := g.counts(); submit != 0 {
		t.Fatalf("submit calls = %d, want 0", submit)
	}
}

func TestConcurrentSubmitIsRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	g := &fakeGateway{submitFn: func(context.Context, string, int, string) (models.ForecastRecord, error) {
		close(entered)
		<-release
		return models.ForecastRecord{ID: 1}, nil
	}}
	w := newTestWorkflow(g, &fakePrices{})

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = w.Submit(context.Background(), "LSTM", 3)
	}()
	<-entered

	if !w.Snapshot().Submitting {
		t.Fatalf("expected submitting while the first request is in flight")
	}
	snap, err := w.Submit(context.Background(), "GRU", 5)
	if !errors.Is(err, models.ErrSubmitInProgress) {
		t.Fatalf("second submit = %v, want in-progress", err)
	}
	if snap.Messages[MessageValidation] == "" {
		t.Fatalf("expected a validation message for the rejected submit")
	}

	close(release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first submit: %v", firstErr)
	}
	if _, submit := g.counts(); submit != 1 {
		t.Fatalf("submit calls = %d, want 1", submit)
	}
	if w.Snapshot().Submitting {
		t.Fatalf("submitting must be cleared")
	}
}

func TestSubmitHonoursSharedLock(t *testing.T) {
	locker := lock.NewMemoryLocker()
	if ok, _ := locker.TryLock(context.Background(), "submit:ana", time.Minute); !ok {
		t.Fatalf("setup lock failed")
	}
	g := &fakeGateway{}
	w := newTestWorkflow(g, &fakePrices{}, WithLocker(locker))

	if _, err := w.Submit(context.Background(), "LSTM", 3); !errors.Is(err, models.ErrSubmitInProgress) {
		t.Fatalf("expected in-progress while another replica holds the lock, got %v", err)
	}
	if _, submit := g.counts(); submit != 0 {
		t.Fatalf("submit calls = %d, want 0", submit)
	}

	if err := locker.Unlock(context.Background(), "submit:ana"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := w.Submit(context.Background(), "LSTM", 3); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ok, _ := locker.TryLock(context.Background(), "submit:ana", time.Minute); !ok {
		t.Fatalf("workflow must release the lock after submitting")
	}
}

func TestSubmitSurvivesReactivation(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	g := &fakeGateway{
		listFn: func(_ context.Context, call int) ([]models.ForecastRecord, error) {
			if call <= 2 {
				return []models.ForecastRecord{record(1, 3000)}, nil
			}
			return []models.ForecastRecord{record(1, 3000), record(2, 3200)}, nil
		},
		submitFn: func(context.Context, string, int, string) (models.ForecastRecord, error) {
			close(entered)
			<-release
			return models.ForecastRecord{ID: 2}, nil
		},
	}
	w := newTestWorkflow(g, &fakePrices{})
	w.Activate(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), "LSTM", 1)
		errCh <- err
	}()
	<-entered

	if snap := w.Activate(context.Background()); snap.Latest == nil || snap.Latest.ID != 1 {
		t.Fatalf("re-activation latest = %+v", snap.Latest)
	}
	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := w.Snapshot()
	if snap.Latest == nil || snap.Latest.ID != 2 {
		t.Fatalf("latest = %+v, want the re-listed id 2", snap.Latest)
	}
	if snap.Messages[MessageNotice] == "" {
		t.Fatalf("expected a success notice, got %+v", snap.Messages)
	}
	if snap.Page.Number != 1 || snap.State != StateReady {
		t.Fatalf("page = %d state = %s", snap.Page.Number, snap.State)
	}
	if list, _ := g.counts(); list != 3 {
		t.Fatalf("list calls = %d, want 3", list)
	}
}

func TestSubmitAfterDeactivationIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	g := &fakeGateway{
		listFn: func(context.Context, int) ([]models.ForecastRecord, error) {
			return []models.ForecastRecord{record(1, 3000)}, nil
		},
		submitFn: func(context.Context, string, int, string) (models.ForecastRecord, error) {
			close(entered)
			<-release
			return models.ForecastRecord{ID: 2}, nil
		},
	}
	w := newTestWorkflow(g, &fakePrices{})
	w.Activate(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), "LSTM", 1)
		errCh <- err
	}()
	<-entered
	w.Deactivate()
	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := w.Snapshot()
	if snap.State != StateIdle || snap.Latest != nil || len(snap.Messages) != 0 {
		t.Fatalf("deactivated view changed: %+v", snap)
	}
	if snap.Submitting {
		t.Fatalf("submitting must be cleared")
	}
}

func TestOlderActivationListDoesNotOverrideRelist(t *testing.T) {
	listStarted := make(chan struct{})
	releaseList := make(chan struct{})
	g := &fakeGateway{listFn: func(_ context.Context, call int) ([]models.ForecastRecord, error) {
		if call == 1 {
			close(listStarted)
			<-releaseList
			return []models.ForecastRecord{record(1, 3000)}, nil
		}
		return []models.ForecastRecord{record(1, 3000), record(2, 3200)}, nil
	}}
	w := newTestWorkflow(g, &fakePrices{})

	done := make(chan Snapshot)
	go func() { done <- w.Activate(context.Background()) }()
	<-listStarted

	snap, err := w.Submit(context.Background(), "GRU", 2)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap.Latest == nil || snap.Latest.ID != 2 {
		t.Fatalf("post-submit latest = %+v", snap.Latest)
	}

	close(releaseList)
	final := <-done
	if final.Latest == nil || final.Latest.ID != 2 {
		t.Fatalf("older list replaced the re-listed forecast: %+v", final.Latest)
	}
	if final.State != StateReady {
		t.Fatalf("state = %s", final.State)
	}
}

func TestStaleActivationIsDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	g := &fakeGateway{listFn: func(_ context.Context, call int) ([]models.ForecastRecord, error) {
		if call == 1 {
			close(firstStarted)
			<-releaseFirst // answers late, ignoring cancellation
			return []models.ForecastRecord{record(1, 1)}, nil
		}
		return []models.ForecastRecord{record(2, 2)}, nil
	}}
	w := newTestWorkflow(g, &fakePrices{})

	firstDone := make(chan Snapshot)
	go func() { firstDone <- w.Activate(context.Background()) }()
	<-firstStarted

	second := w.Activate(context.Background())
	if second.Latest == nil || second.Latest.ID != 2 {
		t.Fatalf("second activation latest = %+v", second.Latest)
	}

	close(releaseFirst)
	first := <-firstDone
	if first.Generation != second.Generation {
		t.Fatalf("superseded activation reported generation %d, want %d", first.Generation, second.Generation)
	}
	if snap := w.Snapshot(); snap.Latest == nil || snap.Latest.ID != 2 || snap.State != StateReady {
		t.Fatalf("late result leaked into the view: %+v", snap)
	}
}

func TestDeactivateDiscardsInFlightResults(t *testing.T) {
	started := make(chan struct{})
	g := &fakeGateway{listFn: func(ctx context.Context, _ int) ([]models.ForecastRecord, error) {
		close(started)
		<-ctx.Done()
		return []models.ForecastRecord{record(1, 1)}, nil
	}}
	w := newTestWorkflow(g, &fakePrices{})

	done := make(chan Snapshot)
	go func() { done <- w.Activate(context.Background()) }()
	<-started
	w.Deactivate()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("deactivation did not cancel the fetch")
	}
	snap := w.Snapshot()
	if snap.State != StateIdle || snap.Latest != nil {
		t.Fatalf("expected idle with no data, got %+v", snap)
	}
}

func TestPagingAndDismiss(t *testing.T) {
	g := &fakeGateway{listFn: func(context.Context, int) ([]models.ForecastRecord, error) {
		return []models.ForecastRecord{record(1, 1, 2, 3, 4, 5, 6, 7, 8)}, nil
	}}
	p := &fakePrices{fn: func(context.Context) ([]models.PricePoint, error) {
		return nil, models.NewError(models.KindPriceFeedUnavailable, models.SourcePrice, "Price history is unavailable right now.", nil)
	}}
	w := newTestWorkflow(g, p)
	snap := w.Activate(context.Background())

	if snap.Page.TotalPages != 2 || !snap.Page.ShowControls || len(snap.Page.Rows) != 7 {
		t.Fatalf("first page = %+v", snap.Page)
	}
	if snap.Page.Rows[0].DateDisplay != "02/05/2024 17:00" {
		t.Fatalf("date display = %q", snap.Page.Rows[0].DateDisplay)
	}
	if snap = w.SetPage(2); len(snap.Page.Rows) != 1 || snap.Page.Rows[0].PredictedValue != 8 {
		t.Fatalf("second page = %+v", snap.Page)
	}
	if snap = w.SetPage(3); len(snap.Page.Rows) != 0 {
		t.Fatalf("page past the end must be empty, got %+v", snap.Page)
	}

	snap = w.Dismiss(MessagePrice)
	if _, ok := snap.Messages[MessagePrice]; ok {
		t.Fatalf("price message not dismissed")
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	events := &recordingEvents{}
	w := newTestWorkflow(&fakeGateway{}, &fakePrices{}, WithEvents(events))

	ch, cancel := w.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.State != StateIdle {
		t.Fatalf("initial state = %s", initial.State)
	}

	w.Activate(context.Background())

	var last Snapshot
wait:
	for {
		select {
		case last = <-ch:
			if last.State == StateReady {
				break wait
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("never observed ready, last = %+v", last)
		}
	}
	if types := events.types(); len(types) != 1 || types[0] != models.EventWorkflowActivated {
		t.Fatalf("events = %v", types)
	}

	cancel()
	for range ch {
	}
}

func TestSubmitPublishesEvents(t *testing.T) {
	events := &recordingEvents{}
	g := &fakeGateway{submitFn: func(_ context.Context, model string, _ int, _ string) (models.ForecastRecord, error) {
		if model == "GRU" {
			return models.ForecastRecord{}, models.NewError(models.KindNetwork, models.SourceSubmit, "Unable to reach the forecast service.", nil)
		}
		return models.ForecastRecord{ID: 7}, nil
	}}
	w := newTestWorkflow(g, &fakePrices{}, WithEvents(events))

	_, _ = w.Submit(context.Background(), "LSTM", 2)
	_, _ = w.Submit(context.Background(), "GRU", 2)
	_, _ = w.Submit(context.Background(), "LSTM", 0)

	got := events.types()
	want := []models.EventType{models.EventForecastSubmitted, models.EventForecastSubmitFailed}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRegistryReusesWorkflows(t *testing.T) {
	built := 0
	r := NewRegistry(func(id string) *Workflow {
		built++
		return NewWorkflow(WorkflowConfig{Identifier: id}, &fakeGateway{}, &fakePrices{}, staticResolver{})
	})

	a := r.Get("ana")
	if r.Get("ana") != a {
		t.Fatalf("expected the same workflow for the same identifier")
	}
	r.Get("bruno")
	if built != 2 {
		t.Fatalf("built = %d, want 2", built)
	}
	if ids := r.Identifiers(); len(ids) != 2 || ids[0] != "ana" {
		t.Fatalf("identifiers = %v", ids)
	}

	a.Activate(context.Background())
	r.DeactivateAll()
	if s := a.Snapshot(); s.State != StateIdle {
		t.Fatalf("state after DeactivateAll = %s", s.State)
	}
}
