package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"ForecastDesk/internal/domain/models"
	domrepo "ForecastDesk/internal/domain/repository"
	domsvc "ForecastDesk/internal/domain/service"
	"ForecastDesk/pkg/lock"
	applogger "ForecastDesk/pkg/logger"
)

const (
	submitSuccessNotice     = "New forecast created successfully."
	submitInProgressMessage = "A forecast request is already being submitted."
	subscriberBuffer        = 8
)

type WorkflowConfig struct {
	Identifier    string
	Symbol        string
	WindowDays    int
	PageSize      int
	SubmitLockTTL time.Duration
}

type WorkflowOption func(*Workflow)

func WithEvents(p domrepo.EventPublisher) WorkflowOption {
	return func(w *Workflow) { w.events = p }
}

func WithMetrics(m domrepo.Metrics) WorkflowOption {
	return func(w *Workflow) { w.metrics = m }
}

// WithLocker adds a lock shared between replicas on top of the in-process
// submitting flag.
func WithLocker(lk lock.Locker) WorkflowOption {
	return func(w *Workflow) { w.locker = lk }
}

func WithLogger(l *applogger.Logger) WorkflowOption {
	return func(w *Workflow) { w.l = l }
}

// Workflow drives one forecast screen: it loads prices and forecasts,
// submits new forecast requests and exposes the render state as snapshots.
//
// All transitions happen under mu. Activation fetch results carry the
// generation they were started in and are dropped if the workflow has since
// been deactivated or re-activated. A submission only loses its follow-up
// list to a deactivation; forecast lists are applied newest-request-first.
type Workflow struct {
	cfg       WorkflowConfig
	forecasts domrepo.ForecastGateway
	prices    domrepo.PriceFeed
	requester domsvc.RequesterResolver
	events    domrepo.EventPublisher
	metrics   domrepo.Metrics
	locker    lock.Locker
	l         *applogger.Logger

	mu              sync.Mutex
	gen             uint64
	deactivations   uint64 // bumped by Deactivate only
	listSeq         uint64 // forecast list requests started
	appliedListSeq  uint64 // newest list request applied to the view
	version         uint64
	cancel          context.CancelFunc
	state           State
	submitting      bool
	priceData       []models.PricePoint // replaced wholesale, never mutated
	latest          *models.ForecastRecord
	forecastsLoaded bool
	page            int
	messages        map[MessageSource]string
	subs            map[int]chan Snapshot
	nextSub         int
}

func NewWorkflow(cfg WorkflowConfig, forecasts domrepo.ForecastGateway, prices domrepo.PriceFeed,
	requester domsvc.RequesterResolver, opts ...WorkflowOption) *Workflow {
	if cfg.Symbol == "" {
		cfg.Symbol = "ethereum"
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 7
	}
	if cfg.SubmitLockTTL <= 0 {
		cfg.SubmitLockTTL = 2 * time.Minute
	}

	w := &Workflow{
		cfg:       cfg,
		forecasts: forecasts,
		prices:    prices,
		requester: requester,
		metrics:   nopMetrics{},
		l:         applogger.Nop(),
		state:     StateIdle,
		page:      1,
		messages:  make(map[MessageSource]string),
		subs:      make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.l = w.l.Component("workflow")
	return w
}

func (w *Workflow) Identifier() string { return w.cfg.Identifier }

// Activate starts a new generation, runs both fetches concurrently and
// blocks until both have resolved. The workflow is ready if at least one
// fetch succeeded. A superseded activation returns the current snapshot
// without applying anything further.
func (w *Workflow) Activate(ctx context.Context) Snapshot {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.gen++
	gen := w.gen
	actx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.state = StateLoading
	w.priceData = nil
	w.latest = nil
	w.forecastsLoaded = false
	w.page = 1
	delete(w.messages, MessagePrice)
	delete(w.messages, MessageForecast)
	listSeq := w.nextListSeqLocked()
	w.publishLocked()
	w.mu.Unlock()

	w.l.Info("workflow activating",
		applogger.String("identifier", w.cfg.Identifier),
		applogger.Uint64("generation", gen),
	)

	var (
		wg                  sync.WaitGroup
		priceOK, forecastOK bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		priceOK = w.loadPrices(actx, gen)
	}()
	go func() {
		defer wg.Done()
		forecastOK = w.loadForecasts(actx, gen, listSeq)
	}()
	wg.Wait()
	cancel()

	w.mu.Lock()
	if gen != w.gen {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		w.l.Debug("activation superseded", applogger.Uint64("generation", gen))
		return snap
	}
	w.cancel = nil
	if priceOK || forecastOK {
		w.state = StateReady
	} else {
		w.state = StateFailed
	}
	w.publishLocked()
	snap := w.snapshotLocked()
	w.mu.Unlock()

	if snap.Recommendation != "" {
		w.metrics.RecordSignal(w.cfg.Symbol, string(snap.Recommendation))
	}
	w.l.Info("workflow activated",
		applogger.String("identifier", w.cfg.Identifier),
		applogger.String("state", string(snap.State)),
		applogger.Bool("prices", priceOK),
		applogger.Bool("forecasts", forecastOK),
	)
	w.publishEvent(ctx, models.WorkflowEvent{
		Type:       models.EventWorkflowActivated,
		Generation: gen,
		State:      string(snap.State),
	})
	return snap
}

// Deactivate cancels in-flight fetches and discards their results.
// A running submission still clears its own flag when it returns.
func (w *Workflow) Deactivate() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.gen++
	w.deactivations++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.state = StateIdle
	w.priceData = nil
	w.latest = nil
	w.forecastsLoaded = false
	w.page = 1
	w.messages = make(map[MessageSource]string)
	w.publishLocked()
}

func (w *Workflow) loadPrices(ctx context.Context, gen uint64) bool {
	start := time.Now()
	points, err := w.prices.FetchRecentPrices(ctx, w.cfg.Symbol, w.cfg.WindowDays)
	w.metrics.RecordLatency("price_history", time.Since(start).Seconds())

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.gen {
		w.l.Debug("discarding stale price history", applogger.Uint64("generation", gen))
		return false
	}
	if err != nil {
		w.metrics.RecordFetch("price", "error")
		w.metrics.RecordError(string(models.KindOf(err)))
		w.l.Warn("price history fetch failed",
			applogger.String("identifier", w.cfg.Identifier),
			applogger.Error(err),
		)
		w.messages[MessagePrice] = models.UserMessage(err)
		w.publishLocked()
		return false
	}

	w.metrics.RecordFetch("price", "ok")
	if cp := CurrentPrice(points); cp != nil {
		w.metrics.RecordLastPrice(w.cfg.Symbol, *cp)
	}
	w.priceData = points
	w.publishLocked()
	return true
}

func (w *Workflow) loadForecasts(ctx context.Context, gen, seq uint64) bool {
	start := time.Now()
	records, err := w.forecasts.ListForecasts(ctx)
	w.metrics.RecordLatency("list_forecasts", time.Since(start).Seconds())

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.gen {
		w.l.Debug("discarding stale forecast list", applogger.Uint64("generation", gen))
		return false
	}
	if err != nil {
		w.metrics.RecordFetch("forecast", "error")
		w.metrics.RecordError(string(models.KindOf(err)))
		w.l.Warn("forecast list fetch failed",
			applogger.String("identifier", w.cfg.Identifier),
			applogger.Error(err),
		)
		if seq < w.appliedListSeq {
			// A later list already refreshed the view.
			return true
		}
		w.messages[MessageForecast] = models.UserMessage(err)
		w.publishLocked()
		return false
	}

	w.metrics.RecordFetch("forecast", "ok")
	w.applyForecastsLocked(records, seq)
	w.publishLocked()
	return true
}

func (w *Workflow) nextListSeqLocked() uint64 {
	w.listSeq++
	return w.listSeq
}

// applyForecastsLocked shows records unless a list requested later has
// already been applied.
func (w *Workflow) applyForecastsLocked(records []models.ForecastRecord, seq uint64) {
	if seq < w.appliedListSeq {
		return
	}
	w.appliedListSeq = seq
	if latest, ok := models.SelectLatest(records); ok {
		w.latest = &latest
	} else {
		w.latest = nil
	}
	w.forecastsLoaded = true
	delete(w.messages, MessageForecast)
}

// Submit requests a new forecast. On success the forecast list is fetched
// once more and the page resets to 1; on failure the displayed forecast is
// left as it was. Only one submission runs at a time.
func (w *Workflow) Submit(ctx context.Context, model string, horizonDays int) (Snapshot, error) {
	tok, err := w.beginSubmit()
	if err != nil {
		return w.Snapshot(), err
	}
	err = w.submit(ctx, tok, model, horizonDays)
	return w.Snapshot(), err
}

func inProgressError() error {
	return models.NewError(models.KindValidation, models.SourceValidation,
		submitInProgressMessage, models.ErrSubmitInProgress)
}

// submitToken ties a submission to the activation it started in.
type submitToken struct {
	gen           uint64 // reported on events
	deactivations uint64
}

func (w *Workflow) beginSubmit() (submitToken, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		w.messages[MessageValidation] = submitInProgressMessage
		w.publishLocked()
		return submitToken{}, inProgressError()
	}
	w.submitting = true
	delete(w.messages, MessageSubmit)
	delete(w.messages, MessageValidation)
	delete(w.messages, MessageNotice)
	w.publishLocked()
	return submitToken{gen: w.gen, deactivations: w.deactivations}, nil
}

// liveLocked reports whether results of the submission may still be shown.
// Re-activating the same screen keeps them; deactivating drops them.
func (w *Workflow) liveLocked(tok submitToken) bool {
	return tok.deactivations == w.deactivations
}

func (w *Workflow) endSubmit() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.submitting = false
	w.publishLocked()
}

func (w *Workflow) submit(ctx context.Context, tok submitToken, model string, horizonDays int) error {
	defer w.endSubmit()

	kind, err := models.ValidateSubmission(ctx, model, horizonDays)
	if err != nil {
		w.failSubmit(ctx, tok, kind, horizonDays, err)
		return err
	}

	if w.locker != nil {
		key := "submit:" + w.cfg.Identifier
		ok, lerr := w.locker.TryLock(ctx, key, w.cfg.SubmitLockTTL)
		switch {
		case lerr != nil:
			w.l.Warn("submit lock unavailable, continuing with local guard", applogger.Error(lerr))
		case !ok:
			err := inProgressError()
			w.failSubmit(ctx, tok, kind, horizonDays, err)
			return err
		default:
			defer func() {
				if err := w.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
					w.l.Warn("submit lock release failed", applogger.String("key", key), applogger.Error(err))
				}
			}()
		}
	}

	requester, err := w.requester.Resolve(ctx, w.cfg.Identifier)
	if err != nil {
		var de *models.Error
		if !errors.As(err, &de) {
			err = models.NewError(models.KindNetwork, models.SourceRequester,
				"Unable to identify the requester.", err)
		}
		w.failSubmit(ctx, tok, kind, horizonDays, err)
		return err
	}

	start := time.Now()
	rec, err := w.forecasts.SubmitForecast(ctx, string(kind), horizonDays, requester)
	w.metrics.RecordLatency("submit_forecast", time.Since(start).Seconds())
	if err != nil {
		w.failSubmit(ctx, tok, kind, horizonDays, err)
		return err
	}

	w.metrics.RecordSubmission(string(kind), "ok")
	w.l.Info("forecast submitted",
		applogger.String("identifier", w.cfg.Identifier),
		applogger.String("model", string(kind)),
		applogger.Int("horizon_days", horizonDays),
		applogger.Int64("forecast_id", rec.ID),
	)
	w.publishEvent(ctx, models.WorkflowEvent{
		Type:        models.EventForecastSubmitted,
		Generation:  tok.gen,
		Model:       kind,
		HorizonDays: horizonDays,
		ForecastID:  rec.ID,
	})

	// The submit response is only a hint; the list is the source of truth.
	w.mu.Lock()
	seq := w.nextListSeqLocked()
	w.mu.Unlock()

	records, lerr := w.forecasts.ListForecasts(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.liveLocked(tok) {
		w.l.Debug("discarding post-submit list after deactivation", applogger.Uint64("generation", tok.gen))
		return nil
	}
	w.page = 1
	w.messages[MessageNotice] = submitSuccessNotice
	if lerr != nil {
		w.l.Warn("forecast list refresh after submit failed", applogger.Error(lerr))
		w.messages[MessageForecast] = models.UserMessage(lerr)
	} else {
		w.applyForecastsLocked(records, seq)
		if w.state != StateLoading {
			w.state = StateReady
		}
	}
	w.publishLocked()
	return nil
}

func (w *Workflow) failSubmit(ctx context.Context, tok submitToken, kind models.ModelKind, horizonDays int, err error) {
	errKind := models.KindOf(err)
	if errKind == models.KindValidation {
		w.metrics.RecordSubmission(string(kind), "invalid")
		w.l.Debug("forecast submission rejected locally", applogger.Error(err))
	} else {
		w.metrics.RecordSubmission(string(kind), "error")
		w.metrics.RecordError(string(errKind))
		w.l.Warn("forecast submission failed",
			applogger.String("identifier", w.cfg.Identifier),
			applogger.String("model", string(kind)),
			applogger.Error(err),
		)
		w.publishEvent(ctx, models.WorkflowEvent{
			Type:        models.EventForecastSubmitFailed,
			Generation:  tok.gen,
			Model:       kind,
			HorizonDays: horizonDays,
			ErrorKind:   errKind,
			Error:       models.UserMessage(err),
		})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.liveLocked(tok) {
		return
	}
	w.messages[messageSlot(err)] = models.UserMessage(err)
	w.publishLocked()
}

// SetPage moves the result view to page n. Out-of-range pages render empty.
func (w *Workflow) SetPage(n int) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.page = n
	w.publishLocked()
	return w.snapshotLocked()
}

// Dismiss clears the message in one slot.
func (w *Workflow) Dismiss(source MessageSource) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.messages[source]; ok {
		delete(w.messages, source)
		w.publishLocked()
	}
	return w.snapshotLocked()
}

// busy reports whether an activation or submission is running, or a
// subscriber is attached.
func (w *Workflow) busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting || w.state == StateLoading || len(w.subs) > 0
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Subscribe delivers the current snapshot and then one per transition.
// A slow subscriber loses intermediate snapshots, never the newest one.
func (w *Workflow) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	ch <- w.snapshotLocked()
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
			close(ch)
		})
	}
}

func (w *Workflow) publishLocked() {
	w.version++
	if len(w.subs) == 0 {
		return
	}
	snap := w.snapshotLocked()
	for _, ch := range w.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (w *Workflow) snapshotLocked() Snapshot {
	snap := Snapshot{
		Identifier:   w.cfg.Identifier,
		Generation:   w.gen,
		Version:      w.version,
		State:        w.state,
		Submitting:   w.submitting,
		Symbol:       w.cfg.Symbol,
		Prices:       w.priceData,
		CurrentPrice: CurrentPrice(w.priceData),
	}

	if w.latest != nil {
		snap.Latest = newForecastView(w.latest)
		snap.Page = newPageView(w.latest.Results, w.cfg.PageSize, w.page)
		if sig, ok := RecommendFor(w.priceData, w.latest); ok {
			snap.Recommendation = sig
		}
	} else {
		snap.NoForecast = w.forecastsLoaded
		snap.Page = newPageView(nil, w.cfg.PageSize, w.page)
	}

	if len(w.messages) > 0 {
		snap.Messages = make(map[MessageSource]string, len(w.messages))
		for k, v := range w.messages {
			snap.Messages[k] = v
		}
	}
	return snap
}

func (w *Workflow) publishEvent(ctx context.Context, e models.WorkflowEvent) {
	if w.events == nil {
		return
	}
	e.Identifier = w.cfg.Identifier
	e.Timestamp = time.Now().UTC()
	if err := w.events.Publish(ctx, e); err != nil {
		w.l.Warn("workflow event not published",
			applogger.String("type", string(e.Type)),
			applogger.Error(err),
		)
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string) {}
func (nopMetrics) RecordSubmission(string, string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordSignal(string, string) {}
func (nopMetrics) RecordLatency(string, float64) {}
