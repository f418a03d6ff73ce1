// Package orchestrator drives one publish pass across the selected
// destinations: a small state machine with progress reporting, partial
// failure handling, retry of failed platforms and a persisted history ring.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"crosspost/config"
	"crosspost/platforms"
	"crosspost/storage"
	"crosspost/types"
)

// ErrValidation rejects an operation before any side effect: missing
// article, empty selection, wrong state, or a rate-limit refusal.
var ErrValidation = errors.New("validation failed")

// ErrInfrastructure marks a failure of the orchestration machinery itself,
// as opposed to a per-platform publish failure. It aborts the whole pass.
var ErrInfrastructure = errors.New("sync infrastructure failure")

// event is one progress or result update flowing from the dispatchers to
// the single apply loop, which applies them in arrival order.
type event struct {
	progress *types.ImageProgress
	result   *types.SyncResult
}

// AdapterSource resolves built-in adapters by id. *platforms.Registry
// satisfies it.
type AdapterSource interface {
	Get(id string) (platforms.Adapter, error)
}

// Orchestrator is the sync state machine. All fields are guarded by mu;
// the transition table is enforced in StartSync/RetryFailed/Reset.
type Orchestrator struct {
	mu       sync.Mutex
	status   types.SyncStatus
	article  *types.Article
	opts     types.PublishOptions
	results  []types.SyncResult
	progress map[string]types.ImageProgress
	message  string
	history  []types.SyncHistoryItem

	adapters    AdapterSource
	store       storage.Store
	limiter     storage.RateLimiter
	newCMS      func(types.CMSAccount) platforms.Adapter
	concurrency int
}

// New wires the orchestrator. It starts in the loading state; call
// Bootstrap before anything else.
func New(adapters AdapterSource, runtime platforms.Runtime, store storage.Store, limiter storage.RateLimiter) *Orchestrator {
	return &Orchestrator{
		status:   types.StatusLoading,
		progress: make(map[string]types.ImageProgress),
		adapters: adapters,
		store:    store,
		limiter:  limiter,
		newCMS: func(acct types.CMSAccount) platforms.Adapter {
			return platforms.NewWordPress(runtime, acct)
		},
		concurrency: config.MaxConcurrentPublishes,
	}
}

// Bootstrap loads persisted history and recovers from a crashed pass, then
// moves the machine to idle.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	history, err := o.store.History(ctx)
	if err != nil {
		return fmt.Errorf("%w: load history: %v", ErrInfrastructure, err)
	}

	// A leftover snapshot means the previous process died mid-pass. Keep
	// its partial results as a history entry so the user sees what ran.
	if snap, err := o.store.InflightSnapshot(ctx); err == nil && snap != nil {
		log.Printf("orchestrator: recovering interrupted pass %q", snap.Title)
		history = prependCapped(history, *snap, config.HistoryCapacity)
		if err := o.store.SaveHistory(ctx, history); err != nil {
			return fmt.Errorf("%w: persist recovered history: %v", ErrInfrastructure, err)
		}
		if err := o.store.ClearInflightSnapshot(ctx); err != nil {
			return fmt.Errorf("%w: clear snapshot: %v", ErrInfrastructure, err)
		}
	}

	o.mu.Lock()
	o.history = history
	o.status = types.StatusIdle
	o.mu.Unlock()
	return nil
}

// Snapshot is a point-in-time copy of the machine state.
type Snapshot struct {
	Status   types.SyncStatus               `json:"status"`
	Article  string                         `json:"article,omitempty"`
	Results  []types.SyncResult             `json:"results"`
	Progress map[string]types.ImageProgress `json:"image_progress,omitempty"`
	Message  string                         `json:"message,omitempty"`
}

// Status returns a snapshot of the current state.
func (o *Orchestrator) Status() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{
		Status:   o.status,
		Results:  append([]types.SyncResult{}, o.results...),
		Progress: make(map[string]types.ImageProgress, len(o.progress)),
		Message:  o.message,
	}
	if o.article != nil {
		snap.Article = o.article.Title
	}
	for k, v := range o.progress {
		snap.Progress[k] = v
	}
	return snap
}

// History returns the persisted pass history, newest first.
func (o *Orchestrator) History() []types.SyncHistoryItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]types.SyncHistoryItem{}, o.history...)
}

// StartSync runs one publish pass over the persisted platform selection.
// It blocks until every publish call resolved and returns the pass
// results. Per-platform failures live inside the results; only validation
// and infrastructure problems come back as errors.
func (o *Orchestrator) StartSync(ctx context.Context, article *types.Article, opts types.PublishOptions) ([]types.SyncResult, error) {
	o.mu.Lock()
	if o.status != types.StatusIdle {
		o.message = fmt.Sprintf("cannot start sync while %s", o.status)
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: machine is %s", ErrValidation, o.status)
	}
	if article == nil || (article.HTML == "" && article.Markdown == "") {
		o.message = "no article loaded"
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: no article loaded", ErrValidation)
	}
	o.mu.Unlock()

	selected, err := o.store.SelectedPlatforms(ctx)
	if err != nil {
		return nil, o.infraFailure(fmt.Errorf("load selection: %w", err))
	}
	if len(selected) == 0 {
		o.mu.Lock()
		o.message = "no platforms selected"
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: no platforms selected", ErrValidation)
	}

	if o.limiter != nil {
		ok, err := o.limiter.Allow(ctx)
		if err != nil {
			return nil, o.infraFailure(fmt.Errorf("rate limit check: %w", err))
		}
		if !ok {
			o.mu.Lock()
			o.message = "syncing too frequently, wait a moment"
			o.mu.Unlock()
			return nil, fmt.Errorf("%w: rate limited", ErrValidation)
		}
	}

	// The selection and limiter calls above released the lock, so another
	// call may have been admitted in the meantime. Re-check before taking
	// the transition; exactly one caller wins.
	o.mu.Lock()
	if o.status != types.StatusIdle {
		o.message = fmt.Sprintf("cannot start sync while %s", o.status)
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: machine is %s", ErrValidation, o.status)
	}
	o.status = types.StatusSyncing
	o.article = article
	o.opts = opts
	o.results = nil
	o.progress = make(map[string]types.ImageProgress)
	o.message = ""
	o.mu.Unlock()

	entry := types.SyncHistoryItem{
		ID:        types.HistoryID(article.Title, time.Now()),
		Title:     article.Title,
		Cover:     article.Cover,
		Timestamp: time.Now(),
	}
	if err := o.store.SaveInflightSnapshot(ctx, &entry); err != nil {
		return nil, o.infraFailure(fmt.Errorf("persist snapshot: %w", err))
	}

	o.runPass(ctx, selected)

	return o.complete(ctx, entry, false)
}

// RetryFailed reruns only the platforms whose last result failed.
// Successful results are carried over verbatim; the newest history entry
// is updated in place instead of appending a duplicate.
func (o *Orchestrator) RetryFailed(ctx context.Context) ([]types.SyncResult, error) {
	o.mu.Lock()
	if o.status != types.StatusCompleted {
		o.message = "nothing to retry"
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: machine is not completed", ErrValidation)
	}
	var failed []string
	var carried []types.SyncResult
	for _, r := range o.results {
		if r.Success {
			carried = append(carried, r)
		} else {
			failed = append(failed, r.Platform)
		}
	}
	if len(failed) == 0 {
		o.message = "no failed platforms"
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: no failed platforms", ErrValidation)
	}
	if len(o.history) == 0 {
		o.mu.Unlock()
		return nil, o.infraFailure(errors.New("completed pass has no history entry"))
	}
	entry := o.history[0]
	o.status = types.StatusSyncing
	o.results = carried
	o.progress = make(map[string]types.ImageProgress)
	o.message = ""
	o.mu.Unlock()

	if err := o.store.SaveInflightSnapshot(ctx, &entry); err != nil {
		return nil, o.infraFailure(fmt.Errorf("persist snapshot: %w", err))
	}

	o.runPass(ctx, failed)

	return o.complete(ctx, entry, true)
}

// Reset clears transient results, progress and messages and drops the
// persisted in-flight snapshot. Allowed from completed and idle. Already
// dispatched network requests keep running to completion; only local state
// is discarded.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	if o.status != types.StatusCompleted && o.status != types.StatusIdle {
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot reset while %s", ErrValidation, o.status)
	}
	o.status = types.StatusIdle
	o.article = nil
	o.results = nil
	o.progress = make(map[string]types.ImageProgress)
	o.message = ""
	o.mu.Unlock()

	if err := o.store.ClearInflightSnapshot(ctx); err != nil {
		return fmt.Errorf("%w: clear snapshot: %v", ErrInfrastructure, err)
	}
	return nil
}

// runPass publishes to the given platform ids. Built-in destinations are
// dispatched as one batch through a bounded worker pool; self-hosted
// accounts publish strictly sequentially after them. Events are applied in
// arrival order by a single apply loop.
func (o *Orchestrator) runPass(ctx context.Context, ids []string) {
	accounts, err := o.store.CMSAccounts(ctx)
	if err != nil {
		log.Printf("orchestrator: loading cms accounts: %v", err)
	}
	accountByID := make(map[string]types.CMSAccount, len(accounts))
	for _, a := range accounts {
		accountByID[a.ID] = a
	}

	var builtin []string
	var selfHosted []types.CMSAccount
	var unknown []string
	for _, id := range ids {
		if acct, ok := accountByID[id]; ok {
			selfHosted = append(selfHosted, acct)
			continue
		}
		if _, err := o.adapters.Get(id); err == nil {
			builtin = append(builtin, id)
			continue
		}
		unknown = append(unknown, id)
	}

	events := make(chan event, 16)
	applied := make(chan struct{})
	go func() {
		defer close(applied)
		for e := range events {
			o.mu.Lock()
			if e.progress != nil {
				o.progress[e.progress.Platform] = *e.progress
			}
			if e.result != nil {
				o.results = append(o.results, *e.result)
			}
			o.mu.Unlock()
		}
	}()

	for _, id := range unknown {
		events <- event{result: &types.SyncResult{
			Platform:  id,
			Success:   false,
			Error:     "platform not registered",
			Timestamp: time.Now(),
		}}
	}

	// Built-in batch: results land in resolution order, not submission
	// order.
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)
	for _, id := range builtin {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res := o.publishOne(ctx, id, events)
			events <- event{result: &res}
		}(id)
	}
	wg.Wait()

	// Self-hosted accounts: submission order.
	for _, acct := range selfHosted {
		adapter := o.newCMS(acct)
		res := o.publishAdapter(ctx, adapter, acct.ID, events)
		events <- event{result: &res}
	}

	close(events)
	<-applied
}

func (o *Orchestrator) publishOne(ctx context.Context, id string, events chan<- event) types.SyncResult {
	adapter, err := o.adapters.Get(id)
	if err != nil {
		return types.SyncResult{
			Platform:  id,
			Success:   false,
			Error:     err.Error(),
			Timestamp: time.Now(),
		}
	}
	return o.publishAdapter(ctx, adapter, id, events)
}

func (o *Orchestrator) publishAdapter(ctx context.Context, adapter platforms.Adapter, id string, events chan<- event) types.SyncResult {
	o.mu.Lock()
	article, opts := o.article, o.opts
	o.mu.Unlock()

	opts.OnImageProgress = func(current, total int) {
		events <- event{progress: &types.ImageProgress{Platform: id, Current: current, Total: total}}
	}
	res := adapter.Publish(ctx, article, opts)
	if res.Success {
		log.Printf("orchestrator: %s published %q (%s)", id, article.Title, res.PostURL)
	} else {
		log.Printf("orchestrator: %s failed: %s", id, res.Error)
	}
	return res
}

// complete finalizes a pass: completed state, history ring update (prepend
// for a fresh pass, in-place replace of the newest entry for a retry) and
// snapshot cleanup.
func (o *Orchestrator) complete(ctx context.Context, entry types.SyncHistoryItem, retry bool) ([]types.SyncResult, error) {
	o.mu.Lock()
	results := append([]types.SyncResult{}, o.results...)
	entry.Results = results
	if retry {
		o.history[0] = entry
	} else {
		o.history = prependCapped(o.history, entry, config.HistoryCapacity)
	}
	history := append([]types.SyncHistoryItem{}, o.history...)
	o.status = types.StatusCompleted
	o.mu.Unlock()

	if err := o.store.SaveHistory(ctx, history); err != nil {
		return results, o.infraFailure(fmt.Errorf("persist history: %w", err))
	}
	if err := o.store.ClearInflightSnapshot(ctx); err != nil {
		return results, o.infraFailure(fmt.Errorf("clear snapshot: %w", err))
	}
	return results, nil
}

// infraFailure reverts the machine to idle with a user-facing message.
func (o *Orchestrator) infraFailure(err error) error {
	o.mu.Lock()
	o.status = types.StatusIdle
	o.message = err.Error()
	o.mu.Unlock()
	return fmt.Errorf("%w: %v", ErrInfrastructure, err)
}

func prependCapped(items []types.SyncHistoryItem, entry types.SyncHistoryItem, capacity int) []types.SyncHistoryItem {
	out := append([]types.SyncHistoryItem{entry}, items...)
	if len(out) > capacity {
		out = out[:capacity]
	}
	return out
}
