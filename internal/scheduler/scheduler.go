// ABOUTME: Intention scheduler: desire selection, plan acquisition and execution tracking
// ABOUTME: All callbacks are serialized by one lock; collaborators are called without blocking

package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Mode selects how desire and belief snapshots trigger rescheduling.
type Mode string

const (
	// ModeImmediate reschedules on every snapshot.
	ModeImmediate Mode = "immediate"
	// ModeDeferred marks the scheduler dirty and reschedules on Tick.
	ModeDeferred Mode = "deferred"
)

// Policy decides whether a running intention yields to a more urgent desire.
type Policy string

const (
	PolicyPreempt   Policy = "preempt"
	PolicyNoPreempt Policy = "no_preempt"
)

// State is the coarse scheduler state reported by Status.
type State string

const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
	StateExecuting State = "executing"
)

const (
	lookupTimeout  = 2 * time.Second
	publishTimeout = 5 * time.Second
)

// PlanSearcher starts plan searches. Search must return immediately and
// deliver results from another goroutine; Cancel must not block.
type PlanSearcher interface {
	Search(req bdi.SearchRequest, deliver func(bdi.SearchResult))
	Cancel(searchID string)
}

// PlanExecutor runs plans. Execute and Extend start or grow execution and
// return immediately; feedback arrives through UpdatePlanExecution.
type PlanExecutor interface {
	Execute(plan bdi.Plan) error
	Extend(plan bdi.Plan) error
	Abort(planID string)
}

// PlanLookup is the read side of the plan library.
type PlanLookup interface {
	Lookup(ctx context.Context, key bdi.Fingerprint) (bdi.Plan, bool, error)
}

// PlanSink accepts final plans for asynchronous persistence.
type PlanSink interface {
	Submit(plan bdi.Plan) bool
}

// DesirePublisher publishes desire delete intents to the owning store.
type DesirePublisher interface {
	DelDesire(ctx context.Context, d bdi.Desire) error
}

// Config holds scheduler policy.
type Config struct {
	AgentID              string
	Mode                 Mode
	Policy               Policy
	CompPlanTries        int
	ExecPlanTries        int
	SearchTimeout        time.Duration
	RescheduleInterval   time.Duration
	AbortSurpassDeadline float64
}

// Deps are the scheduler's collaborators. Library, Writer and Publisher
// may be nil.
type Deps struct {
	Searcher  PlanSearcher
	Executor  PlanExecutor
	Library   PlanLookup
	Writer    PlanSink
	Publisher DesirePublisher
	Logger    *slog.Logger
}

type intention struct {
	plan     bdi.Plan
	progress []float64
	started  time.Time
}

type search struct {
	id          string
	planID      string
	desire      bdi.Desire
	provisional *bdi.Plan
	started     time.Time
	timer       *time.Timer
}

type attempts struct {
	search int
	exec   int
}

// Scheduler owns the current intention, the waiting-plan queue and the
// in-flight search.
type Scheduler struct {
	cfg       Config
	searcher  PlanSearcher
	executor  PlanExecutor
	library   PlanLookup
	writer    PlanSink
	publisher DesirePublisher
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	beliefs    *bdi.BeliefSet
	desires    *bdi.DesireSet
	beliefGen  uint64
	queue      *Queue
	current    *intention
	search     *search
	tries      map[bdi.Fingerprint]*attempts
	failed     map[bdi.Fingerprint]bool
	pruned     map[bdi.Fingerprint]bool
	completed  map[bdi.Fingerprint]uint64 // belief generation at completion
	backoff    bdi.Fingerprint
	dirty      bool
	libraryOff bool
	stats      Stats
}

// Stats counts scheduler outcomes.
type Stats struct {
	Completed      int `json:"completed"`
	SearchFailures int `json:"search_failures"`
	ExecFailures   int `json:"exec_failures"`
	Dropped        int `json:"dropped"`
	CacheHits      int `json:"cache_hits"`
}

// New creates a scheduler. Zero config values fall back to the agent defaults.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.Mode == "" {
		cfg.Mode = ModeImmediate
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyNoPreempt
	}
	if cfg.CompPlanTries <= 0 {
		cfg.CompPlanTries = 16
	}
	if cfg.ExecPlanTries <= 0 {
		cfg.ExecPlanTries = 16
	}
	if cfg.RescheduleInterval <= 0 {
		cfg.RescheduleInterval = time.Second
	}
	if cfg.AbortSurpassDeadline <= 0 {
		cfg.AbortSurpassDeadline = 2.0
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cfg:       cfg,
		searcher:  deps.Searcher,
		executor:  deps.Executor,
		library:   deps.Library,
		writer:    deps.Writer,
		publisher: deps.Publisher,
		logger:    logger.With("component", "scheduler"),
		now:       time.Now,
		beliefs:   bdi.NewBeliefSet(nil),
		desires:   bdi.NewDesireSet(nil),
		queue:     NewQueue(),
		tries:     make(map[bdi.Fingerprint]*attempts),
		failed:    make(map[bdi.Fingerprint]bool),
		pruned:    make(map[bdi.Fingerprint]bool),
		completed: make(map[bdi.Fingerprint]uint64),
	}
}

// Start runs the periodic tick until ctx is cancelled, then cancels any
// in-flight search.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RescheduleInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		"mode", s.cfg.Mode,
		"policy", s.cfg.Policy,
		"comp_plan_tries", s.cfg.CompPlanTries,
		"exec_plan_tries", s.cfg.ExecPlanTries)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cancelSearchLocked()
			s.mu.Unlock()
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick checks the intention deadline and, in deferred mode, runs a pending
// reschedule.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkDeadlineLocked() {
		s.rescheduleLocked()
		return
	}
	if s.dirty {
		s.dirty = false
		s.rescheduleLocked()
	}
}

// OnBeliefSet installs a new mirrored belief set.
func (s *Scheduler) OnBeliefSet(set *bdi.BeliefSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.beliefs = set
	s.beliefGen++

	if s.current != nil && s.current.plan.Desire.IsFulfilled(set) {
		s.logger.Info("intention satisfied during execution",
			"desire", s.current.plan.Desire.Name,
			"plan_id", s.current.plan.ID)
		s.abortCurrentLocked()
		s.completeLocked(s.current.plan)
		s.rescheduleLocked()
		return
	}

	s.afterSnapshotLocked()
}

// OnDesireSet installs a new mirrored desire set. Removal of the current,
// queued or searched desire takes effect immediately in every mode.
func (s *Scheduler) OnDesireSet(set *bdi.DesireSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.desires
	s.desires = set

	for _, d := range previous.List() {
		key := d.Fingerprint()
		if set.Count(key) > 0 {
			continue
		}
		delete(s.tries, key)
		delete(s.failed, key)
		delete(s.pruned, key)
		delete(s.completed, key)
		if n := s.queue.RemoveDesire(key); n > 0 {
			s.logger.Debug("dropped queued plans of removed desire", "desire", d.Name, "plans", n)
		}
	}

	if s.search != nil && set.Count(s.search.desire.Fingerprint()) == 0 {
		s.logger.Info("desire removed during search", "desire", s.search.desire.Name)
		s.cancelSearchLocked()
	}

	if s.current != nil && set.Count(s.current.plan.Fingerprint()) == 0 {
		s.logger.Info("desire removed during execution, aborting intention",
			"desire", s.current.plan.Desire.Name)
		s.abortCurrentLocked()
		s.current = nil
	}

	s.afterSnapshotLocked()
}

func (s *Scheduler) afterSnapshotLocked() {
	if s.cfg.Mode == ModeDeferred {
		s.dirty = true
		return
	}
	s.rescheduleLocked()
}

// Reschedule runs one scheduling pass.
func (s *Scheduler) Reschedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescheduleLocked()
}

// rescheduleLocked prunes satisfied desires, promotes the queue head when
// idle, then starts a search for the best remaining candidate.
func (s *Scheduler) rescheduleLocked() {
	s.pruneSatisfiedLocked()

	if s.cfg.Policy == PolicyPreempt && s.current != nil {
		s.preemptLocked()
	}

	for s.current == nil && s.queue.Len() > 0 {
		plan, _ := s.queue.Dequeue()
		s.promoteLocked(plan)
	}

	if s.search != nil {
		return
	}
	if d, ok := s.nextCandidateLocked(); ok {
		s.launchPlanSearchLocked(d)
	}
}

// preemptLocked swaps the current intention for a queued plan whose desire
// has strictly higher priority. Desires without a queued plan never preempt.
func (s *Scheduler) preemptLocked() {
	var (
		best      bdi.Plan
		bestPr    float64
		found     bool
		currentPr = s.current.plan.Desire.Priority
	)
	for _, p := range s.queue.List() {
		live, ok := s.desires.Get(p.Fingerprint())
		if !ok || live.Priority <= currentPr {
			continue
		}
		if !found || live.Priority > bestPr {
			best, bestPr, found = p, live.Priority, true
		}
	}
	if !found {
		return
	}

	cur := s.current
	s.logger.Info("preempting intention",
		"desire", cur.plan.Desire.Name,
		"priority", currentPr,
		"by", best.Desire.Name,
		"by_priority", bestPr)
	s.abortCurrentLocked()
	s.current = nil
	if s.search != nil && s.search.planID == cur.plan.ID {
		s.cancelSearchLocked()
	}
	s.queue.Remove(best.ID)
	s.promoteLocked(best)
}

// pruneSatisfiedLocked requests deletion of desires whose target already holds
// and discards any work queued or searching for them.
func (s *Scheduler) pruneSatisfiedLocked() {
	for _, d := range s.desires.List() {
		if !d.IsFulfilled(s.beliefs) {
			continue
		}
		key := d.Fingerprint()
		s.queue.RemoveDesire(key)
		if s.search != nil && s.search.desire.Fingerprint() == key {
			s.logger.Info("desire satisfied during search", "desire", d.Name)
			s.cancelSearchLocked()
		}
		if !s.pruned[key] {
			s.pruned[key] = true
			s.logger.Debug("pruning satisfied desire", "desire", d.Name)
			s.publishDelDesire(d)
		}
	}
}

// nextCandidateLocked returns the highest-priority desire eligible for a new
// plan search. Queued desires are excluded, and so is the desire that just
// failed a search while another candidate exists.
func (s *Scheduler) nextCandidateLocked() (bdi.Desire, bool) {
	var (
		backedOff    bdi.Desire
		hasBackedOff bool
	)
	for _, d := range s.desires.ByPriority() {
		key := d.Fingerprint()
		if d.IsFulfilled(s.beliefs) || s.failed[key] {
			continue
		}
		if s.current != nil && s.current.plan.Fingerprint() == key {
			continue
		}
		if gen, ok := s.completed[key]; ok && gen == s.beliefGen {
			// Completed but beliefs not refreshed yet.
			continue
		}
		if s.queue.Contains(key) {
			continue
		}
		if key == s.backoff {
			if !hasBackedOff {
				backedOff, hasBackedOff = d, true
			}
			continue
		}
		return d, true
	}
	if hasBackedOff {
		s.backoff = ""
		return backedOff, true
	}
	return bdi.Desire{}, false
}

// promoteLocked makes plan the current intention. Returns false if the plan
// is stale or could not be started.
func (s *Scheduler) promoteLocked(plan bdi.Plan) bool {
	key := plan.Fingerprint()
	live, ok := s.desires.Get(key)
	if !ok || live.IsFulfilled(s.beliefs) || s.failed[key] {
		s.logger.Debug("discarding stale plan", "desire", plan.Desire.Name, "plan_id", plan.ID)
		return false
	}
	plan.Desire = live

	if plan.Final && !plan.Cached {
		s.persistLocked(&plan)
	}

	s.current = &intention{
		plan:     plan,
		progress: make([]float64, len(plan.Actions)),
		started:  s.now(),
	}

	if s.executor != nil {
		if err := s.executor.Execute(plan); err != nil {
			s.logger.Error("failed to start plan execution",
				"desire", plan.Desire.Name,
				"plan_id", plan.ID,
				"error", err)
			s.current = nil
			s.execFailureLocked(plan, err.Error())
			return false
		}
	}

	s.logger.Info("intention started",
		"desire", plan.Desire.Name,
		"plan_id", plan.ID,
		"actions", len(plan.Actions),
		"final", plan.Final)

	if plan.Final && len(plan.Actions) == 0 {
		s.completeLocked(plan)
	}
	return true
}

// launchPlanSearchLocked uses a cached plan for d when one exists, otherwise
// starts a planner search.
func (s *Scheduler) launchPlanSearchLocked(d bdi.Desire) {
	key := d.Fingerprint()

	if s.library != nil && !s.libraryOff && s.triesLocked(key).exec == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		plan, ok, err := s.library.Lookup(ctx, key)
		cancel()
		switch {
		case err != nil:
			s.libraryOff = true
			s.logger.Warn("plan library lookup failed, caching disabled", "desire", d.Name, "error", err)
		case ok:
			plan.ID = uuid.New().String()
			plan.Desire = d
			plan.Final = true
			plan.Cached = true
			s.stats.CacheHits++
			s.logger.Info("using cached plan", "desire", d.Name, "plan_id", plan.ID, "actions", len(plan.Actions))
			s.queue.Enqueue(plan)
			s.rescheduleLocked()
			return
		}
	}

	if s.searcher == nil {
		s.logger.Warn("no planner configured, cannot search", "desire", d.Name)
		return
	}

	srch := &search{
		id:      uuid.New().String(),
		planID:  uuid.New().String(),
		desire:  d,
		started: s.now(),
	}
	s.search = srch
	if s.cfg.SearchTimeout > 0 {
		id := srch.id
		srch.timer = time.AfterFunc(s.cfg.SearchTimeout, func() { s.onSearchTimeout(id) })
	}

	s.logger.Info("plan search started",
		"desire", d.Name,
		"priority", d.Priority,
		"search_id", srch.id)

	s.searcher.Search(bdi.SearchRequest{
		AgentID:  s.cfg.AgentID,
		SearchID: srch.id,
		Desire:   d,
		Beliefs:  s.beliefs.List(),
	}, s.UpdatedIncrementalPlan)
}

// UpdatedIncrementalPlan consumes one streamed search result.
func (s *Scheduler) UpdatedIncrementalPlan(res bdi.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	srch := s.search
	if srch == nil || res.SearchID != srch.id {
		s.logger.Debug("ignoring result of stale search", "search_id", res.SearchID)
		return
	}

	if res.Terminal && !res.Success {
		s.searchFailureLocked(res.Reason)
		s.rescheduleLocked()
		return
	}

	plan := bdi.Plan{
		ID:      srch.planID,
		Index:   res.PlanIndex,
		Desire:  srch.desire,
		Actions: res.Actions,
		Final:   res.Terminal,
	}
	if res.Terminal && len(plan.Actions) == 0 && srch.provisional != nil {
		plan.Actions = srch.provisional.Actions
	}

	s.logger.Debug("search update",
		"desire", srch.desire.Name,
		"actions", len(plan.Actions),
		"terminal", res.Terminal)

	if res.Terminal {
		srch.stopTimer()
		s.search = nil
		if s.backoff == plan.Fingerprint() {
			s.backoff = ""
		}
		s.persistLocked(&plan)
		s.logger.Info("plan search succeeded",
			"desire", plan.Desire.Name,
			"plan_id", plan.ID,
			"actions", len(plan.Actions),
			"elapsed", s.now().Sub(srch.started))
	} else {
		srch.provisional = &plan
	}

	switch {
	case s.current != nil && s.current.plan.ID == plan.ID:
		s.extendCurrentLocked(plan)
	case s.queue.ContainsPlan(plan.ID):
		if !s.queue.ReplaceLast(plan) {
			s.queue.Replace(plan)
		}
	default:
		s.queue.Enqueue(plan)
	}

	s.rescheduleLocked()
}

// extendCurrentLocked grows the executing plan with a newer revision.
func (s *Scheduler) extendCurrentLocked(plan bdi.Plan) {
	cur := s.current
	plan.Desire = cur.plan.Desire
	if s.executor != nil {
		if err := s.executor.Extend(plan); err != nil {
			s.logger.Warn("failed to extend executing plan", "plan_id", plan.ID, "error", err)
			s.forcedRescheduleLocked(err.Error())
			return
		}
	}
	progress := make([]float64, len(plan.Actions))
	copy(progress, cur.progress)
	cur.progress = progress
	cur.plan = plan

	if plan.Final && computePlanProgressStatus(cur.progress) >= 1 {
		s.completeLocked(plan)
	}
}

func (s *Scheduler) onSearchTimeout(searchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.search == nil || s.search.id != searchID {
		return
	}
	s.logger.Warn("plan search timed out",
		"desire", s.search.desire.Name,
		"search_id", searchID,
		"timeout", s.cfg.SearchTimeout)
	if s.searcher != nil {
		s.searcher.Cancel(searchID)
	}
	s.searchFailureLocked("timeout")
	s.rescheduleLocked()
}

// searchFailureLocked discards the search attempt and counts it against the desire.
func (s *Scheduler) searchFailureLocked(reason string) {
	srch := s.search
	srch.stopTimer()
	s.search = nil
	s.stats.SearchFailures++

	if s.current != nil && s.current.plan.ID == srch.planID {
		s.abortCurrentLocked()
		s.current = nil
	}
	s.queue.Remove(srch.planID)

	key := srch.desire.Fingerprint()
	t := s.triesLocked(key)
	t.search++
	s.logger.Warn("plan search failed",
		"desire", srch.desire.Name,
		"reason", reason,
		"attempt", t.search,
		"max_attempts", s.cfg.CompPlanTries)

	if t.search >= s.cfg.CompPlanTries {
		s.dropDesireLocked(srch.desire, "plan search failed too many times")
		return
	}
	s.backoff = key
}

// UpdatePlanExecution consumes execution feedback for the current intention.
func (s *Scheduler) UpdatePlanExecution(info bdi.PlanExecutionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current
	if cur == nil || info.PlanID != cur.plan.ID {
		s.logger.Debug("ignoring feedback for inactive plan", "plan_id", info.PlanID)
		return
	}

	if info.Status == bdi.ActionFailed {
		s.logger.Warn("plan execution failed",
			"desire", cur.plan.Desire.Name,
			"action", info.ActionName,
			"message", info.Message)
		s.forcedRescheduleLocked(info.Message)
		return
	}

	if info.ActionIndex < 0 || info.ActionIndex >= len(cur.progress) {
		s.logger.Debug("feedback for unknown action index", "index", info.ActionIndex)
		return
	}

	p := info.Progress
	if info.Status == bdi.ActionSucceeded {
		p = 1
	}
	p = clamp01(p)
	if p > cur.progress[info.ActionIndex] {
		cur.progress[info.ActionIndex] = p
	}

	if s.checkDeadlineLocked() {
		s.rescheduleLocked()
		return
	}

	if cur.plan.Final && computePlanProgressStatus(cur.progress) >= 1 {
		s.completeLocked(cur.plan)
		s.rescheduleLocked()
	}
}

// forcedRescheduleLocked clears the current intention after a failure and
// reschedules so the desire can be retried or superseded.
func (s *Scheduler) forcedRescheduleLocked(reason string) {
	cur := s.current
	if cur == nil {
		return
	}
	s.abortCurrentLocked()
	s.current = nil
	if s.search != nil && s.search.planID == cur.plan.ID {
		s.cancelSearchLocked()
	}
	s.execFailureLocked(cur.plan, reason)
	s.rescheduleLocked()
}

func (s *Scheduler) execFailureLocked(plan bdi.Plan, reason string) {
	s.stats.ExecFailures++
	key := plan.Fingerprint()
	t := s.triesLocked(key)
	t.exec++
	s.logger.Warn("intention failed",
		"desire", plan.Desire.Name,
		"reason", reason,
		"attempt", t.exec,
		"max_attempts", s.cfg.ExecPlanTries)
	if t.exec >= s.cfg.ExecPlanTries {
		s.dropDesireLocked(plan.Desire, "plan execution failed too many times")
	}
}

// checkDeadlineLocked fails the current intention once it has run longer
// than its desire's deadline times the abort factor.
func (s *Scheduler) checkDeadlineLocked() bool {
	cur := s.current
	if cur == nil || cur.plan.Desire.Deadline <= 0 {
		return false
	}
	limit := time.Duration(float64(cur.plan.Desire.Deadline) * s.cfg.AbortSurpassDeadline)
	if s.now().Sub(cur.started) <= limit {
		return false
	}
	s.logger.Warn("intention exceeded deadline",
		"desire", cur.plan.Desire.Name,
		"deadline", cur.plan.Desire.Deadline,
		"limit", limit)
	s.abortCurrentLocked()
	s.current = nil
	if s.search != nil && s.search.planID == cur.plan.ID {
		s.cancelSearchLocked()
	}
	s.execFailureLocked(cur.plan, "deadline exceeded")
	return true
}

// completeLocked runs success handling for plan's intention exactly once.
func (s *Scheduler) completeLocked(plan bdi.Plan) {
	if s.current == nil || s.current.plan.ID != plan.ID {
		return
	}
	key := plan.Fingerprint()
	s.current = nil
	s.stats.Completed++
	delete(s.tries, key)
	s.completed[key] = s.beliefGen
	if s.search != nil && s.search.planID == plan.ID {
		s.cancelSearchLocked()
	}
	s.logger.Info("intention completed", "desire", plan.Desire.Name, "plan_id", plan.ID)
}

// dropDesireLocked permanently fails d and asks the store to delete it.
func (s *Scheduler) dropDesireLocked(d bdi.Desire, reason string) {
	key := d.Fingerprint()
	s.failed[key] = true
	s.stats.Dropped++
	s.queue.RemoveDesire(key)
	if s.backoff == key {
		s.backoff = ""
	}
	s.logger.Error("desire permanently failed", "desire", d.Name, "reason", reason)
	s.publishDelDesire(d)
}

func (s *Scheduler) abortCurrentLocked() {
	if s.current != nil && s.executor != nil {
		s.executor.Abort(s.current.plan.ID)
	}
}

func (s *Scheduler) cancelSearchLocked() {
	if s.search == nil {
		return
	}
	s.search.stopTimer()
	if s.searcher != nil {
		s.searcher.Cancel(s.search.id)
	}
	s.queue.Remove(s.search.planID)
	s.search = nil
}

func (s *Scheduler) persistLocked(plan *bdi.Plan) {
	plan.Cached = true
	if s.writer == nil || s.libraryOff {
		return
	}
	if !s.writer.Submit(*plan) {
		s.logger.Debug("plan not submitted to library", "plan_id", plan.ID)
	}
}

// publishDelDesire runs outside the scheduler lock; the store answers with
// a desire snapshot that re-enters OnDesireSet.
func (s *Scheduler) publishDelDesire(d bdi.Desire) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.DelDesire(ctx, d); err != nil {
			s.logger.Error("failed to publish desire deletion", "desire", d.Name, "error", err)
		}
	}()
}

func (s *Scheduler) triesLocked(key bdi.Fingerprint) *attempts {
	t, ok := s.tries[key]
	if !ok {
		t = &attempts{}
		s.tries[key] = t
	}
	return t
}

func (srch *search) stopTimer() {
	if srch.timer != nil {
		srch.timer.Stop()
	}
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State     State          `json:"state"`
	Current   *bdi.Intention `json:"current,omitempty"`
	Searching string         `json:"searching,omitempty"`
	Queue     []QueuedPlan   `json:"queue"`
	Desires   int            `json:"desires"`
	Beliefs   int            `json:"beliefs"`
	Stats     Stats          `json:"stats"`
}

// QueuedPlan summarizes one waiting plan.
type QueuedPlan struct {
	PlanID  string `json:"plan_id"`
	Desire  string `json:"desire"`
	Actions int    `json:"actions"`
	Final   bool   `json:"final"`
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:   StateIdle,
		Queue:   []QueuedPlan{},
		Desires: s.desires.Len(),
		Beliefs: s.beliefs.Len(),
		Stats:   s.stats,
	}
	if s.search != nil {
		st.State = StateSearching
		st.Searching = s.search.desire.Name
	}
	if s.current != nil {
		st.State = StateExecuting
		st.Current = &bdi.Intention{
			Desire:    s.current.plan.Desire,
			Plan:      s.current.plan,
			Progress:  computePlanProgressStatus(s.current.progress),
			StartedAt: s.current.started,
		}
	}
	for _, p := range s.queue.List() {
		st.Queue = append(st.Queue, QueuedPlan{
			PlanID:  p.ID,
			Desire:  p.Desire.Name,
			Actions: len(p.Actions),
			Final:   p.Final,
		})
	}
	return st
}
