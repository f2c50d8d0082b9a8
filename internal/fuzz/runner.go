package fuzz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/playtest/internal/bot"
	"github.com/roach88/playtest/internal/content"
	"github.com/roach88/playtest/internal/coverage"
	"github.com/roach88/playtest/internal/ir"
	"github.com/roach88/playtest/internal/oracle"
	"github.com/roach88/playtest/internal/sim"
)

// Runner executes batches against a content engine.
//
// All per-run state lives in the turn loop; the runner itself only carries
// configuration and the first unreported batch-level persistence error.
type Runner struct {
	engine   content.Engine
	opts     Options
	store    Store
	clock    Clock
	logger   *slog.Logger
	recorder Recorder
	validate *validator.Validate

	// mu guards persistErr, which only records batch writes. Run writes are
	// reported to their own runPair.
	mu         sync.Mutex
	persistErr error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore sets the persistence target. Without one nothing is persisted.
func WithStore(s Store) RunnerOption {
	return func(r *Runner) {
		r.store = s
	}
}

// WithClock sets the wall clock used for timeouts and stats.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner validates opts and creates a runner. Every engine call is
// bounded by opts.CallTimeout when it is set.
func NewRunner(engine content.Engine, opts Options, ropts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		engine:   content.WithDeadline(engine, opts.CallTimeout),
		opts:     opts,
		store:    nopStore{},
		clock:    systemClock{},
		logger:   slog.New(slog.DiscardHandler),
		recorder: nopRecorder{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range ropts {
		o(r)
	}
	if len(r.opts.Modes) == 0 {
		r.opts.Modes = append([]bot.Mode(nil), bot.AllModes...)
	}
	if err := r.validate.Struct(r.opts); err != nil {
		return nil, &ConfigError{Field: "options", Err: err}
	}
	for _, m := range r.opts.Modes {
		if !m.Valid() {
			return nil, &ConfigError{Field: "modes", Err: &bot.UnknownModeError{Mode: m}}
		}
	}
	return r, nil
}

// Options returns the effective options.
func (r *Runner) Options() Options {
	return r.opts
}

// RunID builds the run identifier for a (scenario, mode) pair. The scenario
// index keeps ids distinct when scenarios share world and adventure.
func RunID(s sim.Scenario, mode bot.Mode, epoch time.Time) string {
	return fmt.Sprintf("run_%s_%s_%s_%d_%d", s.World, s.Adventure, mode, epoch.UnixMilli(), s.Index)
}

// ValidateScenarios checks every scenario before any run starts.
func (r *Runner) ValidateScenarios(scenarios []sim.Scenario) error {
	for i, s := range scenarios {
		if err := r.validate.Struct(s); err != nil {
			return &ConfigError{Field: fmt.Sprintf("scenario[%d]", i), Err: err}
		}
	}
	return nil
}

// Run executes every (scenario, mode) pair and returns the batch.
//
// Only configuration errors and, in strict mode, persistence errors are
// returned. Individual run failures are recorded in the batch results.
func (r *Runner) Run(ctx context.Context, scenarios []sim.Scenario) (*Batch, error) {
	if err := r.ValidateScenarios(scenarios); err != nil {
		return nil, err
	}

	batch := r.newBatch(len(scenarios))
	log := r.logger.With("batch_id", batch.ID)
	log.Info("batch started",
		"scenarios", len(scenarios),
		"modes", len(r.opts.Modes),
		"shards", r.opts.Shards,
		"max_concurrent", r.opts.MaxConcurrent)
	r.remember(r.persist(ctx, "batch", batch.ID, func(ctx context.Context) error {
		return r.store.SaveBatch(ctx, *batch)
	}))

	shards := Partition(scenarios, r.opts.Shards)
	collected := make([][]RunResult, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrent)
	for i, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		g.Go(func() error {
			shardLog := log.With("shard", i)
			shardLog.Debug("shard started", "scenarios", len(shard))
			for _, sc := range shard {
				for _, mode := range r.opts.Modes {
					res, err := r.runPair(gctx, batch.ID, batch.StartedAt, sc, mode, shardLog)
					collected[i] = append(collected[i], res)
					if err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()

	for _, rs := range collected {
		batch.Results = append(batch.Results, rs...)
	}
	SortResults(batch.Results, r.opts.Modes)
	batch.EndedAt = r.clock.Now()
	batch.Summary = Summarize(batch.Results)

	log.Info("batch finished",
		"runs", batch.Summary.Total,
		"passed", batch.Summary.Passed,
		"failure_rate", batch.Summary.FailureRate,
		"avg_coverage", batch.Summary.AvgCoverage)
	r.remember(r.persist(ctx, "batch", batch.ID, func(ctx context.Context) error {
		return r.store.SaveBatch(ctx, *batch)
	}))

	if err != nil {
		return batch, err
	}
	if perr := r.takePersistErr(); perr != nil {
		return batch, perr
	}
	return batch, nil
}

// RunOne executes a single (scenario, mode) pair outside a batch.
func (r *Runner) RunOne(ctx context.Context, s sim.Scenario, mode bot.Mode) (RunResult, error) {
	if err := r.ValidateScenarios([]sim.Scenario{s}); err != nil {
		return RunResult{}, err
	}
	if !mode.Valid() {
		return RunResult{}, &ConfigError{Field: "mode", Err: &bot.UnknownModeError{Mode: mode}}
	}
	b := r.newBatch(1)
	return r.runPair(ctx, b.ID, b.StartedAt, s, mode, r.logger.With("batch_id", b.ID))
}

func (r *Runner) newBatch(scenarios int) *Batch {
	id := r.opts.BatchID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	epoch := r.opts.Epoch
	if epoch.IsZero() {
		epoch = r.clock.Now()
	}
	return &Batch{
		ID:          id,
		CoreVersion: r.opts.CoreVersion,
		StartedAt:   epoch,
		Scenarios:   scenarios,
		Results:     []RunResult{},
	}
}

// runPair executes, reports and persists one run. The error is non-nil only
// for strict-mode persistence failures of this run's own writes.
func (r *Runner) runPair(ctx context.Context, batchID string, epoch time.Time, s sim.Scenario, mode bot.Mode, log *slog.Logger) (RunResult, error) {
	res, firstErr := r.execute(ctx, batchID, epoch, s, mode, log)
	note := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if r.opts.Artifacts && res.Status == StatusCompleted {
		arts, err := WriteRunArtifacts(r.opts.ArtifactDir, res)
		res.Artifacts = append(res.Artifacts, arts...)
		if err != nil {
			note(r.persist(ctx, "artifacts", res.RunID, func(context.Context) error { return err }))
		}
	}

	r.recorder.ObserveRun(string(res.Mode), string(res.Status), res.Coverage.Overall)

	note(r.persist(ctx, "run", res.RunID, func(ctx context.Context) error {
		return r.store.SaveRun(ctx, res)
	}))
	for _, a := range res.Artifacts {
		note(r.persist(ctx, "artifact", res.RunID, func(ctx context.Context) error {
			return r.store.SaveArtifact(ctx, res.RunID, a)
		}))
	}

	if r.opts.Strict && firstErr != nil {
		return res, firstErr
	}
	return res, nil
}

// runState is where a run starts: fresh or from a checkpoint.
type runState struct {
	turn      int
	bundle    sim.Bundle
	context   sim.Context
	memory    *bot.Memory
	rngStates map[bot.Mode]uint32
}

func (r *Runner) begin(ctx context.Context, runID string, s sim.Scenario, mode bot.Mode, log *slog.Logger) (runState, error) {
	if r.opts.Resume {
		cp, ok, err := r.store.LoadCheckpoint(ctx, runID)
		switch {
		case err != nil:
			log.Warn("load checkpoint failed, starting fresh", "error", err)
		case ok:
			log.Info("resuming from checkpoint", "turn", cp.Turn)
			return runState{turn: cp.Turn, bundle: cp.Bundle, context: cp.Context, memory: cp.Memory, rngStates: cp.RNGStates}, nil
		}
	}

	bundle, err := r.engine.Start(ctx, s)
	if err != nil {
		return runState{}, fmt.Errorf("start: %w", err)
	}
	toggles := make(map[string]bool, len(s.Toggles))
	for k, v := range s.Toggles {
		toggles[k] = v
	}
	simCtx := sim.Context{
		RunID:        runID,
		Seed:         s.Seed,
		Mode:         string(mode),
		Locale:       s.Locale,
		Toggles:      toggles,
		CurrentNode:  bundle.CurrentNode,
		Budget:       sim.BudgetUsage{MaxTokens: s.MaxTokens},
		VisitedNodes: map[string]bool{},
	}
	if bundle.CurrentNode != "" {
		simCtx.VisitedNodes[bundle.CurrentNode] = true
	}
	return runState{bundle: bundle, context: simCtx}, nil
}

// execute runs the turn loop for one pair. Collaborator errors and panics
// become a failed result carrying partial state. persistErr is the first
// failed checkpoint write.
func (r *Runner) execute(ctx context.Context, batchID string, epoch time.Time, s sim.Scenario, mode bot.Mode, log *slog.Logger) (out RunResult, persistErr error) {
	runID := RunID(s, mode, epoch)
	log = log.With("run_id", runID, "mode", string(mode), "scenario", s.Index)

	started := r.clock.Now()
	res := RunResult{
		RunID:     runID,
		BatchID:   batchID,
		Scenario:  s,
		Mode:      mode,
		StartedAt: started,
		Artifacts: []Artifact{},
	}
	tracker := coverage.NewTracker(coverage.WithEstimates(r.opts.Coverage), coverage.WithClock(r.clock.Now))
	detector := oracle.NewDetector(oracle.WithThresholds(r.opts.Oracle))
	tl := turnLoop{res: &res, tracker: tracker, detector: detector}
	defer func() {
		if p := recover(); p != nil {
			out = r.finish(tl, StatusFailed, fmt.Errorf("panic at turn %d: %v", tl.turn+1, p), log)
		}
	}()

	log.Debug("run started")
	st, err := r.begin(ctx, runID, s, mode, log)
	if err != nil {
		return r.finish(tl, classify(ctx, err), err, log), nil
	}

	engine := bot.NewEngine(runID, st.turn, mode, s.Seed,
		bot.WithMaxTokens(s.MaxTokens),
		bot.WithStartNode(st.bundle.CurrentNode),
		bot.WithMemory(st.memory),
		bot.WithRNGStates(st.rngStates))
	bundle, simCtx := st.bundle, st.context
	tl.turn = st.turn

	for turn := st.turn; turn < s.MaxTurns; turn++ {
		if ctx.Err() != nil {
			return r.finish(tl, StatusCancelled, ctx.Err(), log), persistErr
		}
		if elapsed := r.clock.Now().Sub(started); elapsed >= s.Timeout {
			log.Warn("run timed out", "turn", turn, "elapsed", elapsed)
			return r.finish(tl, StatusTimeout, nil, log), persistErr
		}

		decision, err := engine.Decide(bundle, simCtx, mode)
		if err != nil {
			return r.finish(tl, StatusFailed, err, log), persistErr
		}

		callStart := r.clock.Now()
		tr, err := r.engine.Turn(ctx, bundle, simCtx, decision)
		r.recorder.ObserveTurn(r.clock.Now().Sub(callStart).Seconds())
		if err != nil {
			return r.finish(tl, classify(ctx, err), fmt.Errorf("turn %d: %w", turn+1, err), log), persistErr
		}

		tracker.Update(bundle, simCtx, decision, tr)
		verdict := detector.Check(bundle, simCtx, tr)
		for _, c := range verdict.Failures() {
			r.recorder.ObserveOracle(c)
		}
		engine.Observe(tr)
		tl.decisions = append(tl.decisions, decision)
		tl.executed++

		if tr.UpdatedBundle != nil {
			bundle = tr.UpdatedBundle.Clone()
		}
		simCtx = advance(simCtx, engine.Memory(), decision, tr)
		tl.turn = simCtx.Turn

		if simCtx.Turn%r.opts.CheckpointInterval == 0 {
			err := r.checkpoint(ctx, Checkpoint{
				RunID:     runID,
				BatchID:   batchID,
				Turn:      simCtx.Turn,
				Bundle:    bundle.Clone(),
				Context:   simCtx.Clone(),
				Memory:    engine.Memory().Clone(),
				RNGStates: engine.RNGStates(),
				CreatedAt: r.clock.Now(),
			}, log)
			if persistErr == nil {
				persistErr = err
			}
		}

		if verdict.ShouldTerminate() {
			res.EarlyTermination = terminationReason(verdict)
			log.Info("early termination", "turn", simCtx.Turn, "reason", res.EarlyTermination)
			break
		}
	}
	return r.finish(tl, StatusCompleted, nil, log), persistErr
}

// turnLoop is the partial state finish needs.
type turnLoop struct {
	res       *RunResult
	tracker   *coverage.Tracker
	detector  *oracle.Detector
	decisions []sim.Decision
	turn      int
	executed  int
}

func (r *Runner) finish(tl turnLoop, status Status, err error, log *slog.Logger) RunResult {
	res := *tl.res
	res.Status = status
	res.Turns = tl.turn
	res.EndedAt = r.clock.Now()
	res.Coverage = tl.tracker.Coverage()
	if snap, ok := tl.tracker.Latest(); ok {
		res.Snapshot = &snap
	}
	res.Oracle, _ = tl.detector.Latest()
	res.Failures = tl.detector.FailureSummary()
	res.FlagCounts = flagCounts(tl.detector.History())
	res.Performance = performance(res.EndedAt.Sub(res.StartedAt), tl.executed)
	res.Decisions = tl.decisions
	res.DecisionDigest = DecisionDigest(tl.decisions)
	res.Passed = Passed(res)

	if err != nil {
		res.Error = err.Error()
	}
	switch status {
	case StatusFailed:
		log.Error("run failed", "turn", res.Turns, "error", err)
	case StatusCancelled:
		log.Warn("run cancelled", "turn", res.Turns)
	default:
		log.Info("run finished",
			"status", string(status),
			"turns", res.Turns,
			"coverage", res.Coverage.Overall,
			"passed", res.Passed)
	}
	return res
}

// advance builds the next turn's context from memory and the turn result.
func advance(prev sim.Context, mem *bot.Memory, d sim.Decision, tr sim.TurnResult) sim.Context {
	next := prev.Clone()
	next.Turn = prev.Turn + 1
	switch {
	case tr.UpdatedBundle != nil && tr.UpdatedBundle.CurrentNode != "":
		next.CurrentNode = tr.UpdatedBundle.CurrentNode
	case d.Kind == sim.DecisionChoice && d.NodeID != "" && !tr.InvalidTransition:
		next.CurrentNode = d.NodeID
	}
	next.ObjectiveProgress = mem.LastProgress
	next.TurnsWithoutProgress = mem.NoProgressTurns
	next.Budget = mem.Budget

	next.VisitedNodes = make(map[string]bool, len(mem.VisitedNodes)+1)
	for n := range mem.VisitedNodes {
		next.VisitedNodes[n] = true
	}
	if next.CurrentNode != "" {
		next.VisitedNodes[next.CurrentNode] = true
	}
	return next
}

func (r *Runner) checkpoint(ctx context.Context, cp Checkpoint, log *slog.Logger) error {
	err := r.persist(ctx, "checkpoint", cp.RunID, func(ctx context.Context) error {
		return r.store.SaveCheckpoint(ctx, cp)
	})
	if err == nil {
		log.Debug("checkpoint written", "turn", cp.Turn)
	}
	return err
}

// persist runs a best-effort write. Writes survive batch cancellation so
// partial results still land. Failures are logged and returned as a
// *PersistError for the caller to report in strict mode.
func (r *Runner) persist(ctx context.Context, op, runID string, write func(context.Context) error) error {
	err := write(context.WithoutCancel(ctx))
	if err == nil {
		return nil
	}
	r.recorder.ObservePersistFailure()
	r.logger.Warn("persist failed", "op", op, "run_id", runID, "error", err)
	return &PersistError{Op: op, RunID: runID, Err: err}
}

// remember keeps the first batch-level persistence error.
func (r *Runner) remember(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persistErr == nil {
		r.persistErr = err
	}
}

func (r *Runner) takePersistErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.persistErr
	r.persistErr = nil
	if err == nil || !r.opts.Strict {
		return nil
	}
	return err
}

// classify maps a collaborator error to a run status.
func classify(ctx context.Context, err error) Status {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return StatusCancelled
	}
	return StatusFailed
}

func terminationReason(r oracle.Result) string {
	if r.SoftLock {
		return oracle.CategorySoftLock
	}
	return oracle.CategoryBudgetViolation
}

func flagCounts(history []oracle.Entry) map[string]int {
	counts := make(map[string]int)
	for _, e := range history {
		for _, c := range e.Result.Failures() {
			counts[c]++
		}
	}
	return counts
}

func performance(elapsed time.Duration, turns int) Performance {
	p := Performance{DurationMS: float64(elapsed) / float64(time.Millisecond)}
	if turns == 0 {
		return p
	}
	if secs := elapsed.Seconds(); secs > 0 {
		p.TurnsPerSecond = float64(turns) / secs
	}
	p.AvgTurnLatencyMS = p.DurationMS / float64(turns)
	return p
}

// Passed reports the run verdict: completed without a soft lock, budget
// violation or safety violation, and average turn latency under 5000ms.
func Passed(r RunResult) bool {
	return r.Status == StatusCompleted &&
		!r.Oracle.SoftLock &&
		!r.Oracle.BudgetViolation &&
		!r.Oracle.SafetyViolation &&
		r.Performance.AvgTurnLatencyMS < PassLatencyMS
}

// DecisionDigest hashes a decision trace. Identical traces always produce
// identical digests.
func DecisionDigest(decisions []sim.Decision) string {
	trace := make([]any, 0, len(decisions))
	for _, d := range decisions {
		trace = append(trace, map[string]any{
			"kind":        string(d.Kind),
			"choice_id":   d.ChoiceID,
			"node_id":     d.NodeID,
			"dialogue_id": d.DialogueID,
			"text":        d.Text,
			"reasoning":   d.Reasoning,
			"confidence":  int64(math.Round(d.Confidence * 1000)),
		})
	}
	return ir.MustDigest(ir.DomainDecisions, map[string]any{"decisions": trace})
}

// SortResults orders results by scenario index, then by position of the
// mode in modes.
func SortResults(results []RunResult, modes []bot.Mode) {
	rank := make(map[bot.Mode]int, len(modes))
	for i, m := range modes {
		rank[m] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Scenario.Index != b.Scenario.Index {
			return a.Scenario.Index < b.Scenario.Index
		}
		return rank[a.Mode] < rank[b.Mode]
	})
}
