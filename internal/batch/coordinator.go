package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"autocoder/internal/coder"
	"autocoder/internal/config"
	"autocoder/internal/defcache"
	"autocoder/internal/logging"
	"autocoder/internal/scheme"
	"autocoder/internal/services"
	"autocoder/internal/store"
	"autocoder/internal/unitdef"
	"autocoder/internal/validity"
)

// Request describes one batch run. PersonIDs and Groups are alternatives:
// when Groups is set, the considered persons of those groups form the target
// population. Progress and Cancelled are optional.
type Request struct {
	WorkspaceID int64
	PersonIDs   []string
	Groups      []string
	Run         coder.RunVersion

	// Progress receives each checkpoint percentage in increasing order.
	Progress func(percent int)
	// Cancelled is consulted after every checkpoint report; returning true
	// stops the run cleanly with the statistics accumulated so far.
	Cancelled func(ctx context.Context) bool
}

// Coordinator drives the end-to-end coding run: population resolution,
// validity filtering, scheme resolution, coding, and persistence.
type Coordinator struct {
	store     *store.Store
	validity  *validity.Index
	schemes   *defcache.SchemeCache
	testFiles *defcache.TestFileCache
	chunkSize int
	logger    *slog.Logger
}

// NewCoordinator wires a coordinator over the response store and caches.
func NewCoordinator(
	st *store.Store,
	index *validity.Index,
	schemes *defcache.SchemeCache,
	testFiles *defcache.TestFileCache,
	cfg *config.Config,
	logger *slog.Logger,
) *Coordinator {
	chunk := 0
	if cfg != nil {
		chunk = cfg.Coding.PersistChunkSize
	}
	return &Coordinator{
		store:     st,
		validity:  index,
		schemes:   schemes,
		testFiles: testFiles,
		chunkSize: chunk,
		logger:    logging.NewComponentLogger(logger, "batch"),
	}
}

// Run executes one batch. Errors never escape as panics or bare returns: a
// failed run comes back as a Failed outcome carrying the pre-persistence
// statistics and the error, already logged.
func (c *Coordinator) Run(ctx context.Context, req Request) Outcome {
	ctx = services.WithWorkspaceID(ctx, req.WorkspaceID)
	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()

	outcome, err := c.run(ctx, req, logger)
	if err != nil {
		logger.Error("batch run failed",
			logging.Error(err),
			logging.Int("total_responses", outcome.TotalResponses),
			logging.String(logging.FieldEventType, "batch_failed"))
		outcome.State = StateFailed
		outcome.Err = err
		return outcome
	}

	logger.Info("batch run finished",
		logging.String("state", string(outcome.State)),
		logging.Int("total_responses", outcome.TotalResponses),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "batch_finished"))
	return outcome
}

// checkpoint reports a progress percentage and then consults the cancel
// check. Reporting always precedes the check so a cancelled run still shows
// how far it got.
func (c *Coordinator) checkpoint(ctx context.Context, req Request, percent int) bool {
	if req.Progress != nil {
		req.Progress(percent)
	}
	if ctx.Err() != nil {
		return true
	}
	if req.Cancelled != nil && req.Cancelled(ctx) {
		return true
	}
	return false
}

func (c *Coordinator) run(ctx context.Context, req Request, logger *slog.Logger) (Outcome, error) {
	if req.WorkspaceID <= 0 {
		return Empty(), services.Wrap(services.ErrValidation, "batch", "run", "workspace id required", nil)
	}
	if !req.Run.Valid() {
		return Empty(), services.Wrap(services.ErrValidation, "batch", "run",
			fmt.Sprintf("run version %d not supported", int(req.Run)), nil)
	}
	if len(req.PersonIDs) == 0 && len(req.Groups) == 0 {
		return Empty(), nil
	}

	if c.checkpoint(ctx, req, 0) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 1: resolve the target population.
	var persons []store.Person
	var err error
	if len(req.PersonIDs) > 0 {
		persons, err = c.store.PersonsByIDs(ctx, req.WorkspaceID, req.PersonIDs)
	} else {
		persons, err = c.store.PersonsByGroups(ctx, req.WorkspaceID, req.Groups)
	}
	if err != nil {
		return Empty(), fmt.Errorf("resolve persons: %w", err)
	}
	if len(persons) == 0 {
		req.reportDone()
		return Empty(), nil
	}
	if c.checkpoint(ctx, req, 10) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 2: booklets.
	personIDs := make([]string, len(persons))
	for i, p := range persons {
		personIDs[i] = p.ID
	}
	booklets, err := c.store.BookletsByPersons(ctx, personIDs)
	if err != nil {
		return Empty(), fmt.Errorf("resolve booklets: %w", err)
	}
	if len(booklets) == 0 {
		req.reportDone()
		return Empty(), nil
	}
	if c.checkpoint(ctx, req, 20) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 3: units.
	bookletIDs := make([]int64, len(booklets))
	for i, b := range booklets {
		bookletIDs[i] = b.ID
	}
	units, err := c.store.UnitsByBooklets(ctx, bookletIDs)
	if err != nil {
		return Empty(), fmt.Errorf("resolve units: %w", err)
	}
	if len(units) == 0 {
		req.reportDone()
		return Empty(), nil
	}
	if c.checkpoint(ctx, req, 30) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 4: unit lookup tables.
	unitByID := make(map[int64]store.Unit, len(units))
	unitIDs := make([]int64, 0, len(units))
	aliasSet := make(map[string]struct{})
	for _, unit := range units {
		unitByID[unit.ID] = unit
		unitIDs = append(unitIDs, unit.ID)
		aliasSet[unit.Alias] = struct{}{}
	}
	if c.checkpoint(ctx, req, 40) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 5: responses with a runnable input status.
	responses, err := c.store.ResponsesForCoding(ctx, unitIDs, req.Run)
	if err != nil {
		return Empty(), fmt.Errorf("fetch responses: %w", err)
	}
	if len(responses) == 0 {
		req.reportDone()
		return Empty(), nil
	}
	if c.checkpoint(ctx, req, 50) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 6: drop responses for undeclared variables.
	declared, err := c.validity.VariablesFor(ctx, req.WorkspaceID)
	if err != nil {
		return Empty(), fmt.Errorf("load validity index: %w", err)
	}
	filtered := responses[:0]
	dropped := 0
	for _, response := range responses {
		unit, ok := unitByID[response.UnitID]
		if !ok {
			dropped++
			continue
		}
		if !declared[unit.Name].Contains(response.VariableID) {
			dropped++
			continue
		}
		filtered = append(filtered, response)
	}
	if dropped > 0 {
		logger.Debug("responses dropped by validity filter", logging.Int("count", dropped))
	}
	if len(filtered) == 0 {
		req.reportDone()
		return Empty(), nil
	}
	if c.checkpoint(ctx, req, 60) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 7: group by unit.
	byUnit := make(map[int64][]*store.Response)
	for _, response := range filtered {
		byUnit[response.UnitID] = append(byUnit[response.UnitID], response)
	}
	orderedUnits := make([]int64, 0, len(byUnit))
	for unitID := range byUnit {
		orderedUnits = append(orderedUnits, unitID)
	}
	sort.Slice(orderedUnits, func(i, j int) bool { return orderedUnits[i] < orderedUnits[j] })
	if c.checkpoint(ctx, req, 70) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 8: test-definition files for every unit alias, scheme refs out
	// of their metadata.
	aliases := make([]string, 0, len(aliasSet))
	for alias := range aliasSet {
		aliases = append(aliases, alias)
	}
	if err := c.testFiles.RefreshMissing(ctx, req.WorkspaceID, aliases, c.store.TestFilesByAliases); err != nil {
		return Empty(), fmt.Errorf("load test files: %w", err)
	}
	schemeRefByUnit := make(map[int64]string, len(orderedUnits))
	schemeIDs := make(map[string]struct{})
	for _, unitID := range orderedUnits {
		unit := unitByID[unitID]
		content, ok := c.testFiles.Get(req.WorkspaceID, unit.Alias)
		if !ok {
			logger.Warn("test-definition file missing, unit coded against empty scheme",
				logging.String("alias", unit.Alias),
				logging.String(logging.FieldEventType, "testfile_missing"))
			continue
		}
		def, parseErr := unitdef.Parse([]byte(content))
		if parseErr != nil {
			logger.Warn("test-definition file unparseable, unit coded against empty scheme",
				logging.String("alias", unit.Alias),
				logging.Error(parseErr),
				logging.String(logging.FieldEventType, "unitdef_parse_failed"))
			continue
		}
		if def.SchemeRef == "" {
			continue
		}
		schemeRefByUnit[unitID] = def.SchemeRef
		schemeIDs[def.SchemeRef] = struct{}{}
	}
	if c.checkpoint(ctx, req, 80) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 9: referenced schemes.
	refs := make([]string, 0, len(schemeIDs))
	for id := range schemeIDs {
		refs = append(refs, id)
	}
	if err := c.schemes.RefreshMissing(ctx, refs, c.store.SchemesByIDs); err != nil {
		return Empty(), fmt.Errorf("load schemes: %w", err)
	}
	if c.checkpoint(ctx, req, 85) {
		return cancelled(map[coder.Status]int{}, 0), nil
	}

	// Stage 10: code every surviving response.
	statusCounts := make(map[coder.Status]int)
	coded := make([]store.CodedResponse, 0, len(filtered))
	for _, unitID := range orderedUnits {
		ruleSet := scheme.Empty()
		if ref, ok := schemeRefByUnit[unitID]; ok {
			if cached, hit := c.schemes.Get(ref); hit {
				ruleSet = cached
			}
		}
		lookup := scheme.NewLookup(ruleSet)
		for _, response := range byUnit[unitID] {
			outcome := coder.Code(response.Value, response.InputStatus(req.Run), lookup.For(response.VariableID))
			coded = append(coded, store.CodedResponse{
				ResponseID: response.ID,
				Code:       outcome.Code,
				Score:      outcome.Score,
				Status:     outcome.Status,
			})
			statusCounts[outcome.Status]++
		}
	}
	total := len(coded)
	if c.checkpoint(ctx, req, 90) {
		return cancelled(statusCounts, total), nil
	}

	// Stage 11: persist inside one chunked transaction.
	committed, err := c.store.PersistCodedResponses(ctx, coded, store.PersistOptions{
		Run:       req.Run,
		ChunkSize: c.chunkSize,
		Cancelled: func() bool {
			if ctx.Err() != nil {
				return true
			}
			return req.Cancelled != nil && req.Cancelled(ctx)
		},
		Progress: func(applied, totalRows int) {
			if req.Progress == nil || totalRows == 0 {
				return
			}
			// Interpolate the persistence phase between the 90 and 95
			// checkpoints.
			percent := 90 + (5*applied)/totalRows
			if percent < 95 {
				req.Progress(percent)
			}
		},
	})
	if err != nil {
		return Outcome{TotalResponses: total, StatusCounts: statusCounts}, fmt.Errorf("persist coded responses: %w", err)
	}
	if !committed {
		return cancelled(statusCounts, total), nil
	}
	if c.checkpoint(ctx, req, 95) {
		return cancelled(statusCounts, total), nil
	}

	req.reportDone()
	return completed(statusCounts, total), nil
}

// reportDone emits the final checkpoint on paths that end the run, including
// the empty-input short circuits.
func (r Request) reportDone() {
	if r.Progress != nil {
		r.Progress(100)
	}
}
