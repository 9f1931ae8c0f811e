// Package validity maintains the per-workspace index of variable identifiers
// that are legitimately codable for each unit.
package validity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"autocoder/internal/logging"
	"autocoder/internal/scheme"
	"autocoder/internal/store"
	"autocoder/internal/unitdef"
)

// FileSource supplies the workspace files the index is derived from. The
// response store satisfies it.
type FileSource interface {
	TestFilesForWorkspace(ctx context.Context, workspaceID int64) ([]store.TestFile, error)
	SchemesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// VariableSet is the set of codable variable identifiers for one unit.
type VariableSet map[string]struct{}

// Contains reports membership, ignoring surrounding whitespace.
func (s VariableSet) Contains(variableID string) bool {
	_, ok := s[strings.TrimSpace(variableID)]
	return ok
}

// Index maps uppercase unit names to their codable variable sets, one map per
// workspace. Workspaces are built lazily on first access and rebuilt
// explicitly when definition files change.
type Index struct {
	source FileSource
	logger *slog.Logger

	mu          sync.Mutex
	byWorkspace map[int64]map[string]VariableSet
}

// NewIndex constructs an empty index over the given file source.
func NewIndex(source FileSource, logger *slog.Logger) *Index {
	return &Index{
		source:      source,
		logger:      logging.NewComponentLogger(logger, "validity"),
		byWorkspace: make(map[int64]map[string]VariableSet),
	}
}

// VariablesFor returns the unit-to-variables map for a workspace, building it
// on first access. The returned map is shared; callers must not mutate it.
func (i *Index) VariablesFor(ctx context.Context, workspaceID int64) (map[string]VariableSet, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if cached, ok := i.byWorkspace[workspaceID]; ok {
		return cached, nil
	}
	built, err := i.build(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	i.byWorkspace[workspaceID] = built
	return built, nil
}

// Rebuild discards and reconstructs a workspace's map. Call it after
// definition files change.
func (i *Index) Rebuild(ctx context.Context, workspaceID int64) error {
	built, err := i.build(ctx, workspaceID)
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.byWorkspace[workspaceID] = built
	i.mu.Unlock()
	return nil
}

// Invalidate drops a workspace's map so the next access rebuilds it.
func (i *Index) Invalidate(workspaceID int64) {
	i.mu.Lock()
	delete(i.byWorkspace, workspaceID)
	i.mu.Unlock()
}

func (i *Index) build(ctx context.Context, workspaceID int64) (map[string]VariableSet, error) {
	files, err := i.source.TestFilesForWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load workspace files: %w", err)
	}

	type parsedUnit struct {
		def *unitdef.Definition
	}
	units := make([]parsedUnit, 0, len(files))
	schemeRefs := make([]string, 0, len(files))
	for _, file := range files {
		def, parseErr := unitdef.Parse([]byte(file.Content))
		if parseErr != nil {
			i.logger.Warn("unit definition unparseable, unit excluded from coding",
				logging.Int64(logging.FieldWorkspaceID, workspaceID),
				logging.String("alias", file.Alias),
				logging.Error(parseErr),
				logging.String(logging.FieldEventType, "unitdef_parse_failed"))
			continue
		}
		units = append(units, parsedUnit{def: def})
		if def.SchemeRef != "" {
			schemeRefs = append(schemeRefs, def.SchemeRef)
		}
	}

	payloads, err := i.source.SchemesByIDs(ctx, schemeRefs)
	if err != nil {
		return nil, fmt.Errorf("load schemes: %w", err)
	}
	schemes := make(map[string]*scheme.Scheme, len(payloads))
	for id, payload := range payloads {
		s, parseErr := scheme.Parse([]byte(payload))
		if parseErr != nil {
			i.logger.Warn("scheme unparseable while building validity index",
				logging.String("scheme_id", id),
				logging.Error(parseErr),
				logging.String(logging.FieldEventType, "scheme_parse_failed"))
			s = scheme.Empty()
		}
		schemes[id] = s
	}

	result := make(map[string]VariableSet, len(units))
	for _, unit := range units {
		variables := make(VariableSet)
		noValue := make(map[string]struct{})

		var lookup *scheme.Lookup
		if unit.def.SchemeRef != "" {
			if s, ok := schemes[unit.def.SchemeRef]; ok {
				lookup = scheme.NewLookup(s)
				for vi := range s.VariableCodings {
					vc := &s.VariableCodings[vi]
					if vc.SourceType == scheme.SourceTypeBaseNoValue {
						noValue[vc.ID] = struct{}{}
						if vc.Alias != "" {
							noValue[vc.Alias] = struct{}{}
						}
					}
				}
			}
		}

		for _, variable := range unit.def.Variables {
			if !variable.HasCodableValue() {
				continue
			}
			if _, excluded := noValue[variable.ID]; excluded {
				continue
			}
			variables[variable.ID] = struct{}{}
			if variable.Alias != "" {
				variables[variable.Alias] = struct{}{}
			}
		}

		// Scheme-derived variables are codable even without a base declaration.
		if lookup != nil {
			for _, id := range lookup.CodableVariables() {
				if vc := lookup.For(id); vc != nil && vc.SourceType == scheme.SourceTypeDerived {
					variables[id] = struct{}{}
				}
			}
		}

		result[unit.def.Name] = variables
	}

	i.logger.Debug("validity index built",
		logging.Int64(logging.FieldWorkspaceID, workspaceID),
		logging.Int("unit_count", len(result)))
	return result, nil
}
