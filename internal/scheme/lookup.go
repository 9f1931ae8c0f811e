package scheme

import "strings"

// Lookup resolves variable identifiers to their coding entry. Scheme entries
// may be keyed by alias or by id; the table is built once per scheme load so
// per-response resolution is a map hit, not a scan.
type Lookup struct {
	byAlias map[string]*VariableCoding
	byID    map[string]*VariableCoding
}

// NewLookup builds the bidirectional lookup table for a scheme.
func NewLookup(s *Scheme) *Lookup {
	l := &Lookup{
		byAlias: make(map[string]*VariableCoding),
		byID:    make(map[string]*VariableCoding),
	}
	if s == nil {
		return l
	}
	for i := range s.VariableCodings {
		vc := &s.VariableCodings[i]
		if id := normalizeKey(vc.ID); id != "" {
			l.byID[id] = vc
		}
		if alias := normalizeKey(vc.Alias); alias != "" {
			l.byAlias[alias] = vc
		}
	}
	return l
}

// For resolves the coding entry for a variable id: alias entries take
// precedence, id entries are the fallback. Returns nil when the scheme does
// not code the variable.
func (l *Lookup) For(variableID string) *VariableCoding {
	key := normalizeKey(variableID)
	if key == "" {
		return nil
	}
	if vc, ok := l.byAlias[key]; ok {
		return vc
	}
	return l.byID[key]
}

// CodableVariables returns the ids of all variables the scheme stores values
// for, excluding no-value sources.
func (l *Lookup) CodableVariables() []string {
	seen := make(map[string]struct{}, len(l.byID)+len(l.byAlias))
	out := make([]string, 0, len(l.byID)+len(l.byAlias))
	add := func(key string, vc *VariableCoding) {
		if vc.SourceType == SourceTypeBaseNoValue {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	for key, vc := range l.byID {
		add(key, vc)
	}
	for key, vc := range l.byAlias {
		add(key, vc)
	}
	return out
}

func normalizeKey(value string) string {
	return strings.TrimSpace(value)
}
