package records

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RelationshipResolver reconciles the relationship keys of an input map
// into relationship records.
type RelationshipResolver struct {
	source   RelationshipSource
	searcher ContentSearcher
	logger   *slog.Logger
}

// NewRelationshipResolver creates a resolver. A nil logger uses slog.Default.
func NewRelationshipResolver(source RelationshipSource, searcher ContentSearcher, logger *slog.Logger) *RelationshipResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelationshipResolver{source: source, searcher: searcher, logger: logger}
}

type relationshipQuery struct {
	key   string
	query string
}

// Resolve returns nil when the input map touches no relationship of ct.
// A key mapped to a blank query yields an entry with no related records.
func (r *RelationshipResolver) Resolve(ctx context.Context, ct *ContentType, fields map[string]any, rec *Record) *RelationshipSet {
	if ct == nil || r.source == nil {
		return nil
	}
	relationships, err := r.source.RelationshipsByContentType(ctx, ct)
	if err != nil {
		r.logger.Warn("relationship lookup failed", "content_type", ct.Variable, "err", err)
		return nil
	}

	var set *RelationshipSet
	add := func(rel Relationship, q relationshipQuery, related []string) {
		if set == nil {
			set = &RelationshipSet{}
		}
		set.Records = append(set.Records, RelationshipRecords{
			Relationship: rel,
			IsParent:     isParentSlot(rel, ct, q.key),
			Query:        q.query,
			Related:      related,
		})
	}

	for _, rel := range relationships {
		for _, q := range relationshipQueries(ct, fields, rel) {
			if strings.TrimSpace(q.query) == "" {
				add(rel, q, []string{})
				continue
			}
			related, err := r.search(ctx, rec.LanguageID, q.query)
			if err != nil {
				r.logger.Warn("relationship resolution failed",
					"relationship", rel.RelationTypeValue, "key", q.key, "err", err)
				continue
			}
			r.logger.Info("related contents found",
				"relationship", rel.RelationTypeValue, "key", q.key, "count", len(related))
			if len(related) > 0 {
				add(rel, q, related)
			}
		}
	}
	return set
}

func (r *RelationshipResolver) search(ctx context.Context, languageID int64, query string) ([]string, error) {
	if r.searcher == nil {
		return nil, fmt.Errorf("no content searcher configured")
	}
	return r.searcher.FilterRelated(ctx, languageID, query)
}

// relationshipQueries finds the queries addressed to rel. Legacy
// relationships are keyed by their relation type value; field relationships
// by the child and parent relation names, when those are relationship
// fields of ct. Nil values are not queries.
func relationshipQueries(ct *ContentType, fields map[string]any, rel Relationship) []relationshipQuery {
	var out []relationshipQuery
	if !rel.IsField {
		if v := fields[rel.RelationTypeValue]; v != nil {
			out = append(out, relationshipQuery{key: rel.RelationTypeValue, query: queryString(v)})
		}
		return out
	}
	declared := ct.RelationshipFieldVariables()
	for _, name := range []string{rel.ChildRelationName, rel.ParentRelationName} {
		if name == "" || !declared[name] {
			continue
		}
		if v := fields[name]; v != nil {
			out = append(out, relationshipQuery{key: name, query: queryString(v)})
		}
	}
	return out
}

// isParentSlot tells whether the populated record is the parent side. For a
// self relationship the matched slot decides; otherwise the type's role does.
func isParentSlot(rel Relationship, ct *ContentType, key string) bool {
	if rel.SameParentAndChild() {
		return strings.EqualFold(key, rel.ChildRelationName)
	}
	return rel.IsParent(ct)
}

func queryString(v any) string {
	switch q := v.(type) {
	case string:
		return q
	case []string:
		return strings.Join(q, ",")
	case []any:
		parts := make([]string, 0, len(q))
		for _, p := range q {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
