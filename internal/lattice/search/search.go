// Package search translates structured or SQL-like predicates into queries
// over the dynamic index tables (spec §4.9, component K).
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/store"
)

// Condition is one structured filter operator (spec §4.9).
type Condition string

const (
	Equals             Condition = "Equals"
	NotEquals          Condition = "NotEquals"
	GreaterThan        Condition = "GreaterThan"
	GreaterThanOrEqual Condition = "GreaterThanOrEqual"
	LessThan           Condition = "LessThan"
	LessThanOrEqual    Condition = "LessThanOrEqual"
	Contains           Condition = "Contains"
	StartsWith         Condition = "StartsWith"
	EndsWith           Condition = "EndsWith"
	In                 Condition = "In"
	NotIn              Condition = "NotIn"
	IsNull             Condition = "IsNull"
	IsNotNull          Condition = "IsNotNull"
)

// Filter is one structured predicate atom.
type Filter struct {
	Field     string
	Condition Condition
	Value     string
	Values    []string // populated for In/NotIn
}

// Ordering controls the result page's sort order (spec §4.9).
type Ordering string

const (
	CreatedAscending  Ordering = "CreatedAscending"
	CreatedDescending Ordering = "CreatedDescending"
	ByName            Ordering = "Name"
	BySize            Ordering = "Size"
)

// Query is the structured search request. Expression, when non-empty, is a
// SQL-like expression (spec §6.4) parsed into the same Filter tree instead
// of using Filters directly.
type Query struct {
	Expression     string
	Filters        []Filter
	Labels         []string
	Tags           map[string]string
	MaxResults     int
	Skip           int
	Ordering       Ordering
	IncludeContent bool
}

// Result is the page of matching documents.
type Result struct {
	Documents []model.Document
	Total     int
	Content   map[string][]byte // populated per document id when IncludeContent
}

// Service implements Search(collectionId, query) -> SearchResult.
type Service struct {
	repo  store.Repository
	blobs *blobstore.Store
}

func New(repo store.Repository, blobs *blobstore.Store) *Service {
	return &Service{repo: repo, blobs: blobs}
}

// Search runs a query against one collection's documents.
func (s *Service) Search(ctx context.Context, collectionID string, q Query) (*Result, error) {
	collection, err := s.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	var candidateIDs map[string]bool
	var bounded bool

	if strings.TrimSpace(q.Expression) != "" {
		tree, err := ParseExpression(q.Expression)
		if err != nil {
			return nil, errs.InvalidInputf("invalid search expression: %v", err)
		}
		candidateIDs, bounded, err = s.evalExpr(ctx, collection, tree)
		if err != nil {
			return nil, err
		}
	} else {
		candidateIDs, bounded, err = s.planAndRun(ctx, collection, q.Filters)
		if err != nil {
			return nil, err
		}
	}

	var docs []model.Document
	if bounded {
		for id := range candidateIDs {
			d, err := s.repo.GetDocument(ctx, id)
			if err != nil {
				if e, ok := errs.Of(err); ok && e.Kind == errs.NotFound {
					continue
				}
				return nil, err
			}
			if d.CollectionID != collection.ID {
				continue
			}
			docs = append(docs, *d)
		}
	} else {
		docs, err = s.repo.ListDocuments(ctx, collection.ID)
		if err != nil {
			return nil, err
		}
	}

	docs, err = s.applyLabelsAndTags(ctx, docs, q.Labels, q.Tags)
	if err != nil {
		return nil, err
	}

	docs = order(docs, q.Ordering)

	total := len(docs)
	docs = page(docs, q.Skip, q.MaxResults)

	result := &Result{Documents: docs, Total: total}
	if q.IncludeContent {
		result.Content = make(map[string][]byte, len(docs))
		for _, d := range docs {
			body, err := s.blobs.Read(ctx, collection.DocumentsDirectory, d.ID)
			if err != nil {
				return nil, err
			}
			result.Content[d.ID] = body
		}
	}
	return result, nil
}

// planAndRun executes each filter against its indexed key, intersecting
// document id sets as it goes (spec §4.9: "the first filter selects
// candidate documentIds; subsequent filters intersect via additional
// joins"). The second return value is false when no filter could be
// resolved through an index table; Search then lists every document of the
// collection, and those filters are not applied.
func (s *Service) planAndRun(ctx context.Context, collection *model.Collection, filters []Filter) (map[string]bool, bool, error) {
	if len(filters) == 0 {
		return nil, false, nil
	}

	var candidates map[string]bool
	bounded := false

	for _, f := range filters {
		mapping, err := s.repo.GetIndexTableMapping(ctx, f.Field)
		if err != nil {
			return nil, false, err
		}

		if mapping == nil {
			if collection.IndexingMode == model.IndexingNone {
				// No index exists for any key under this policy; the filter
				// is skipped rather than evaluated.
				continue
			}
			// All/Selective guarantee presence if any document carries the
			// key; absence means no document can satisfy this filter.
			return map[string]bool{}, true, nil
		}

		ids, err := s.queryIndexTable(ctx, mapping.TableName, f)
		if err != nil {
			return nil, false, err
		}

		bounded = true
		if candidates == nil {
			candidates = ids
		} else {
			candidates = intersect(candidates, ids)
		}
	}

	return candidates, bounded, nil
}

// evalExpr evaluates a parsed SQL-like expression tree by recursively
// resolving atoms through the same index-table queries the structured
// planner uses, combining results with set union/intersection/complement
// (spec §6.4: "Implementation translates to the same planner used for
// structured filters").
func (s *Service) evalExpr(ctx context.Context, collection *model.Collection, node ExprNode) (map[string]bool, bool, error) {
	switch n := node.(type) {
	case *AtomNode:
		plan, bounded, err := s.planAndRun(ctx, collection, []Filter{n.Filter})
		return plan, bounded, err

	case *NotNode:
		inner, bounded, err := s.evalExpr(ctx, collection, n.Child)
		if err != nil {
			return nil, false, err
		}
		if !bounded {
			return nil, false, nil
		}
		all, err := s.allDocumentIDs(ctx, collection.ID)
		if err != nil {
			return nil, false, err
		}
		return difference(all, inner), true, nil

	case *AndNode:
		left, leftBounded, err := s.evalExpr(ctx, collection, n.Left)
		if err != nil {
			return nil, false, err
		}
		right, rightBounded, err := s.evalExpr(ctx, collection, n.Right)
		if err != nil {
			return nil, false, err
		}
		switch {
		case leftBounded && rightBounded:
			return intersect(left, right), true, nil
		case leftBounded:
			return left, true, nil
		case rightBounded:
			return right, true, nil
		default:
			return nil, false, nil
		}

	case *OrNode:
		left, leftBounded, err := s.evalExpr(ctx, collection, n.Left)
		if err != nil {
			return nil, false, err
		}
		right, rightBounded, err := s.evalExpr(ctx, collection, n.Right)
		if err != nil {
			return nil, false, err
		}
		if !leftBounded || !rightBounded {
			return nil, false, nil
		}
		return union(left, right), true, nil

	default:
		return nil, false, errs.InvalidInputf("unrecognized expression node %T", node)
	}
}

func (s *Service) allDocumentIDs(ctx context.Context, collectionID string) (map[string]bool, error) {
	docs, err := s.repo.ListDocuments(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(docs))
	for _, d := range docs {
		ids[d.ID] = true
	}
	return ids, nil
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func difference(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	return out
}

func (s *Service) queryIndexTable(ctx context.Context, tableName string, f Filter) (map[string]bool, error) {
	quoted := s.repo.Dialect().QuoteIdent(tableName)
	var whereSQL string
	var args []any

	switch f.Condition {
	case Equals:
		whereSQL, args = "value = ?", []any{f.Value}
	case NotEquals:
		whereSQL, args = "value != ?", []any{f.Value}
	case GreaterThan:
		whereSQL, args = "CAST(value AS REAL) > CAST(? AS REAL)", []any{f.Value}
	case GreaterThanOrEqual:
		whereSQL, args = "CAST(value AS REAL) >= CAST(? AS REAL)", []any{f.Value}
	case LessThan:
		whereSQL, args = "CAST(value AS REAL) < CAST(? AS REAL)", []any{f.Value}
	case LessThanOrEqual:
		whereSQL, args = "CAST(value AS REAL) <= CAST(? AS REAL)", []any{f.Value}
	case Contains:
		whereSQL, args = "value LIKE ?", []any{"%" + f.Value + "%"}
	case StartsWith:
		whereSQL, args = "value LIKE ?", []any{f.Value + "%"}
	case EndsWith:
		whereSQL, args = "value LIKE ?", []any{"%" + f.Value}
	case In:
		placeholders := make([]string, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = "?"
			args = append(args, v)
		}
		whereSQL = "value IN (" + strings.Join(placeholders, ", ") + ")"
	case NotIn:
		placeholders := make([]string, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = "?"
			args = append(args, v)
		}
		whereSQL = "value NOT IN (" + strings.Join(placeholders, ", ") + ")"
	case IsNull:
		whereSQL = "value = 'null'"
	case IsNotNull:
		whereSQL = "value != 'null'"
	default:
		return nil, errs.InvalidInputf("unsupported condition %q", f.Condition)
	}

	query := fmt.Sprintf("SELECT DISTINCT documentid FROM %s WHERE %s", quoted, whereSQL)
	stmt := store.Statement{SQL: rebindPlaceholders(s.repo.Dialect(), query), Args: args}

	rows, err := s.repo.ExecuteQuery(ctx, stmt)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool, len(rows))
	for _, row := range rows {
		if v, ok := row["documentid"]; ok {
			ids[toString(v)] = true
		}
	}
	return ids, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func (s *Service) applyLabelsAndTags(ctx context.Context, docs []model.Document, labels []string, tags map[string]string) ([]model.Document, error) {
	if len(labels) == 0 && len(tags) == 0 {
		return docs, nil
	}

	var out []model.Document
	for _, d := range docs {
		ok, err := s.matchesLabelsAndTags(ctx, d.ID, labels, tags)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) matchesLabelsAndTags(ctx context.Context, documentID string, labels []string, tags map[string]string) (bool, error) {
	if len(labels) > 0 {
		docLabels, err := s.repo.ListLabels(ctx, nil, &documentID)
		if err != nil {
			return false, err
		}
		have := make(map[string]bool, len(docLabels))
		for _, l := range docLabels {
			have[l.Value] = true
		}
		for _, want := range labels {
			if !have[want] {
				return false, nil
			}
		}
	}

	if len(tags) > 0 {
		docTags, err := s.repo.ListTags(ctx, nil, &documentID)
		if err != nil {
			return false, err
		}
		have := make(map[string]string, len(docTags))
		for _, t := range docTags {
			have[t.Key] = t.Value
		}
		for k, v := range tags {
			if have[k] != v {
				return false, nil
			}
		}
	}

	return true, nil
}

func order(docs []model.Document, ordering Ordering) []model.Document {
	switch ordering {
	case CreatedDescending:
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedUtc.After(docs[j].CreatedUtc) })
	case ByName:
		sort.SliceStable(docs, func(i, j int) bool { return nameOf(docs[i]) < nameOf(docs[j]) })
	case BySize:
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].ContentLength < docs[j].ContentLength })
	default: // CreatedAscending
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedUtc.Before(docs[j].CreatedUtc) })
	}
	return docs
}

func nameOf(d model.Document) string {
	if d.Name != nil {
		return *d.Name
	}
	return ""
}

func page(docs []model.Document, skip, maxResults int) []model.Document {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(docs) {
		return nil
	}
	docs = docs[skip:]
	if maxResults > 0 && maxResults < len(docs) {
		docs = docs[:maxResults]
	}
	return docs
}

// rebindPlaceholders rewrites "?" placeholders into the dialect's syntax.
// Exported logic is intentionally duplicated from sqlstore.rebind: the
// planner builds SQL independently of the repository implementation and
// depends only on store.Dialect, not on sqlstore internals.
func rebindPlaceholders(d store.Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
