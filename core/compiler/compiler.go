// Package compiler turns request-facing QueryDocuments into parameterized
// SQL. Every user-supplied filter, sort and field list passes the security
// gate before it reaches a builder; trusted filters supplied by the caller
// are ANDed above them. Compiled statements are cached, logged, counted and
// published on an event bus.
package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-sqlgate/core/dialect"
	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/asaidimu/go-sqlgate/core/security"
	"github.com/asaidimu/go-sqlgate/core/validate"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Options configures a Compiler. Only Dialect is required.
type Options struct {
	Dialect dialect.Dialect
	// Policy gates user filters, sorts and field lists. Nil means
	// security.DefaultFilterValidator().
	Policy *security.FilterValidator
	// CursorCodec decodes after/before tokens. Nil means an unsigned codec.
	CursorCodec      *query.CursorCodec
	QuoteIdentifiers bool
	// Tables restricts the tables a document may name. Empty allows any.
	Tables []string
	// DefaultLimit applies to selects without a limit; MaxLimit caps the
	// limit a document may ask for and stands in for a missing default.
	// Zero disables either.
	DefaultLimit int
	MaxLimit     int
	// CacheSize of zero disables the compile cache.
	CacheSize int
	CacheTTL  time.Duration
	Logger    *zap.Logger
	Metrics   *Metrics
}

// Compiler compiles QueryDocuments. It is safe for concurrent use.
type Compiler struct {
	dialect      dialect.Dialect
	policy       *security.FilterValidator
	codec        *query.CursorCodec
	quote        bool
	tables       map[string]struct{}
	defaultLimit int
	maxLimit     int
	cache        *lru.LRU[string, query.QueryResult]
	logger       *zap.Logger
	metrics      *Metrics

	bus           *events.TypedEventBus[CompileEvent]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// New creates a Compiler.
func New(opts Options) (*Compiler, error) {
	if opts.Dialect == nil {
		return nil, fmt.Errorf("%w: no dialect configured", dialect.ErrUnknownDialect)
	}
	if opts.DefaultLimit < 0 || opts.MaxLimit < 0 {
		return nil, fmt.Errorf("limits must not be negative")
	}
	if opts.MaxLimit > 0 && opts.DefaultLimit > opts.MaxLimit {
		return nil, fmt.Errorf("default limit %d exceeds max limit %d", opts.DefaultLimit, opts.MaxLimit)
	}

	bus, err := events.NewTypedEventBus[CompileEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	c := &Compiler{
		dialect:       opts.Dialect,
		policy:        opts.Policy,
		codec:         opts.CursorCodec,
		quote:         opts.QuoteIdentifiers,
		defaultLimit:  opts.DefaultLimit,
		maxLimit:      opts.MaxLimit,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}
	if c.policy == nil {
		c.policy = security.DefaultFilterValidator()
	}
	if c.codec == nil {
		c.codec = query.NewCursorCodec(nil)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if len(opts.Tables) > 0 {
		c.tables = make(map[string]struct{}, len(opts.Tables))
		for _, t := range opts.Tables {
			c.tables[t] = struct{}{}
		}
	}
	if opts.CacheSize > 0 {
		c.cache = lru.NewLRU[string, query.QueryResult](opts.CacheSize, nil, opts.CacheTTL)
	}
	return c, nil
}

// Policy returns the validator applied to user input.
func (c *Compiler) Policy() *security.FilterValidator {
	return c.policy
}

// CompileJSON parses data as a QueryDocument and compiles it.
func (c *Compiler) CompileJSON(data []byte, trusted ...query.FilterExpr) (query.QueryResult, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		c.record(doc, c.dialect.Name(), query.QueryResult{}, false, err, time.Now())
		return query.QueryResult{}, err
	}
	return c.Compile(doc, trusted...)
}

// Compile gates and builds doc. trusted filters bypass the policy and are
// ANDed above the document's filter; they are ignored for inserts.
func (c *Compiler) Compile(doc QueryDocument, trusted ...query.FilterExpr) (query.QueryResult, error) {
	start := time.Now()

	d, err := c.resolveDialect(doc.Dialect)
	if err != nil {
		c.record(doc, dialect.Kind(doc.Dialect), query.QueryResult{}, false, err, start)
		return query.QueryResult{}, err
	}

	key, cacheable := c.cacheKey(d, doc, trusted)
	if cacheable {
		if res, ok := c.cache.Get(key); ok {
			res = copyResult(res)
			c.record(doc, d.Name(), res, true, nil, start)
			return res, nil
		}
	}

	res, err := c.build(d, doc, trusted)
	if err != nil {
		c.record(doc, d.Name(), query.QueryResult{}, false, err, start)
		return query.QueryResult{}, err
	}
	if cacheable {
		c.cache.Add(key, copyResult(res))
	}
	c.record(doc, d.Name(), res, false, nil, start)
	return res, nil
}

func (c *Compiler) resolveDialect(name string) (dialect.Dialect, error) {
	if name == "" {
		return c.dialect, nil
	}
	return dialect.Named(name)
}

func (c *Compiler) build(d dialect.Dialect, doc QueryDocument, trusted []query.FilterExpr) (query.QueryResult, error) {
	if c.tables != nil {
		if _, ok := c.tables[doc.Table]; !ok {
			return query.QueryResult{}, fmt.Errorf("%w: %q", ErrTableNotAllowed, doc.Table)
		}
	}

	f := query.NewFactory(d)
	if c.quote {
		f = f.QuoteIdentifiers()
	}

	switch doc.operation() {
	case OperationSelect:
		return c.buildSelect(f, doc, trusted)
	case OperationInsert:
		return c.buildInsert(f, doc)
	case OperationUpdate:
		return c.buildUpdate(f, doc, trusted)
	case OperationDelete:
		return c.buildDelete(f, doc, trusted)
	}
	return query.QueryResult{}, fmt.Errorf("%w: unknown operation %q", ErrInvalidDocument, doc.Operation)
}

func (c *Compiler) buildSelect(f *query.Factory, doc QueryDocument, trusted []query.FilterExpr) (query.QueryResult, error) {
	if len(doc.Columns) > 0 || len(doc.Rows) > 0 || len(doc.Set) > 0 || len(doc.Returning) > 0 {
		return query.QueryResult{}, fmt.Errorf("%w: columns, rows, set and returning do not apply to select", ErrInvalidDocument)
	}
	if err := c.policy.CheckFields("fields", doc.Fields...); err != nil {
		return query.QueryResult{}, err
	}
	if err := c.policy.CheckFields("group_by", doc.GroupBy...); err != nil {
		return query.QueryResult{}, err
	}
	for i, agg := range doc.Aggregates {
		if agg.Field == "" {
			continue
		}
		if err := c.policy.CheckFields(fmt.Sprintf("aggregates[%d]", i), agg.Field); err != nil {
			return query.QueryResult{}, err
		}
	}
	for i, cf := range doc.Computed {
		columns, err := validate.ExpressionIdentifiers(cf.Expression)
		if err != nil {
			return query.QueryResult{}, err
		}
		if err := c.policy.CheckFields(fmt.Sprintf("computed[%d]", i), columns...); err != nil {
			return query.QueryResult{}, err
		}
	}

	qb := f.Select(doc.Table).Fields(doc.Fields...)
	for _, cf := range doc.Computed {
		qb.Computed(cf.Alias, cf.Expression)
	}
	for _, agg := range doc.Aggregates {
		qb.Aggregate(agg)
	}

	where, ok, err := c.where(doc, trusted)
	if err != nil {
		return query.QueryResult{}, err
	}
	if ok {
		qb.Filter(where)
	}

	if len(doc.GroupBy) > 0 {
		qb.GroupBy(doc.GroupBy...)
	}
	if present(doc.Having) {
		having, err := c.having(doc)
		if err != nil {
			return query.QueryResult{}, err
		}
		qb.Having(having)
	}

	sorts, err := c.policy.ParseSort(doc.Sort)
	if err != nil {
		return query.QueryResult{}, err
	}
	qb.Sorts(sorts...)

	if err := c.paginate(qb, doc); err != nil {
		return query.QueryResult{}, err
	}
	return qb.Build()
}

// having validates the HAVING filter against the group-by fields and the
// aggregate aliases rather than the column allow-list.
func (c *Compiler) having(doc QueryDocument) (query.FilterExpr, error) {
	expr, err := query.ParseFilter(doc.Having)
	if err != nil {
		return query.FilterExpr{}, err
	}
	allowed := slices.Clone(doc.GroupBy)
	for _, agg := range doc.Aggregates {
		if agg.Alias != "" {
			allowed = append(allowed, agg.Alias)
		}
	}
	if len(allowed) == 0 {
		return query.FilterExpr{}, fmt.Errorf("%w: having requires group_by or aliased aggregates", ErrInvalidDocument)
	}
	v := security.NewFilterValidator(allowed, c.policy.DeniedOperators(), c.policy.MaxDepth())
	if err := v.Validate(expr); err != nil {
		return query.FilterExpr{}, err
	}
	return expr, nil
}

func (c *Compiler) paginate(qb *query.QueryBuilder, doc QueryDocument) error {
	if doc.After != "" && doc.Before != "" {
		return fmt.Errorf("%w: after and before are mutually exclusive", ErrInvalidDocument)
	}
	if (doc.After != "" || doc.Before != "") && (doc.Offset != nil || doc.Page != nil) {
		return fmt.Errorf("%w: cursors cannot be combined with offset or page", ErrInvalidDocument)
	}
	if doc.Page != nil && doc.Offset != nil {
		return fmt.Errorf("%w: page and offset are mutually exclusive", ErrInvalidDocument)
	}

	limit := c.defaultLimit
	if doc.Limit != nil {
		limit = *doc.Limit
		if limit < 0 {
			return fmt.Errorf("%w: negative limit %d", ErrInvalidDocument, limit)
		}
		if limit == 0 && c.maxLimit > 0 {
			return fmt.Errorf("%w: limit 0 is unbounded, maximum is %d", ErrLimitExceeded, c.maxLimit)
		}
	} else if limit == 0 {
		limit = c.maxLimit
	}
	if c.maxLimit > 0 && limit > c.maxLimit {
		return fmt.Errorf("%w: %d > %d", ErrLimitExceeded, limit, c.maxLimit)
	}

	switch {
	case doc.Page != nil:
		if limit == 0 {
			return fmt.Errorf("%w: page requires a limit", ErrInvalidDocument)
		}
		qb.Page(*doc.Page, limit)
		return nil
	case limit > 0:
		qb.Limit(limit)
	}
	if doc.Offset != nil {
		qb.Offset(*doc.Offset)
	}

	qb.WithCursorCodec(c.codec)
	qb.AfterToken(doc.After)
	qb.BeforeToken(doc.Before)
	return nil
}

// where parses the document filter and merges it below the trusted filters.
// ok is false when neither exists.
func (c *Compiler) where(doc QueryDocument, trusted []query.FilterExpr) (query.FilterExpr, bool, error) {
	var user []query.FilterExpr
	if present(doc.Filter) {
		expr, err := query.ParseFilter(doc.Filter)
		if err != nil {
			return query.FilterExpr{}, false, err
		}
		user = append(user, expr)
	}
	if len(user) == 0 && len(trusted) == 0 {
		return query.FilterExpr{}, false, nil
	}
	merged, err := security.MergeFilters(trusted, user, c.policy)
	if err != nil {
		return query.FilterExpr{}, false, err
	}
	return merged, true, nil
}

func (c *Compiler) buildInsert(f *query.Factory, doc QueryDocument) (query.QueryResult, error) {
	if present(doc.Filter) || len(doc.Set) > 0 {
		return query.QueryResult{}, fmt.Errorf("%w: filter and set do not apply to insert", ErrInvalidDocument)
	}
	if err := c.policy.CheckFields("columns", doc.Columns...); err != nil {
		return query.QueryResult{}, err
	}
	if err := c.policy.CheckFields("returning", doc.Returning...); err != nil {
		return query.QueryResult{}, err
	}
	return f.Insert(doc.Table).
		Columns(doc.Columns...).
		ValuesMany(doc.Rows).
		Returning(doc.Returning...).
		Build()
}

func (c *Compiler) buildUpdate(f *query.Factory, doc QueryDocument, trusted []query.FilterExpr) (query.QueryResult, error) {
	if len(doc.Rows) > 0 || len(doc.Columns) > 0 {
		return query.QueryResult{}, fmt.Errorf("%w: columns and rows do not apply to update", ErrInvalidDocument)
	}
	ub := f.Update(doc.Table)
	for i, a := range doc.Set {
		if err := c.policy.CheckFields(fmt.Sprintf("set[%d]", i), a.Column); err != nil {
			return query.QueryResult{}, err
		}
		ub.Set(a.Column, a.Value)
	}
	if err := c.policy.CheckFields("returning", doc.Returning...); err != nil {
		return query.QueryResult{}, err
	}
	where, ok, err := c.where(doc, trusted)
	if err != nil {
		return query.QueryResult{}, err
	}
	if !ok && !doc.Unscoped {
		return query.QueryResult{}, ErrUnscopedWrite
	}
	if ok {
		ub.Filter(where)
	}
	return ub.Returning(doc.Returning...).Build()
}

func (c *Compiler) buildDelete(f *query.Factory, doc QueryDocument, trusted []query.FilterExpr) (query.QueryResult, error) {
	if len(doc.Rows) > 0 || len(doc.Columns) > 0 || len(doc.Set) > 0 {
		return query.QueryResult{}, fmt.Errorf("%w: columns, rows and set do not apply to delete", ErrInvalidDocument)
	}
	if err := c.policy.CheckFields("returning", doc.Returning...); err != nil {
		return query.QueryResult{}, err
	}
	where, ok, err := c.where(doc, trusted)
	if err != nil {
		return query.QueryResult{}, err
	}
	if !ok && !doc.Unscoped {
		return query.QueryResult{}, ErrUnscopedWrite
	}
	db := f.Delete(doc.Table)
	if ok {
		db.Filter(where)
	}
	return db.Returning(doc.Returning...).Build()
}

// cacheKey identifies a compilation by dialect, document and trusted
// filters. Inputs that cannot be marshaled are not cached.
func (c *Compiler) cacheKey(d dialect.Dialect, doc QueryDocument, trusted []query.FilterExpr) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	doc.Dialect = ""
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", false
	}
	trustedJSON, err := json.Marshal(trusted)
	if err != nil {
		return "", false
	}
	var sb strings.Builder
	sb.WriteString(string(d.Name()))
	sb.WriteByte(0)
	sb.Write(docJSON)
	sb.WriteByte(0)
	sb.Write(trustedJSON)
	return sb.String(), true
}

func copyResult(res query.QueryResult) query.QueryResult {
	return query.QueryResult{SQL: res.SQL, Params: slices.Clone(res.Params)}
}

func (c *Compiler) record(doc QueryDocument, kind dialect.Kind, res query.QueryResult, cached bool, err error, start time.Time) {
	event := CompileEvent{
		ID:        uuid.NewString(),
		Type:      EventCompiled,
		Operation: doc.operation(),
		Table:     doc.Table,
		Dialect:   string(kind),
		Cached:    cached,
		Duration:  time.Since(start),
		Timestamp: start,
	}
	fields := []zap.Field{
		zap.String("id", event.ID),
		zap.String("operation", string(event.Operation)),
		zap.String("table", event.Table),
		zap.String("dialect", event.Dialect),
		zap.Duration("duration", event.Duration),
	}

	if err != nil {
		msg := err.Error()
		event.Error = &msg
		if reason, ok := rejected(err); ok {
			event.Type = EventRejected
			event.Reason = reason
			c.logger.Warn("Query rejected by policy", append(fields, zap.String("reason", reason), zap.Error(err))...)
		} else {
			event.Type = EventFailed
			event.Reason = failureReason(err)
			c.logger.Info("Query could not be compiled", append(fields, zap.Error(err))...)
		}
	} else {
		event.SQL = res.SQL
		event.ParamCount = len(res.Params)
		c.logger.Debug("Compiled query", append(fields,
			zap.String("sql", res.SQL),
			zap.Int("params", len(res.Params)),
			zap.Bool("cached", cached))...)
	}

	c.metrics.observe(event)
	c.bus.Emit(string(event.Type), event)
}

func failureReason(err error) string {
	for _, r := range []struct {
		err    error
		reason string
	}{
		{ErrInvalidDocument, "invalid_document"},
		{dialect.ErrUnknownDialect, "unknown_dialect"},
		{query.ErrInvalidCursor, "invalid_cursor"},
		{query.ErrInvalidIdentifier, "invalid_identifier"},
		{query.ErrInvalidExpression, "invalid_expression"},
		{query.ErrUnknownOperator, "unknown_operator"},
		{query.ErrEmptyCompound, "empty_compound"},
		{query.ErrParse, "parse"},
		{query.ErrIncompleteStatement, "incomplete_statement"},
		{query.ErrInvalidValue, "invalid_value"},
	} {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "unknown"
}

// RegisterSubscription registers a callback for a compiler event and returns
// an ID for UnregisterSubscription.
func (c *Compiler) RegisterSubscription(options RegisterSubscriptionOptions) string {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	unsubscribe := c.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	c.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (c *Compiler) UnregisterSubscription(id string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if info, ok := c.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(c.subscriptions, id)
	}
}

// Subscriptions returns the active subscriptions.
func (c *Compiler) Subscriptions() []SubscriptionInfo {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
