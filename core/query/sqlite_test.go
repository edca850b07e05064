package query

import (
	"database/sql"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/asaidimu/go-sqlgate/core/dialect"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemColumns = []string{"id", "name", "score", "category", "price"}

func openItems(t *testing.T) (*sql.DB, []map[string]Value) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL, score INTEGER, category TEXT, price REAL)`)
	require.NoError(t, err)

	names := []string{"apple", "banana", "cherry", "date", "elder", "fig", "grape"}
	categories := []Value{String("a"), String("b"), String("c"), Null()}
	ib := NewInsertBuilder(dialect.SQLite, "items").Columns(itemColumns...)
	var rows []map[string]Value
	for i := 1; i <= 60; i++ {
		row := map[string]Value{
			"id":       Int(int64(i)),
			"name":     String(fmt.Sprintf("%s%d", names[i%len(names)], i)),
			"score":    Int(int64((i * 7) % 10)),
			"category": categories[i%len(categories)],
			"price":    Float(float64(i%13) * 1.25),
		}
		if i%11 == 0 {
			row["score"] = Null()
		}
		rows = append(rows, row)
		ib.Values(row["id"], row["name"], row["score"], row["category"], row["price"])
	}

	res := mustBuild(t, ib)
	assertAligned(t, dialect.SQLite, res)
	_, err = db.Exec(res.SQL, res.Args()...)
	require.NoError(t, err)
	return db, rows
}

func queryRows(t *testing.T, db *sql.DB, res QueryResult) []map[string]Value {
	t.Helper()
	rows, err := db.Query(res.SQL, res.Args()...)
	require.NoError(t, err, res.SQL)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out []map[string]Value
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		row := make(map[string]Value, len(cols))
		for i, col := range cols {
			if b, ok := raw[i].([]byte); ok {
				raw[i] = string(b)
			}
			v, err := ValueOf(raw[i])
			require.NoError(t, err)
			row[col] = v
		}
		out = append(out, row)
	}
	require.NoError(t, rows.Err())
	return out
}

func ids(rows []map[string]Value) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		id, _ := r["id"].AsInt()
		out = append(out, id)
	}
	return out
}

func TestSQLite_KeysetTraversal(t *testing.T) {
	db, _ := openItems(t)
	sorts := []SortField{Desc("price"), Asc("id")}
	codec := NewCursorCodec([]byte("test-secret"))

	expected := ids(queryRows(t, db, mustBuild(t, NewQueryBuilder(dialect.SQLite, "items").Fields("id").Sorts(sorts...))))
	require.Len(t, expected, 60)

	var (
		seen  []int64
		token string
		pages int
	)
	for {
		qb := NewQueryBuilder(dialect.SQLite, "items").
			Fields("id", "price").
			Sorts(sorts...).
			WithCursorCodec(codec).
			AfterToken(token).
			Limit(7 + 1)
		page, info, err := NextPage(queryRows(t, db, mustBuild(t, qb)), 7, sorts, codec)
		require.NoError(t, err)
		seen = append(seen, ids(page)...)
		pages++
		if !info.HasNext {
			break
		}
		token = info.NextCursor
		require.Less(t, pages, 20, "pagination does not terminate")
	}
	assert.Equal(t, expected, seen)
	assert.Equal(t, 9, pages)

	// Walking back from the 30th row yields the 5 rows before it, nearest first.
	pivot := queryRows(t, db, mustBuild(t, NewQueryBuilder(dialect.SQLite, "items").Fields("id", "price").Sorts(sorts...).LimitOffset(1, 29)))
	require.Len(t, pivot, 1)
	c, err := CursorFromRow(pivot[0], sorts)
	require.NoError(t, err)
	back := ids(queryRows(t, db, mustBuild(t, NewQueryBuilder(dialect.SQLite, "items").Fields("id").Sorts(sorts...).Before(c).Limit(5))))
	want := slices.Clone(expected[24:29])
	slices.Reverse(want)
	assert.Equal(t, want, back)
}

func TestSQLite_OffsetPagination(t *testing.T) {
	db, _ := openItems(t)
	all := ids(queryRows(t, db, mustBuild(t, NewQueryBuilder(dialect.SQLite, "items").Fields("id").OrderByAsc("id"))))

	page := ids(queryRows(t, db, mustBuild(t, NewQueryBuilder(dialect.SQLite, "items").Fields("id").OrderByAsc("id").Page(3, 10))))
	assert.Equal(t, all[20:30], page)

	tail := ids(queryRows(t, db, mustBuild(t, NewQueryBuilder(dialect.SQLite, "items").Fields("id").OrderByAsc("id").Offset(55))))
	assert.Equal(t, all[55:], tail)
}

func TestSQLite_Aggregates(t *testing.T) {
	db, rows := openItems(t)
	res := mustBuild(t, NewQueryBuilder(dialect.SQLite, "items").
		Fields("category").
		Count().
		Max("price", "top").
		Filter(IsNotNull("category")).
		GroupBy("category").
		Having(Gt("count", Int(14))).
		OrderByAsc("category"))
	got := queryRows(t, db, res)

	counts := map[string]int64{}
	for _, r := range rows {
		if s, ok := r["category"].AsString(); ok {
			counts[s]++
		}
	}
	var want []string
	for _, cat := range []string{"a", "b", "c"} {
		if counts[cat] > 14 {
			want = append(want, cat)
		}
	}
	var gotCats []string
	for _, r := range got {
		s, _ := r["category"].AsString()
		gotCats = append(gotCats, s)
		n, _ := r["count"].AsInt()
		assert.Equal(t, counts[s], n)
	}
	assert.Equal(t, want, gotCats)
}

func TestSQLite_WriteStatements(t *testing.T) {
	db, _ := openItems(t)

	upd := mustBuild(t, NewUpdateBuilder(dialect.SQLite, "items").
		Set("name", String("renamed'; --")).
		Set("price", Float(99.5)).
		Filter(In("id", Int(1), Int(2), Int(3))))
	assertAligned(t, dialect.SQLite, upd)
	result, err := db.Exec(upd.SQL, upd.Args()...)
	require.NoError(t, err)
	n, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got := queryRows(t, db, mustBuild(t, NewQueryBuilder(dialect.SQLite, "items").Fields("id").Filter(Eq("name", String("renamed'; --"))).OrderByAsc("id")))
	assert.Equal(t, []int64{1, 2, 3}, ids(got))

	del := mustBuild(t, NewDeleteBuilder(dialect.SQLite, "items").Filter(Or(Gte("price", Float(99)), IsNull("score"))))
	_, err = db.Exec(del.SQL, del.Args()...)
	require.NoError(t, err)

	var remaining int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&remaining))
	assert.Equal(t, 60-3-5, remaining)
}

// Every randomly generated filter must select the same rows in SQLite as
// Match selects in memory, which also proves parameters line up with
// placeholders.
func TestSQLite_FiltersAgreeWithMatch(t *testing.T) {
	db, rows := openItems(t)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 300; i++ {
		expr := randomFilter(rng, 3)
		res, err := NewQueryBuilder(dialect.SQLite, "items").Fields("id").Filter(expr).OrderByAsc("id").Build()
		require.NoError(t, err)
		assertAligned(t, dialect.SQLite, res)

		var want []int64
		for _, row := range rows {
			ok, err := Match(expr, row)
			require.NoError(t, err)
			if ok {
				want = append(want, mustInt(row["id"]))
			}
		}
		got := ids(queryRows(t, db, res))
		if len(want) == 0 {
			want = []int64{}
		}
		assert.Equal(t, want, got, "filter %d: %s %v", i, res.SQL, res.Params)
	}
}

func mustInt(v Value) int64 {
	i, _ := v.AsInt()
	return i
}

func randomFilter(rng *rand.Rand, depth int) FilterExpr {
	if depth == 0 || rng.Intn(3) == 0 {
		return randomCondition(rng)
	}
	switch rng.Intn(3) {
	case 0:
		return Not(randomFilter(rng, depth-1))
	case 1:
		return And(randomChildren(rng, depth)...)
	default:
		return Or(randomChildren(rng, depth)...)
	}
}

func randomChildren(rng *rand.Rand, depth int) []FilterExpr {
	children := make([]FilterExpr, 1+rng.Intn(3))
	for i := range children {
		children[i] = randomFilter(rng, depth-1)
	}
	return children
}

func randomCondition(rng *rand.Rand) FilterExpr {
	numeric := func() (string, Value) {
		switch rng.Intn(3) {
		case 0:
			return "id", Int(int64(rng.Intn(65)))
		case 1:
			return "score", Int(int64(rng.Intn(11)))
		default:
			return "price", Float(float64(rng.Intn(16)) * 1.25)
		}
	}
	text := func() (string, Value) {
		if rng.Intn(2) == 0 {
			return "category", []Value{String("a"), String("b"), String("c"), String("z")}[rng.Intn(4)]
		}
		return "name", String([]string{"apple1", "an", "e", "rry", "fig"}[rng.Intn(5)])
	}

	switch rng.Intn(10) {
	case 0:
		field, v := numeric()
		return Eq(field, v)
	case 1:
		field, v := text()
		return Ne(field, v)
	case 2:
		field, v := numeric()
		return []func(string, Value) FilterExpr{Gt, Gte, Lt, Lte}[rng.Intn(4)](field, v)
	case 3:
		field, a := numeric()
		_, b := numeric()
		if field == "price" {
			b = Float(float64(rng.Intn(16)) * 1.25)
		}
		return Between(field, a, b)
	case 4:
		field, a := text()
		_, b := text()
		if rng.Intn(2) == 0 {
			return In(field, a, b)
		}
		return NotIn(field, a, b)
	case 5:
		return NotIn("category", String("a"), Null())
	case 6:
		if rng.Intn(2) == 0 {
			return IsNull([]string{"score", "category"}[rng.Intn(2)])
		}
		return IsNotNull([]string{"score", "category"}[rng.Intn(2)])
	case 7:
		_, v := text()
		return []func(string, Value) FilterExpr{StartsWith, EndsWith, Contains}[rng.Intn(3)]("name", v)
	case 8:
		return In("score")
	default:
		field, v := text()
		return Eq(field, v)
	}
}
