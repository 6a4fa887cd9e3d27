package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
)

type fakeSaver struct {
	mu    sync.Mutex
	saved []analytics.AggregatedStats
}

func (f *fakeSaver) SaveSnapshot(_ context.Context, s analytics.AggregatedStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestRunPeriodicSavesAndFinalSnapshot(t *testing.T) {
	saver := &fakeSaver{}
	agg := analytics.NewAggregator()
	agg.Record(analytics.Event{Type: analytics.EventSearch, Query: "cave"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPeriodic(ctx, saver, agg.Stats, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return saver.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	n := saver.count()
	assert.GreaterOrEqual(t, n, 3)
	assert.Equal(t, int64(1), saver.saved[n-1].TotalSearches)
}

// snapshotDriver is an in-memory database/sql driver that understands the
// three statements Store issues. Each DSN names its own table.
type snapshotDriver struct {
	mu     sync.Mutex
	tables map[string]*snapshotTable
}

type snapshotTable struct {
	mu   sync.Mutex
	rows []snapshotRow
}

type snapshotRow struct {
	takenAt time.Time
	payload []byte
}

var (
	fakeDriver   = &snapshotDriver{tables: make(map[string]*snapshotTable)}
	registerOnce sync.Once
)

func (d *snapshotDriver) Open(dsn string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table, ok := d.tables[dsn]
	if !ok {
		table = &snapshotTable{}
		d.tables[dsn] = table
	}
	return &snapshotConn{table: table}, nil
}

type snapshotConn struct {
	table *snapshotTable
}

func (c *snapshotConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *snapshotConn) Close() error { return nil }

func (c *snapshotConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *snapshotConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if !strings.HasPrefix(query, "INSERT INTO analytics_snapshots") || len(args) != 2 {
		return nil, errors.New("unexpected exec: " + query)
	}
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	c.table.rows = append(c.table.rows, snapshotRow{
		takenAt: args[0].Value.(time.Time),
		payload: args[1].Value.([]byte),
	})
	return driver.RowsAffected(1), nil
}

func (c *snapshotConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if !strings.HasPrefix(query, "SELECT") || !strings.Contains(query, "ORDER BY taken_at DESC") {
		return nil, errors.New("unexpected query: " + query)
	}
	limit := 1
	if len(args) == 1 {
		limit = int(args[0].Value.(int64))
	}
	c.table.mu.Lock()
	rows := append([]snapshotRow(nil), c.table.rows...)
	c.table.mu.Unlock()
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].takenAt.After(rows[j].takenAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	withTime := strings.HasPrefix(query, "SELECT taken_at, payload")
	return &snapshotRows{rows: rows, withTime: withTime}, nil
}

type snapshotRows struct {
	rows     []snapshotRow
	withTime bool
	pos      int
}

func (r *snapshotRows) Columns() []string {
	if r.withTime {
		return []string{"taken_at", "payload"}
	}
	return []string{"payload"}
}

func (r *snapshotRows) Close() error { return nil }

func (r *snapshotRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	if r.withTime {
		dest[0] = row.takenAt
		dest[1] = row.payload
		return nil
	}
	dest[0] = row.payload
	return nil
}

func openSnapshotDB(t *testing.T) (*sql.DB, *snapshotTable) {
	t.Helper()
	registerOnce.Do(func() { sql.Register("snapshots-memory", fakeDriver) })
	db, err := sql.Open("snapshots-memory", t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())

	fakeDriver.mu.Lock()
	defer fakeDriver.mu.Unlock()
	return db, fakeDriver.tables[t.Name()]
}

func TestLatestSnapshotEmptyTable(t *testing.T) {
	db, _ := openSnapshotDB(t)
	s := New(db)

	got, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveThenLatestSnapshot(t *testing.T) {
	db, table := openSnapshotDB(t)
	s := New(db)
	ctx := context.Background()

	table.rows = append(table.rows, snapshotRow{
		takenAt: time.Now().UTC().Add(-time.Hour),
		payload: []byte(`{"total_searches":1}`),
	})
	require.NoError(t, s.SaveSnapshot(ctx, analytics.AggregatedStats{TotalSearches: 7, IndexBuilds: 2}))

	got, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.TotalSearches)
	assert.Equal(t, int64(2), got.IndexBuilds)
}

func TestLatestSnapshotCorruptPayload(t *testing.T) {
	db, table := openSnapshotDB(t)
	table.rows = append(table.rows, snapshotRow{takenAt: time.Now(), payload: []byte("{nope")})

	_, err := New(db).LatestSnapshot(context.Background())
	assert.ErrorContains(t, err, "unmarshaling snapshot")
}

func TestListSnapshotsNewestFirstAndSkipsCorrupt(t *testing.T) {
	db, table := openSnapshotDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	table.rows = append(table.rows,
		snapshotRow{takenAt: base, payload: []byte(`{"total_searches":1}`)},
		snapshotRow{takenAt: base.Add(2 * time.Minute), payload: []byte(`{"total_searches":3}`)},
		snapshotRow{takenAt: base.Add(time.Minute), payload: []byte("not json")},
		snapshotRow{takenAt: base.Add(3 * time.Minute), payload: []byte(`{"total_searches":4}`)},
	)
	s := New(db)

	got, err := s.ListSnapshots(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-01T12:03:00Z", got[0].TakenAt)
	assert.Equal(t, int64(4), got[0].Stats.TotalSearches)
	assert.Equal(t, "2024-03-01T12:02:00Z", got[1].TakenAt)
	assert.Equal(t, int64(3), got[1].Stats.TotalSearches)

	got, err = s.ListSnapshots(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestListSnapshotsEmpty(t *testing.T) {
	db, _ := openSnapshotDB(t)

	got, err := New(db).ListSnapshots(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
