package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

var clickHouseColumnTypes = map[reflect.Kind]string{
	reflect.Bool:    "Bool",
	reflect.Int:     "Int64",
	reflect.Int8:    "Int8",
	reflect.Int16:   "Int16",
	reflect.Int32:   "Int32",
	reflect.Int64:   "Int64",
	reflect.Uint:    "UInt64",
	reflect.Uint8:   "UInt8",
	reflect.Uint16:  "UInt16",
	reflect.Uint32:  "UInt32",
	reflect.Uint64:  "UInt64",
	reflect.Float32: "Float32",
	reflect.Float64: "Float64",
	reflect.String:  "String",
}

// clickHouseRecorder writes entries into a ClickHouse database in batches.
type clickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*table
	entryCount int
	closed     bool
}

// NewClickHouse connects to the ClickHouse server described by dsn, for
// example clickhouse://localhost:9000/mmusim?username=default. A batch size
// of 0 uses the default.
func NewClickHouse(dsn string, batchSize int) (DataRecorder, error) {
	if batchSize == 0 {
		batchSize = 100000
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid clickhouse dsn: %w", err)
	}

	options.DialTimeout = 30 * time.Second
	options.ConnOpenStrategy = clickhouse.ConnOpenInOrder

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	err = conn.Ping(context.Background())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	r := &clickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

// clickHouseCreateTableSQL returns the statement that creates a table whose
// columns are the exported fields of the sample entry.
func clickHouseCreateTableSQL(tableName string, sampleEntry any) (string, error) {
	err := checkStructFields(sampleEntry)
	if err != nil {
		return "", err
	}

	st := reflect.TypeOf(sampleEntry)
	columns := make([]string, 0, st.NumField())
	for _, name := range columnNames(sampleEntry) {
		field, _ := st.FieldByName(name)
		columns = append(columns,
			name+" "+clickHouseColumnTypes[field.Type.Kind()])
	}

	return "CREATE TABLE IF NOT EXISTS " + tableName + " (\n\t" +
		strings.Join(columns, ",\n\t") +
		"\n) ENGINE = MergeTree()\nORDER BY tuple()", nil
}

// clickHouseValues returns the field values of an entry, with int and uint
// widened to the 64-bit types the columns are declared with.
func clickHouseValues(entry any) []any {
	values := columnValues(entry)
	for i, v := range values {
		switch v := v.(type) {
		case int:
			values[i] = int64(v)
		case uint:
			values[i] = uint64(v)
		}
	}

	return values
}

func (r *clickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	createSQL, err := clickHouseCreateTableSQL(tableName, sampleEntry)
	if err != nil {
		panic(err)
	}

	err = r.conn.Exec(context.Background(), createSQL)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
}

func (r *clickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	table, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		r.mu.Unlock()
		panic(fmt.Sprintf("entry of type %s cannot be inserted into table %s",
			reflect.TypeOf(entry), tableName))
	}

	table.entries = append(table.entries, entry)
	r.entryCount++

	full := r.entryCount >= r.batchSize
	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

func (r *clickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (r *clickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 || r.closed {
		return
	}

	ctx := context.Background()
	for tableName, table := range r.tables {
		if len(table.entries) == 0 {
			continue
		}

		r.flushTable(ctx, tableName, table)
	}

	r.entryCount = 0
}

func (r *clickHouseRecorder) flushTable(
	ctx context.Context,
	tableName string,
	table *table,
) {
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, entry := range table.entries {
		err = batch.Append(clickHouseValues(entry)...)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	err = batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.entries = table.entries[:0]
}

func (r *clickHouseRecorder) Close() error {
	r.Flush()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	return r.conn.Close()
}
