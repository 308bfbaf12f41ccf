package store

import (
	"fmt"
	"strings"
)

// Table names.
const (
	TableUsers       = "users"
	TableTasks       = "tasks"
	TableTaskItems   = "task_items"
	TableAssignments = "task_user"
	TableSolutions   = "user_solution"
)

type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeText
	TypeBool
)

type ForeignKey struct {
	Table  string
	Column string
}

type Column struct {
	Name          string
	Type          ColumnType
	Nullable      bool
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       any
	References    *ForeignKey
}

type Table struct {
	Name    string
	Columns []Column
}

func (t Table) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func idColumn() Column {
	return Column{Name: "id", Type: TypeInt, PrimaryKey: true, Unique: true, AutoIncrement: true}
}

func ref(table string) *ForeignKey { return &ForeignKey{Table: table, Column: "id"} }

// Schema lists the application tables in creation order.
func Schema() []Table {
	return []Table{
		{Name: TableUsers, Columns: []Column{
			idColumn(),
			{Name: "username", Type: TypeText, Unique: true},
			{Name: "password", Type: TypeText},
			{Name: "pass_count", Type: TypeInt, Default: int64(0)},
			{Name: "count", Type: TypeInt, Default: int64(0)},
			{Name: "error_count", Type: TypeInt, Default: int64(0)},
			{Name: "count_tasks", Type: TypeInt, Default: int64(0)},
			{Name: "is_admin", Type: TypeBool, Default: false},
			{Name: "token", Type: TypeText, Unique: true},
		}},
		{Name: TableTasks, Columns: []Column{
			idColumn(),
			{Name: "title", Type: TypeText},
			{Name: "description", Type: TypeText, Nullable: true},
			{Name: "full_description", Type: TypeText, Nullable: true},
			{Name: "count_attempts", Type: TypeInt, Default: int64(0)},
			{Name: "item_ids", Type: TypeText, Default: "[]"},
			{Name: "visibility", Type: TypeText},
		}},
		{Name: TableTaskItems, Columns: []Column{
			idColumn(),
			{Name: "task_id", Type: TypeInt, References: ref(TableTasks)},
			{Name: "question", Type: TypeText, Nullable: true},
			{Name: "options", Type: TypeText, Default: "[]"},
		}},
		{Name: TableAssignments, Columns: []Column{
			idColumn(),
			{Name: "user_id", Type: TypeInt, References: ref(TableUsers)},
			{Name: "task_id", Type: TypeInt, References: ref(TableTasks)},
			{Name: "attempt_count", Type: TypeInt, Default: int64(0)},
		}},
		{Name: TableSolutions, Columns: []Column{
			idColumn(),
			{Name: "user_id", Type: TypeInt, References: ref(TableUsers)},
			{Name: "task_id", Type: TypeInt, References: ref(TableTasks)},
			{Name: "solution", Type: TypeText, Nullable: true},
		}},
	}
}

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

func quote(ident string) string { return `"` + ident + `"` }

func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d dialect) columnDDL(c Column) string {
	var b strings.Builder
	b.WriteString(quote(c.Name))
	b.WriteByte(' ')

	if c.PrimaryKey && c.AutoIncrement {
		if d == dialectPostgres {
			b.WriteString("BIGSERIAL PRIMARY KEY")
		} else {
			b.WriteString("INTEGER PRIMARY KEY AUTOINCREMENT")
		}
		return b.String()
	}

	switch c.Type {
	case TypeInt:
		if d == dialectPostgres {
			b.WriteString("BIGINT")
		} else {
			b.WriteString("INTEGER")
		}
	case TypeBool:
		if d == dialectPostgres {
			b.WriteString("BOOLEAN")
		} else {
			b.WriteString("INTEGER")
		}
	default:
		b.WriteString("TEXT")
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if !c.Nullable && !c.PrimaryKey {
		b.WriteString(" NOT NULL")
	}
	if c.Unique && !c.PrimaryKey {
		b.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(d.literal(c.Default))
	}
	if c.References != nil {
		fmt.Fprintf(&b, " REFERENCES %s(%s)", quote(c.References.Table), quote(c.References.Column))
	}
	return b.String()
}

func (d dialect) literal(v any) string {
	switch x := v.(type) {
	case bool:
		if d == dialectPostgres {
			if x {
				return "TRUE"
			}
			return "FALSE"
		}
		if x {
			return "1"
		}
		return "0"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	default:
		return fmt.Sprint(x)
	}
}

func (d dialect) createTable(t Table) string {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, "  "+d.columnDDL(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", quote(t.Name), strings.Join(cols, ",\n"))
}
