package migrations

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const schema = `
create table if not exists item (
    id integer not null primary key,
    name text not null
);
`

func TestOpenAndMigrateDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	db, err := OpenAndMigrateDB(schema, path)
	require.NoError(t, err)
	_, err = db.Exec("insert into item (id, name) values (1, 'one')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// reopening applies the schema again without losing rows
	db, err = OpenAndMigrateDB(schema, path)
	require.NoError(t, err)
	defer db.Close()

	var name string
	err = db.QueryRow("select name from item where id = 1").Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "one", name)
}

func TestOpenAndMigrateDBInvalidSchema(t *testing.T) {
	_, err := OpenAndMigrateDB("create tabel oops", ":memory:")
	require.Error(t, err)
}
