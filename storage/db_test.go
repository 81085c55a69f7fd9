package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	require.NoError(t, db.Delete([]byte("k")))
	_, err = db.Get([]byte("k"))
	require.Error(t, err)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte("original")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'X'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)

	// Mutating the returned slice does not corrupt the store either.
	got[0] = 'Y'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again)
}

func TestMemDBIteratePrefix(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("round/%02d", i)
		require.NoError(t, db.Put([]byte(key), []byte{byte(i)}))
	}
	require.NoError(t, db.Put([]byte("other/00"), []byte{0xFF}))

	var keys []string
	require.NoError(t, db.IteratePrefix([]byte("round/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"round/00", "round/01", "round/02", "round/03", "round/04"}, keys)

	// Early stop.
	keys = keys[:0]
	require.NoError(t, db.IteratePrefix([]byte("round/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return len(keys) < 2
	}))
	require.Len(t, keys, 2)
}

func TestLevelDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	require.NoError(t, err)

	require.NoError(t, db.Put([]byte("sale/params"), []byte("{}")))
	require.NoError(t, db.Put([]byte("sale/round/01"), []byte("a")))
	require.NoError(t, db.Put([]byte("sale/round/02"), []byte("b")))

	got, err := db.Get([]byte("sale/params"))
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), got)

	var keys []string
	require.NoError(t, db.IteratePrefix([]byte("sale/round/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"sale/round/01", "sale/round/02"}, keys)
	db.Close()

	// Data survives reopening.
	db, err = NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	got, err = db.Get([]byte("sale/params"))
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), got)
}
