package settings_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-quote/internal/pricing"
	"github.com/noah-isme/backend-quote/internal/settings"
)

// fakeDB keeps app_settings rows in memory.
type fakeDB struct {
	rows    map[string][]byte
	execs   []string
	failErr error
}

type fakeRow struct {
	value []byte
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.value
	return nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if f.failErr != nil {
		return fakeRow{err: f.failErr}
	}
	v, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: v}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failErr != nil {
		return pgconn.CommandTag{}, f.failErr
	}
	f.execs = append(f.execs, sql)
	if strings.HasPrefix(sql, "INSERT") {
		if f.rows == nil {
			f.rows = map[string][]byte{}
		}
		f.rows[args[0].(string)] = args[1].([]byte)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	db := &fakeDB{}
	store := settings.NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	require.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS app_settings")

	_, ok, err := store.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	want := pricing.Settings{MarginRate: 0.2, VatRate: 0.15, DeliveryFeeFlat: 80, DeliveryFreeThreshold: 900}
	require.NoError(t, store.Put(ctx, want))
	require.Contains(t, string(db.rows["pricing"]), `"margin_rate":0.2`)

	got, ok, err := store.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestPostgresStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	store := settings.NewPostgresStore(&fakeDB{failErr: boom})
	ctx := context.Background()

	_, _, err := store.Get(ctx)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, store.Put(ctx, pricing.DefaultSettings()), boom)

	var nilStore *settings.PostgresStore
	require.ErrorIs(t, nilStore.Put(ctx, pricing.DefaultSettings()), settings.ErrNotConfigured)
}
