package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-core/internal/migration"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

func newMigrator(t *testing.T, steps []migration.Step) (*migration.Migrator, *migration.MemoryDriver) {
	t.Helper()
	d := migration.NewMemoryDriver()
	m, err := migration.New(d, steps, migration.Options{Registry: schema.Current()})
	require.NoError(t, err)
	return m, d
}

func TestHistoryIsValid(t *testing.T) {
	require.NoError(t, migration.ValidateSteps(All(), schema.Current()))
}

func TestReplayProducesRegistry(t *testing.T) {
	m, d := newMigrator(t, All())
	ctx := context.Background()

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(All()), n)

	assert.Empty(t, d.Snapshot().Diff(schema.Current().Snapshot()))
	assert.NoError(t, m.Verify(ctx))

	depts := d.Rows(schema.TableDepartments)
	require.Len(t, depts, 1)
	assert.Equal(t, "General Medicine", depts[0]["name"])
	assert.Len(t, d.Executed(), 1)
}

func TestRoundTripReturnsToEmpty(t *testing.T) {
	m, d := newMigrator(t, All())
	ctx := context.Background()

	_, err := m.Up(ctx)
	require.NoError(t, err)
	n, err := m.DownAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(All()), n)

	assert.True(t, d.Snapshot().IsEmpty(), d.Snapshot().String())
	assert.Empty(t, d.Rows(schema.TableDepartments))
	records, err := d.Ledger(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRoundTripFromEveryPrefix(t *testing.T) {
	all := All()
	for i, step := range all {
		m, d := newMigrator(t, all)
		ctx := context.Background()

		n, err := m.UpTo(ctx, step.Key)
		require.NoError(t, err, step.String())
		require.Equal(t, i+1, n)

		_, err = m.DownAll(ctx)
		require.NoError(t, err, step.String())
		assert.True(t, d.Snapshot().IsEmpty(), step.String())
	}
}

func TestEachStepRevertsExactly(t *testing.T) {
	m, d := newMigrator(t, All())
	ctx := context.Background()

	for _, step := range All() {
		before := d.Snapshot()
		_, err := m.UpTo(ctx, step.Key)
		require.NoError(t, err)
		after := d.Snapshot()

		_, err = m.Down(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, d.Snapshot().Diff(before), "revert of %s", step)

		_, err = m.UpTo(ctx, step.Key)
		require.NoError(t, err)
		assert.Empty(t, d.Snapshot().Diff(after), "re-apply of %s", step)
	}
}

func TestStepsAreIdempotent(t *testing.T) {
	m, d := newMigrator(t, All())
	ctx := context.Background()
	_, err := m.Up(ctx)
	require.NoError(t, err)
	want := d.Snapshot()

	for _, step := range All() {
		err := d.Apply(ctx, step, migration.DirectionUp, func(s migration.Session) error {
			for _, op := range step.Up {
				if err := op.Apply(ctx, s); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err, "re-running %s", step)
	}
	assert.Empty(t, d.Snapshot().Diff(want))
	assert.Len(t, d.Rows(schema.TableDepartments), 1)
}

func TestBackfillFailsFastWithoutSeedDepartment(t *testing.T) {
	var history []migration.Step
	for _, s := range All() {
		if s.Key != "20240402083000" {
			history = append(history, s)
		}
	}
	m, d := newMigrator(t, history)
	ctx := context.Background()

	_, err := m.Up(ctx)
	require.ErrorIs(t, err, migration.ErrMissingDependency)
	assert.Contains(t, err.Error(), "General Medicine")
	assert.Empty(t, d.Executed())
	assert.False(t, d.Snapshot().HasTable(schema.TableOmaeraMedications))

	status, err := m.Status(ctx)
	require.NoError(t, err)
	for _, st := range status {
		if st.Key == "20240402083200" {
			assert.True(t, st.Dirty)
		}
	}

	_, err = m.Up(ctx)
	assert.ErrorIs(t, err, migration.ErrDirty)
}

func TestShorteningPhoneIsItsOwnStep(t *testing.T) {
	for _, step := range All() {
		for _, op := range step.Up {
			if alter, ok := op.(migration.AlterColumnType); ok && alter.Narrows() {
				assert.Len(t, step.Up, 1, step.String())
			}
		}
	}
}
