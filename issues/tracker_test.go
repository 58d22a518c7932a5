package issues

import (
	"testing"

	"github.com/geoknoesis/csvw-go/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_AddError(t *testing.T) {
	tr := New()

	assert.NoError(t, tr.AddError("recoverable", true))
	err := tr.AddError("fatal", false)
	require.Error(t, err)
	assert.True(t, errs.IsStructural(err))
	assert.Contains(t, err.Error(), "fatal")

	tr.AddWarning("careful")
	assert.Len(t, tr.Errors(), 2)
	assert.Len(t, tr.Warnings(), 1)
	assert.Len(t, tr.Issues(), 3)
	assert.True(t, tr.HasErrors())
}

func TestTracker_LocationSnapshot(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Update(Update{Table: Set("t.csv"), Row: Set(2)}))
	tr.AddWarning("first")

	require.NoError(t, tr.Update(Update{Row: Set(3), Column: Set(1)}))
	tr.AddWarning("second")

	issues := tr.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, 2, *issues[0].Location.Row)
	assert.Nil(t, issues[0].Location.Column)
	assert.Equal(t, 3, *issues[1].Location.Row)
	assert.Equal(t, 1, *issues[1].Location.Column)
	assert.Equal(t, "warning [table t.csv, row 3, column 1]: second", issues[1].String())
}

func TestTracker_UpdateRules(t *testing.T) {
	tests := []struct {
		name    string
		start   Update
		update  Update
		wantErr bool
		check   func(t *testing.T, loc Location)
	}{
		{
			name:    "row without table",
			update:  Update{Row: Set(1)},
			wantErr: true,
		},
		{
			name:    "column without row or table",
			update:  Update{Column: Set(1)},
			wantErr: true,
		},
		{
			name:   "row and table together",
			update: Update{Table: Set("a"), Row: Set(1)},
			check: func(t *testing.T, loc Location) {
				assert.Equal(t, "a", *loc.Table)
				assert.Equal(t, 1, *loc.Row)
			},
		},
		{
			name:   "new table clears row and column",
			start:  Update{Table: Set("a"), Row: Set(4), Column: Set(2)},
			update: Update{Table: Set("b")},
			check: func(t *testing.T, loc Location) {
				assert.Equal(t, "b", *loc.Table)
				assert.Nil(t, loc.Row)
				assert.Nil(t, loc.Column)
			},
		},
		{
			name:   "new row clears column",
			start:  Update{Table: Set("a"), Row: Set(4), Column: Set(2)},
			update: Update{Row: Set(5)},
			check: func(t *testing.T, loc Location) {
				assert.Equal(t, 5, *loc.Row)
				assert.Nil(t, loc.Column)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			require.NoError(t, tr.Update(tt.start))
			err := tr.Update(tt.update)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLocation)
				return
			}
			require.NoError(t, err)
			tt.check(t, tr.Location())
		})
	}
}

func TestTracker_ClearLayers(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Update(Update{Table: Set("a"), Row: Set(1), Column: Set(1)}))

	tr.ClearColumn()
	assert.Nil(t, tr.Location().Column)
	assert.NotNil(t, tr.Location().Row)

	require.NoError(t, tr.Update(Update{Column: Set(2)}))
	tr.ClearRow()
	assert.Nil(t, tr.Location().Row)
	assert.Nil(t, tr.Location().Column)

	tr.ClearTable()
	assert.True(t, tr.Location().IsZero())
}

func TestTracker_OnIssue(t *testing.T) {
	tr := New()
	var seen []Issue
	tr.OnIssue(func(i Issue) { seen = append(seen, i) })

	tr.Warnf("column %q unknown", "x")
	_ = tr.Errorf(true, "row %d too short", 3)

	require.Len(t, seen, 2)
	assert.Equal(t, SeverityWarning, seen[0].Severity)
	assert.Equal(t, `column "x" unknown`, seen[0].Message)
	assert.Equal(t, "error: row 3 too short", seen[1].String())
}
