package rangefilter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/hrportal/internal/requests"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "01/02/24", want: day(2024, 2, 1)},
		{in: "01/02/2024", want: day(2024, 2, 1)},
		{in: "010224", want: day(2024, 2, 1)},
		{in: "01022024", want: day(2024, 2, 1)},
		{in: "1/2/24", want: day(2024, 2, 1)},
		{in: " 31-12-2023 ", want: day(2023, 12, 31)},
		{in: "29.02.2024", want: day(2024, 2, 29)},
		{in: "29/02/2023", wantErr: true},
		{in: "32/01/2024", wantErr: true},
		{in: "00/01/2024", wantErr: true},
		{in: "01/13/2024", wantErr: true},
		{in: "aa/bb", wantErr: true},
		{in: "xx/yy", wantErr: true},
		{in: "1/2/202", wantErr: true},
		{in: "123/1/24", wantErr: true},
		{in: "1224", wantErr: true},
		{in: "0102240", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in, time.UTC)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseUsesLocation(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	got, err := Parse("01/02/24", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 0, got.Hour())
}

func TestTextEditsOnlyTouchPending(t *testing.T) {
	s := NewSynchronizer(time.UTC)

	assert.True(t, s.SetStartText("01/01/24"))
	assert.True(t, s.SetEndText("31/01/24"))

	st := s.Snapshot()
	require.NotNil(t, st.Pending.From)
	require.NotNil(t, st.Pending.To)
	assert.True(t, day(2024, 1, 1).Equal(*st.Pending.From))
	assert.True(t, day(2024, 1, 31).Equal(*st.Pending.To))
	assert.True(t, st.Active.IsZero())
	assert.Nil(t, s.Active())
}

func TestUnparseableTextKeepsPendingAndActive(t *testing.T) {
	s := NewSynchronizer(time.UTC)
	s.SetStartText("01/01/24")
	s.SetEndText("31/01/24")
	_, err := s.Commit()
	require.NoError(t, err)

	assert.False(t, s.SetStartText("xx/yy"))
	assert.False(t, s.SetEndText("aa/bb"))

	st := s.Snapshot()
	assert.Equal(t, "xx/yy", st.StartText)
	assert.True(t, day(2024, 1, 1).Equal(*st.Pending.From))
	active := s.Active()
	require.NotNil(t, active)
	assert.True(t, day(2024, 1, 31).Equal(*active.To))

	// committing again keeps the last parsed values
	committed, err := s.Commit()
	require.NoError(t, err)
	assert.True(t, day(2024, 1, 1).Equal(*committed.From))
}

func TestEmptyTextClearsSide(t *testing.T) {
	s := NewSynchronizer(time.UTC)
	s.SetStartText("01/01/24")
	assert.True(t, s.SetStartText("  "))
	assert.Nil(t, s.Snapshot().Pending.From)
}

func TestCalendarRewritesText(t *testing.T) {
	s := NewSynchronizer(time.UTC)
	from := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	to := day(2024, 3, 9)

	s.SelectCalendar(&from, &to)

	st := s.Snapshot()
	assert.Equal(t, "05/03/2024", st.StartText)
	assert.Equal(t, "09/03/2024", st.EndText)
	assert.True(t, day(2024, 3, 5).Equal(*st.Pending.From))

	s.SelectCalendar(&from, nil)
	st = s.Snapshot()
	assert.Empty(t, st.EndText)
	assert.Nil(t, st.Pending.To)
}

func TestCommitRejectsInvertedRange(t *testing.T) {
	s := NewSynchronizer(time.UTC)
	s.SetStartText("01/01/24")
	_, err := s.Commit()
	require.NoError(t, err)

	s.SetStartText("10/02/24")
	s.SetEndText("01/02/24")
	active, err := s.Commit()

	assert.True(t, requests.IsValidation(err))
	require.NotNil(t, active.From)
	assert.True(t, day(2024, 1, 1).Equal(*active.From))
	assert.Nil(t, active.To)
}

func TestCommitSameDayRange(t *testing.T) {
	s := NewSynchronizer(time.UTC)
	s.SetStartText("15/01/24")
	s.SetEndText("15012024")
	_, err := s.Commit()
	assert.NoError(t, err)
}

func TestClearResetsEverything(t *testing.T) {
	s := NewSynchronizer(time.UTC)
	s.SetStartText("01/01/24")
	s.SetEndText("31/01/24")
	_, err := s.Commit()
	require.NoError(t, err)

	s.Clear()

	assert.Equal(t, State{}, s.Snapshot())
	assert.Nil(t, s.Active())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewSynchronizer(time.UTC)
	s.SetStartText("01/01/24")
	st := s.Snapshot()
	*st.Pending.From = day(1999, 1, 1)

	assert.True(t, day(2024, 1, 1).Equal(*s.Snapshot().Pending.From))
}
