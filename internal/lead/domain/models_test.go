package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckTransitionTable(t *testing.T) {
	type outcome struct {
		noop bool
		err  error
	}
	ok := outcome{}
	noop := outcome{noop: true}
	back := outcome{err: ErrInvalidTransition}
	term := outcome{err: ErrTerminalStateViolation}

	table := map[Status]map[Status]outcome{
		StatusPending:   {StatusPending: noop, StatusContacted: ok, StatusQualified: ok, StatusConverted: ok, StatusLost: ok},
		StatusContacted: {StatusPending: back, StatusContacted: noop, StatusQualified: ok, StatusConverted: ok, StatusLost: ok},
		StatusQualified: {StatusPending: back, StatusContacted: back, StatusQualified: noop, StatusConverted: ok, StatusLost: ok},
		StatusConverted: {StatusPending: term, StatusContacted: term, StatusQualified: term, StatusConverted: term, StatusLost: term},
		StatusLost:      {StatusPending: term, StatusContacted: term, StatusQualified: term, StatusConverted: term, StatusLost: term},
	}

	for from, row := range table {
		for to, want := range row {
			gotNoop, err := CheckTransition(from, to)
			assert.Equal(t, want.noop, gotNoop, "%s -> %s", from, to)
			if want.err == nil {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, want.err, "%s -> %s", from, to)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(" Qualified ")
	assert.NoError(t, err)
	assert.Equal(t, StatusQualified, status)

	_, err = ParseStatus("won")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = CheckTransition(StatusPending, Status("won"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestLeadImplementsCommissionRecord(t *testing.T) {
	lead := Lead{Commission: 50_000, CommissionPaid: true, Status: StatusConverted}
	assert.Equal(t, int64(50_000), lead.CommissionAmount())
	assert.True(t, lead.IsCommissionPaid())
	assert.True(t, lead.IsConverted())
}
