package geography

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelmx/pipa/internal/common"
	"github.com/fuelmx/pipa/internal/model"
)

func mustLoad(t *testing.T, csv string) *Resolver {
	t.Helper()
	r, err := loadTable(strings.NewReader(csv), "test.csv")
	require.NoError(t, err)
	return r
}

func obsFor(station, reportDate string) model.CleanedObservation {
	d, err := time.Parse("2006-01-02", reportDate)
	if err != nil {
		panic(err)
	}
	return model.CleanedObservation{
		StationID:  station,
		ReportDate: d,
		Fuel:       model.FuelRegular,
		Flag:       model.FlagOK,
		HasPrice:   true,
	}
}

const historyTable = `station_id,state_code,municipality_code,valid_from,valid_to
PL-0001,JAL,039,2020-01-01,2023-01-01
PL-0001,NLE,019,2023-06-01,
PL-0002,AGU,001,2021-01-01,2022-01-01
`

func TestResolveCoveringInterval(t *testing.T) {
	r := mustLoad(t, historyTable)

	obs := r.Resolve(obsFor("PL-0001", "2022-05-10"))
	assert.Equal(t, model.FlagOK, obs.Flag)
	assert.Equal(t, "JAL", obs.StateCode)
	assert.Equal(t, "039", obs.MunicipalityCode)

	obs = r.Resolve(obsFor("PL-0001", "2024-02-01"))
	assert.Equal(t, "NLE", obs.StateCode, "open-ended interval covers later dates")
}

func TestResolveGapFallsBackToMostRecent(t *testing.T) {
	r := mustLoad(t, historyTable)

	// 2023-03-01 sits in the hole between the JAL interval ending
	// 2023-01-01 and the NLE interval starting 2023-06-01.
	obs := r.Resolve(obsFor("PL-0001", "2023-03-01"))
	assert.Equal(t, model.FlagOK, obs.Flag)
	assert.Equal(t, "JAL", obs.StateCode)
}

func TestResolveExpiredFinalAssignment(t *testing.T) {
	r := mustLoad(t, historyTable)

	// PL-0002's only assignment ended 2022-01-01 with no successor, so a
	// later date does not resolve.
	obs := r.Resolve(obsFor("PL-0002", "2022-06-01"))
	assert.Equal(t, model.FlagRejected, obs.Flag)
	assert.Equal(t, model.ReasonUnresolvedGeography, obs.Reason)
	assert.Empty(t, obs.StateCode)
}

func TestResolveBeforeFirstAssignment(t *testing.T) {
	r := mustLoad(t, historyTable)

	obs := r.Resolve(obsFor("PL-0001", "2019-06-01"))
	assert.Equal(t, model.FlagRejected, obs.Flag)
	assert.Equal(t, model.ReasonUnresolvedGeography, obs.Reason)
}

func TestResolveUnknownStation(t *testing.T) {
	r := mustLoad(t, historyTable)

	obs := r.Resolve(obsFor("PL-9999", "2022-01-01"))
	assert.Equal(t, model.FlagRejected, obs.Flag)
	assert.Equal(t, model.ReasonUnresolvedGeography, obs.Reason)
}

func TestResolveSkipsAlreadyRejected(t *testing.T) {
	r := mustLoad(t, historyTable)

	rejected := obsFor("PL-0001", "2022-05-10")
	rejected.Flag = model.FlagRejected
	rejected.Reason = model.ReasonMalformedField

	obs := r.Resolve(rejected)
	assert.Equal(t, model.ReasonMalformedField, obs.Reason, "earlier rejection reason must survive")
	assert.Empty(t, obs.StateCode)
}

func TestLoadTableOverlapFailsFast(t *testing.T) {
	_, err := loadTable(strings.NewReader(`station_id,state_code,municipality_code,valid_from,valid_to
PL-0001,JAL,039,2020-01-01,2023-01-01
PL-0001,NLE,019,2022-06-01,
`), "test.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrGeographyConflict)
}

func TestLoadTableRejectsInvertedInterval(t *testing.T) {
	_, err := loadTable(strings.NewReader(`station_id,state_code,municipality_code,valid_from,valid_to
PL-0001,JAL,039,2023-01-01,2020-01-01
`), "test.csv")
	require.Error(t, err)
}

func TestLoadTableMissingColumn(t *testing.T) {
	_, err := loadTable(strings.NewReader(`station_id,state_code,valid_from
PL-0001,JAL,2020-01-01
`), "test.csv")
	require.ErrorIs(t, err, common.ErrMissingReference)
}

func TestLoadTableEmpty(t *testing.T) {
	_, err := loadTable(strings.NewReader("station_id,state_code,municipality_code,valid_from,valid_to\n"), "test.csv")
	require.ErrorIs(t, err, common.ErrMissingReference)
}

func TestLoadTableFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geography.csv")
	require.NoError(t, os.WriteFile(path, []byte(historyTable), 0o644))

	r, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.StationCount())

	_, err = LoadTable(filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, common.ErrMissingReference)
}
