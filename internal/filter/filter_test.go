package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelmx/pipa/internal/model"
)

var march = time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

func okObs(station, state string, price float64) model.CleanedObservation {
	return model.CleanedObservation{
		StationID:     station,
		ReportDate:    march,
		StateCode:     state,
		Fuel:          model.FuelRegular,
		Flag:          model.FlagOK,
		PricePerLiter: price,
		HasPrice:      true,
	}
}

func withVolume(obs model.CleanedObservation, volume float64) model.CleanedObservation {
	obs.Volume = volume
	obs.HasVolume = true
	return obs
}

// cohort builds a five-station JAL cohort with tightly clustered prices.
func cohort() []model.CleanedObservation {
	prices := []float64{23.1, 23.4, 23.5, 23.6, 23.9}
	obs := make([]model.CleanedObservation, 0, len(prices))
	for i, p := range prices {
		obs = append(obs, okObs(station(i), "JAL", p))
	}
	return obs
}

func station(i int) string {
	return string(rune('A'+i)) + "-001"
}

func TestApplyRejectsPriceOutlier(t *testing.T) {
	observations := append(cohort(), okObs("X-001", "JAL", 2349.0)) // decimal slip

	f := New(DefaultMADThreshold)
	f.Fit(observations)

	out := f.Apply(observations[len(observations)-1])
	assert.Equal(t, model.FlagRejected, out.Flag)
	assert.Equal(t, model.ReasonPriceOutlier, out.Reason)
	assert.Contains(t, out.Detail, "cohort median")

	// The clustered prices survive the screen.
	for _, obs := range cohort() {
		out := f.Apply(obs)
		assert.NotEqual(t, model.FlagRejected, out.Flag, "price %.2f", obs.PricePerLiter)
	}
}

func TestApplySmallCohortSkipsScreening(t *testing.T) {
	observations := []model.CleanedObservation{
		okObs("A-001", "JAL", 23.5),
		okObs("B-001", "JAL", 23.6),
		okObs("C-001", "JAL", 2349.0), // would be an outlier in a big cohort
	}

	f := New(DefaultMADThreshold)
	f.Fit(observations)

	out := f.Apply(observations[2])
	assert.NotEqual(t, model.FlagRejected, out.Flag, "cohorts under %d prices are not screened", minCohortSize)
}

func TestApplyZeroSpreadCohortRejectsDeviation(t *testing.T) {
	// Nine identical Ps23.00 prices plus one decimal-entry slip. With MAD = 0
	// any deviating price is infinitely many MADs out, so it must be rejected
	// rather than slipping through and dragging the cohort mean to ~43.7.
	observations := make([]model.CleanedObservation, 0, 10)
	for i := 0; i < 9; i++ {
		observations = append(observations, okObs(station(i), "JAL", 23.0))
	}
	slip := okObs("X-001", "JAL", 230.0)
	observations = append(observations, slip)

	f := New(DefaultMADThreshold)
	f.Fit(observations)

	out := f.Apply(slip)
	assert.Equal(t, model.FlagRejected, out.Flag)
	assert.Equal(t, model.ReasonPriceOutlier, out.Reason)
	assert.Contains(t, out.Detail, "zero-spread cohort median")

	// Prices on the median, or within rounding distance of it, survive.
	out = f.Apply(observations[0])
	assert.NotEqual(t, model.FlagRejected, out.Flag)
	near := okObs("Y-001", "JAL", 23.001)
	out = f.Apply(near)
	assert.NotEqual(t, model.FlagRejected, out.Flag, "rounding noise is not an outlier")
}

func TestApplyInsufficientData(t *testing.T) {
	f := New(DefaultMADThreshold)
	f.Fit(nil)

	obs := model.CleanedObservation{
		StationID:  "A-001",
		ReportDate: march,
		StateCode:  "JAL",
		Fuel:       model.FuelRegular,
		Flag:       model.FlagOK,
	}
	out := f.Apply(obs)
	assert.Equal(t, model.FlagRejected, out.Flag)
	assert.Equal(t, model.ReasonInsufficientData, out.Reason)
}

func TestApplyImputesMissingVolume(t *testing.T) {
	observations := []model.CleanedObservation{
		withVolume(okObs("A-001", "JAL", 23.1), 10000),
		withVolume(okObs("B-001", "JAL", 23.4), 14000),
		withVolume(okObs("C-001", "JAL", 23.5), 12000),
		withVolume(okObs("D-001", "JAL", 23.6), 12000),
		okObs("E-001", "JAL", 23.9), // no volume
	}

	f := New(DefaultMADThreshold)
	f.Fit(observations)

	out := f.Apply(observations[4])
	assert.Equal(t, model.FlagImputed, out.Flag)
	assert.Equal(t, model.ReasonMissingVolume, out.Reason)
	assert.True(t, out.VolumeImputed)
	require.True(t, out.HasVolume)
	assert.InDelta(t, 12000, out.Volume, 1e-9, "imputed value is the cohort mean")
}

func TestApplyImputationWithoutCohortVolumes(t *testing.T) {
	observations := cohort() // nobody reports volume

	f := New(DefaultMADThreshold)
	f.Fit(observations)

	out := f.Apply(observations[0])
	assert.Equal(t, model.FlagImputed, out.Flag)
	assert.Equal(t, model.ReasonMissingVolume, out.Reason)
	assert.False(t, out.HasVolume, "nothing to impute from")
	assert.False(t, out.VolumeImputed)
}

func TestFitVolumeMeanExcludesPriceOutliers(t *testing.T) {
	observations := []model.CleanedObservation{
		withVolume(okObs("A-001", "JAL", 23.1), 10000),
		withVolume(okObs("B-001", "JAL", 23.4), 14000),
		withVolume(okObs("C-001", "JAL", 23.5), 12000),
		withVolume(okObs("D-001", "JAL", 23.6), 12000),
		// Outlier price with an enormous volume: must not poison the mean.
		withVolume(okObs("E-001", "JAL", 2349.0), 9e9),
		okObs("F-001", "JAL", 23.5), // missing volume, gets the imputation
	}

	f := New(DefaultMADThreshold)
	f.Fit(observations)

	out := f.Apply(observations[5])
	require.Equal(t, model.FlagImputed, out.Flag)
	assert.InDelta(t, 12000, out.Volume, 1e-9)
}

func TestApplyScreensUnresolvedGeographyAgainstNationalCohort(t *testing.T) {
	observations := cohort()

	national := okObs("X-001", "", 2349.0)
	national.Flag = model.FlagRejected
	national.Reason = model.ReasonUnresolvedGeography
	observations = append(observations, national)

	f := New(DefaultMADThreshold)
	f.Fit(observations)

	out := f.Apply(national)
	assert.Equal(t, model.FlagRejected, out.Flag)
	assert.Equal(t, model.ReasonPriceOutlier, out.Reason,
		"an unresolved-geography record with an implausible price is an outlier, not a national contribution")

	sane := okObs("Y-001", "", 23.5)
	sane.Flag = model.FlagRejected
	sane.Reason = model.ReasonUnresolvedGeography
	out = f.Apply(sane)
	assert.Equal(t, model.ReasonUnresolvedGeography, out.Reason,
		"a plausible price keeps its unresolved-geography tag for national-only aggregation")
}

func TestApplyPassesThroughOtherRejections(t *testing.T) {
	f := New(DefaultMADThreshold)
	f.Fit(nil)

	obs := model.CleanedObservation{
		Flag:   model.FlagRejected,
		Reason: model.ReasonMalformedField,
		Detail: "unparseable report date",
	}
	out := f.Apply(obs)
	assert.Equal(t, obs, out)
}

func TestQuantileNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, 5.0, quantile(sorted, 0.5))
	assert.Equal(t, 1.0, quantile(sorted, 0.1))
	assert.Equal(t, 9.0, quantile(sorted, 0.9))
	assert.Equal(t, 3.0, quantile([]float64{1, 3, 7}, 0.5))
}

func TestMAD(t *testing.T) {
	assert.Equal(t, 1.0, mad([]float64{1, 2, 3, 4, 5}))
	assert.Equal(t, 0.0, mad([]float64{5, 5, 5}))
	assert.Equal(t, 0.0, mad(nil))
}
