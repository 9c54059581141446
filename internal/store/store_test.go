// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mlnoga/snowline/internal/classify"
	"github.com/mlnoga/snowline/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "snow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func testResult(alg classify.Algorithm, sla float64) *classify.Result {
	m := grid.NewMask(3, 5)
	for i := range m.Data {
		m.Data[i] = i%3 == 0
	}
	res := &classify.Result{Algorithm: alg, Status: classify.StatusOK, Mask: m, SLA: sla, SLADefined: true}
	if alg == classify.NaegeliImproved {
		res.R2, res.HasR2 = 0.87, true
	}
	return res
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)
	runID := uuid.New()
	res := testResult(classify.NaegeliImproved, 2840)
	require.NoError(t, s.Put(NewRecord("RGI60-11.00897", date("2018-08-19"), res, runID)))

	r, err := s.Get("RGI60-11.00897", date("2018-08-19"), classify.NaegeliImproved)
	require.NoError(t, err)
	assert.Equal(t, classify.NaegeliImproved, r.Model)
	assert.Equal(t, classify.StatusOK, r.Status)
	require.NotNil(t, r.SLA)
	assert.Equal(t, 2840.0, *r.SLA)
	require.NotNil(t, r.R2)
	assert.InDelta(t, 0.87, *r.R2, 1e-12)
	assert.InDelta(t, 5.0/15, r.SnowFraction, 1e-12)
	assert.Equal(t, runID, r.RunID)
	assert.False(t, r.CreatedAt.IsZero())
	require.NotNil(t, r.Mask)
	assert.Equal(t, res.Mask.Data, r.Mask.Data)
	assert.Equal(t, 3, r.Mask.Rows)
	assert.Equal(t, 5, r.Mask.Cols)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("RGI60-11.00897", date("2018-08-19"), classify.ASMAG)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutReplaces(t *testing.T) {
	s := openTestStore(t)
	d := date("2018-08-19")
	require.NoError(t, s.Put(NewRecord("g", d, testResult(classify.ASMAG, 2700), uuid.New())))

	undefined := &classify.Result{Algorithm: classify.ASMAG, Status: classify.StatusNoData, Mask: grid.NewMask(3, 5)}
	second := uuid.New()
	require.NoError(t, s.Put(NewRecord("g", d, undefined, second)))

	r, err := s.Get("g", d, classify.ASMAG)
	require.NoError(t, err)
	assert.Nil(t, r.SLA)
	assert.Nil(t, r.R2)
	assert.Equal(t, classify.StatusNoData, r.Status)
	assert.Equal(t, second, r.RunID)
}

func TestSeries(t *testing.T) {
	s := openTestStore(t)
	for i, d := range []string{"2018-09-10", "2018-07-02", "2018-08-19"} {
		require.NoError(t, s.Put(NewRecord("g", date(d), testResult(classify.Naegeli, 2600+float64(i)*50), uuid.New())))
	}
	require.NoError(t, s.Put(NewRecord("g", date("2018-08-19"), testResult(classify.ASMAG, 100), uuid.New())))
	require.NoError(t, s.Put(NewRecord("other", date("2018-08-19"), testResult(classify.Naegeli, 100), uuid.New())))

	series, err := s.Series("g", classify.Naegeli)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, date("2018-07-02"), series[0].Date)
	assert.Equal(t, date("2018-08-19"), series[1].Date)
	assert.Equal(t, date("2018-09-10"), series[2].Date)
	assert.Equal(t, 2650.0, *series[0].SLA)
	assert.Nil(t, series[0].Mask)
}

func TestMaskEncoding(t *testing.T) {
	m := grid.NewMask(3, 7)
	m.Data[0], m.Data[8], m.Data[20] = true, true, true
	buf := encodeMask(m)
	assert.Len(t, buf, 3)
	back, err := decodeMask(buf, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, m.Data, back.Data)

	_, err = decodeMask(buf, 4, 7)
	assert.Error(t, err)
}
