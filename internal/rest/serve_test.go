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

package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/snowline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

// 10x4 scene with elevation 1000+20*row, bright from row 3 upwards
func sceneRows() (vis, nir, dem [][]float64) {
	for r := 0; r < 10; r++ {
		v, h := 0.1, 1000+20*float64(r)
		if r >= 3 {
			v = 0.8
		}
		vis = append(vis, []float64{v, v, v, v})
		nir = append(nir, []float64{v, v, v, v})
		dem = append(dem, []float64{h, h, h, h})
	}
	return vis, nir, dem
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	w := do(t, NewRouter(nil, zap.NewNop().Sugar()), http.MethodGet, "/api/v1/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestClassifyThreshold(t *testing.T) {
	_, nir, dem := sceneRows()
	w := do(t, NewRouter(nil, zap.NewNop().Sugar()), http.MethodPost, "/api/v1/classify",
		gin.H{"algorithm": "asmag", "nir": nir, "dem": dem})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp classifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "asmag", string(resp.Algorithm))
	assert.Equal(t, "ok", string(resp.Status))
	require.NotNil(t, resp.SLA)
	assert.InDelta(t, 1060, *resp.SLA, 1e-9)
	assert.Nil(t, resp.R2)
	assert.InDelta(t, 0.7, resp.SnowFraction, 1e-9)
	require.Len(t, resp.Mask, 10)
	assert.Equal(t, []int{0, 0, 0, 0}, resp.Mask[2])
	assert.Equal(t, []int{1, 1, 1, 1}, resp.Mask[3])
	assert.False(t, resp.Stored)
}

func TestClassifyIndeterminate(t *testing.T) {
	vis, nir, dem := sceneRows()
	w := do(t, NewRouter(nil, zap.NewNop().Sugar()), http.MethodPost, "/api/v1/classify",
		gin.H{"algorithm": "naegeli", "vis": vis, "nir": nir, "dem": dem})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "indeterminate", raw["status"])
	assert.Nil(t, raw["sla"])
	assert.Contains(t, raw, "sla")
}

func TestClassifyBadRequests(t *testing.T) {
	vis, nir, dem := sceneRows()
	r := NewRouter(nil, zap.NewNop().Sugar())
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing fields", gin.H{"algorithm": "asmag"}},
		{"unknown algorithm", gin.H{"algorithm": "otsu2", "nir": nir, "dem": dem}},
		{"ragged rows", gin.H{"algorithm": "asmag", "nir": [][]float64{{1, 2}, {3}}, "dem": dem}},
		{"missing visible band", gin.H{"algorithm": "improved", "nir": nir, "dem": dem}},
		{"shape mismatch", gin.H{"algorithm": "naegeli", "vis": vis[:5], "nir": nir, "dem": dem}},
		{"invalid date", gin.H{"algorithm": "asmag", "nir": nir, "dem": dem, "date": "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/classify", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestWithoutStore(t *testing.T) {
	r := NewRouter(nil, zap.NewNop().Sugar())
	w := do(t, r, http.MethodGet, "/api/v1/series/rhone/asmag", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/results/rhone/2019-08-21/asmag", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStoredSeries(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "snow.db"))
	require.NoError(t, err)
	defer st.Close()
	r := NewRouter(st, zap.NewNop().Sugar())

	_, nir, dem := sceneRows()
	for _, date := range []string{"2019-09-02", "2019-08-21"} {
		w := do(t, r, http.MethodPost, "/api/v1/classify",
			gin.H{"algorithm": "asmag", "nir": nir, "dem": dem, "glacier": "rhone", "date": date})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"stored":true`)
	}

	w := do(t, r, http.MethodGet, "/api/v1/series/rhone/asmag", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var series []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	require.Len(t, series, 2)
	assert.Contains(t, series[0]["date"], "2019-08-21")
	assert.Contains(t, series[1]["date"], "2019-09-02")
	assert.InDelta(t, 1060, series[0]["sla"], 1e-9)

	w = do(t, r, http.MethodGet, "/api/v1/series/aletsch/asmag", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/v1/results/rhone/2019-08-21/asmag", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "rhone", res["glacier"])
	assert.Len(t, res["mask"], 10)

	w = do(t, r, http.MethodGet, "/api/v1/results/rhone/2020-01-01/asmag", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/series/rhone/otsu2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
