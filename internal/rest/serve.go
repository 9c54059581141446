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

// Package rest serves snow classification and stored snow line series over HTTP.
package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mlnoga/snowline/internal/classify"
	"github.com/mlnoga/snowline/internal/grid"
	"github.com/mlnoga/snowline/internal/store"
	"go.uber.org/zap"
)

type server struct {
	store *store.Store // may be nil
	log   *zap.SugaredLogger
	runID uuid.UUID
}

// Creates the API router. Without a store, the series and result endpoints answer 503
// and classifications are not persisted
func NewRouter(st *store.Store, log *zap.SugaredLogger) *gin.Engine {
	s := &server{store: st, log: log, runID: uuid.New()}
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/classify", s.postClassify)
			v1.GET("/series/:glacier/:model", s.getSeries)
			v1.GET("/results/:glacier/:date/:model", s.getResult)
		}
	}
	return r
}

// Serves the API on the given address until the listener fails
func Serve(addr string, st *store.Store, log *zap.SugaredLogger) error {
	log.Infof("Serving API on %s", addr)
	return NewRouter(st, log).Run(addr)
}

func (s *server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Infow("request", "method", c.Request.Method, "path", c.Request.URL.Path,
		"status", c.Writer.Status(), "elapsed", time.Since(start))
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

type postClassifyArgs struct {
	Algorithm string      `json:"algorithm" binding:"required"`
	Vis       [][]float64 `json:"vis"`
	Nir       [][]float64 `json:"nir" binding:"required"`
	Dem       [][]float64 `json:"dem" binding:"required"`
	Glacier   string      `json:"glacier"` // with date, persists the result
	Date      string      `json:"date"`
}

type classifyResponse struct {
	Algorithm    classify.Algorithm `json:"algorithm"`
	Status       classify.Status    `json:"status"`
	SLA          *float64           `json:"sla"`
	R2           *float64           `json:"rSquared"`
	SnowFraction float64            `json:"snowFraction"`
	Mask         [][]int            `json:"mask"`
	Stored       bool               `json:"stored"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *server) postClassify(c *gin.Context) {
	var args postClassifyArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	alg, ok := classify.ParseAlgorithm(args.Algorithm)
	if !ok {
		badRequest(c, errors.New("unknown algorithm "+args.Algorithm))
		return
	}
	nir, err := grid.FromRows(args.Nir)
	if err != nil {
		badRequest(c, err)
		return
	}
	dem, err := grid.FromRows(args.Dem)
	if err != nil {
		badRequest(c, err)
		return
	}
	var vis *grid.Grid
	if alg != classify.ASMAG {
		if vis, err = grid.FromRows(args.Vis); err != nil {
			badRequest(c, err)
			return
		}
	}
	var date time.Time
	if args.Date != "" {
		if date, err = time.Parse(store.DateLayout, args.Date); err != nil {
			badRequest(c, err)
			return
		}
	}

	res, err := classify.Run(alg, vis, nir, dem)
	if err != nil {
		badRequest(c, err)
		return
	}
	resp := classifyResponse{
		Algorithm:    res.Algorithm,
		Status:       res.Status,
		SLA:          res.SLAOrNil(),
		R2:           res.R2OrNil(),
		SnowFraction: res.SnowFraction(),
		Mask:         res.Mask.ToRows(),
	}
	if s.store != nil && args.Glacier != "" && args.Date != "" {
		if err := s.store.Put(store.NewRecord(args.Glacier, date, res, s.runID)); err != nil {
			s.log.Errorf("storing result: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp.Stored = true
	}
	c.JSON(http.StatusOK, resp)
}

// Parses the model path parameter, answering 400 on failure
func parseModel(c *gin.Context) (classify.Algorithm, bool) {
	alg, ok := classify.ParseAlgorithm(c.Param("model"))
	if !ok {
		badRequest(c, errors.New("unknown model "+c.Param("model")))
	}
	return alg, ok
}

func (s *server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no database configured"})
		return false
	}
	return true
}

func (s *server) getSeries(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	alg, ok := parseModel(c)
	if !ok {
		return
	}
	recs, err := s.store.Series(c.Param("glacier"), alg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []*store.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

type resultResponse struct {
	*store.Record
	Mask [][]int `json:"mask"`
}

func (s *server) getResult(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	alg, ok := parseModel(c)
	if !ok {
		return
	}
	date, err := time.Parse(store.DateLayout, c.Param("date"))
	if err != nil {
		badRequest(c, err)
		return
	}
	rec, err := s.store.Get(c.Param("glacier"), date, alg)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := resultResponse{Record: rec}
	if rec.Mask != nil {
		resp.Mask = rec.Mask.ToRows()
	}
	c.JSON(http.StatusOK, resp)
}
