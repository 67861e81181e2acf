// Licensed to Apache Software Foundation (ASF) under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Apache Software Foundation (ASF) licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package metabase is the HTTP client of the record service. Besides record
// queries it backs the service registry and the per-level area lookups, each
// served by a dedicated card.
package metabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/apache/skywalking-kql/pkg/kql"
	"github.com/apache/skywalking-kql/pkg/logger"
)

const system = "metabase"

var (
	_ kql.RecordService   = (*Client)(nil)
	_ kql.ServiceRegistry = (*Client)(nil)
	_ kql.AreaLookup      = (*Client)(nil)
)

// Config locates the record service and the cards the compiler relies on:
// one listing the services and one per administrative area level.
type Config struct {
	AreaCards    map[int]int
	Addr         string
	ServicesCard int
}

// Client talks to one record service instance.
type Client struct {
	client       *resty.Client
	l            *logger.Logger
	areaCards    map[int]int
	servicesCard int
}

// NewClient returns a Client for the given configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		client:       resty.New().SetBaseURL(cfg.Addr),
		l:            logger.GetLogger(system),
		areaCards:    cfg.AreaCards,
		servicesCard: cfg.ServicesCard,
	}
}

type queryRequest struct {
	Parameters any `json:"parameters"`
}

type queryResponse struct {
	Rows []kql.Row `json:"rows"`
}

func (c *Client) query(ctx context.Context, cardID int, params any) ([]kql.Row, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(queryRequest{Parameters: params}).
		Post(fmt.Sprintf("/api/card/%d/query", cardID))
	if err != nil {
		return nil, &kql.BackendError{System: system, Op: "query", Err: err}
	}
	if resp.IsError() {
		return nil, &kql.BackendError{System: system, Op: "query", Err: errors.Errorf("status %s", resp.Status())}
	}
	var out queryResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &kql.BackendError{System: system, Op: "query", Err: err}
	}
	return out.Rows, nil
}

// Query runs a parameterized record query. The card_id parameter picks the
// card and the rest become its parameters.
func (c *Client) Query(ctx context.Context, params map[string]*kql.Value) ([]kql.Row, error) {
	card, ok := params["card_id"]
	if !ok {
		return nil, &kql.BackendError{System: system, Op: "query", Err: errors.New("missing card_id parameter")}
	}
	cardID, err := cardIDOf(card)
	if err != nil {
		return nil, &kql.BackendError{System: system, Op: "query", Err: err}
	}
	body := make(map[string]*kql.Value, len(params))
	for k, v := range params {
		if k == "card_id" {
			continue
		}
		body[k] = v
	}
	if e := c.l.Debug(); e.Enabled() {
		e.Int("card", cardID).Int("params", len(body)).Msg("querying the record service")
	}
	return c.query(ctx, cardID, body)
}

func cardIDOf(v *kql.Value) (int, error) {
	switch v.Type {
	case kql.ValueTypeNumber:
		return int(v.Number), nil
	case kql.ValueTypeString:
		id, err := strconv.Atoi(v.Str)
		if err != nil {
			return 0, errors.WithMessage(err, "card_id is not numeric")
		}
		return id, nil
	default:
		return 0, errors.Errorf("card_id cannot be a %s", v.Type)
	}
}

// FetchAll lists the known services as a name to id mapping. Rows without
// both fields are skipped.
func (c *Client) FetchAll(ctx context.Context) (map[string]float64, error) {
	rows, err := c.query(ctx, c.servicesCard, map[string]any{})
	if err != nil {
		return nil, err
	}
	services := make(map[string]float64, len(rows))
	for _, row := range rows {
		name, okName := stringCell(row, "name")
		id, okID := numberCell(row, "id")
		if !okName || !okID {
			if e := c.l.Debug(); e.Enabled() {
				e.Interface("row", row).Msg("service row lacks name or id, skipping")
			}
			continue
		}
		services[name] = id
	}
	return services, nil
}

// Lookup resolves one area name at one administrative level through the
// card configured for that level. A missing card, no matching row, or a row
// without an id all count as a miss, not an error.
func (c *Client) Lookup(ctx context.Context, level int, name string, parentID *float64) (*kql.Area, error) {
	cardID, ok := c.areaCards[level]
	if !ok {
		if e := c.l.Debug(); e.Enabled() {
			e.Int("level", level).Msg("no card configured for the level")
		}
		return nil, nil
	}
	params := map[string]any{"name": name}
	if parentID != nil {
		params["parent_id"] = *parentID
	}
	rows, err := c.query(ctx, cardID, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	id, ok := numberCell(rows[0], "id")
	if !ok {
		return nil, nil
	}
	geometry, _ := stringCell(rows[0], "geometry")
	return &kql.Area{ID: id, Geometry: geometry}, nil
}

func stringCell(row kql.Row, key string) (string, bool) {
	s, ok := row[key].(string)
	return s, ok
}

func numberCell(row kql.Row, key string) (float64, bool) {
	n, ok := row[key].(float64)
	return n, ok
}
