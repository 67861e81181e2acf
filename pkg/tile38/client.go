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

// Package tile38 is the HTTP client of the spatial engine. It submits
// compiled line commands and registers external resources.
package tile38

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/apache/skywalking-kql/pkg/kql"
	"github.com/apache/skywalking-kql/pkg/logger"
)

const system = "tile38"

var _ kql.SpatialEngine = (*Client)(nil)

// Client talks to one spatial engine instance.
type Client struct {
	client *resty.Client
	l      *logger.Logger
}

// NewClient returns a Client bound to addr, e.g. http://127.0.0.1:9851.
func NewClient(addr string) *Client {
	return &Client{
		client: resty.New().SetBaseURL(addr),
		l:      logger.GetLogger(system),
	}
}

type queryRequest struct {
	Filter  *kql.Value `json:"filter,omitempty"`
	Command string     `json:"command"`
}

type queryResponse struct {
	Err  string    `json:"err"`
	Rows []kql.Row `json:"rows"`
	Ok   bool      `json:"ok"`
}

// Query runs a compiled command with its opaque filter.
func (c *Client) Query(ctx context.Context, command string, filter *kql.Value) ([]kql.Row, error) {
	if e := c.l.Debug(); e.Enabled() {
		e.Str("command", command).Msg("querying the spatial engine")
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(queryRequest{Command: command, Filter: filter}).
		Post("/query")
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
	if !out.Ok {
		return nil, &kql.BackendError{System: system, Op: "query", Err: errors.New(out.Err)}
	}
	return out.Rows, nil
}

type registerRequest struct {
	URL      string `json:"url"`
	IDField  string `json:"id_field"`
	Geometry string `json:"geometry"`
}

type registerResponse struct {
	Err string `json:"err"`
	Key string `json:"key"`
	Ok  bool   `json:"ok"`
}

// Register submits an external resource URL and returns the key the engine
// assigned to it.
func (c *Client) Register(ctx context.Context, url, idField, geometry string) (string, error) {
	if e := c.l.Debug(); e.Enabled() {
		e.Str("url", url).Str("id_field", idField).Str("geometry", geometry).Msg("registering a resource")
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(registerRequest{URL: url, IDField: idField, Geometry: geometry}).
		Post("/resources")
	if err != nil {
		return "", &kql.BackendError{System: system, Op: "register", Err: err}
	}
	if resp.IsError() {
		return "", &kql.BackendError{System: system, Op: "register", Err: errors.Errorf("status %s", resp.Status())}
	}
	var out registerResponse
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return "", &kql.BackendError{System: system, Op: "register", Err: err}
	}
	if !out.Ok {
		return "", &kql.BackendError{System: system, Op: "register", Err: errors.New(out.Err)}
	}
	return out.Key, nil
}
