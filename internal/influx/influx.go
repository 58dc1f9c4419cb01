// Package influx wraps the InfluxDB 2.x client behind the narrow
// collaborator interfaces the service consumes: query execution, point
// writing and client provisioning.
package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Rows is a lazy, finite sequence of decoded result rows. Err reports
// stream errors distinctly from exhaustion; Close drains the remainder.
type Rows interface {
	Next() bool
	Record() map[string]any
	Err() error
	Close() error
}

// QueryRunner executes one complete Flux query.
type QueryRunner interface {
	Run(ctx context.Context, flux string) (Rows, error)
}

// PointWriter submits points and flushes them. Flush must be awaited before
// a write is considered durable.
type PointWriter interface {
	WritePoints(ctx context.Context, pts ...*write.Point) error
	Flush(ctx context.Context) error
}

// Provider supplies the query and write collaborators for one org/bucket
// pair.
type Provider interface {
	Runner() QueryRunner
	Writer() PointWriter
	Ping(ctx context.Context) error
	Close()
}

// Client is the Provider implementation over influxdb-client-go.
type Client struct {
	client influxdb2.Client
	query  api.QueryAPI
	write  api.WriteAPIBlocking
}

var _ Provider = (*Client)(nil)

// NewClient connects a Provider to one InfluxDB org and bucket. The
// underlying client is lazy; Ping verifies reachability.
func NewClient(url, token, org, bucket string) *Client {
	c := influxdb2.NewClient(url, token)
	return &Client{
		client: c,
		query:  c.QueryAPI(org),
		write:  c.WriteAPIBlocking(org, bucket),
	}
}

func (c *Client) Runner() QueryRunner { return runner{api: c.query} }
func (c *Client) Writer() PointWriter { return writer{api: c.write} }

func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influxdb not ready")
	}
	return nil
}

func (c *Client) Close() { c.client.Close() }

type runner struct {
	api api.QueryAPI
}

func (r runner) Run(ctx context.Context, flux string) (Rows, error) {
	res, err := r.api.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	return &fluxRows{res: res}, nil
}

type fluxRows struct {
	res *api.QueryTableResult
}

func (r *fluxRows) Next() bool { return r.res.Next() }

func (r *fluxRows) Record() map[string]any {
	return DecodeRecord(r.res.Record().Values())
}

func (r *fluxRows) Err() error { return r.res.Err() }

// Close drains the remaining rows so the underlying response body is
// released.
func (r *fluxRows) Close() error {
	for r.res.Next() {
	}
	return r.res.Err()
}

type writer struct {
	api api.WriteAPIBlocking
}

func (w writer) WritePoints(ctx context.Context, pts ...*write.Point) error {
	return w.api.WritePoint(ctx, pts...)
}

func (w writer) Flush(ctx context.Context) error {
	return w.api.Flush(ctx)
}
