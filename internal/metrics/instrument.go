package metrics

import (
	"context"
	"time"

	"github.com/nainya/readerstore/internal/logger"
	"github.com/nainya/readerstore/pkg/docstore"
)

// Client decorates a docstore.Client with metrics and debug logging.
type Client struct {
	next docstore.Client
	m    *Metrics
	log  *logger.Logger
}

// InstrumentClient wraps next. A nil log discards.
func InstrumentClient(next docstore.Client, m *Metrics, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{next: next, m: m, log: log}
}

func (c *Client) observe(table, op string, start time.Time, err error) {
	d := time.Since(start)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.m.RecordStoreOperation(table, op, status, d)
	c.log.LogStoreOperation(table, op, d, err)
}

func (c *Client) Get(ctx context.Context, table, id string) ([]byte, error) {
	start := time.Now()
	doc, err := c.next.Get(ctx, table, id)
	c.observe(table, "get", start, err)
	return doc, err
}

func (c *Client) GetByIndex(ctx context.Context, table, index string, key docstore.Key) ([]byte, error) {
	start := time.Now()
	doc, err := c.next.GetByIndex(ctx, table, index, key)
	c.observe(table, "get_by_index", start, err)
	return doc, err
}

func (c *Client) Scan(ctx context.Context, table string, q docstore.Query) ([][]byte, error) {
	start := time.Now()
	docs, err := c.next.Scan(ctx, table, q)
	c.observe(table, "scan", start, err)
	return docs, err
}

func (c *Client) Count(ctx context.Context, table string, q docstore.Query) (int64, error) {
	start := time.Now()
	n, err := c.next.Count(ctx, table, q)
	c.observe(table, "count", start, err)
	return n, err
}

func (c *Client) Upsert(ctx context.Context, table, id string, doc []byte) ([]byte, error) {
	start := time.Now()
	stored, err := c.next.Upsert(ctx, table, id, doc)
	c.observe(table, "upsert", start, err)
	return stored, err
}

func (c *Client) Update(ctx context.Context, table, id string, exprs ...docstore.Expr) error {
	start := time.Now()
	err := c.next.Update(ctx, table, id, exprs...)
	c.observe(table, "update", start, err)
	return err
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	start := time.Now()
	err := c.next.Delete(ctx, table, id)
	c.observe(table, "delete", start, err)
	return err
}

func (c *Client) DeleteByIndex(ctx context.Context, table, index string, key docstore.Key) (int64, error) {
	start := time.Now()
	n, err := c.next.DeleteByIndex(ctx, table, index, key)
	c.observe(table, "delete_by_index", start, err)
	return n, err
}

func (c *Client) GroupCount(ctx context.Context, table, field string, values []string) (map[string]int64, error) {
	start := time.Now()
	counts, err := c.next.GroupCount(ctx, table, field, values)
	c.observe(table, "group_count", start, err)
	return counts, err
}

func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.next.Ping(ctx)
	c.observe("", "ping", start, err)
	return err
}

func (c *Client) Close() error {
	return c.next.Close()
}
