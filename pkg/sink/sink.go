// Package sink publishes finished reports to remote stores so runs on
// different hosts can be compared.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pojntfx/mmap-bandwidth/pkg/report"
	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

const defaultPrefix = "mmap-bandwidth"

type Sink interface {
	Publish(ctx context.Context, r *report.Report) error
	Close() error
}

// Open connects to the store named by rawURL. Supported schemes are redis,
// rediss, http, https (S3-compatible) and cassandra, cassandrasecure.
func Open(ctx context.Context, rawURL string) (Sink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, werr.ErrConfig.WithCauseErr(err)
	}

	var s Sink
	switch u.Scheme {
	case "redis", "rediss":
		s, err = NewRedisSink(u)
	case "http", "https":
		s, err = NewS3Sink(ctx, u)
	case "cassandra", "cassandrasecure":
		s, err = NewCassandraSink(ctx, u)
	default:
		return nil, werr.ErrConfig.WithCauseErrMsg(fmt.Sprintf("unsupported sink scheme %q", u.Scheme))
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}

func credentials(u *url.URL) (string, string, error) {
	user := u.User
	if user == nil {
		return "", "", werr.ErrConfig.WithCauseErrMsg("missing credentials")
	}

	pw, ok := user.Password()
	if !ok {
		return "", "", werr.ErrConfig.WithCauseErrMsg("missing password")
	}

	return user.Username(), pw, nil
}

func queryOr(u *url.URL, key, fallback string) string {
	if v := u.Query().Get(key); v != "" {
		return v
	}

	return fallback
}

func runKey(r *report.Report) string {
	return r.StartedAt.UTC().Format(time.RFC3339Nano)
}

func encode(r *report.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		return nil, werr.ErrSink.WithCauseErr(err)
	}

	return buf.Bytes(), nil
}
