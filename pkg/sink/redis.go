package sink

import (
	"context"
	"net/url"

	"github.com/redis/go-redis/v9"

	"github.com/pojntfx/mmap-bandwidth/pkg/report"
	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

// RedisSink stores each report as JSON under <prefix>:<started-at> and
// appends the key to the <prefix>:runs list.
type RedisSink struct {
	client *redis.Client
	prefix string
}

func NewRedisSink(u *url.URL) (*RedisSink, error) {
	prefix := queryOr(u, "prefix", defaultPrefix)

	query := u.Query()
	query.Del("prefix")

	clean := *u
	clean.RawQuery = query.Encode()

	options, err := redis.ParseURL(clean.String())
	if err != nil {
		return nil, werr.ErrConfig.WithCauseErr(err)
	}

	return &RedisSink{
		client: redis.NewClient(options),
		prefix: prefix,
	}, nil
}

func (s *RedisSink) key(r *report.Report) string {
	return s.prefix + ":" + runKey(r)
}

func (s *RedisSink) Publish(ctx context.Context, r *report.Report) error {
	b, err := encode(r)
	if err != nil {
		return err
	}

	key := s.key(r)
	if err := s.client.Set(ctx, key, b, 0).Err(); err != nil {
		return werr.ErrSink.WithCauseErr(err)
	}

	if err := s.client.RPush(ctx, s.prefix+":runs", key).Err(); err != nil {
		return werr.ErrSink.WithCauseErr(err)
	}

	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
