package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"
	"github.com/minio/minio-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pojntfx/mmap-bandwidth/pkg/report"
	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

func publishedReport() *report.Report {
	r := testReport()
	r.Baseline = []report.Sample{
		{Name: report.WriteAnonymous, Condition: report.AnonymousMemory, Elapsed: time.Millisecond},
	}
	r.Samples = []report.Sample{
		{Name: report.WriteUnmapped, Condition: report.FreshlyMapped, Elapsed: 2 * time.Millisecond},
		{Name: report.ReadUnmapped, Condition: report.RemappedFromCache, Elapsed: 0, Checksum: 0xFFFFFFFFFFFFFFFF, HasChecksum: true},
	}

	return r
}

// redisServer speaks just enough RESP for SET and RPUSH.
type redisServer struct {
	ln    net.Listener
	reply func(args []string) string

	lock     sync.Mutex
	commands [][]string
}

func newRedisServer(t *testing.T, reply func(args []string) string) *redisServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	s := &redisServer{ln: ln, reply: reply}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			go s.serve(conn)
		}
	}()

	return s
}

func (s *redisServer) serve(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}

		s.lock.Lock()
		s.commands = append(s.commands, args)
		s.lock.Unlock()

		if _, err := io.WriteString(conn, s.reply(args)); err != nil {
			return
		}
	}
}

func (s *redisServer) recorded(name string) [][]string {
	s.lock.Lock()
	defer s.lock.Unlock()

	matching := [][]string{}
	for _, args := range s.commands {
		if strings.EqualFold(args[0], name) {
			matching = append(matching, args)
		}
	}

	return matching
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "*")))
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		header, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}

		length, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "$")))
		if err != nil {
			return nil, err
		}

		b := make([]byte, length+2)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}

		args = append(args, string(b[:length]))
	}

	return args, nil
}

func acceptingRedis(args []string) string {
	switch strings.ToUpper(args[0]) {
	case "HELLO":
		return "-ERR unknown command 'HELLO'\r\n"
	case "RPUSH":
		return ":1\r\n"
	case "PING":
		return "+PONG\r\n"
	default:
		return "+OK\r\n"
	}
}

func TestRedisSink_Publish(t *testing.T) {
	srv := newRedisServer(t, acceptingRedis)

	s, err := NewRedisSink(mustParse(t, "redis://"+srv.ln.Addr().String()+"/0?prefix=ci"))
	require.NoError(t, err)
	defer s.Close()

	rep := publishedReport()
	require.NoError(t, s.Publish(context.Background(), rep))

	sets := srv.recorded("SET")
	require.Len(t, sets, 1)
	assert.Equal(t, "ci:2026-10-18T12:00:00Z", sets[0][1])

	var decoded report.Report
	require.NoError(t, json.Unmarshal([]byte(sets[0][2]), &decoded))
	assert.Equal(t, rep.Path, decoded.Path)
	assert.Len(t, decoded.Samples, 2)

	pushes := srv.recorded("RPUSH")
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{"rpush", "ci:runs", "ci:2026-10-18T12:00:00Z"}, pushes[0])
}

func TestRedisSink_PublishFails(t *testing.T) {
	srv := newRedisServer(t, func(args []string) string {
		if strings.EqualFold(args[0], "SET") {
			return "-READONLY You can't write against a read only replica.\r\n"
		}

		return acceptingRedis(args)
	})

	s, err := NewRedisSink(mustParse(t, "redis://"+srv.ln.Addr().String()+"/0"))
	require.NoError(t, err)
	defer s.Close()

	err = s.Publish(context.Background(), publishedReport())
	assert.True(t, errors.Is(err, werr.ErrSink))
	assert.False(t, werr.IsFatal(err))
	assert.Empty(t, srv.recorded("RPUSH"))
}

func TestNewRedisSink_KeepsClientOptions(t *testing.T) {
	s, err := NewRedisSink(mustParse(t, "redis://localhost:6379/1?prefix=ci&dial_timeout=3s&read_timeout=2s"))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "ci", s.prefix)
	assert.Equal(t, 3*time.Second, s.client.Options().DialTimeout)
	assert.Equal(t, 2*time.Second, s.client.Options().ReadTimeout)
	assert.Equal(t, 1, s.client.Options().DB)
}

type putObjectCall struct {
	bucket, object, contentType string
	size                        int64
	body                        []byte
}

type fakeObjectStore struct {
	calls []putObjectCall
	err   error
}

func (f *fakeObjectStore) PutObjectWithContext(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return 0, err
	}

	f.calls = append(f.calls, putObjectCall{
		bucket:      bucketName,
		object:      objectName,
		contentType: opts.ContentType,
		size:        objectSize,
		body:        body,
	})

	return int64(len(body)), nil
}

func TestS3Sink_Publish(t *testing.T) {
	store := &fakeObjectStore{}
	s := &S3Sink{client: store, bucket: "runs", prefix: "hosts/a"}

	rep := publishedReport()
	require.NoError(t, s.Publish(context.Background(), rep))
	require.NoError(t, s.Close())

	require.Len(t, store.calls, 1)
	call := store.calls[0]
	assert.Equal(t, "runs", call.bucket)
	assert.Equal(t, "hosts/a/2026-10-18T12:00:00Z.json", call.object)
	assert.Equal(t, "application/json", call.contentType)
	assert.Equal(t, int64(len(call.body)), call.size)

	var decoded report.Report
	require.NoError(t, json.Unmarshal(call.body, &decoded))
	assert.Len(t, decoded.Baseline, 1)
}

func TestS3Sink_PublishFails(t *testing.T) {
	s := &S3Sink{client: &fakeObjectStore{err: errors.New("access denied")}, bucket: "runs", prefix: defaultPrefix}

	err := s.Publish(context.Background(), publishedReport())
	assert.True(t, errors.Is(err, werr.ErrSink))
	assert.Contains(t, err.Error(), "access denied")
}

type execCall struct {
	stmt   string
	values []interface{}
}

func TestCassandraSink_Publish(t *testing.T) {
	calls := []execCall{}
	closed := false
	s := &CassandraSink{
		exec: func(ctx context.Context, stmt string, values ...interface{}) error {
			calls = append(calls, execCall{stmt: stmt, values: values})

			return nil
		},
		close: func() { closed = true },
		table: "samples",
	}

	rep := publishedReport()
	require.NoError(t, s.Publish(context.Background(), rep))
	require.NoError(t, s.Close())
	assert.True(t, closed)

	require.Len(t, calls, 3)
	runID := gocql.UUIDFromTime(rep.StartedAt)
	names := []string{}
	for _, call := range calls {
		assert.True(t, strings.HasPrefix(call.stmt, "insert into samples "))
		require.Len(t, call.values, 8)
		assert.Equal(t, runID, call.values[0])
		assert.Equal(t, rep.Path, call.values[1])
		assert.Equal(t, rep.Size, call.values[2])

		names = append(names, call.values[3].(string))
	}
	assert.Equal(t, []string{report.WriteAnonymous, report.WriteUnmapped, report.ReadUnmapped}, names)

	// 1 MiB in 2ms.
	assert.Equal(t, int64(2*time.Millisecond), calls[1].values[5])
	assert.InDelta(t, float64(1<<20)/0.002/1e6, calls[1].values[6], 1e-6)

	// Zero elapsed publishes zero throughput; the checksum keeps its bits.
	assert.Equal(t, 0.0, calls[2].values[6])
	assert.Equal(t, int64(-1), calls[2].values[7])
}

func TestCassandraSink_PublishStopsOnError(t *testing.T) {
	attempts := 0
	s := &CassandraSink{
		exec: func(ctx context.Context, stmt string, values ...interface{}) error {
			attempts++

			return errors.New("unavailable")
		},
		table: "samples",
	}

	err := s.Publish(context.Background(), publishedReport())
	assert.True(t, errors.Is(err, werr.ErrSink))
	assert.Equal(t, 1, attempts)
	assert.NoError(t, s.Close())
}
