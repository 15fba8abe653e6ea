package sink

import (
	"context"
	"net/url"
	"regexp"

	"github.com/gocql/gocql"

	"github.com/pojntfx/mmap-bandwidth/pkg/report"
	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

var identifier = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

// CassandraSink inserts one row per sample, keyed by a time UUID per run.
type CassandraSink struct {
	exec  func(ctx context.Context, stmt string, values ...interface{}) error
	close func()
	table string
}

func newCluster(u *url.URL) (*gocql.ClusterConfig, string, error) {
	user, pw, err := credentials(u)
	if err != nil {
		return nil, "", err
	}

	keyspaceName := queryOr(u, "keyspace", "mmap_bandwidth")
	tableName := queryOr(u, "table", "samples")
	for _, name := range []string{keyspaceName, tableName} {
		if !identifier.MatchString(name) {
			return nil, "", werr.ErrConfig.WithCauseErrMsg("invalid keyspace or table name " + name)
		}
	}

	cluster := gocql.NewCluster(u.Host)
	cluster.Consistency = gocql.Quorum
	cluster.Authenticator = gocql.PasswordAuthenticator{
		Username: user,
		Password: pw,
	}

	if u.Scheme == "cassandrasecure" {
		cluster.SslOpts = &gocql.SslOptions{
			EnableHostVerification: true,
		}
	}

	cluster.Keyspace = keyspaceName

	return cluster, tableName, nil
}

func NewCassandraSink(ctx context.Context, u *url.URL) (*CassandraSink, error) {
	cluster, tableName, err := newCluster(u)
	if err != nil {
		return nil, err
	}

	keyspaceName := cluster.Keyspace
	{
		cluster.Keyspace = ""

		setupSession, err := cluster.CreateSession()
		if err != nil {
			return nil, werr.ErrSink.WithCauseErr(err)
		}

		if err := setupSession.Query(`create keyspace if not exists ` + keyspaceName + ` with replication = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).WithContext(ctx).Exec(); err != nil {
			setupSession.Close()

			return nil, werr.ErrSink.WithCauseErr(err)
		}

		setupSession.Close()
	}
	cluster.Keyspace = keyspaceName

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, werr.ErrSink.WithCauseErr(err)
	}

	if err := session.Query(`create table if not exists ` + tableName + ` (run_id timeuuid, path text, size bigint, name text, condition text, elapsed_ns bigint, mbps double, checksum bigint, primary key (run_id, name))`).WithContext(ctx).Exec(); err != nil {
		session.Close()

		return nil, werr.ErrSink.WithCauseErr(err)
	}

	return &CassandraSink{
		exec: func(ctx context.Context, stmt string, values ...interface{}) error {
			return session.Query(stmt, values...).WithContext(ctx).Exec()
		},
		close: session.Close,
		table: tableName,
	}, nil
}

func (s *CassandraSink) Publish(ctx context.Context, r *report.Report) error {
	runID := gocql.UUIDFromTime(r.StartedAt)

	samples := append(append([]report.Sample{}, r.Baseline...), r.Samples...)
	for _, sample := range samples {
		mbps, _ := report.Throughput(r.Size, sample.Elapsed)

		if err := s.exec(
			ctx,
			`insert into `+s.table+` (run_id, path, size, name, condition, elapsed_ns, mbps, checksum) values (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			r.Path,
			r.Size,
			sample.Name,
			sample.Condition,
			int64(sample.Elapsed),
			mbps,
			int64(sample.Checksum),
		); err != nil {
			return werr.ErrSink.WithCauseErr(err)
		}
	}

	return nil
}

func (s *CassandraSink) Close() error {
	if s.close != nil {
		s.close()
	}

	return nil
}
