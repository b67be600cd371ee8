package dal

import (
	"context"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
)

// Connection represents the Couchbase connection
type Connection struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	bucketName string
}

// Options configures the Couchbase connection.
type Options struct {
	URL        string
	Username   string
	Password   string
	BucketName string
}

// NewConnection connects to the cluster and waits for the bucket to be
// ready. A connection that cannot be established is a typed
// ErrStoreUnavailable so callers fail fast instead of probing flags.
func NewConnection(opts Options) (*Connection, error) {
	log.Info().
		Str("url", opts.URL).
		Str("bucket", opts.BucketName).
		Msg("Creating Couchbase connection")

	cluster, err := gocb.Connect(opts.URL, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{Username: opts.Username, Password: opts.Password},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to Couchbase cluster")
		return nil, fmt.Errorf("%w: connect cluster: %v", patient.ErrStoreUnavailable, err)
	}

	bucket := cluster.Bucket(opts.BucketName)
	err = bucket.WaitUntilReady(30*time.Second, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue},
	})
	if err != nil {
		log.Error().Err(err).Msg("Couchbase bucket not ready")
		return nil, fmt.Errorf("%w: bucket not ready: %v", patient.ErrStoreUnavailable, err)
	}

	log.Info().Msg("Couchbase connection created successfully")
	return &Connection{
		cluster:    cluster,
		bucket:     bucket,
		bucketName: opts.BucketName,
	}, nil
}

// Close closes the Couchbase connection
func (c *Connection) Close() error {
	if c.cluster != nil {
		return c.cluster.Close(nil)
	}
	return nil
}

// Ping verifies the key-value service is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	_, err := c.bucket.Ping(&gocb.PingOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue},
		Context:      ctx,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", patient.ErrStoreUnavailable, err)
	}
	return nil
}

// GetBucket returns the Couchbase bucket
func (c *Connection) GetBucket() *gocb.Bucket {
	return c.bucket
}

// GetBucketName returns the Couchbase bucket name
func (c *Connection) GetBucketName() string {
	return c.bucketName
}
