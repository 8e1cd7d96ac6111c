package source

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// partLoggingClient logs every part that manager.Downloader fetches successfully.
//
// GetObject may be called from any of the goroutines downloading parts in parallel, hence the atomic tally.
type partLoggingClient struct {
	manager.DownloadAPIClient
	logger *log.Logger
	n      atomic.Int32
}

func (c *partLoggingClient) GetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	output, err := c.DownloadAPIClient.GetObject(ctx, input, optFns...)
	if err == nil {
		c.logger.Printf("downloaded %d parts so far", c.n.Add(1))
	}

	return output, err
}

// newDownloader returns a manager.Downloader that logs its progress to logger if given.
func newDownloader(client manager.DownloadAPIClient, logger *log.Logger) *manager.Downloader {
	if logger == nil {
		return manager.NewDownloader(client)
	}

	return manager.NewDownloader(&partLoggingClient{DownloadAPIClient: client, logger: logger})
}
