package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureConfig holds Azure Blob Storage settings.
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	SASToken      string `mapstructure:"sas_token"`
	ContainerName string `mapstructure:"container_name"`
	Endpoint      string `mapstructure:"endpoint"`
	Prefix        string `mapstructure:"prefix"`
}

// AzureStore serves blobs from one container.
type AzureStore struct {
	client *azblob.Client
	config AzureConfig
}

// NewAzureStore creates an Azure Blob backed store. It authenticates with the
// account key, or with the SAS token appended to the endpoint when no key is set.
func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	if cfg.AccountName == "" || cfg.ContainerName == "" {
		return nil, fmt.Errorf("account name and container name are required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}

	var client *azblob.Client
	var err error
	if cfg.AccountKey != "" {
		cred, credErr := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
	} else {
		if cfg.SASToken != "" {
			endpoint = endpoint + "?" + cfg.SASToken
		}
		client, err = azblob.NewClientWithNoCredential(endpoint, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}
	return &AzureStore{client: client, config: cfg}, nil
}

func (s *AzureStore) key(p string) string {
	return scoped(s.config.Prefix, p)
}

func (s *AzureStore) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	prefix := dirPrefix(s.key(dir))
	pager := s.client.NewListBlobsFlatPager(s.config.ContainerName, &azblob.ListBlobsFlatOptions{
		Prefix: to.Ptr(prefix),
	})

	var objects []ObjectInfo
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			name := *item.Name
			if !directChild(prefix, name) {
				continue
			}
			info := ObjectInfo{Path: Join(dir, name[len(prefix):])}
			if item.Properties != nil {
				if item.Properties.ContentLength != nil {
					info.Size = *item.Properties.ContentLength
				}
				if item.Properties.LastModified != nil {
					info.ModTime = *item.Properties.LastModified
				}
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}

func (s *AzureStore) Read(ctx context.Context, p string) ([]byte, error) {
	return s.download(ctx, p, nil)
}

func (s *AzureStore) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	return s.download(ctx, p, &azblob.DownloadStreamOptions{
		Range: azblob.HTTPRange{Offset: offset, Count: length},
	})
}

func (s *AzureStore) download(ctx context.Context, p string, opts *azblob.DownloadStreamOptions) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.config.ContainerName, s.key(p), opts)
	if err != nil {
		return nil, mapAzureError(p, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", p, err)
	}
	return data, nil
}

func (s *AzureStore) Stat(ctx context.Context, p string) (ObjectInfo, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.config.ContainerName).NewBlobClient(s.key(p))
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		return ObjectInfo{}, mapAzureError(p, err)
	}
	info := ObjectInfo{Path: p}
	if props.ContentLength != nil {
		info.Size = *props.ContentLength
	}
	if props.LastModified != nil {
		info.ModTime = *props.LastModified
	}
	return info, nil
}

func mapAzureError(p string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return fmt.Errorf("failed to access blob %s: %w", p, err)
}
