package delta

// Action is one entry of the transaction log. The set of implementations is closed.
type Action interface {
	actionKey() string
}

// Format describes the encoding of data files.
type Format struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options,omitempty"`
}

// AddFile adds a data file to the table.
type AddFile struct {
	Path             string            `json:"path"`
	Size             int64             `json:"size"`
	PartitionValues  map[string]string `json:"partitionValues"`
	ModificationTime int64             `json:"modificationTime"`
	DataChange       bool              `json:"dataChange"`
	Stats            string            `json:"stats,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`

	// DeletionVector is only set by tables with the deletionVectors feature,
	// which the protocol gate refuses.
	DeletionVector *DeletionVector `json:"deletionVector,omitempty"`
}

// DeletionVector describes rows of a data file that are logically deleted.
type DeletionVector struct {
	StorageType    string `json:"storageType"`
	PathOrInlineDv string `json:"pathOrInlineDv"`
	Offset         *int32 `json:"offset,omitempty"`
	SizeInBytes    int32  `json:"sizeInBytes"`
	Cardinality    int64  `json:"cardinality"`
}

// RemoveFile marks a data file as logically deleted.
type RemoveFile struct {
	Path                 string            `json:"path"`
	DeletionTimestamp    int64             `json:"deletionTimestamp,omitempty"`
	DataChange           bool              `json:"dataChange"`
	ExtendedFileMetadata bool              `json:"extendedFileMetadata,omitempty"`
	PartitionValues      map[string]string `json:"partitionValues,omitempty"`
	Size                 int64             `json:"size,omitempty"`
}

// Metadata holds the table identity, schema and configuration.
type Metadata struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	Format           Format            `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration,omitempty"`
	CreatedTime      int64             `json:"createdTime,omitempty"`
}

// Protocol declares the minimum reader and writer versions of the table.
type Protocol struct {
	MinReaderVersion int      `json:"minReaderVersion"`
	MinWriterVersion int      `json:"minWriterVersion"`
	ReaderFeatures   []string `json:"readerFeatures,omitempty"`
	WriterFeatures   []string `json:"writerFeatures,omitempty"`
}

// CommitInfo is provenance information. It never changes table state.
type CommitInfo struct {
	Version             *int64                 `json:"version,omitempty"`
	Timestamp           int64                  `json:"timestamp,omitempty"`
	UserID              string                 `json:"userId,omitempty"`
	UserName            string                 `json:"userName,omitempty"`
	Operation           string                 `json:"operation,omitempty"`
	OperationParameters map[string]interface{} `json:"operationParameters,omitempty"`
	ReadVersion         *int64                 `json:"readVersion,omitempty"`
	IsolationLevel      string                 `json:"isolationLevel,omitempty"`
	IsBlindAppend       *bool                  `json:"isBlindAppend,omitempty"`
	EngineInfo          string                 `json:"engineInfo,omitempty"`
}

// Txn records the last version committed by an application.
type Txn struct {
	AppID       string `json:"appId"`
	Version     int64  `json:"version"`
	LastUpdated int64  `json:"lastUpdated,omitempty"`
}

// Ignored is an action kind this reader does not act on.
type Ignored struct {
	Key string
}

func (*AddFile) actionKey() string    { return "add" }
func (*RemoveFile) actionKey() string { return "remove" }
func (*Metadata) actionKey() string   { return "metaData" }
func (*Protocol) actionKey() string   { return "protocol" }
func (*CommitInfo) actionKey() string { return "commitInfo" }
func (*Txn) actionKey() string        { return "txn" }
func (a *Ignored) actionKey() string  { return a.Key }

// Commit is the decoded content of one log version.
type Commit struct {
	Version int64
	Actions []Action
}
