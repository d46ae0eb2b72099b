package delta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var requiredFields = map[string][]string{
	"add":      {"path", "size", "modificationTime", "dataChange", "partitionValues"},
	"remove":   {"path", "dataChange"},
	"metaData": {"id", "format", "schemaString", "partitionColumns"},
	"protocol": {"minReaderVersion", "minWriterVersion"},
	"txn":      {"appId", "version"},
}

// DecodeAction parses a single log record into its typed action.
// Unknown action kinds decode to *Ignored.
func DecodeAction(record []byte) (Action, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(record, &top); err != nil {
		return nil, malformed("%v", err)
	}
	if len(top) != 1 {
		return nil, malformed("expected exactly one action, found %d keys", len(top))
	}

	for key, body := range top {
		var action Action
		switch key {
		case "add":
			action = &AddFile{}
		case "remove":
			action = &RemoveFile{}
		case "metaData":
			action = &Metadata{}
		case "protocol":
			action = &Protocol{}
		case "commitInfo":
			action = &CommitInfo{}
		case "txn":
			action = &Txn{}
		default:
			return &Ignored{Key: key}, nil
		}
		if err := decodeBody(key, body, action); err != nil {
			return nil, err
		}
		return action, nil
	}
	return nil, malformed("empty record")
}

func decodeBody(key string, body json.RawMessage, into Action) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return malformed("%s must be an object", key)
	}
	for _, name := range requiredFields[key] {
		raw, ok := fields[name]
		if !ok || bytes.Equal(raw, []byte("null")) {
			return malformed("%s.%s is required", key, name)
		}
	}
	if err := json.Unmarshal(body, into); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return malformed("%s.%s: expected %s, got %s", key, typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return malformed("%s: %v", key, err)
	}
	if add, ok := into.(*AddFile); ok && add.Path == "" {
		return malformed("add.path is empty")
	}
	if rm, ok := into.(*RemoveFile); ok && rm.Path == "" {
		return malformed("remove.path is empty")
	}
	return nil
}

// DecodeCommit decodes newline-delimited records. Blank lines are skipped.
// Failures are reported as *LogError with the 1-based line number.
func DecodeCommit(path string, version int64, data []byte) (*Commit, error) {
	commit := &Commit{Version: version}
	line := 0
	for len(data) > 0 {
		line++
		var record []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			record, data = data[:i], data[i+1:]
		} else {
			record, data = data, nil
		}
		record = bytes.TrimSpace(record)
		if len(record) == 0 {
			continue
		}
		action, err := DecodeAction(record)
		if err != nil {
			located := *err.(*LogError)
			located.Path, located.Version, located.Line = path, version, line
			return nil, &located
		}
		commit.Actions = append(commit.Actions, action)
	}
	return commit, nil
}

func malformed(format string, args ...interface{}) error {
	return &LogError{Kind: ErrMalformedLogEntry, Version: -1, Err: fmt.Errorf(format, args...)}
}
