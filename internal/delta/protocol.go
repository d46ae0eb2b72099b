package delta

import (
	"fmt"
	"slices"
	"sort"
)

// MaxSupportedReaderVersion is the highest reader protocol version this reader understands.
const MaxSupportedReaderVersion = 3

// implementedReaderFeatures are the reader features that need no support
// beyond what replay and the data file decoder already do.
var implementedReaderFeatures = []string{"timestampNtz", "vacuumProtocolCheck"}

// ImplementedReaderFeatures returns the reader features this reader can honour.
func ImplementedReaderFeatures() []string { return slices.Clone(implementedReaderFeatures) }

// Capabilities is what this reader implements.
type Capabilities struct {
	MaxReaderVersion int
	ReaderFeatures   []string
}

// DefaultCapabilities reads tables that need no reader feature beyond version 1.
func DefaultCapabilities() Capabilities {
	return Capabilities{MaxReaderVersion: 1}
}

// NewCapabilities validates maxReaderVersion and features against what the
// reader implements.
func NewCapabilities(maxReaderVersion int, features []string) (Capabilities, error) {
	if maxReaderVersion < 1 || maxReaderVersion > MaxSupportedReaderVersion {
		return Capabilities{}, fmt.Errorf("max reader version %d outside 1..%d", maxReaderVersion, MaxSupportedReaderVersion)
	}
	for _, f := range features {
		if !slices.Contains(implementedReaderFeatures, f) {
			return Capabilities{}, fmt.Errorf("reader feature %q is not implemented (implemented: %v)", f, implementedReaderFeatures)
		}
	}
	return Capabilities{MaxReaderVersion: maxReaderVersion, ReaderFeatures: slices.Clone(features)}, nil
}

// Supports reports whether feature is both enabled in c and implemented.
func (c Capabilities) Supports(feature string) bool {
	return slices.Contains(c.ReaderFeatures, feature) && slices.Contains(implementedReaderFeatures, feature)
}

// requiredReaderFeatures lists what a reader must implement for p. Reader
// version 2 implies column mapping; version 3 names its features explicitly.
func requiredReaderFeatures(p *Protocol) []string {
	switch {
	case p.MinReaderVersion >= 3:
		return p.ReaderFeatures
	case p.MinReaderVersion == 2:
		return []string{"columnMapping"}
	}
	return nil
}

// Check returns an *UnsupportedProtocolError when p needs more than c provides.
func (c Capabilities) Check(p *Protocol) error {
	if p == nil {
		return nil
	}
	maxVersion := min(c.MaxReaderVersion, MaxSupportedReaderVersion)
	var missing []string
	for _, f := range requiredReaderFeatures(p) {
		if !c.Supports(f) {
			missing = append(missing, f)
		}
	}
	if p.MinReaderVersion <= maxVersion && len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &UnsupportedProtocolError{
		Protocol:         clonedProtocol(*p),
		MaxReaderVersion: maxVersion,
		MissingFeatures:  missing,
	}
}

func clonedProtocol(p Protocol) Protocol {
	p.ReaderFeatures = slices.Clone(p.ReaderFeatures)
	p.WriterFeatures = slices.Clone(p.WriterFeatures)
	return p
}
