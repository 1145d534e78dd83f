package protocol

// Message types (first byte on the wire)
const (
	MessageTypeBatch    = 1
	MessageTypeResponse = 2
)

// DatasetType represents the type of dataset carried by a batch
type DatasetType int

const (
	DatasetTypeDividends DatasetType = iota + 1
	DatasetTypeStocks

	DatasetTypeBloomFilter // serialized per-builder filter, stage 1 output
	DatasetTypeControl     // pipeline control signals (filter ready)

	DatasetTypeJoinEntries // keyed entries headed for the reconciler
	DatasetTypeJoined      // confirmed (symbol|date, close) rows
)

// String returns string representation of DatasetType
func (dt DatasetType) String() string {
	switch dt {
	case DatasetTypeDividends:
		return "DIVIDENDS"
	case DatasetTypeStocks:
		return "STOCKS"
	case DatasetTypeBloomFilter:
		return "BLOOM_FILTER"
	case DatasetTypeControl:
		return "CONTROL"
	case DatasetTypeJoinEntries:
		return "JOIN_ENTRIES"
	case DatasetTypeJoined:
		return "JOINED"
	default:
		return "UNKNOWN"
	}
}

// Record interface for all record types
type Record interface {
	Serialize() string
	GetType() DatasetType
}
