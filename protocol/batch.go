package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// BatchMessage represents multiple records sent together for a specific dataset.
// ClientID identifies the pipeline run the batch belongs to; EOF marks the last
// batch a producer emits for that dataset.
type BatchMessage struct {
	Type        int
	DatasetType DatasetType
	ClientID    string
	BatchIndex  int
	Records     []Record
	EOF         bool
}

// NewBatchMessage creates a new batch message
func NewBatchMessage(datasetType DatasetType, clientID string, batchIndex int, records []Record, eof bool) *BatchMessage {
	return &BatchMessage{
		Type:        MessageTypeBatch,
		DatasetType: datasetType,
		ClientID:    clientID,
		BatchIndex:  batchIndex,
		Records:     records,
		EOF:         eof,
	}
}

// EncodeToByteArray encodes a batch message to its wire form:
// [MessageType][DatasetType]ClientID|BatchIndex|EOF|RecordCount|fields...
func EncodeToByteArray(batchMessage *BatchMessage) []byte {
	data := make([]byte, 0)
	data = append(data, MessageTypeBatch)
	data = append(data, byte(batchMessage.DatasetType))

	eofValue := "0"
	if batchMessage.EOF {
		eofValue = "1"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s|%d|%s|%d",
		batchMessage.ClientID, batchMessage.BatchIndex, eofValue, len(batchMessage.Records)))
	for _, record := range batchMessage.Records {
		sb.WriteString("|")
		sb.WriteString(record.Serialize())
	}

	data = append(data, []byte(sb.String())...)
	return data
}

// BatchMessageFromData parses a batch message from its wire form
func BatchMessageFromData(data []byte) (*BatchMessage, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("invalid batch message: too short")
	}

	if data[0] != MessageTypeBatch {
		return nil, fmt.Errorf("invalid batch message: unexpected message type %d", data[0])
	}

	datasetType := DatasetType(data[1])
	recordParts, err := recordPartsFor(datasetType)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(data[2:]), "|")
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid batch message: incomplete header")
	}

	clientID := parts[0]

	batchIndex, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid batch index %q: %w", parts[1], err)
	}

	eof := parts[2] == "1"

	recordCount, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, fmt.Errorf("invalid record count %q: %w", parts[3], err)
	}

	fields := parts[4:]
	if len(fields) != recordCount*recordParts {
		return nil, fmt.Errorf("invalid batch message: expected %d record fields, got %d",
			recordCount*recordParts, len(fields))
	}

	records := make([]Record, 0, recordCount)
	for i := 0; i < recordCount; i++ {
		record, err := makeRecord(datasetType, fields[i*recordParts:(i+1)*recordParts])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, record)
	}

	return &BatchMessage{
		Type:        MessageTypeBatch,
		DatasetType: datasetType,
		ClientID:    clientID,
		BatchIndex:  batchIndex,
		Records:     records,
		EOF:         eof,
	}, nil
}

// recordPartsFor returns the fixed field count of a record of the given dataset
func recordPartsFor(dt DatasetType) (int, error) {
	switch dt {
	case DatasetTypeDividends:
		return DividendRecordParts, nil
	case DatasetTypeStocks:
		return StockRecordParts, nil
	case DatasetTypeBloomFilter:
		return FilterRecordParts, nil
	case DatasetTypeControl:
		return ControlRecordParts, nil
	case DatasetTypeJoinEntries:
		return JoinEntryRecordParts, nil
	case DatasetTypeJoined:
		return JoinedRecordParts, nil
	default:
		return 0, fmt.Errorf("unknown dataset type: %d", dt)
	}
}

// makeRecord builds a record of the given dataset type from its fields
func makeRecord(dt DatasetType, parts []string) (Record, error) {
	switch dt {
	case DatasetTypeDividends:
		return NewDividendRecordFromParts(parts)
	case DatasetTypeStocks:
		return NewStockRecordFromParts(parts)
	case DatasetTypeBloomFilter:
		return NewFilterRecordFromParts(parts)
	case DatasetTypeControl:
		return NewControlRecordFromParts(parts)
	case DatasetTypeJoinEntries:
		return NewJoinEntryRecordFromParts(parts)
	case DatasetTypeJoined:
		return NewJoinedRecordFromParts(parts)
	default:
		return nil, fmt.Errorf("unknown dataset type: %d", dt)
	}
}
