// Package ingest reads the raw backslash-comma-delimited input datasets and
// feeds them into the pipeline as typed record batches. It is the only place
// raw lines are parsed: a malformed line fails the run instead of being
// half-read downstream.
package ingest

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/middleware"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// maxLineBytes bounds a single input line
const maxLineBytes = 1 << 20

// Ingester publishes the dividend and stock datasets into the pipeline,
// partitioned across the builder and mapper worker sets, with one EOF batch
// per partition as the stage barrier.
type Ingester struct {
	cfg    *common.JoinConfig
	wiring *common.NodeWiring
}

// NewIngester creates an ingester with the given pipeline configuration.
func NewIngester(cfg *common.JoinConfig, wiring *common.NodeWiring) *Ingester {
	return &Ingester{
		cfg:    cfg,
		wiring: wiring,
	}
}

// Run publishes both datasets for a fresh run id. Dividends go out first so
// stage 1 starts immediately; stock batches arriving early are buffered by
// the mappers until the filter is ready.
func (ing *Ingester) Run(connection *amqp.Connection) error {
	pub, err := middleware.NewPublisher(connection, ing.wiring)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer pub.Close()

	clientID := uuid.NewString()
	log.Printf("action: ingest_start | client_id: %s | symbol: %s", clientID, ing.cfg.StockSymbol)

	if err := ing.publishDividends(pub, clientID); err != nil {
		log.Printf("action: ingest_dividends | result: fail | error: %v", err)
		return err
	}

	if err := ing.publishStocks(pub, clientID); err != nil {
		log.Printf("action: ingest_stocks | result: fail | error: %v", err)
		return err
	}

	log.Printf("action: ingest_finished | client_id: %s | result: success", clientID)
	return nil
}

// publishDividends ships the dividend dataset. Every batch is published to
// one builder partition and one mapper partition: builders feed the filter,
// mappers feed the authoritative side of the join.
func (ing *Ingester) publishDividends(pub *middleware.Publisher, clientID string) error {
	batchIndex := 0
	records := make([]protocol.Record, 0, ing.cfg.BatchSize)

	flush := func() error {
		if len(records) == 0 {
			return nil
		}
		batch := protocol.NewBatchMessage(protocol.DatasetTypeDividends, clientID, batchIndex, records, false)
		builderKey := common.BuilderPartitionPrefix + strconv.Itoa(batchIndex%ing.cfg.ExpectedBuilders)
		mapperKey := common.MapperPartitionPrefix + strconv.Itoa(batchIndex%ing.cfg.ExpectedMappers)
		if err := pub.SendWithRoutingKey(batch, builderKey); err != nil {
			return fmt.Errorf("publish dividends to %s: %w", builderKey, err)
		}
		if err := pub.SendWithRoutingKey(batch, mapperKey); err != nil {
			return fmt.Errorf("publish dividends to %s: %w", mapperKey, err)
		}
		batchIndex++
		records = records[:0]
		return nil
	}

	total := 0
	err := forEachLine(ing.cfg.DividendsPath, func(line string) error {
		record, err := protocol.ParseDividendLine(line)
		if err != nil {
			return err
		}
		records = append(records, record)
		total++
		if len(records) >= ing.cfg.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	// One EOF per partition: the builders' barrier and the mappers'
	// dividend-side barrier
	for i := 0; i < ing.cfg.ExpectedBuilders; i++ {
		eof := protocol.NewBatchMessage(protocol.DatasetTypeDividends, clientID, batchIndex, nil, true)
		if err := pub.SendWithRoutingKey(eof, common.BuilderPartitionPrefix+strconv.Itoa(i)); err != nil {
			return fmt.Errorf("publish dividends EOF to builder %d: %w", i, err)
		}
	}
	for i := 0; i < ing.cfg.ExpectedMappers; i++ {
		eof := protocol.NewBatchMessage(protocol.DatasetTypeDividends, clientID, batchIndex, nil, true)
		if err := pub.SendWithRoutingKey(eof, common.MapperPartitionPrefix+strconv.Itoa(i)); err != nil {
			return fmt.Errorf("publish dividends EOF to mapper %d: %w", i, err)
		}
	}

	log.Printf("action: ingest_dividends | result: success | records: %d | batches: %d", total, batchIndex)
	return nil
}

// publishStocks ships the stock dataset across the mapper partitions.
func (ing *Ingester) publishStocks(pub *middleware.Publisher, clientID string) error {
	batchIndex := 0
	records := make([]protocol.Record, 0, ing.cfg.BatchSize)

	flush := func() error {
		if len(records) == 0 {
			return nil
		}
		batch := protocol.NewBatchMessage(protocol.DatasetTypeStocks, clientID, batchIndex, records, false)
		mapperKey := common.MapperPartitionPrefix + strconv.Itoa(batchIndex%ing.cfg.ExpectedMappers)
		if err := pub.SendWithRoutingKey(batch, mapperKey); err != nil {
			return fmt.Errorf("publish stocks to %s: %w", mapperKey, err)
		}
		batchIndex++
		records = records[:0]
		return nil
	}

	total := 0
	err := forEachLine(ing.cfg.StocksPath, func(line string) error {
		record, err := protocol.ParseStockLine(line)
		if err != nil {
			return err
		}
		records = append(records, record)
		total++
		if len(records) >= ing.cfg.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	for i := 0; i < ing.cfg.ExpectedMappers; i++ {
		eof := protocol.NewBatchMessage(protocol.DatasetTypeStocks, clientID, batchIndex, nil, true)
		if err := pub.SendWithRoutingKey(eof, common.MapperPartitionPrefix+strconv.Itoa(i)); err != nil {
			return fmt.Errorf("publish stocks EOF to mapper %d: %w", i, err)
		}
	}

	log.Printf("action: ingest_stocks | result: success | records: %d | batches: %d", total, batchIndex)
	return nil
}

// forEachLine feeds every non-empty line of a file, or of every regular file
// in a directory, to fn. The first error aborts the walk.
func forEachLine(path string, fn func(line string) error) error {
	files, err := listInputFiles(path)
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := scanFile(file, fn); err != nil {
			return err
		}
	}
	return nil
}

// listInputFiles resolves an input path into the files to scan
func listInputFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input %s: %w", path, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", path, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no input files in %s", path)
	}
	return files, nil
}

// scanFile feeds every non-empty line of one file to fn
func scanFile(path string, fn func(line string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input %s: %w", path, err)
	}
	return nil
}
