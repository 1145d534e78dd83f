package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/ingest"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/middleware"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/node"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/prom"
)

func main() {
	initializeLog()

	cfg := common.GetConfig()
	nodeConfig := cfg.GetNodeConfig()
	joinConfig := cfg.GetJoinConfig()

	wiring := common.BuildWiringForRole(nodeConfig.Role, nodeConfig.NodeID)

	go common.StartHealthServer(cfg.GetHealthPort())
	go prom.StartMetricsServer(cfg.GetMetricsAddr())

	if nodeConfig.Role == common.RoleIngest {
		runIngest(joinConfig, wiring)
		return
	}

	handler := node.NewHandler(nodeConfig.Role, nodeConfig.NodeID, joinConfig)
	if handler == nil {
		log.Printf("action: create_handler | result: fail | error: unknown role %q", nodeConfig.Role)
		os.Exit(1)
	}

	joinNode := node.NewNode(handler, middleware.NewQueueManager(wiring))

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := joinNode.Run(); err != nil {
			log.Printf("action: join_node_main | result: fail | error: %v", err)
			os.Exit(1)
		}
	}()

	sig := <-sigChan
	log.Printf("action: join_node_shutdown | result: in_progress | msg: received signal %v", sig)

	joinNode.Shutdown()
}

// runIngest publishes both datasets and exits; the ingest role is a batch
// task, not a long-lived consumer.
func runIngest(joinConfig *common.JoinConfig, wiring *common.NodeWiring) {
	qm := middleware.NewQueueManager(wiring)
	if err := qm.Connect(); err != nil {
		log.Printf("action: ingest_connect | result: fail | error: %v", err)
		os.Exit(1)
	}
	defer qm.Close()

	ingester := ingest.NewIngester(joinConfig, wiring)
	if err := ingester.Run(qm.Connection); err != nil {
		log.Printf("action: ingest_main | result: fail | error: %v", err)
		os.Exit(1)
	}
}

// initializeLog initializes the logging configuration
func initializeLog() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("")
}
