// Package api serves the run index and run artifacts over HTTP.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/index"
	"github.com/ethpandaops/mtsoor/pkg/indexer"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	store      index.Store
	indexer    indexer.Indexer
	fileServer *runFileServer
	presigner  *s3Presigner
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
) Server {
	return &server{
		log:  log.WithField("component", "api"),
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start opens the index store, prepares the optional file backends and
// indexer, and starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	s.store = index.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting index store: %w", err)
	}

	if s.cfg.Files != nil {
		if s.cfg.Files.ResultsDir != "" {
			s.fileServer = newRunFileServer(s.log, s.cfg.Files.ResultsDir)

			s.log.Info("Local file serving enabled")
		}

		if s.cfg.Files.S3 != nil {
			presigner, err := newS3Presigner(s.log, s.cfg.Files)
			if err != nil {
				return fmt.Errorf("initializing s3 presigner: %w", err)
			}

			s.presigner = presigner

			s.log.Info("S3 presigned URL generation enabled")
		}
	}

	// Prepare the indexer before building the router, but do NOT start
	// it yet. The HTTP server must be listening first.
	if s.cfg.Indexing != nil && s.cfg.Indexing.Enabled {
		if err := s.prepareIndexing(); err != nil {
			return fmt.Errorf("preparing indexing: %w", err)
		}
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	// Start the background indexer AFTER the API is listening so that
	// the server is reachable while the first (potentially slow) pass runs.
	if s.indexer != nil {
		if err := s.indexer.Start(ctx); err != nil {
			return fmt.Errorf("starting indexer: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.indexer != nil {
		if err := s.indexer.Stop(); err != nil {
			s.log.WithError(err).Warn("Indexer stop error")
		}
	}

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping index store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}

// prepareIndexing builds the run sources and the indexer without
// starting the background goroutine. Call indexer.Start() separately
// after the HTTP server is listening.
func (s *server) prepareIndexing() error {
	var sources []indexer.Source

	if s.cfg.Indexing.ResultsDir != "" {
		sources = append(sources, indexer.NewLocalSource(s.cfg.Indexing.ResultsDir))
	}

	if s.cfg.Indexing.S3 != nil {
		sources = append(sources, indexer.NewS3Source(s.cfg.Indexing.S3))
	}

	if len(sources) == 0 {
		return fmt.Errorf("no run sources configured for indexing")
	}

	idx, err := indexer.NewIndexer(s.log, s.store, sources, s.cfg.Indexing)
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}

	s.indexer = idx

	s.log.Info("Indexing service enabled")

	return nil
}
