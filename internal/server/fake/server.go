// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/odp/internal/server"
)

var _ server.Server = &Server{}

// Server is an in-memory server.Server that only tracks its lifecycle.
type Server struct {
	tb testing.TB

	lock      sync.Mutex
	pipelines server.Pipelines

	startedChan chan struct{}
	closedChan  chan struct{}
	startOnce   sync.Once
	closeOnce   sync.Once
}

func NewFakeServer(tb testing.TB) *Server {
	tb.Helper()

	return &Server{
		tb:          tb,
		startedChan: make(chan struct{}),
		closedChan:  make(chan struct{}),
	}
}

// Factory returns a constructor with the signature of server.NewServer that
// records the pipelines and always returns s.
func (s *Server) Factory() func(context.Context, server.Config, server.Pipelines) server.Server {
	return func(_ context.Context, _ server.Config, pipelines server.Pipelines) server.Server {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.pipelines = pipelines
		return s
	}
}

// Pipelines returns the pipelines the server was built with.
func (s *Server) Pipelines() server.Pipelines {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pipelines
}

func (s *Server) Start() error {
	s.tb.Helper()
	s.startOnce.Do(func() { close(s.startedChan) })
	<-s.closedChan
	return nil
}

func (s *Server) Stop() error {
	s.tb.Helper()
	s.closeOnce.Do(func() { close(s.closedChan) })
	return nil
}

func (s *Server) StartAsync(_ context.Context) {
	s.tb.Helper()
	go func() {
		_ = s.Start()
	}()
}

func (s *Server) StartedServer() <-chan struct{} {
	s.tb.Helper()
	return s.startedChan
}

func (s *Server) StoppedServer() <-chan struct{} {
	s.tb.Helper()
	return s.closedChan
}
