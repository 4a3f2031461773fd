// Package registry lists the tests of a run by asking the interface
// executable for the suite tree of every test file.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-suite/proctree"
	"github.com/ethereum-optimism/infra/op-suite/protocol"
	"github.com/ethereum-optimism/infra/op-suite/timer"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// outputWaitDelay bounds how long a listing that exited is kept waiting for
// processes it left behind to close its output.
const outputWaitDelay = time.Second

// ListFunc returns the suite tree of one test file.
type ListFunc func(ctx context.Context, file string) (*types.SuiteNode, error)

// Config contains registry configuration
type Config struct {
	Log                log.Logger
	Interface          string
	InterfaceParameter json.RawMessage
	Options            types.RegisterOptions
	// Parallel bounds the number of concurrent listings; zero means unbounded.
	Parallel  int
	CacheSize int
	Clock     clock.Clock
}

// Registry lists and flattens the tests of a run.
type Registry struct {
	config Config
	log    log.Logger
	cache  *listingCache
	list   ListFunc
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Interface == "" {
		return nil, fmt.Errorf("interface executable is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}
	cache, err := newListingCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing cache: %w", err)
	}
	r := &Registry{
		config: cfg,
		log:    cfg.Log.New("component", "registry"),
		cache:  cache,
	}
	r.list = r.listProcess
	return r, nil
}

// List returns the runnable tests of files, in file order. Listings from a
// previous call are discarded first.
func (r *Registry) List(ctx context.Context, files []string) ([]types.TestInfo, error) {
	r.cache.purge()

	trees := make([]*types.SuiteNode, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if r.config.Parallel > 0 {
		g.SetLimit(r.config.Parallel)
	}
	for i, file := range files {
		g.Go(func() error {
			tree, err := r.tree(gctx, file)
			if err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tests := Flatten(files, trees, r.config.Options)
	r.log.Debug("Tests listed", "files", len(files), "tests", len(tests))
	return tests, nil
}

func (r *Registry) tree(ctx context.Context, file string) (*types.SuiteNode, error) {
	key := cacheKey(r.config.Interface, r.config.InterfaceParameter, file)
	if tree, ok := r.cache.get(key); ok {
		return tree, nil
	}
	tree, err := r.list(ctx, file)
	if err != nil {
		return nil, err
	}
	r.cache.add(key, tree)
	return tree, nil
}

// listProcess runs the interface executable in list mode for file. The
// process tree is killed when the listing timeout elapses or ctx ends.
func (r *Registry) listProcess(ctx context.Context, file string) (*types.SuiteNode, error) {
	ctx, span := otel.Tracer("op-suite/registry").Start(ctx, "list tests")
	defer span.End()
	span.SetAttributes(attribute.String("file", file))

	cmd := exec.Command(r.config.Interface, protocol.ListArgs(r.config.InterfaceParameter, file)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = outputWaitDelay
	proctree.Isolate(cmd)

	if err := cmd.Start(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &ListingError{File: file, Err: err}
	}
	pid := cmd.Process.Pid

	kill := func() {
		if err := proctree.Kill(pid); err != nil {
			r.log.Warn("Failed to kill listing process", "file", file, "pid", pid, "err", err)
		}
	}
	var timedOut atomic.Bool
	var t *timer.Timer
	if timeout := r.config.Options.ListingTimeout; timeout > 0 {
		t = timer.New(r.config.Clock, timeout, func() {
			timedOut.Store(true)
			kill()
		})
	}
	stop := context.AfterFunc(ctx, kill)

	err := cmd.Wait()
	if errors.Is(err, exec.ErrWaitDelay) {
		r.log.Warn("Listing process left children holding its output", "file", file)
		err = nil
	}
	stop()
	if t != nil {
		t.Cancel()
	}

	switch {
	case timedOut.Load():
		err = &ListingError{
			File:    file,
			Timeout: true,
			Err:     fmt.Errorf("no suite tree after %s", r.config.Options.ListingTimeout),
		}
	case ctx.Err() != nil:
		err = &ListingError{File: file, Err: ctx.Err()}
	case err != nil:
		err = &ListingError{File: file, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))}
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var tree types.SuiteNode
	if err := json.Unmarshal(stdout.Bytes(), &tree); err != nil {
		return nil, &ListingError{File: file, Err: fmt.Errorf("invalid suite tree: %w", err)}
	}
	if tree.Type != types.NodeSuite {
		return nil, &ListingError{File: file, Err: fmt.Errorf("root node is a %q, not a suite", tree.Type)}
	}
	return &tree, nil
}
