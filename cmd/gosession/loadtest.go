package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/graphql"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/devapi"
)

type loadtestOptions struct {
	users        int
	concurrency  int
	ops          int
	rounds       int
	refreshDelay time.Duration
}

func newLoadtestCmd(root *rootOptions) *cobra.Command {
	opts := &loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive concurrent guard checks and refresh storms against the embedded API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.rounds <= 0 {
				return errors.New("users, concurrency, ops and rounds must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), root.cfg, opts)
		},
	}
	cmd.Flags().IntVar(&opts.users, "users", 32, "number of seeded accounts")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "concurrent requests per user during a refresh storm")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "guard checks with a valid access token")
	cmd.Flags().IntVar(&opts.rounds, "rounds", 20, "client restore rounds against the redis token store")
	cmd.Flags().DurationVar(&opts.refreshDelay, "refresh-delay", 25*time.Millisecond, "artificial latency of the refresh mutation")
	return cmd
}

type seededUser struct {
	user *goSession.User
	pair *goSession.TokenPair
}

func runLoadtest(ctx context.Context, out io.Writer, cfg *config.Config, opts *loadtestOptions) error {
	dev, err := devapi.New(devapi.Config{
		Secret:       []byte(cfg.API.Secret),
		AccessTTL:    cfg.API.AccessTTL,
		RefreshDelay: opts.refreshDelay,
	})
	if err != nil {
		return err
	}
	srv := httptest.NewServer(dev)
	defer srv.Close()

	api, err := graphql.NewClient(srv.URL, graphql.WithHTTPClient(srv.Client()))
	if err != nil {
		return err
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	engineCfg := cfg.EngineConfig()
	engineCfg.Audit.Enabled = false
	engineCfg.Metrics.Enabled = true
	engineCfg.Metrics.EnableLatencyHistograms = true

	server, err := goSession.New().WithConfig(engineCfg).WithAPI(api).WithLogger(quiet).Build()
	if err != nil {
		return err
	}
	defer server.Close()

	users := make([]seededUser, opts.users)
	fmt.Fprintf(out, "seeding %d users...\n", opts.users)
	startSeed := time.Now()
	for i := range users {
		u, err := dev.Seed(fmt.Sprintf("user-%d", i), fmt.Sprintf("user-%d@example.com", i), "load-test-password", "member")
		if err != nil {
			return err
		}
		pair, err := dev.IssuePair(u.ID)
		if err != nil {
			return err
		}
		users[i] = seededUser{user: u, pair: pair}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	guardStats := runGuardPhase(ctx, server, users, opts.ops, opts.concurrency)
	stormStats := runStormPhase(ctx, server, users, opts.concurrency)
	stormRefreshes := dev.RefreshCalls()

	restoreStats, restoreRefreshes, err := runRestorePhase(ctx, out, cfg, engineCfg, api, dev, users[0].user.ID, opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "guard", guardStats)
	printStats(out, "refresh-storm", stormStats)
	fmt.Fprintf(out, "refresh-storm: requests=%d refresh_calls=%d shared=%d\n",
		stormStats.ops, stormRefreshes, server.MetricsSnapshot().Counters[goSession.MetricRefreshShared])
	printStats(out, "client-restore", restoreStats)
	fmt.Fprintf(out, "client-restore: rounds=%d refresh_calls=%d\n", opts.rounds, restoreRefreshes)
	return nil
}

// runGuardPhase checks valid access tokens; no refresh is expected.
func runGuardPhase(ctx context.Context, engine *goSession.Engine, users []seededUser, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops || ctx.Err() != nil {
					return
				}
				u := users[r.Intn(len(users))]
				jar := goSession.NewMemoryCookieJar(map[string]string{
					"accessToken":  u.pair.AccessToken,
					"refreshToken": u.pair.RefreshToken,
				})
				t0 := time.Now()
				res := engine.CheckAuth(ctx, jar)
				d := time.Since(t0)
				if !res.Authenticated || res.Refreshed {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runStormPhase sends concurrency requests per user at once, each carrying only
// the refresh cookie. Requests for the same user share one exchange.
func runStormPhase(ctx context.Context, engine *goSession.Engine, users []seededUser, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		failures  int64
		latencies = make([]time.Duration, 0, len(users)*concurrency)
		mu        sync.Mutex
		gate      = make(chan struct{})
	)

	for _, u := range users {
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func(refreshToken string) {
				defer wg.Done()
				jar := goSession.NewMemoryCookieJar(map[string]string{"refreshToken": refreshToken})
				<-gate
				t0 := time.Now()
				res := engine.CheckAuth(ctx, jar)
				d := time.Since(t0)
				if !res.Authenticated {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}(u.pair.RefreshToken)
		}
	}

	start := time.Now()
	close(gate)
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runRestorePhase drives concurrent restores through one client engine backed by
// redis. Each round stores a pair that is already inside the expiry buffer, so
// every restore wants a refresh and the process-wide slot collapses them.
func runRestorePhase(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	engineCfg goSession.Config,
	api goSession.API,
	dev *devapi.Server,
	userID string,
	opts *loadtestOptions,
) (phaseStats, int64, error) {
	client, cleanup, err := openRedis(out, cfg.Redis.Addr)
	if err != nil {
		return phaseStats{}, 0, err
	}
	defer cleanup()

	engine, err := goSession.New().
		WithConfig(engineCfg).
		WithAPI(api).
		WithEnvironment(goSession.ClientEnvironment).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return phaseStats{}, 0, err
	}
	defer engine.Close()

	var (
		failures  int64
		latencies = make([]time.Duration, 0, opts.rounds*opts.concurrency)
		mu        sync.Mutex
	)
	before := dev.RefreshCalls()

	start := time.Now()
	for round := 0; round < opts.rounds && ctx.Err() == nil; round++ {
		pair, err := dev.IssuePair(userID)
		if err != nil {
			return phaseStats{}, 0, err
		}
		pair.ExpiresIn = 1
		if err := engine.Store().Write(ctx, *pair); err != nil {
			return phaseStats{}, 0, err
		}

		var wg sync.WaitGroup
		gate := make(chan struct{})
		for w := 0; w < opts.concurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				_, err := engine.Restore(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		close(gate)
		wg.Wait()
	}
	total := time.Since(start)
	return computeStats(total, latencies, failures), dev.RefreshCalls() - before, nil
}

// openRedis connects to addr, REDIS_ADDR, or an in-process miniredis.
func openRedis(out io.Writer, addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}
