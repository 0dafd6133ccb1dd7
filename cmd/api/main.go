package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"

	"github.com/deep60/Nexus-Security-sub000/auth"
	"github.com/deep60/Nexus-Security-sub000/bounty"
	"github.com/deep60/Nexus-Security-sub000/config"
	"github.com/deep60/Nexus-Security-sub000/consensus"
	"github.com/deep60/Nexus-Security-sub000/db"
	"github.com/deep60/Nexus-Security-sub000/dispute"
	"github.com/deep60/Nexus-Security-sub000/ledger"
	"github.com/deep60/Nexus-Security-sub000/reputation"
	"github.com/deep60/Nexus-Security-sub000/reward"
	"github.com/deep60/Nexus-Security-sub000/submission"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using environment as-is")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	ldg := ledger.NewPGLedger(pool)
	reputationService := reputation.NewService(pool)
	rewardEngine := reward.NewEngine(ldg)
	resolver := consensus.NewResolver(pool, ldg, rewardEngine, reputationService, cfg.Engine)

	authService := auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenExpiryMin)*time.Minute)
	bountyService := bounty.NewService(pool, ldg, cfg.Engine)
	submissionService := submission.NewService(pool, ldg, resolver, cfg.Engine)
	disputeService := dispute.NewService(pool, ldg, cfg.Engine)

	log.Printf("services ready: auth=%t bounty=%t submission=%t dispute=%t",
		authService != nil, bountyService != nil, submissionService != nil, disputeService != nil)

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	system := auth.SystemCaller()

	// Every minute: settle active bounties whose deadline has passed.
	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			n, err := resolver.SweepExpired(ctx, system, time.Now())
			if err != nil {
				log.Printf("sweep expired bounties: %v", err)
				return
			}
			if n > 0 {
				log.Printf("swept %d expired bounties", n)
			}
		}),
	); err != nil {
		log.Fatalf("register sweep job: %v", err)
	}

	// Daily attempt; the 30-day gate inside RunDecay decides whether the
	// decay actually fires.
	if _, err := sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			n, err := reputationService.RunDecay(ctx, system, time.Now())
			if err != nil {
				if errors.Is(err, reputation.ErrDecayTooSoon) {
					return
				}
				log.Printf("reputation decay: %v", err)
				return
			}
			log.Printf("decayed reputation for %d engines", n)
		}),
	); err != nil {
		log.Fatalf("register decay job: %v", err)
	}

	sched.Start()
	defer sched.Shutdown()

	log.Printf("verdict engine ready on %s", cfg.Server.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Printf("shutting down")
}
