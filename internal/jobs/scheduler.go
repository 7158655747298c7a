package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/wealthbridge/backend/internal/services"
)

// Scheduler runs the recurring background jobs, currently the daily
// earnings accrual.
type Scheduler struct {
	cron     *cron.Cron
	products *services.ProductService
	redis    *redis.Client
}

func NewScheduler(products *services.ProductService, redisClient *redis.Client) *Scheduler {
	viper.SetDefault("jobs.accrual_schedule", "5 0 * * *")

	return &Scheduler{
		cron:     cron.New(),
		products: products,
		redis:    redisClient,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	schedule := viper.GetString("jobs.accrual_schedule")
	if _, err := s.cron.AddFunc(schedule, s.runAccrual); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[SCHEDULER] Started, accrual schedule %q", schedule)
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[SCHEDULER] Stopped")
}

func (s *Scheduler) runAccrual() {
	ctx := context.Background()
	now := time.Now().UTC()

	// Advisory lock so only one instance accrues per day. The row-level
	// guard in the accrual query keeps this safe even if the lock is lost.
	var lockKey string
	if s.redis != nil {
		lockKey = "accrual_lock:" + now.Format("2006-01-02")
		ok, err := s.redis.SetNX(ctx, lockKey, "1", 23*time.Hour).Result()
		if err != nil {
			log.Printf("[SCHEDULER] Accrual lock check failed, proceeding: %v", err)
			lockKey = ""
		} else if !ok {
			log.Println("[SCHEDULER] Accrual already ran today, skipping")
			return
		}
	}

	credited, err := s.products.AccrueDaily(ctx, now)
	if err != nil {
		log.Printf("[SCHEDULER] Daily accrual failed: %v", err)
		// Release the lock so a retry later today is not shut out; the
		// per-row date guard keeps a rerun from double-crediting.
		if s.redis != nil && lockKey != "" {
			if delErr := s.redis.Del(ctx, lockKey).Err(); delErr != nil {
				log.Printf("[SCHEDULER] Failed to release accrual lock: %v", delErr)
			}
		}
		return
	}
	log.Printf("[SCHEDULER] Daily accrual complete, %d products credited", credited)
}
