package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/workflow"
)

// Runs one tariff refresh sweep and exits. Meant for cron; the redis lock
// keeps overlapping invocations (or the in-process ticker) from sweeping the
// same rows twice.
func main() {
	envFile := flag.String("env-file", "", "Optional: path to a .env file to load")
	skipLock := flag.Bool("skip-lock", false, "Run without the redis single-flight lock")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	if !*skipLock {
		config.ConnectRedisWithRetry()
		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(ctx, "lock:tariff-refresh", 5*time.Minute, nil)
			if err == redislock.ErrNotObtained {
				logger.Warn("another tariff refresh is running; exiting")
				return
			}
			if err != nil {
				logger.Warn("could not obtain redis lock; proceeding without it: " + err.Error())
			} else {
				defer func() {
					if releaseErr := lock.Release(ctx); releaseErr != nil {
						logger.Warn("failed to release redis lock: " + releaseErr.Error())
					}
				}()
			}
		}
	}

	result, err := workflow.ProcessTariffRefresh(db, logger, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "tariff refresh failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("tariff refresh: refreshed=%d inserted=%d skipped=%d\n",
		result.Refreshed, result.Inserted, result.Skipped)
}
