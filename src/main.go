// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"codeforge/src/generator"
	"codeforge/src/logging"
	"codeforge/src/notifier"
	"codeforge/src/processor"
	"codeforge/src/publisher"
	"codeforge/src/store"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on process environment")
	}

	var (
		DB_USER          = os.Getenv("DB_USER")
		DB_PASSWORD      = os.Getenv("DB_PASSWORD")
		DB_NAME          = os.Getenv("DB_NAME")
		DB_HOST          = os.Getenv("DB_HOST")
		DB_PORT          = os.Getenv("DB_PORT")
		ANTHROPIC_KEY    = os.Getenv("ANTHROPIC_API_KEY")
		ANTHROPIC_MODEL  = os.Getenv("ANTHROPIC_MODEL")
		GITHUB_TOKEN     = os.Getenv("GITHUB_TOKEN")
		GITHUB_USERNAME  = os.Getenv("GITHUB_USERNAME")
		WEBHOOK_SECRET   = os.Getenv("WEBHOOK_SECRET")
	)

	// Enable SSL For Production
	db, err := sql.Open("postgres", fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=require",
		DB_USER, DB_PASSWORD, DB_NAME, DB_HOST, DB_PORT))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	st := store.New(db)
	if err := st.EnsureSchema(context.Background()); err != nil {
		panic(fmt.Sprintf("failed to set up database schema: %v", err))
	}

	// Generate Unique Instance ID
	instanceID := uuid.New().String()
	fmt.Printf("Starting %s with UUID: %s\n", serviceName, instanceID)

	// Initialize the LLM and GitHub clients. Failures here do not crash the
	// process: the service starts degraded and reports it on /health.
	initError := ""

	gen, err := generator.New(ANTHROPIC_KEY, ANTHROPIC_MODEL)
	if err != nil {
		initError = fmt.Sprintf("LLM initialization failed: %v", err)
		fmt.Println("FATAL: " + initError)
	}

	pub, err := publisher.New(GITHUB_TOKEN, GITHUB_USERNAME)
	if err != nil {
		if initError != "" {
			initError += "; "
		}
		initError += fmt.Sprintf("GitHub initialization failed: %v", err)
		fmt.Printf("FATAL: GitHub initialization failed: %v\n", err)
	}

	// Notifier timeout is generous: the evaluation endpoint may be slow.
	notifyTimeout := notifier.DefaultTimeout
	if raw := os.Getenv("NOTIFY_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			fmt.Printf("Warning: failed to parse NOTIFY_TIMEOUT '%s', defaulting to %s: %v\n",
				raw, notifier.DefaultTimeout, err)
		} else {
			notifyTimeout = parsed
		}
	}

	var proc *processor.Processor
	if initError == "" {
		proc = processor.New(st, gen, pub, notifier.New(notifyTimeout))
	}

	// Setup Service OpenTelemetry Metrics
	logging.InitializeFloatCounter("service_requests_total", "Total number of requests to the service", "Request")
	logging.InitializeFloatCounter("service_requests_failed", "Number of failed requests to the service", "Request")
	logging.InitializeFloatCounter("service_requests_succeeded", "Number of succeeded requests to the service", "Request")
	logging.InitializeFloatCounter("service_builds_total", "Number of round-1 builds", "Request")
	logging.InitializeFloatCounter("service_revisions_total", "Number of round-2 revisions", "Request")

	apiPort := os.Getenv("API_PORT")
	if apiPort == "" {
		apiPort = "8080"
	}

	stats := NewServiceStats(instanceID)
	srv := NewAPIServer(proc, stats, WEBHOOK_SECRET, initError)

	if err := StartAPIServer(apiPort, srv); err != nil {
		panic(err)
	}
}
