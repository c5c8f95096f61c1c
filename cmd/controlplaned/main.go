// Command controlplaned runs the simulation control plane's HTTP server: it
// wires the in-memory repositories and AWS-backed (or dummy, under
// ENVIRONMENT=TESTING) gateways to the controller facade and serves the
// control-plane HTTP transport (C11).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/epistemix-platform/simcontrol/internal/controller"
	gbatch "github.com/epistemix-platform/simcontrol/internal/gateway/batch"
	"github.com/epistemix-platform/simcontrol/internal/gateway/results"
	"github.com/epistemix-platform/simcontrol/internal/gateway/upload"
	"github.com/epistemix-platform/simcontrol/internal/platform/batchconfig"
	"github.com/epistemix-platform/simcontrol/internal/repository"
	"github.com/epistemix-platform/simcontrol/internal/transport/httpapi"
	"github.com/epistemix-platform/simcontrol/internal/usecase"
)

var (
	listenAddr    = flag.String("listen-addr", ":8080", "Address to serve the control-plane HTTP API on")
	bucket        = flag.String("bucket", "", "S3 bucket backing job/run/result uploads")
	region        = flag.String("region", "us-east-1", "AWS region for S3 and Batch clients")
	jobQueue      = flag.String("batch-job-queue", "", "AWS Batch job queue to submit runs to")
	jobDefinition = flag.String("batch-job-definition", "", "AWS Batch job definition to submit runs with")
	batchConfig   = flag.String("batch-config", "", "Optional YAML file of {batchJobQueue, batchJobDefinition} watched for hot-reload, overriding the flags above")
	logLevel      = flag.String("log-level", "info", fmt.Sprintf("Log level is one of %v.", logrus.AllLevels))
)

func main() {
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid log level specified")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	deps, batchGateway, err := buildDeps()
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize dependencies")
	}

	if *batchConfig != "" {
		watchBatchConfig(*batchConfig, batchGateway)
	}

	ctrl := controller.New(deps, batchGateway)
	handler := httpapi.NewHandler(ctrl)

	reg := prometheus.NewRegistry()
	httpapi.RegisterMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.Handle("/", httpapi.WithRequestID(httpapi.TraceHandler(httpapi.NewControlPlaneSimplifier(), handler)))

	srv := &http.Server{
		Addr:         *listenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		logrus.WithField("addr", *listenAddr).Info("serving control plane")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("control-plane server exited unexpectedly")
		}
	}()

	waitForShutdown(srv)
}

func buildDeps() (*usecase.Deps, gbatch.Gateway, error) {
	deps := &usecase.Deps{
		Jobs: repository.NewInMemoryJobRepository(),
		Runs: repository.NewInMemoryRunRepository(),
	}

	if os.Getenv("ENVIRONMENT") == "TESTING" {
		deps.Uploads = upload.NewDummyGateway()
		deps.Results = results.NewDummyGateway()
		return deps, gbatch.NewDummyGateway(), nil
	}

	if *bucket == "" || *jobQueue == "" || *jobDefinition == "" {
		return nil, nil, fmt.Errorf("--bucket, --batch-job-queue, and --batch-job-definition are required outside ENVIRONMENT=TESTING")
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(*region)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	deps.Uploads = upload.NewS3Gateway(sess, *bucket)
	deps.Results = results.NewS3Gateway(sess, *bucket, *region)
	return deps, gbatch.NewAWSBatchGateway(sess, *jobQueue, *jobDefinition), nil
}

// watchBatchConfig loads path once to set the gateway's initial submission
// target, then applies every subsequent on-disk change without a restart.
// Only *gbatch.AWSBatchGateway has a mutable target; the dummy gateway used
// under ENVIRONMENT=TESTING ignores it.
func watchBatchConfig(path string, batchGateway gbatch.Gateway) {
	awsGW, ok := batchGateway.(*gbatch.AWSBatchGateway)
	if !ok {
		logrus.Warn("--batch-config set but gateway has no mutable target, ignoring")
		return
	}

	cfg, err := batchconfig.Load(path)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load batch config")
	}
	awsGW.SetTarget(cfg.JobQueue, cfg.JobDefinition)

	batchconfig.Watch(path, func(cfg *batchconfig.Config, err error) {
		if err != nil {
			logrus.WithError(err).Error("failed to reload batch config, keeping previous target")
			return
		}
		awsGW.SetTarget(cfg.JobQueue, cfg.JobDefinition)
		logrus.WithFields(logrus.Fields{"jobQueue": cfg.JobQueue, "jobDefinition": cfg.JobDefinition}).Info("reloaded batch config")
	})
}

func waitForShutdown(srv *http.Server) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logrus.Info("shutting down control plane")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("error during graceful shutdown")
	}
}
