// Command simrunner is the simulation runner (C10): invoked once per run by
// the batch executor with JOB_ID and RUN_ID in its environment, it downloads
// job uploads, prepares and validates the FRED configuration, executes the
// simulator, and uploads results back to the control plane.
package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/epistemix-platform/simcontrol/internal/runner"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := runner.ConfigFromEnv()
	if err != nil {
		logrus.WithError(err).Error("invalid runner configuration")
		os.Exit(1)
	}

	workflow, err := runner.NewWorkflow(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialize workflow")
		os.Exit(1)
	}

	if _, err := workflow.Execute(context.Background()); err != nil {
		logrus.WithError(err).Error("simulation workflow failed")
		os.Exit(1)
	}
}
