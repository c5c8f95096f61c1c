// Package cli implements the command-line client (C12): a Cobra tree built
// over the client SDK (C13), grounded in the teacher's boskos/cmd/cli
// package (one persistent client, one subcommand per server operation,
// exit(1) on failure with the message on stderr).
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/epistemix-platform/simcontrol/internal/transport/client"
)

type options struct {
	serverURL     string
	identityToken string
	clientVersion string

	c *client.Client

	register registerOptions
	submit   submitOptions
	runs     runsOptions
	list     listOptions
	info     infoOptions
	uploads  uploadsOptions
}

func (o *options) initializeClient() error {
	c, err := client.NewClient(o.serverURL, o.identityToken, o.clientVersion)
	if err != nil {
		return err
	}
	o.c = c
	return nil
}

type registerOptions struct {
	tags []string
}

type submitOptions struct {
	jobID   int64
	context string
	typ     string
	runID   int64
}

type runsOptions struct {
	jobID       int64
	requestFile string
}

type listOptions struct {
	limit  int
	offset int
}

type infoOptions struct {
	jobID int64
}

type uploadsOptions struct {
	jobID          int64
	includeContent bool
	days           int
	hours          int
	dryRun         bool
	outputDir      string
	force          bool
}

// exit is overridden in tests, matching the teacher's pattern.
var exit = os.Exit

func fail(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	exit(1)
}

// Command builds the epxctl command tree.
func Command() *cobra.Command {
	opts := options{}

	root := &cobra.Command{
		Use:   "epxctl",
		Short: "Command-line client for the simulation control plane",
		Long: `epxctl is a command-line client for the simulation control plane.

It registers jobs, submits job and run artifacts for upload, dispatches runs,
and inspects job/run state and uploaded artifacts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		Args: cobra.NoArgs,
	}
	root.PersistentFlags().StringVar(&opts.serverURL, "server-url", "", "URL of the control-plane server")
	root.PersistentFlags().StringVar(&opts.identityToken, "identity-token", os.Getenv("OFFLINE_TOKEN"), "Offline-Token bearer header, defaults to $OFFLINE_TOKEN")
	root.PersistentFlags().StringVar(&opts.clientVersion, "client-version", "dev", "Fredcli-Version header sent with every request")
	_ = root.MarkPersistentFlagRequired("server-url")

	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Manage simulation jobs",
		Args:  cobra.NoArgs,
	}
	root.AddCommand(jobs)
	jobs.AddCommand(registerCommand(&opts))
	jobs.AddCommand(submitCommand(&opts))
	jobs.AddCommand(runsCommand(&opts))
	jobs.AddCommand(listCommand(&opts))
	jobs.AddCommand(infoCommand(&opts))
	jobs.AddCommand(uploadsCommand(&opts))

	root.AddCommand(versionCommand())

	return root
}

func registerCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new job",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := opts.initializeClient(); err != nil {
				fail(cmd, "failed to create client: %v", err)
				return
			}
			job, err := opts.c.RegisterJob(context.Background(), opts.register.tags)
			if err != nil {
				fail(cmd, "failed to register job: %v", err)
				return
			}
			printJSON(cmd, job)
		},
	}
	cmd.Flags().StringSliceVar(&opts.register.tags, "tags", nil, "Comma-separated tags to attach to the job")
	return cmd
}

func submitCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Request a presigned upload URL for a job or run artifact",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := opts.initializeClient(); err != nil {
				fail(cmd, "failed to create client: %v", err)
				return
			}
			s := opts.submit
			var loc *client.UploadLocation
			var err error
			switch {
			case s.context == "job" && s.typ == "input":
				loc, err = opts.c.SubmitJob(context.Background(), s.jobID)
			case s.context == "job" && s.typ == "config":
				loc, err = opts.c.SubmitJobConfig(context.Background(), s.jobID)
			case s.context == "run" && s.typ == "config":
				loc, err = opts.c.SubmitRunConfig(context.Background(), s.runID)
			default:
				fail(cmd, "unsupported context/type pair: %s/%s", s.context, s.typ)
				return
			}
			if err != nil {
				fail(cmd, "failed to submit artifact: %v", err)
				return
			}
			printJSON(cmd, loc)
		},
	}
	cmd.Flags().Int64Var(&opts.submit.jobID, "job-id", 0, "Job id")
	cmd.Flags().StringVar(&opts.submit.context, "context", "job", "Artifact context: job or run")
	cmd.Flags().StringVar(&opts.submit.typ, "type", "input", "Artifact type: input or config")
	cmd.Flags().Int64Var(&opts.submit.runID, "run-id", 0, "Run id, required when --context=run")
	return cmd
}

func runsCommand(opts *options) *cobra.Command {
	runs := &cobra.Command{
		Use:   "runs",
		Short: "Manage job runs",
		Args:  cobra.NoArgs,
	}
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit runs for a job",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := opts.initializeClient(); err != nil {
				fail(cmd, "failed to create client: %v", err)
				return
			}
			raw, err := os.ReadFile(opts.runs.requestFile)
			if err != nil {
				fail(cmd, "failed to read request file: %v", err)
				return
			}
			var requests []map[string]interface{}
			if err := json.Unmarshal(raw, &requests); err != nil {
				fail(cmd, "failed to parse request file: %v", err)
				return
			}
			reqs := make([]client.RunRequest, 0, len(requests))
			for _, r := range requests {
				reqs = append(reqs, client.RunRequest{JobID: opts.runs.jobID, Request: r})
			}
			responses, err := opts.c.SubmitRuns(context.Background(), reqs)
			if err != nil {
				fail(cmd, "failed to submit runs: %v", err)
				return
			}
			printJSON(cmd, responses)
		},
	}
	submit.Flags().Int64Var(&opts.runs.jobID, "job-id", 0, "Job id")
	submit.Flags().StringVar(&opts.runs.requestFile, "request-file", "", "Path to a JSON array of run-parameter objects")
	runs.AddCommand(submit)
	return runs
}

func listCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := opts.initializeClient(); err != nil {
				fail(cmd, "failed to create client: %v", err)
				return
			}
			jobs, err := opts.c.ListJobs(context.Background(), opts.list.limit, opts.list.offset)
			if err != nil {
				fail(cmd, "failed to list jobs: %v", err)
				return
			}
			printJSON(cmd, jobs)
		},
	}
	cmd.Flags().IntVar(&opts.list.limit, "limit", 0, "Maximum number of jobs to return, 0 for no limit")
	cmd.Flags().IntVar(&opts.list.offset, "offset", 0, "Number of jobs to skip")
	return cmd
}

func infoCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show details for one job",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := opts.initializeClient(); err != nil {
				fail(cmd, "failed to create client: %v", err)
				return
			}
			job, err := opts.c.GetJob(context.Background(), opts.info.jobID)
			if err != nil {
				fail(cmd, "failed to get job %d: %v", opts.info.jobID, err)
				return
			}
			printJSON(cmd, job)
		},
	}
	cmd.Flags().Int64Var(&opts.info.jobID, "job-id", 0, "Job id")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

func uploadsCommand(opts *options) *cobra.Command {
	uploads := &cobra.Command{
		Use:   "uploads",
		Short: "Inspect and manage job/run upload artifacts",
		Args:  cobra.NoArgs,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List uploads for a job",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := opts.initializeClient(); err != nil {
				fail(cmd, "failed to create client: %v", err)
				return
			}
			items, err := opts.c.GetJobUploads(context.Background(), opts.uploads.jobID, opts.uploads.includeContent)
			if err != nil {
				fail(cmd, "failed to list uploads: %v", err)
				return
			}
			printJSON(cmd, items)
		},
	}
	list.Flags().Int64Var(&opts.uploads.jobID, "job-id", 0, "Job id")
	list.Flags().BoolVar(&opts.uploads.includeContent, "include-content", false, "Fetch and classify each upload's content")
	uploads.AddCommand(list)

	archive := &cobra.Command{
		Use:   "archive",
		Short: "Move a job's uploads to cold storage",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := opts.initializeClient(); err != nil {
				fail(cmd, "failed to create client: %v", err)
				return
			}
			current, err := opts.c.GetJobUploads(context.Background(), opts.uploads.jobID, false)
			if err != nil {
				fail(cmd, "failed to list uploads for archival: %v", err)
				return
			}
			urls := make([]string, 0, len(current))
			for _, u := range current {
				if u.URL != "" {
					urls = append(urls, u.URL)
				}
			}
			archived, err := opts.c.ArchiveUploads(context.Background(), urls, opts.uploads.days, opts.uploads.hours, opts.uploads.dryRun)
			if err != nil {
				fail(cmd, "failed to archive uploads: %v", err)
				return
			}
			printJSON(cmd, archived)
		},
	}
	archive.Flags().Int64Var(&opts.uploads.jobID, "job-id", 0, "Job id")
	archive.Flags().IntVar(&opts.uploads.days, "days", 0, "Archive uploads older than this many days")
	archive.Flags().IntVar(&opts.uploads.hours, "hours", 0, "Archive uploads older than this many hours, added to --days")
	archive.Flags().BoolVar(&opts.uploads.dryRun, "dry-run", false, "Report what would be archived without archiving")
	uploads.AddCommand(archive)

	download := &cobra.Command{
		Use:   "download",
		Short: "Download a job's uploads into a local directory",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := opts.initializeClient(); err != nil {
				fail(cmd, "failed to create client: %v", err)
				return
			}
			files, err := opts.c.DownloadJobUploads(context.Background(), opts.uploads.jobID, opts.uploads.outputDir, opts.uploads.force)
			if err != nil {
				fail(cmd, "failed to download uploads: %v", err)
				return
			}
			printJSON(cmd, files)
		},
	}
	download.Flags().Int64Var(&opts.uploads.jobID, "job-id", 0, "Job id")
	download.Flags().StringVar(&opts.uploads.outputDir, "output-dir", ".", "Local directory to write downloaded uploads into")
	download.Flags().BoolVar(&opts.uploads.force, "force", false, "Overwrite files that already exist")
	uploads.AddCommand(download)

	return uploads
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// Version is the epxctl build version, set at release time.
var Version = "dev"

func printJSON(cmd *cobra.Command, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		fail(cmd, "failed to marshal response: %v", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
}
