package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tech-arch1tect/datacollector-agent/config"
	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"
	"github.com/tech-arch1tect/datacollector-agent/internal/ingest"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"
	"github.com/tech-arch1tect/datacollector-agent/internal/validation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type sendOptions struct {
	logType     string
	file        string
	workspaceID string
	sharedKey   string
	timeout     time.Duration
}

func newSendCommand() *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post records from a file or stdin once and exit",
		Long: `Reads a JSON or YAML document (an object or an array of objects) and posts
it to the given log type. Use --file - or omit --file to read JSON from stdin.
Credentials default to WORKSPACE_ID and SHARED_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.logType, "log-type", "t", "", "custom log table name (required)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "JSON or YAML file to send, - for stdin")
	cmd.Flags().StringVar(&opts.workspaceID, "workspace-id", "", "workspace id (overrides WORKSPACE_ID)")
	cmd.Flags().StringVar(&opts.sharedKey, "shared-key", "", "base64 shared key (overrides SHARED_KEY)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "request timeout (overrides REQUEST_TIMEOUT_SECONDS)")
	_ = cmd.MarkFlagRequired("log-type")

	return cmd
}

func runSend(ctx context.Context, opts *sendOptions, stdin io.Reader, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := validation.ValidateLogType(opts.logType); err != nil {
		return fmt.Errorf("invalid log type %q: %w", opts.logType, err)
	}

	cfg := config.NewConfig()
	if opts.workspaceID != "" {
		cfg.WorkspaceID = opts.workspaceID
	}
	if opts.sharedKey != "" {
		cfg.SharedKey = opts.sharedKey
	}
	if opts.timeout > 0 {
		cfg.RequestTimeoutSeconds = int((opts.timeout + time.Second - 1) / time.Second)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries the command result, so the logger stays quiet unless asked.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger, err := logging.NewLogger(level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("component", "send"))

	data, format, err := readSendInput(opts.file, stdin)
	if err != nil {
		return err
	}

	client, err := datacollector.NewClientFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	service := ingest.NewService(client, nil, nil, logger)
	result, err := service.IngestPayload(ctx, ingest.Request{
		Source:   ingest.SourceCLI,
		LogType:  opts.logType,
		FilePath: opts.file,
	}, data, format)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "sent %d record(s) to %s: status %d, request %s\n",
		result.Records, result.LogType, result.StatusCode, result.RequestID)
	return nil
}

func readSendInput(file string, stdin io.Reader) ([]byte, ingest.Format, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, ingest.MaxBodyBytes+1))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if len(data) > ingest.MaxBodyBytes {
			return nil, "", fmt.Errorf("input exceeds %d bytes", ingest.MaxBodyBytes)
		}
		return data, ingest.FormatJSON, nil
	}

	format, err := ingest.FormatFromPath(file)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, format, nil
}
