package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"hushhire/pkg/utils/logger"
)

var (
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hushhire",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Duration of evaluator container runs",
		Buckets:   prometheus.DefBuckets,
	})

	runTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hushhire",
		Subsystem: "sandbox",
		Name:      "run_timeouts_total",
		Help:      "Number of runs that hit the timeout",
	})

	runFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hushhire",
		Subsystem: "sandbox",
		Name:      "run_failures_total",
		Help:      "Number of runs that resulted in an error",
	})
)

const containerWorkspace = "/workspace"

// DockerConfig holds the Docker runner settings.
type DockerConfig struct {
	Host          string  `yaml:"host"`
	Image         string  `yaml:"image"`
	MemoryLimitMB int64   `yaml:"memoryLimitMB"`
	CPUQuota      float64 `yaml:"cpuQuota"`
}

// DockerRunner executes the evaluator image with the workspace bind
// mounted, no network and hard memory/CPU caps.
type DockerRunner struct {
	client *client.Client
	cfg    DockerConfig
}

// NewDockerRunner constructs a Docker backed runner.
func NewDockerRunner(cfg DockerConfig) (*DockerRunner, error) {
	if cfg.Image == "" {
		return nil, errors.New("evaluator image is required")
	}
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if cfg.MemoryLimitMB <= 0 {
		cfg.MemoryLimitMB = 512
	}
	if cfg.CPUQuota <= 0 {
		cfg.CPUQuota = 0.5
	}
	return &DockerRunner{client: cli, cfg: cfg}, nil
}

// Run executes one evaluator invocation. The container sees the
// workspace at /workspace; argv carries workspace-relative paths.
func (d *DockerRunner) Run(parent context.Context, req RunRequest) (RunResult, error) {
	if req.WorkspaceDir == "" {
		return RunResult{}, errors.New("workspace dir is required")
	}
	timeout := req.Timeout()
	// The outer deadline leaves room to collect logs after a kill.
	ctx, cancel := context.WithTimeout(parent, timeout+10*time.Second)
	defer cancel()

	cmd := []string{
		filepath.Join(containerWorkspace, filepath.Base(req.CodeFile)),
		req.Language,
		filepath.Join(containerWorkspace, filepath.Base(req.TestDataFile)),
		filepath.Join(containerWorkspace, filepath.Base(req.OutputFile)),
		strconv.Itoa(int(timeout / time.Second)),
	}

	hostCfg := &container.HostConfig{
		AutoRemove:  false,
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   d.cfg.MemoryLimitMB * 1024 * 1024,
			NanoCPUs: int64(d.cfg.CPUQuota * 1e9),
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: req.WorkspaceDir,
			Target: containerWorkspace,
		}},
	}
	config := &container.Config{
		Image:        d.cfg.Image,
		Cmd:          cmd,
		WorkingDir:   containerWorkspace,
		AttachStdout: true,
		AttachStderr: true,
	}

	start := time.Now()
	result := RunResult{}

	resp, err := d.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		runFailures.Inc()
		return result, fmt.Errorf("container create: %w", err)
	}
	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			logger.Error(parent, "remove evaluator container failed",
				zap.String("container_id", containerID), zap.Error(err))
		}
	}()

	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		runFailures.Inc()
		return result, fmt.Errorf("container start: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, timeout)
	defer cancelWait()
	statusCh, errCh := d.client.ContainerWait(waitCtx, containerID, container.WaitConditionNextExit)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-waitCtx.Done():
		waitErr = waitCtx.Err()
	}

	result.Duration = time.Since(start)
	runDuration.Observe(result.Duration.Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || waitCtx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			runTimeouts.Inc()
			killCtx, cancelKill := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelKill()
			if err := d.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
				logger.Error(parent, "kill timed out container failed",
					zap.String("container_id", containerID), zap.Error(err))
			}
		} else if !errors.Is(waitErr, context.Canceled) {
			runFailures.Inc()
			return result, fmt.Errorf("container wait: %w", waitErr)
		}
	}

	if logReader, err := d.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	}); err == nil {
		stdout, stderr, splitErr := splitDockerLogs(logReader)
		_ = logReader.Close()
		if splitErr != nil {
			logger.Warn(parent, "read container logs failed",
				zap.String("container_id", containerID), zap.Error(splitErr))
		} else {
			result.Stdout = stdout
			result.Stderr = stderr
		}
	}

	if result.TimedOut {
		return result, fmt.Errorf("evaluator timed out after %s", timeout)
	}
	return result, nil
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the underlying Docker client.
func (d *DockerRunner) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}
