package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dohjohansson/forge/internal/logging"
	"github.com/dohjohansson/forge/internal/promexport"
	"github.com/dohjohansson/forge/internal/vkb"
	"github.com/dohjohansson/forge/rhi"
	"github.com/dohjohansson/forge/task"
)

func main() {
	var (
		workers   = flag.Int("workers", 0, "task executor worker count (0: GOMAXPROCS)")
		fanout    = flag.Int("fanout", 8, "number of independent upload tasks to fan out")
		uploadMB  = flag.Int("upload-mb", 1, "size in MiB of each task's staging upload")
		metrics   = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
		verbose   = flag.Bool("v", false, "verbose logging")
		fakeGPU   = flag.Bool("fake-gpu", true, "use the in-memory fake driver instead of a real GPU")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var driver vkb.Driver
	if *fakeGPU {
		driver = vkb.NewFakeDriver()
	} else {
		driver = vkb.NewRealDriver(nil)
	}

	inst, err := rhi.NewInstance(driver, rhi.InstanceConfig{
		ApplicationName: "forge-demo",
		EngineName:      "forge",
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to create instance", "error", err)
		os.Exit(1)
	}
	defer inst.Close()

	device, err := rhi.NewDevice(inst, rhi.DeviceConfig{ReapInterval: time.Millisecond})
	if err != nil {
		logger.Error("failed to create device", "error", err)
		os.Exit(1)
	}
	defer device.Close()

	queue, err := rhi.NewQueue(device, 0, 0)
	if err != nil {
		logger.Error("failed to get queue", "error", err)
		os.Exit(1)
	}
	cmdPool, err := rhi.NewCommandPoolContext(device, "forge-demo", 0, true)
	if err != nil {
		logger.Error("failed to create command pool", "error", err)
		os.Exit(1)
	}
	defer cmdPool.Close()

	executor := task.NewExecutor(task.Config{Workers: *workers, Logger: logger})
	defer executor.Close()

	if *metrics != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(promexport.New(executor.Metrics(), device))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metrics, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", *metrics)
	}

	logger.Info("fanning out upload tasks", "fanout", *fanout, "upload_mb", *uploadMB)
	if err := runUploadFanout(ctx, executor, device, queue, cmdPool, *fanout, *uploadMB); err != nil {
		logger.Error("upload fanout failed", "error", err)
		os.Exit(1)
	}
	logger.Info("upload fanout complete")

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("press ctrl+c to exit")
	<-sigCh
	logger.Info("shutting down")
	cancel()
}

// runUploadFanout submits fanout independent tasks, each staging an
// uploadMB-sized buffer to the device and waiting on its own future, then
// joins all of them. It is the end-to-end exercise of the task executor
// driving GPU submissions: the tasks fill their data concurrently, and
// recordSlot admits one task at a time to record into the shared cmdPool
// and submit, since a CommandPoolContext is single-owner.
func runUploadFanout(ctx context.Context, executor *task.Executor, device *rhi.Device, queue *rhi.Queue, cmdPool *rhi.CommandPoolContext, fanout, uploadMB int) error {
	graph := task.NewGraph(executor)
	size := uploadMB * 1024 * 1024
	futures := make([]*task.Future[uint64], fanout)
	recordSlot := make(chan struct{}, 1)

	for i := 0; i < fanout; i++ {
		idx := i
		_, fut, err := task.CreateTask(graph, func(ctx context.Context, extra ...any) (uint64, error) {
			data := make([]byte, size)
			for j := range data {
				data[j] = byte(idx)
			}
			recordSlot <- struct{}{}
			buf, err := rhi.NewBufferFromBytes(device, queue, cmdPool, fmt.Sprintf("upload-%d", idx), rhi.BufferUsageStorage, data)
			if err != nil {
				<-recordSlot
				return 0, err
			}
			value, err := queue.Submit()
			<-recordSlot
			if err != nil {
				return 0, err
			}
			defer buf.Close()
			return value, nil
		})
		if err != nil {
			return err
		}
		futures[i] = fut
	}

	if err := executor.SubmitGraph(graph); err != nil {
		return err
	}

	for i, fut := range futures {
		value, err := task.Join(ctx, executor, fut)
		if err != nil {
			return fmt.Errorf("upload task %d: %w", i, err)
		}
		if err := device.WaitTimelineValue(ctx, value); err != nil {
			return fmt.Errorf("upload task %d: waiting on timeline value %d: %w", i, value, err)
		}
	}
	return nil
}
