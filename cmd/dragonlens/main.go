package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/tacusci/logging/v2"
	"github.com/takama/daemon"
	"github.com/tauraamui/dragonlens/internal/config"
	"github.com/tauraamui/dragonlens/pkg/camera"
	"github.com/tauraamui/dragonlens/pkg/configdef"
	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/dragonlens/pkg/initgate"
	"github.com/tauraamui/dragonlens/pkg/journal"
	"github.com/tauraamui/dragonlens/pkg/journal/repos"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/dragonlens/pkg/pipeline"
	"github.com/tauraamui/dragonlens/pkg/recognition"
	"github.com/tauraamui/dragonlens/pkg/render"
	"gocv.io/x/gocv"
)

const (
	name        = "dragon_lens"
	description = "Dragon lens service which recognises codes in live camera frames"
)

type Service struct {
	daemon.Daemon
}

// Setup writes the default config and creates the recognition journal.
func (service *Service) Setup() (string, error) {
	log.Info("Setting up dragonlens service...")

	err := config.DefaultCreator().Create()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	err = journal.Setup()
	if err != nil {
		if !errors.Is(err, journal.ErrDBAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	return "Setup successful...", nil
}

func (service *Service) RemoveSetup() (string, error) {
	log.Info("Removing setup for dragonlens service...")
	if err := journal.Destroy(); err != nil {
		log.Error("unable to delete database file: %s", err.Error())
	}
	if err := config.DefaultDestroyer().Destroy(); err != nil {
		log.Error("unable to delete config file: %s", err.Error())
	}

	return "Removing setup successful...", nil
}

func (service *Service) Manage() (string, error) {
	usage := "Usage: dragonlens setup | remove-setup | install | remove | start | stop | status"

	if len(os.Args) > 1 {
		command := os.Args[1]
		switch command {
		case "setup":
			return service.Setup()
		case "remove-setup":
			return service.RemoveSetup()
		case "install":
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	return run()
}

func run() (string, error) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("Starting dragon lens...")

	cfg, err := config.DefaultResolver().Resolve()
	if err != nil {
		return "", err
	}
	if cfg.Debug {
		log.SetLevel("debug")
	}

	var recognizer recognition.Recognizer
	err = initgate.Imaging.Open(
		pipeline.ImagingProbe(),
		initgate.Step{Name: "recognizer", Run: func() (err error) {
			recognizer, err = recognition.Resolve(cfg.Recognizer)
			return err
		}},
	)
	if err != nil {
		return "", err
	}
	if closer, ok := recognizer.(io.Closer); ok {
		defer closer.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("Connecting to camera: [%s@%s]...", cfg.Camera.Title, cfg.Camera.Address)
	src, err := camera.ConnectWithCancel(ctx, cfg.Camera.Title, cfg.Camera.Address, camera.Settings{
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.FPS,
		Rotation: frame.Rotation(cfg.Camera.Rotation),
	}, camera.Resolve(cfg.Camera.Backend))
	if err != nil {
		return "", err
	}
	defer src.Close()
	log.Info("Connected successfully to camera: [%s]", cfg.Camera.Title)

	sink, err := render.Resolve(cfg.Renderer)
	if err != nil {
		return "", err
	}
	loop := render.NewLoop(sink)

	opts := pipeline.Options{DropOnRecognitionFailure: cfg.Pipeline.DropOnRecognitionFailure}
	var recorder *journal.Recorder
	if cfg.Journal.Enabled {
		db, err := journal.Connect(cfg.Journal.Path)
		if err != nil {
			return "", err
		}
		defer db.Close()
		recorder = journal.NewRecorder(db, cfg.Journal.Buffer)
		recorder.Start()
		opts.Observers = append(opts.Observers, recorder)
		if m, ok := sink.(*render.MJPEG); ok {
			m.SetHistory(&repos.RecognitionRepository{DB: db})
		}
	}

	processor := pipeline.NewProcessor(src, recognition.NewBridge(recognizer), loop, opts)
	worker := pipeline.NewWorker(initgate.Imaging, src, processor, cfg.Pipeline.MaxConsecutiveExhaustion)
	if err := worker.Start(); err != nil {
		return "", err
	}

	go func() {
		select {
		case killSignal := <-interrupt:
			fmt.Print("\r")
			log.Error("Received signal: %s", killSignal)
		case <-worker.Failed():
			log.Error("Frame pipeline failed: %v", worker.Err())
		}
		cancel()
	}()

	if err := loop.Run(ctx); err != nil {
		log.Error("Unable to close renderer: %v", err)
	}

	log.Info("Shutting down...")
	worker.Stop()
	worker.Wait()
	if recorder != nil {
		recorder.Stop()
		recorder.Wait()
	}

	log.Info("Pipeline: %s", processor.Stats())
	camStats, renderStats := src.Stats(), loop.Stats()
	log.Info("Camera: grabbed=%d delivered=%d dropped=%d failed=%d", camStats.Grabbed, camStats.Delivered, camStats.Dropped, camStats.Failed)
	log.Info("Renderer: shown=%d replaced=%d failed=%d", renderStats.Shown, renderStats.Replaced, renderStats.Failed)

	var b bytes.Buffer
	gocv.MatProfile.WriteTo(&b, 1)
	fmt.Print(b.String())

	if err := worker.Err(); err != nil {
		return "", err
	}
	return "Shutdown successful... BYE! 👋", nil
}

func init() {
	// gocv windows must be driven from the main OS thread
	runtime.LockOSThread()
	log.SetLevel(os.Getenv("DRAGON_LENS_LOGGING_LEVEL"))
}

func main() {
	daemonType := daemon.SystemDaemon
	if runtime.GOOS == "darwin" {
		daemonType = daemon.UserAgent
	}

	srv, err := daemon.New(name, description, daemonType)
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	logging.Info(status) //nolint
}
